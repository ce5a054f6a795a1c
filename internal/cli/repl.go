package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/chain"
	"github.com/monagent/chainpilot/internal/config"
	"github.com/monagent/chainpilot/internal/logging"
	"github.com/monagent/chainpilot/internal/setup"
	"github.com/monagent/chainpilot/internal/tx"
	"github.com/monagent/chainpilot/internal/ui"
)

const (
	agentRequestTimeout = 60 * time.Second
	historyPageSize     = 10
)

// chatMessage represents a message in the chat history
type chatMessage struct {
	role    string // "user", "assistant", "error", "system"
	content string
	time    time.Time
}

// chatWallet is the part of the local wallet the chat screen uses.
type chatWallet interface {
	tx.Wallet
	Network() string
}

// chatDeps are the collaborators of the chat screen.
type chatDeps struct {
	session  *agent.Session
	wallet   chatWallet
	registry *chain.Registry
	waiter   agent.ReceiptWaiter
	history  *agent.HistoryStore
	logger   *zap.Logger
}

// chatModel represents the chat screen state
type chatModel struct {
	ctx context.Context
	chatDeps

	prompt   ui.Prompt
	viewport viewport.Model
	spinner  spinner.Model
	confirm  *ui.Confirm
	selector *ui.Selector
	messages []chatMessage
	loading  bool
	width    int
	height   int
	ready    bool
	quitting bool
}

// replyMsg is sent when the agent responds
type replyMsg struct {
	reply agent.Reply
}

// sendResultMsg is sent when the wallet finished a confirmed transfer
type sendResultMsg struct {
	pending tx.Pending
	outcome *tx.Outcome
	err     error
}

type receiptMsg struct {
	hash    common.Hash
	receipt *types.Receipt
}

type walletNoticeMsg struct {
	err error
}

type historyMsg struct {
	entries []agent.HistoryEntry
	err     error
}

type networkSwitchedMsg struct {
	name string
	err  error
}

// walletEventMsg carries a wallet state change into the program.
type walletEventMsg struct {
	event tx.WalletEvent
}

type resetMsg struct {
	err error
}

func newChatModel(ctx context.Context, deps chatDeps) chatModel {
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ui.ColorPrimary)

	m := chatModel{
		ctx:      ctx,
		chatDeps: deps,
		prompt:   ui.NewPrompt("Ask about balances, gas fees, or send tokens..."),
		spinner:  sp,
	}
	m.messages = []chatMessage{m.welcome()}
	return m
}

func (m chatModel) welcome() chatMessage {
	var account *common.Address
	if m.wallet.Connected() {
		addr := m.wallet.Account()
		account = &addr
	}
	return chatMessage{role: "assistant", content: agent.Welcome(account), time: time.Now()}
}

// Init initializes the model
func (m chatModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.wallet.Connected() {
		cmds = append(cmds, m.notifyWallet())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates state
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		if m.selector != nil {
			return m.updateSelector(msg)
		}

		switch msg.Type {
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.prompt.Value())
			if input == "" {
				return m, nil
			}
			m.prompt.Submit()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			m.appendMessage("user", input)
			m.loading = true
			return m, m.sendToAgent(input)

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		_, cmd = m.prompt.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-6)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 6
		}
		m.prompt.SetWidth(msg.Width - 2)
		m.updateViewport()
		return m, nil

	case replyMsg:
		m.loading = false
		return m.handleReply(msg.reply)

	case sendResultMsg:
		m.confirm = nil
		if msg.err != nil {
			m.appendMessage("error", agent.FailedMessage(msg.err))
		} else {
			m.appendMessage("assistant", agent.SentMessage(msg.pending, msg.outcome))
		}
		m.session.Orchestrator().Acknowledge()
		cmds := []tea.Cmd{m.prompt.Focus()}
		if msg.err == nil && m.waiter != nil {
			cmds = append(cmds, m.watchReceipt(msg.pending, msg.outcome))
		}
		return m, tea.Batch(cmds...)

	case receiptMsg:
		if msg.receipt == nil {
			return m, nil
		}
		status := "confirmed"
		if msg.receipt.Status != types.ReceiptStatusSuccessful {
			status = "reverted"
		}
		m.appendMessage("system", fmt.Sprintf("Transaction %s %s in block %s.",
			shortHex(msg.hash.Hex()), status, msg.receipt.BlockNumber))
		return m, nil

	case walletNoticeMsg:
		if msg.err != nil {
			m.logger.Warn("could not share wallet address with the agent", zap.Error(msg.err))
		}
		return m, nil

	case historyMsg:
		if msg.err != nil {
			m.appendMessage("error", fmt.Sprintf("Could not load history: %v", msg.err))
		} else {
			m.appendMessage("system", formatHistory(msg.entries))
		}
		return m, nil

	case networkSwitchedMsg:
		if msg.err != nil {
			m.appendMessage("error", fmt.Sprintf("Could not switch network: %v", msg.err))
		} else {
			m.appendMessage("system", fmt.Sprintf("Wallet switched to %s.", m.registry.Label(msg.name)))
			m.refreshConfirmNetwork()
		}
		return m, nil

	case walletEventMsg:
		m.logger.Debug("wallet event", zap.Stringer("kind", msg.event.Kind))
		if msg.event.Kind == tx.EventChainChanged {
			m.refreshConfirmNetwork()
		}
		return m, nil

	case resetMsg:
		if msg.err != nil {
			m.appendMessage("error", fmt.Sprintf("Could not reset session: %v", msg.err))
			return m, nil
		}
		m.messages = []chatMessage{m.welcome()}
		m.appendMessage("system", "Started a new agent session.")
		if m.wallet.Connected() {
			return m, m.notifyWallet()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	if m.confirm != nil {
		_, cmd := m.confirm.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		_, cmd := m.prompt.Update(msg)
		cmds = append(cmds, cmd)
	}
	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)
	return m, tea.Batch(cmds...)
}

func (m chatModel) handleReply(r agent.Reply) (tea.Model, tea.Cmd) {
	switch r.Kind {
	case agent.ReplyNone:
		return m, nil
	case agent.ReplyError:
		m.appendMessage("error", r.Text)
		return m, nil
	case agent.ReplyTransaction:
		m.appendMessage("assistant", r.Text)
		if r.Pending != nil {
			m.confirm = ui.NewConfirm(*r.Pending, m.networkLabel())
			m.prompt.Blur()
		}
		return m, nil
	default:
		m.appendMessage("assistant", r.Text)
		return m, nil
	}
}

func (m chatModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	action, cmd := m.confirm.Update(msg)
	switch action {
	case ui.ConfirmSend, ui.ConfirmSwitchAndSend:
		m.confirm.SetBusy(true)
		return m, m.confirmTransfer(m.confirm.Pending(), m.confirm.Gate().Overrides(), action == ui.ConfirmSwitchAndSend)

	case ui.ConfirmCancel:
		orch := m.session.Orchestrator()
		if err := orch.Cancel(m.ctx); err != nil {
			m.logger.Debug("cancel ignored", zap.Error(err))
		}
		orch.Acknowledge()
		m.confirm = nil
		m.appendMessage("system", agent.MsgTxCancelled)
		return m, m.prompt.Focus()
	}
	return m, cmd
}

func (m chatModel) updateSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.selector.Update(msg)
	if m.selector.Active() {
		return m, nil
	}
	selected := m.selector.Selected()
	m.selector = nil
	if selected == "" || selected == m.wallet.Network() {
		return m, m.prompt.Focus()
	}
	return m, tea.Batch(m.prompt.Focus(), m.switchNetwork(selected))
}

// refreshConfirmNetwork keeps an open dialog's network warning current.
func (m chatModel) refreshConfirmNetwork() {
	if m.confirm != nil {
		m.confirm.SetNetwork(m.networkLabel())
	}
}

// networkLabel is the display name of the wallet's active network.
func (m chatModel) networkLabel() string {
	return m.registry.Label(m.wallet.Network())
}

// View renders the UI
func (m chatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if !m.ready {
		return "Initializing...\n"
	}

	var b strings.Builder
	b.WriteString(ui.TitleStyle.Render("  chainpilot"))
	b.WriteString(ui.HelpStyle.Render("  " + m.statusLine()))
	b.WriteString("\n\n")

	switch {
	case m.confirm != nil:
		b.WriteString(m.confirm.View())
		b.WriteString("\n")
	case m.selector != nil:
		b.WriteString(m.selector.View())
	default:
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		if m.loading {
			b.WriteString(fmt.Sprintf("  %s Thinking...\n", m.spinner.View()))
		} else {
			b.WriteString("\n")
		}
		b.WriteString(m.prompt.View())
		b.WriteString("\n")
		b.WriteString(ui.HelpStyle.Render("  /help • /network • /history • /reset • /quit"))
	}
	return b.String()
}

func (m chatModel) statusLine() string {
	if !m.wallet.Connected() {
		return "no wallet connected"
	}
	return fmt.Sprintf("%s on %s", agent.ShortAddress(m.wallet.Account()), m.networkLabel())
}

// appendMessage adds a message and scrolls to it
func (m *chatModel) appendMessage(role, content string) {
	m.messages = append(m.messages, chatMessage{role: role, content: content, time: time.Now()})
	m.updateViewport()
	m.viewport.GotoBottom()
}

// updateViewport updates the viewport content with messages
func (m *chatModel) updateViewport() {
	if !m.ready {
		return
	}
	var content strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			content.WriteString(ui.UserStyle.Render("You: "))
			content.WriteString(msg.content)
		case "assistant":
			content.WriteString(ui.AssistantStyle.Render("MonAgent: "))
			content.WriteString(msg.content)
		case "error":
			content.WriteString(ui.ErrorStyle.Render(msg.content))
		case "system":
			content.WriteString(ui.SystemStyle.Render(msg.content))
		}
		content.WriteString("\n\n")
	}
	m.viewport.SetContent(lipgloss.NewStyle().Width(m.width - 2).Render(content.String()))
}

// handleCommand handles slash commands
func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/quit", "/exit", "/q":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.messages = []chatMessage{{role: "system", content: "Chat cleared. How can I help you?", time: time.Now()}}
		m.updateViewport()
		return m, nil

	case "/reset":
		return m, m.resetSession()

	case "/history":
		return m, m.loadHistory()

	case "/network":
		if !m.wallet.Connected() {
			m.appendMessage("error", "No wallet connected. Run `chainpilot wallet create` first.")
			return m, nil
		}
		sel := ui.NewSelector("Switch wallet network", ui.NetworkItems(m.registry, m.wallet.Network()))
		m.selector = &sel
		m.prompt.Blur()
		return m, nil

	case "/help", "/?":
		var b strings.Builder
		b.WriteString(`Available commands:
  /help, /?       - Show this help
  /network        - Switch the wallet's network
  /history        - Show recent transfers
  /reset          - Start a new agent session
  /clear          - Clear the screen
  /quit, /exit    - Exit chainpilot

Try asking:`)
		for _, q := range agent.SuggestedQueries {
			b.WriteString("\n  \"" + q + "\"")
		}
		m.appendMessage("system", b.String())
		return m, nil

	default:
		m.appendMessage("error", fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
		return m, nil
	}
}

// sendToAgent sends a message to the agent and returns a command
func (m chatModel) sendToAgent(input string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, agentRequestTimeout)
		defer cancel()
		return replyMsg{reply: session.Send(ctx, input)}
	}
}

func (m chatModel) confirmTransfer(p tx.Pending, ov tx.Overrides, switchFirst bool) tea.Cmd {
	orch, ctx := m.session.Orchestrator(), m.ctx
	return func() tea.Msg {
		var (
			out *tx.Outcome
			err error
		)
		if switchFirst {
			out, err = orch.SwitchAndConfirm(ctx, ov)
		} else {
			out, err = orch.Confirm(ctx, ov)
		}
		return sendResultMsg{pending: p, outcome: out, err: err}
	}
}

// watchReceipt polls the chain the transfer was signed for. A fallback send on
// an unrecognized network is not watched.
func (m chatModel) watchReceipt(p tx.Pending, out *tx.Outcome) tea.Cmd {
	chainName := p.Chain
	if out.Chain != "" {
		chainName = out.Chain
	} else if out.Fallback {
		m.logger.Debug("not watching fallback transfer on unknown network", zap.String("hash", out.Hash.Hex()))
		return nil
	}
	waiter, history, logger, ctx, hash := m.waiter, m.history, m.logger, m.ctx, out.Hash
	return func() tea.Msg {
		receipt := agent.WatchReceipt(ctx, waiter, history, chainName, hash, logger)
		return receiptMsg{hash: hash, receipt: receipt}
	}
}

func (m chatModel) notifyWallet() tea.Cmd {
	session, ctx, account := m.session, m.ctx, m.wallet.Account()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, agentRequestTimeout)
		defer cancel()
		return walletNoticeMsg{err: session.NotifyWallet(ctx, account)}
	}
}

func (m chatModel) loadHistory() tea.Cmd {
	history, ctx := m.history, m.ctx
	return func() tea.Msg {
		entries, err := history.Recent(ctx, historyPageSize)
		return historyMsg{entries: entries, err: err}
	}
}

func (m chatModel) switchNetwork(name string) tea.Cmd {
	w, registry, ctx := m.wallet, m.registry, m.ctx
	return func() tea.Msg {
		id, ok := registry.Resolve(name)
		if !ok {
			return networkSwitchedMsg{name: name, err: fmt.Errorf("unknown chain: %s", name)}
		}
		return networkSwitchedMsg{name: name, err: w.SwitchChain(ctx, id)}
	}
}

func (m chatModel) resetSession() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		return resetMsg{err: session.Reset()}
	}
}

func formatHistory(entries []agent.HistoryEntry) string {
	if len(entries) == 0 {
		return "No transfers yet."
	}
	var b strings.Builder
	b.WriteString("Recent transfers:")
	for _, e := range entries {
		b.WriteString("\n  " + describeEntry(e))
	}
	return b.String()
}

func describeEntry(e agent.HistoryEntry) string {
	line := fmt.Sprintf("%-9s %-14s %s → %s", e.State, e.Chain, e.Amount, shortHex(e.Recipient))
	switch {
	case e.TxHash != "" && e.Status != nil && *e.Status == types.ReceiptStatusSuccessful:
		line += "  " + shortHex(e.TxHash) + " (mined)"
	case e.TxHash != "" && e.Status != nil:
		line += "  " + shortHex(e.TxHash) + " (reverted)"
	case e.TxHash != "":
		line += "  " + shortHex(e.TxHash)
	case e.Error != "":
		line += "  " + e.Error
	}
	if e.Fallback {
		line += " [fallback]"
	}
	return line
}

func shortHex(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// RunChat starts the interactive chat
func RunChat(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	level := cfg.Log.Level
	if cfg.Log.Debug {
		level = "debug"
	}
	// The terminal belongs to the chat screen, so logs go to a file.
	logger, err := logging.NewFile(cfg.LogPath(), level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	unlock := func(address string) (string, error) {
		if !setup.IsInteractive() {
			return "", nil
		}
		return readPassword(fmt.Sprintf("Password for %s (empty to chat without wallet): ", address))
	}
	w, err := a.openWallet(unlock)
	if err != nil {
		return err
	}
	defer w.Disconnect()

	transcript, err := agent.OpenTranscript(cfg.DataDir, time.Now().UTC().Format("20060102-150405"))
	if err != nil {
		logger.Warn("transcript disabled", zap.Error(err))
	}
	defer transcript.Close()

	opts := []tx.Option{
		tx.WithPolicy(a.policy),
		tx.WithLogger(logger),
		tx.WithRecorder(a.history),
	}
	if transcript != nil {
		opts = append(opts, tx.WithRecorder(transcript))
	}
	orch := tx.NewOrchestrator(w, a.registry, opts...)
	defer orch.Close()

	session := agent.NewSession(a.agent, a.store, orch,
		agent.WithSessionLogger(logger),
		agent.WithTranscript(transcript))

	go func() {
		_ = agent.KeepAlive(ctx, a.agent, cfg.Agent.KeepAlive, logger)
	}()

	m := newChatModel(ctx, chatDeps{
		session:  session,
		wallet:   w,
		registry: a.registry,
		waiter:   a.chains,
		history:  a.history,
		logger:   logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	unsubscribe := w.Subscribe(func(ev tx.WalletEvent) { p.Send(walletEventMsg{event: ev}) })
	defer unsubscribe()
	_, err = p.Run()
	return err
}
