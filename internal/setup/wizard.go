package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/ui"
)

// WizardStep represents the current step in the wizard
type WizardStep int

const (
	StepWelcome WizardStep = iota
	StepWalletChoice
	StepImportKey
	StepWalletPassword
	StepComplete
)

const totalSteps = 2 // Wallet, Ready

// SetupResult contains the result of the setup wizard
type SetupResult struct {
	WalletCreated bool
	WalletAddress string
	Cancelled     bool
}

const (
	choiceCreate = "create"
	choiceImport = "import"
	choiceSkip   = "skip"
)

// WizardModel is the first-run wizard
type WizardModel struct {
	step     WizardStep
	status   *SetupStatus
	dataDir  string
	quitting bool

	walletSelector ui.Selector
	importing      bool
	keyInput       textinput.Model
	passwordInput  textinput.Model
	confirmInput   textinput.Model
	passwordStep   int // 0=enter, 1=confirm
	passwordError  string
	creating       bool
	walletCreated  bool
	walletAddress  string

	spinner  spinner.Model
	progress progress.Model

	result *SetupResult
}

type walletCreatedMsg struct {
	address string
	err     error
}

func walletSelectorItems() []ui.SelectorItem {
	return []ui.SelectorItem{
		{ID: choiceCreate, Label: "Create a new wallet", Description: "new key, encrypted on disk"},
		{ID: choiceImport, Label: "Import a private key", Description: "hex, with or without 0x"},
		{ID: choiceSkip, Label: "Continue without wallet", Description: "chat only, no transfers"},
	}
}

func secretInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	in.CharLimit = limit
	in.Width = 50
	return in
}

// NewWizard creates a new wizard model
func NewWizard(dataDir string) *WizardModel {
	status, _ := DetectSetupStatus(dataDir)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	m := &WizardModel{
		step:           StepWelcome,
		status:         status,
		dataDir:        dataDir,
		walletSelector: ui.NewSelector("Set up a wallet", walletSelectorItems()),
		keyInput:       secretInput("Paste your private key here...", 66),
		passwordInput:  secretInput("Enter password (8+ chars)", 100),
		confirmInput:   secretInput("Confirm password", 100),
		spinner:        sp,
		progress:       prog,
	}

	if status.HasWallet {
		m.walletAddress = status.WalletAddress
		m.step = StepComplete
	}
	return m
}

// Init initializes the wizard
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles messages
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.result = &SetupResult{Cancelled: true}
			m.quitting = true
			return m, tea.Quit
		}

		switch m.step {
		case StepWelcome:
			if msg.Type == tea.KeyEnter {
				m.step = StepWalletChoice
			}
			return m, nil

		case StepWalletChoice:
			return m.updateWalletChoice(msg)

		case StepImportKey:
			switch msg.Type {
			case tea.KeyEsc:
				m.keyInput.Reset()
				m.keyInput.Blur()
				m.passwordError = ""
				m.step = StepWalletChoice
				m.walletSelector = ui.NewSelector("Set up a wallet", walletSelectorItems())
				return m, nil
			case tea.KeyEnter:
				if strings.TrimSpace(m.keyInput.Value()) == "" {
					m.passwordError = "Private key is required"
					return m, nil
				}
				m.passwordError = ""
				m.keyInput.Blur()
				m.step = StepWalletPassword
				return m, m.passwordInput.Focus()
			}

		case StepWalletPassword:
			if m.creating {
				return m, nil
			}
			if msg.Type == tea.KeyEsc {
				m.passwordStep = 0
				m.passwordError = ""
				m.passwordInput.Reset()
				m.confirmInput.Reset()
				m.step = StepWalletChoice
				m.walletSelector = ui.NewSelector("Set up a wallet", walletSelectorItems())
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				return m.updateWalletPassword()
			}

		case StepComplete:
			if msg.Type == tea.KeyEnter {
				m.result = &SetupResult{
					WalletCreated: m.walletCreated,
					WalletAddress: m.walletAddress,
				}
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(40, msg.Width-20)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case walletCreatedMsg:
		m.creating = false
		if msg.err != nil {
			m.passwordError = msg.err.Error()
			m.passwordStep = 0
			m.passwordInput.Reset()
			m.confirmInput.Reset()
			return m, m.passwordInput.Focus()
		}
		m.keyInput.Reset()
		m.walletCreated = true
		m.walletAddress = msg.address
		m.step = StepComplete
		return m, nil
	}

	switch m.step {
	case StepImportKey:
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		cmds = append(cmds, cmd)
	case StepWalletPassword:
		var cmd tea.Cmd
		if m.passwordStep == 0 {
			m.passwordInput, cmd = m.passwordInput.Update(msg)
		} else {
			m.confirmInput, cmd = m.confirmInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m WizardModel) updateWalletChoice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.walletSelector.Update(msg)
	if m.walletSelector.Active() {
		return m, nil
	}

	if m.walletSelector.Cancelled() {
		m.step = StepWelcome
		m.walletSelector = ui.NewSelector("Set up a wallet", walletSelectorItems())
		return m, nil
	}

	switch m.walletSelector.Selected() {
	case choiceCreate:
		m.importing = false
		m.passwordStep = 0
		m.step = StepWalletPassword
		return m, m.passwordInput.Focus()
	case choiceImport:
		m.importing = true
		m.step = StepImportKey
		return m, m.keyInput.Focus()
	default:
		m.step = StepComplete
		return m, nil
	}
}

func (m WizardModel) updateWalletPassword() (tea.Model, tea.Cmd) {
	if m.passwordStep == 0 {
		if len(m.passwordInput.Value()) < 8 {
			m.passwordError = "Password must be at least 8 characters"
			return m, nil
		}
		m.passwordStep = 1
		m.passwordError = ""
		m.passwordInput.Blur()
		return m, m.confirmInput.Focus()
	}

	if m.passwordInput.Value() != m.confirmInput.Value() {
		m.passwordError = "Passwords do not match. Try again."
		m.confirmInput.Reset()
		return m, m.confirmInput.Focus()
	}
	m.creating = true
	m.passwordError = ""
	return m, m.createWallet()
}

// View renders the wizard
func (m WizardModel) View() string {
	if m.quitting {
		if m.result != nil && m.result.Cancelled {
			return DimStyle.Render("\n  Setup cancelled.\n\n")
		}
		return ""
	}

	var b strings.Builder
	if m.step > StepWelcome && m.step < StepComplete {
		b.WriteString("\n")
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
	}

	switch m.step {
	case StepWelcome:
		b.WriteString(m.viewWelcome())
	case StepWalletChoice:
		b.WriteString(m.viewWalletChoice())
	case StepImportKey:
		b.WriteString(m.viewImportKey())
	case StepWalletPassword:
		b.WriteString(m.viewWalletPassword())
	case StepComplete:
		b.WriteString(m.viewComplete())
	}
	return b.String()
}

func (m WizardModel) renderProgress() string {
	currentStep := 1
	if m.step == StepComplete {
		currentStep = 2
	}
	bar := m.progress.ViewAs(float64(currentStep) / float64(totalSteps))
	label := StepStyle.Render(fmt.Sprintf("Step %d of %d", currentStep, totalSteps))
	return fmt.Sprintf("  %s  %s\n%s", bar, label, DimStyle.Render("  Wallet        Ready"))
}

func (m WizardModel) viewWelcome() string {
	box := BoxStyle.Render(
		TitleStyle.Render("Welcome to chainpilot") + "\n" +
			SubtitleStyle.Render("Chat with MonAgent, send native tokens from your terminal") + "\n\n" +
			"Let's set up a wallet so the agent can prepare transfers for you.",
	)
	return "\n\n" + box + "\n\n" + HelpStyle.Render("  Press Enter to continue...")
}

func (m WizardModel) viewWalletChoice() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("  A wallet lets you:\n"))
	b.WriteString(DimStyle.Render("  • Send native tokens the agent prepares\n"))
	b.WriteString(DimStyle.Render("  • Review and edit every transfer before it is signed\n\n"))
	b.WriteString(m.walletSelector.View())
	if m.passwordError != "" {
		b.WriteString(fmt.Sprintf("\n%s\n", ErrorStyle.Render("✗ "+m.passwordError)))
	}
	return b.String()
}

func (m WizardModel) viewImportKey() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  Import Private Key"))
	b.WriteString("\n\n  ")
	b.WriteString(m.keyInput.View())
	b.WriteString("\n")
	if m.passwordError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ErrorStyle.Render("✗ "+m.passwordError)))
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewWalletPassword() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  Wallet Password"))
	b.WriteString("\n\n")
	b.WriteString(DimStyle.Render("  This encrypts your wallet on disk.\n"))
	b.WriteString(DimStyle.Render("  Requirements: 8+ characters\n\n"))

	if m.passwordStep == 0 {
		b.WriteString("  ")
		b.WriteString(m.passwordInput.View())
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("  Password: %s\n\n", SuccessStyle.Render("✓ set")))
		b.WriteString("  ")
		b.WriteString(m.confirmInput.View())
		b.WriteString("\n")
	}

	if m.creating {
		b.WriteString(fmt.Sprintf("\n  %s Encrypting key...\n", m.spinner.View()))
	}
	if m.passwordError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ErrorStyle.Render("✗ "+m.passwordError)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewComplete() string {
	walletInfo := DimStyle.Render("Not configured")
	if m.walletAddress != "" {
		walletInfo = m.walletAddress
		if len(walletInfo) > 10 {
			walletInfo = walletInfo[:6] + "..." + walletInfo[len(walletInfo)-4:]
		}
	}

	var tries strings.Builder
	for _, q := range agent.SuggestedQueries[:3] {
		tries.WriteString(fmt.Sprintf("\n  \"%s\"", q))
	}

	content := fmt.Sprintf("%s\n\nWallet: %s\n\n%s%s",
		TitleStyle.Render("✨ You're all set!"),
		walletInfo,
		DimStyle.Render("Try these:"),
		tries.String(),
	)
	return "\n\n" + BoxStyle.Render(content) + "\n\n" + HelpStyle.Render("  Press Enter to start chainpilot...")
}

// RunWizard runs the setup wizard for dataDir and returns the result
func RunWizard(dataDir string) (*SetupResult, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m := NewWizard(dataDir)
	if m.status.HasWallet {
		return &SetupResult{WalletAddress: m.status.WalletAddress}, nil
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(WizardModel).result
	if result != nil && !result.Cancelled {
		if err := MarkDone(dataDir); err != nil {
			return result, fmt.Errorf("failed to record setup: %w", err)
		}
	}
	return result, nil
}

// PrintEnvInstructions prints setup instructions for non-interactive environments
func PrintEnvInstructions() {
	fmt.Println("chainpilot has no wallet configured.")
	fmt.Println("")
	fmt.Println("Create or import one with:")
	fmt.Println("  chainpilot wallet create")
	fmt.Println("  chainpilot wallet import --key <hex>")
	fmt.Println("")
	fmt.Println("Or run chainpilot interactively to complete guided setup.")
}

// IsInteractive returns true if running in a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
