package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/monagent/chainpilot/internal/agent"
	"github.com/monagent/chainpilot/internal/tx"
)

// ConfirmAction is what the user chose in the dialog.
type ConfirmAction int

const (
	ConfirmNone ConfirmAction = iota
	ConfirmSend
	ConfirmSwitchAndSend
	ConfirmCancel
)

const (
	fieldRecipient = iota
	fieldAmount
	fieldCount
)

// Confirm is the dialog shown for a pending transfer. Recipient and amount
// are editable; the gate decides whether sending is allowed.
type Confirm struct {
	pending tx.Pending
	gate    *tx.Gate
	inputs  [fieldCount]textinput.Model
	focus   int
	network string // wallet's active network label
	err     string
}

// NewConfirm seeds the dialog from p. network is the wallet's current network.
func NewConfirm(p tx.Pending, network string) *Confirm {
	c := &Confirm{
		pending: p,
		gate:    tx.NewGate(&p),
		network: network,
	}

	recipient := textinput.New()
	recipient.Prompt = ""
	recipient.CharLimit = 42
	recipient.Width = 44
	recipient.SetValue(c.gate.Recipient)
	recipient.Focus()

	amount := textinput.New()
	amount.Prompt = ""
	amount.CharLimit = 40
	amount.Width = 24
	amount.SetValue(c.gate.Amount)

	c.inputs = [fieldCount]textinput.Model{recipient, amount}
	return c
}

// Pending returns the transfer the dialog was opened for.
func (c *Confirm) Pending() tx.Pending { return c.pending }

// Gate returns the gate holding the edited fields.
func (c *Confirm) Gate() *tx.Gate { return c.gate }

// SetBusy disables the send keys while a send is in flight.
func (c *Confirm) SetBusy(busy bool) {
	c.gate.SetBusy(busy)
	if busy {
		c.err = ""
	}
}

// SetNetwork updates the wallet network shown in the dialog.
func (c *Confirm) SetNetwork(label string) { c.network = label }

// Update handles a key and reports the chosen action, if any.
func (c *Confirm) Update(msg tea.Msg) (ConfirmAction, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		c.inputs[c.focus], cmd = c.inputs[c.focus].Update(msg)
		return ConfirmNone, cmd
	}

	switch key.String() {
	case "esc":
		if c.gate.Busy() {
			return ConfirmNone, nil
		}
		return ConfirmCancel, nil
	case "enter":
		return c.submit(ConfirmSend), nil
	case "ctrl+s":
		return c.submit(ConfirmSwitchAndSend), nil
	case "tab", "down":
		return ConfirmNone, c.setFocus((c.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return ConfirmNone, c.setFocus((c.focus + fieldCount - 1) % fieldCount)
	}

	if c.gate.Busy() {
		return ConfirmNone, nil
	}
	var cmd tea.Cmd
	c.inputs[c.focus], cmd = c.inputs[c.focus].Update(msg)
	c.gate.SetRecipient(c.inputs[fieldRecipient].Value())
	c.gate.SetAmount(c.inputs[fieldAmount].Value())
	c.err = ""
	return ConfirmNone, cmd
}

func (c *Confirm) submit(action ConfirmAction) ConfirmAction {
	if c.gate.Busy() {
		return ConfirmNone
	}
	if err := c.gate.Validate(); err != nil {
		c.err = err.Error()
		return ConfirmNone
	}
	return action
}

func (c *Confirm) setFocus(i int) tea.Cmd {
	c.inputs[c.focus].Blur()
	c.focus = i
	return c.inputs[c.focus].Focus()
}

func (c *Confirm) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Confirm transaction"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(FieldLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("Network", c.gate.ChainLabel)
	row("Recipient", c.inputs[fieldRecipient].View())
	row("Amount", c.inputs[fieldAmount].View())
	row("From", agent.ShortAddress(c.pending.Account))

	if c.network != "" && c.network != c.gate.ChainLabel {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render(fmt.Sprintf("Wallet is on %s. Use ctrl+s to switch to %s first.", c.network, c.gate.ChainLabel)))
		b.WriteString("\n")
	}
	if c.err != "" {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(SymbolCross + " " + c.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case c.gate.Busy():
		b.WriteString(HelpStyle.Render(SymbolThinking + " Waiting for the wallet..."))
	case c.gate.CanSend():
		b.WriteString(HelpStyle.Render("enter send · ctrl+s switch network & send · tab next field · esc cancel"))
	default:
		b.WriteString(HelpStyle.Render("fix the highlighted fields · esc cancel"))
	}
	return DialogStyle.Render(b.String())
}
