package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxPromptHistory = 100

// Prompt is the chat input line. Up and down recall earlier entries.
type Prompt struct {
	input   textinput.Model
	width   int
	focused bool

	history []string
	recall  int // index into history while browsing; len(history) when not
	draft   string
}

// NewPrompt creates a focused prompt.
func NewPrompt(placeholder string) Prompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 2000
	ti.Width = 80
	ti.Prompt = ""
	ti.Focus()

	return Prompt{
		input:   ti,
		width:   80,
		focused: true,
	}
}

// Focus sets focus on the prompt
func (p *Prompt) Focus() tea.Cmd {
	p.focused = true
	return p.input.Focus()
}

// Blur removes focus from the prompt
func (p *Prompt) Blur() {
	p.focused = false
	p.input.Blur()
}

func (p *Prompt) Focused() bool {
	return p.focused
}

// SetWidth sets the width of the input
func (p *Prompt) SetWidth(w int) {
	p.width = w
	p.input.Width = w - 4 // Account for prompt symbol and spacing
}

func (p *Prompt) Value() string {
	return p.input.Value()
}

func (p *Prompt) SetValue(s string) {
	p.input.SetValue(s)
	p.input.CursorEnd()
}

// Submit returns the current value, records it in history and clears the input.
func (p *Prompt) Submit() string {
	v := p.input.Value()
	if strings.TrimSpace(v) != "" {
		if n := len(p.history); n == 0 || p.history[n-1] != v {
			p.history = append(p.history, v)
		}
		if len(p.history) > maxPromptHistory {
			p.history = p.history[len(p.history)-maxPromptHistory:]
		}
	}
	p.recall = len(p.history)
	p.draft = ""
	p.input.Reset()
	return v
}

// Update handles input events
func (p *Prompt) Update(msg tea.Msg) (*Prompt, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && p.focused {
		switch key.Type {
		case tea.KeyUp:
			p.browse(-1)
			return p, nil
		case tea.KeyDown:
			p.browse(1)
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p *Prompt) browse(delta int) {
	if len(p.history) == 0 {
		return
	}
	if p.recall >= len(p.history) {
		p.recall = len(p.history)
		if delta < 0 {
			p.draft = p.input.Value()
		}
	}
	next := p.recall + delta
	switch {
	case next < 0:
		return
	case next >= len(p.history):
		p.recall = len(p.history)
		p.SetValue(p.draft)
	default:
		p.recall = next
		p.SetValue(p.history[next])
	}
}

// View renders the prompt
func (p *Prompt) View() string {
	style := SelectorDim
	if p.focused {
		style = PromptStyle
	}
	return style.Render(SymbolPrompt) + " " + p.input.View()
}
