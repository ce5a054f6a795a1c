package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/monagent/chainpilot/internal/chain"
)

// SelectorItem is one choice in a Selector.
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
}

// Selector is an interactive list. It starts on the current item.
type Selector struct {
	title    string
	items    []SelectorItem
	cursor   int
	selected int
	active   bool
}

func NewSelector(title string, items []SelectorItem) Selector {
	selected := 0
	for i, item := range items {
		if item.Current {
			selected = i
			break
		}
	}

	return Selector{
		title:    title,
		items:    items,
		cursor:   selected,
		selected: selected,
		active:   len(items) > 0,
	}
}

// NetworkItems lists the registry's chains for a network picker, marking current.
func NetworkItems(registry *chain.Registry, current string) []SelectorItem {
	names := registry.Names()
	items := make([]SelectorItem, 0, len(names))
	for _, name := range names {
		cfg, err := registry.Get(name)
		if err != nil {
			continue
		}
		desc := fmt.Sprintf("chain %d · %s", cfg.ChainIDInt, cfg.NativeCurrency)
		if cfg.IsTestnet {
			desc += " · testnet"
		}
		items = append(items, SelectorItem{
			ID:          name,
			Label:       cfg.Name,
			Description: desc,
			Current:     name == current,
		})
	}
	return items
}

func (s *Selector) Active() bool {
	return s.active
}

// Selected returns the chosen item ID, or empty if cancelled.
func (s *Selector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.items) {
		return s.items[s.selected].ID
	}
	return ""
}

func (s *Selector) Cancelled() bool {
	return !s.active && s.selected == -1
}

// Update handles selector input. Navigation wraps around.
func (s *Selector) Update(msg tea.Msg) (*Selector, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		n := len(s.items)
		switch msg.String() {
		case "up", "k":
			s.cursor = (s.cursor - 1 + n) % n
		case "down", "j", "tab":
			s.cursor = (s.cursor + 1) % n
		case "enter":
			s.selected = s.cursor
			s.active = false
		case "esc", "q":
			s.selected = -1
			s.active = false
		}
	}
	return s, nil
}

func (s *Selector) View() string {
	if !s.active {
		return ""
	}

	var b strings.Builder
	b.WriteString(HelpStyle.Render(s.title + " (↑/↓ navigate, enter select, esc cancel)"))
	b.WriteString("\n\n")

	for i, item := range s.items {
		isCursor := i == s.cursor
		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		display := item.Label
		if display == "" {
			display = item.ID
		}
		label := fmt.Sprintf("%-22s", display)
		if isCursor {
			b.WriteString(SelectorActive.Render(label))
		} else {
			b.WriteString(SelectorItemStyle.Render(label))
		}

		desc := item.Description
		if item.Current {
			desc += " (current)"
		}
		if desc != "" {
			b.WriteString(SelectorDim.Render(desc))
		}
		b.WriteString("\n")
	}
	return b.String()
}
