package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Approve key.Binding
	Abort   key.Binding
	Switch  key.Binding
	Up      key.Binding
	Down    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
}

var keys = keyMap{
	Approve: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "write"),
	),
	Abort: key.NewBinding(
		key.WithKeys("n", "q", "esc", "ctrl+c"),
		key.WithHelp("n/q", "abort"),
	),
	Switch: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "report/diff"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
	PgUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("PgUp", "page up"),
	),
	PgDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("PgDn", "page down"),
	),
}

// keyBarText renders the key hints.
func keyBarText() string {
	parts := make([]string, 0, 4)
	for _, b := range []key.Binding{keys.Approve, keys.Abort, keys.Switch, keys.Up} {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+keyDescStyle.Render(":"+h.Desc))
	}
	return keyBarStyle.Render(strings.Join(parts, "  "))
}
