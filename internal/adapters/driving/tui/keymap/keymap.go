// Package keymap holds the explorer's key bindings. KeyMap satisfies
// help.KeyMap, so the status bar and the help screen render from it.
package keymap

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

var _ help.KeyMap = (*KeyMap)(nil)

// KeyMap groups the bindings by the view that reads them.
type KeyMap struct {
	// query input
	Search key.Binding
	Back   key.Binding

	// result list
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Ask       key.Binding
	NewSearch key.Binding

	// passage view
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	Help key.Binding
	Quit key.Binding
}

func bind(label, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

// DefaultKeyMap returns vi-style bindings with arrow-key equivalents.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Search: bind("enter", "retrieve", "enter"),
		Back:   bind("esc", "back", "esc"),

		Up:        bind("↑/k", "up", "up", "k"),
		Down:      bind("↓/j", "down", "down", "j"),
		Open:      bind("enter", "open passage", "enter"),
		Ask:       bind("a", "ask the model", "a"),
		NewSearch: bind("n", "new query", "n"),

		PageUp:   bind("pgup", "page up", "pgup", "b"),
		PageDown: bind("pgdn", "page down", "pgdown", "f", " "),
		Top:      bind("g", "top", "g", "home"),
		Bottom:   bind("G", "bottom", "G", "end"),

		Help: bind("?", "help", "?"),
		Quit: bind("q", "quit", "q", "ctrl+c"),
	}
}

// ShortHelp is shown while typing a query.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Back}
}

// ResultsHelp is shown while browsing hits.
func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.Open, k.Ask, k.NewSearch, k.Help, k.Quit}
}

// PassageHelp is shown under a passage or answer.
func (k *KeyMap) PassageHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.PageDown, k.Top, k.Bottom, k.Back}
}

// FullHelp lists every binding in columns: results, query, passage, global.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Ask},
		{k.Search, k.NewSearch, k.Back},
		{k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.Help, k.Quit},
	}
}
