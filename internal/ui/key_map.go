package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the status display.
type keyMap struct {
	toggle   key.Binding
	next     key.Binding
	previous key.Binding
	refresh  key.Binding
	auth     key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		previous: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		auth:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "authenticate")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.previous, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.previous},
		{k.refresh, k.auth},
		{k.help, k.quit},
	}
}
