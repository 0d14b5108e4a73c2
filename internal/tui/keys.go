package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Visible  key.Binding
	Collapse key.Binding
	Flush    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k", "ctrl+p"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j", "ctrl+n"), key.WithHelp("↓/j", "down")),
		MoveUp:   key.NewBinding(key.WithKeys("shift+up", "K", "ctrl+k"), key.WithHelp("K", "bring forward")),
		MoveDown: key.NewBinding(key.WithKeys("shift+down", "J", "ctrl+j"), key.WithHelp("J", "send backward")),
		Visible:  key.NewBinding(key.WithKeys("v", " "), key.WithHelp("v", "show/hide")),
		Collapse: key.NewBinding(key.WithKeys("enter", "tab"), key.WithHelp("enter", "collapse/expand")),
		Flush:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save now")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveUp, k.MoveDown, k.Visible, k.Collapse, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.MoveUp, k.MoveDown},
		{k.Visible, k.Collapse, k.Flush},
		{k.Help, k.Quit},
	}
}
