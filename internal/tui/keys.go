package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	Focus     key.Binding
	Clear     key.Binding
	Variant   key.Binding
	Detail    key.Binding
	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column right")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MoveLeft:  key.NewBinding(key.WithKeys("H", "shift+left"), key.WithHelp("H", "move card left")),
		MoveRight: key.NewBinding(key.WithKeys("L", "shift+right"), key.WithHelp("L", "move card right")),
		MoveUp:    key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move card up")),
		MoveDown:  key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move card down")),
		Focus:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle focus")),
		Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear my focus")),
		Variant:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "kanban/focus")),
		Detail:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refetch")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveLeft, k.MoveRight, k.Variant, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.MoveLeft, k.MoveRight, k.MoveUp, k.MoveDown},
		{k.Focus, k.Clear, k.Variant, k.Detail},
		{k.Refresh, k.Help, k.Quit},
	}
}
