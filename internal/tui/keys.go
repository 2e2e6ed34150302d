package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start        key.Binding
	Stop         key.Binding
	Cancel       key.Binding
	Mode         key.Binding
	NextCategory key.Binding
	PrevCategory key.Binding
	NextTarget   key.Binding
	Help         key.Binding
	Quit         key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Start:        key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "record")),
		Stop:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop & submit")),
		Cancel:       key.NewBinding(key.WithKeys("esc", "x"), key.WithHelp("esc", "cancel")),
		Mode:         key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mode")),
		NextCategory: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next category")),
		PrevCategory: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev category")),
		NextTarget:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next target")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Cancel, k.Mode, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Cancel},
		{k.Mode, k.NextCategory, k.PrevCategory, k.NextTarget},
		{k.Help, k.Quit},
	}
}
