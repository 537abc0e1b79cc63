package keys

import "github.com/charmbracelet/bubbles/key"

// Common key bindings used across TUI commands
type CommonKeys struct {
	Quit       key.Binding
	Help       key.Binding
	InsertMode key.Binding
	Escape     key.Binding
}

func NewCommonKeys() CommonKeys {
	return CommonKeys{
		Quit: key.NewBinding(
			key.WithKeys("q", "Q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		InsertMode: key.NewBinding(
			key.WithKeys("i", "I"),
			key.WithHelp("i", "insert mode"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "normal mode"),
		),
	}
}

// TerminalKeys drive the views that display port traffic
type TerminalKeys struct {
	CommonKeys
	Clear       key.Binding
	ToggleHex   key.Binding
	ToggleASCII key.Binding
	ToggleRTS   key.Binding
	ToggleDTR   key.Binding
	Flush       key.Binding
	Reconnect   key.Binding
}

func NewTerminalKeys() TerminalKeys {
	return TerminalKeys{
		CommonKeys: NewCommonKeys(),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear buffer"),
		),
		ToggleHex: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle hex"),
		),
		ToggleASCII: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "toggle ascii"),
		),
		ToggleRTS: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "toggle rts"),
		),
		ToggleDTR: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "toggle dtr"),
		),
		Flush: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "flush driver buffers"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "restart threads"),
		),
	}
}

func (k TerminalKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Clear, k.ToggleRTS, k.ToggleDTR, k.Quit}
}

func (k TerminalKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Clear, k.ToggleHex, k.ToggleASCII},
		{k.ToggleRTS, k.ToggleDTR, k.Flush, k.Reconnect},
		{k.Help, k.Quit},
	}
}
