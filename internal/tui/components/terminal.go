package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Terminal is a scrolling log of formatted entries, used by the read-only
// view. Entries beyond the scrollback limit are dropped oldest first.
type Terminal struct {
	viewport   viewport.Model
	formatter  *DataFormatter
	data       []string
	scrollback int
}

func NewTerminal(width, height, scrollback int) *Terminal {
	return &Terminal{
		viewport:   viewport.New(width, height),
		formatter:  NewDataFormatter(true, true),
		scrollback: scrollback,
	}
}

func (t *Terminal) SetSize(width, height int) {
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) Width() int {
	return t.viewport.Width
}

func (t *Terminal) AddMessage(msg DataMsg) {
	t.data = append(t.data, t.formatter.FormatMessage(msg))
	if t.scrollback > 0 && len(t.data) > t.scrollback {
		t.data = t.data[len(t.data)-t.scrollback:]
	}
	t.render()
}

// Refresh reformats every entry, e.g. after a display mode toggle
func (t *Terminal) Refresh(rawData []DataMsg) {
	t.data = t.formatter.FormatMessages(rawData)
	t.render()
}

func (t *Terminal) render() {
	t.viewport.SetContent(strings.Join(t.data, "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Clear() {
	t.data = nil
	t.viewport.SetContent("")
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
}

func (t *Terminal) ToggleASCII() {
	t.formatter.ToggleASCII()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

func (t *Terminal) Update(msg tea.Msg) (*Terminal, tea.Cmd) {
	// Key messages stay with the caller's bindings
	if _, ok := msg.(tea.KeyMsg); ok {
		return t, nil
	}
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
