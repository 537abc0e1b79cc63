package components

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serialctl/internal/tui/colors"
)

type ViewMode int

const (
	ViewModeFollow ViewMode = iota
	ViewModeVisual
)

func (v ViewMode) String() string {
	if v == ViewModeVisual {
		return "VISUAL"
	}
	return "FOLLOW"
}

const (
	timeWidth  = 14 // "15:04:05.000"
	dirWidth   = 8  // "↗ TX ✓"
	bytesWidth = 6
	minWidth   = 80
)

// TerminalTable shows entries as table rows. In follow mode the newest
// row stays visible; visual mode hands the keys to the table for
// scrolling through the history.
type TerminalTable struct {
	table      table.Model
	formatter  *DataFormatter
	viewMode   ViewMode
	rawData    []DataMsg
	scrollback int
}

func NewTerminalTable(width, height, scrollback int) *TerminalTable {
	width = max(width, minWidth)
	height = max(height, 5)

	t := table.New(
		table.WithFocused(false),
		table.WithHeight(height),
		table.WithWidth(width),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colors.Subtext0).
		BorderBottom(true).
		Bold(true).
		Foreground(colors.Text)
	s.Selected = s.Selected.
		Foreground(colors.Text).
		Background(colors.Surface1).
		Bold(false)
	t.SetStyles(s)

	tt := &TerminalTable{
		table:      t,
		formatter:  NewDataFormatter(true, true),
		viewMode:   ViewModeFollow,
		scrollback: scrollback,
	}
	tt.updateColumns(width)
	return tt
}

func (tt *TerminalTable) SetSize(width, height int) {
	tt.updateColumns(width)
	tt.table.SetHeight(height)
	tt.table.SetWidth(width)
	tt.table.UpdateViewport()
}

// updateColumns recomputes the data column widths for the display mode.
// Columns and rows must agree on their count, so rows are rebuilt too.
func (tt *TerminalTable) updateColumns(width int) {
	width = max(width, minWidth)
	remaining := max(width-timeWidth-dirWidth-bytesWidth-10, 20)

	columns := []table.Column{
		{Title: "Time", Width: timeWidth},
		{Title: "↕", Width: dirWidth},
	}
	mode := tt.formatter.GetDisplayMode()
	switch {
	case mode.ShowHex && mode.ShowASCII:
		columns = append(columns,
			table.Column{Title: "Hex", Width: max(remaining*7/10, 20)},
			table.Column{Title: "ASCII", Width: max(remaining*3/10, 10)},
		)
	case mode.ShowHex:
		columns = append(columns, table.Column{Title: "Hex", Width: max(remaining, 30)})
	case mode.ShowASCII:
		columns = append(columns, table.Column{Title: "ASCII", Width: max(remaining, 20)})
	default:
		columns = append(columns, table.Column{Title: "Data", Width: max(remaining, 25)})
	}
	columns = append(columns, table.Column{Title: "Bytes", Width: bytesWidth})

	// Clear rows first so the table never renders a row with the old
	// column count against the new columns.
	tt.table.SetRows(nil)
	tt.table.SetColumns(columns)
	tt.refreshTable()
}

func (tt *TerminalTable) AddMessage(msg DataMsg) {
	tt.rawData = append(tt.rawData, msg)
	if tt.scrollback > 0 && len(tt.rawData) > tt.scrollback {
		tt.rawData = tt.rawData[len(tt.rawData)-tt.scrollback:]
	}
	tt.refreshTable()
}

// Refresh replaces every row, e.g. after TX statuses changed
func (tt *TerminalTable) Refresh(rawData []DataMsg) {
	tt.rawData = rawData
	tt.refreshTable()
}

func (tt *TerminalTable) refreshTable() {
	rows := make([]table.Row, len(tt.rawData))
	for i, msg := range tt.rawData {
		rows[i] = tt.formatRow(msg)
	}
	tt.table.SetRows(rows)
	if tt.viewMode == ViewModeFollow {
		tt.table.GotoBottom()
	}
	tt.table.UpdateViewport()
}

func (tt *TerminalTable) formatRow(msg DataMsg) table.Row {
	row := table.Row{msg.Timestamp.Format("15:04:05.000"), Indicator(msg)}

	mode := tt.formatter.GetDisplayMode()
	switch {
	case msg.Direction == DirectionEvent:
		text := ASCIIString(msg.Data)
		row = append(row, text)
		if mode.ShowHex && mode.ShowASCII {
			row = append(row, "")
		}
	case mode.ShowHex && mode.ShowASCII:
		row = append(row, HexString(msg.Data), ASCIIString(msg.Data))
	case mode.ShowHex:
		row = append(row, HexString(msg.Data))
	case mode.ShowASCII:
		row = append(row, ASCIIString(msg.Data))
	default:
		row = append(row, strconv.Itoa(len(msg.Data))+" bytes")
	}
	return append(row, strconv.Itoa(len(msg.Data)))
}

func (tt *TerminalTable) Clear() {
	tt.rawData = nil
	tt.table.SetRows(nil)
}

func (tt *TerminalTable) ToggleHex() {
	tt.formatter.ToggleHex()
	tt.updateColumns(tt.table.Width())
}

func (tt *TerminalTable) ToggleASCII() {
	tt.formatter.ToggleASCII()
	tt.updateColumns(tt.table.Width())
}

func (tt *TerminalTable) GetDisplayMode() DisplayMode {
	return tt.formatter.GetDisplayMode()
}

func (tt *TerminalTable) GetViewMode() ViewMode {
	return tt.viewMode
}

func (tt *TerminalTable) SetViewMode(mode ViewMode) {
	tt.viewMode = mode
	if mode == ViewModeFollow {
		if len(tt.rawData) > 0 {
			tt.table.SetCursor(len(tt.rawData) - 1)
		}
		tt.table.GotoBottom()
		tt.table.Blur()
	} else {
		tt.table.Focus()
	}
	tt.table.UpdateViewport()
}

func (tt *TerminalTable) Width() int {
	return tt.table.Width()
}

func (tt *TerminalTable) Update(msg tea.Msg) (*TerminalTable, tea.Cmd) {
	var cmd tea.Cmd
	if tt.viewMode == ViewModeVisual {
		tt.table, cmd = tt.table.Update(msg)
	}
	return tt, cmd
}

func (tt *TerminalTable) View() string {
	return tt.table.View()
}
