package styles

import (
	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/colors"
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Mauve).
			Background(colors.Surface0).
			Padding(0, 1)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colors.Surface1)

	// Input styles
	InputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Red)

	// Static table styles, used by the scan output
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colors.Mauve)

	TableBaseStyle = lipgloss.NewStyle().
			Foreground(colors.Text).
			BorderForeground(colors.Surface2).
			Align(lipgloss.Left)

	FaintStyle = lipgloss.NewStyle().
			Foreground(colors.Overlay0)
)

// StateColor is the indicator color of a manager state
func StateColor(state serial.State) lipgloss.Color {
	switch state {
	case serial.StateReady:
		return colors.Green
	case serial.StateBusy:
		return colors.Blue
	case serial.StateConnecting:
		return colors.Yellow
	case serial.StatePortError:
		return colors.Red
	case serial.StateDisconnected:
		return colors.Maroon
	default:
		return colors.Overlay0
	}
}

// StateSymbol is the single character indicator of a manager state
func StateSymbol(state serial.State) string {
	switch state {
	case serial.StateReady:
		return "●"
	case serial.StateBusy:
		return "◐"
	case serial.StatePortError:
		return "✗"
	default:
		return "○"
	}
}

// GetStatusStyle renders state indicators
func GetStatusStyle(state serial.State) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(StateColor(state)).Bold(true)
}
