package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/colors"
	"github.com/allbin/go-serialctl/internal/tui/styles"
)

// StatusBar renders the bottom line of the connect view: editing mode,
// port, aggregate state, line settings and the modem line LEDs.
type StatusBar struct {
	portPath string
	state    serial.State
	err      error
	config   serial.Config
	modem    serial.ModemState
	pending  int
	width    int
}

func NewStatusBar(portPath string, cfg serial.Config) *StatusBar {
	return &StatusBar{
		portPath: portPath,
		state:    serial.StatePortClosed,
		config:   cfg,
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// SetState records the latest aggregate state and its cause, if any
func (sb *StatusBar) SetState(state serial.State, err error) {
	sb.state = state
	sb.err = err
}

func (sb *StatusBar) SetModem(modem serial.ModemState) {
	sb.modem = modem
}

func (sb *StatusBar) SetPending(n int) {
	sb.pending = n
}

func (sb *StatusBar) State() serial.State {
	return sb.state
}

// Err is the error that caused the last Disconnected or PortError state
func (sb *StatusBar) Err() error {
	return sb.err
}

// Leds renders the modem lines as colored labels, inputs first
func (sb *StatusBar) Leds() string {
	leds := []struct {
		name string
		on   bool
	}{
		{"CAR", sb.modem.CAR},
		{"DSR", sb.modem.DSR},
		{"CTS", sb.modem.CTS},
		{"RNG", sb.modem.RNG},
		{"RTS", sb.modem.RTS},
		{"DTR", sb.modem.DTR},
	}
	parts := make([]string, len(leds))
	for i, led := range leds {
		color := colors.LineOff
		if led.on {
			color = colors.LineOn
		}
		parts[i] = lipgloss.NewStyle().Foreground(color).Render(led.name)
	}
	return strings.Join(parts, " ")
}

// View renders the bar. inputMode is NORMAL or INSERT, extra carries view
// specific hints such as the sending mode.
func (sb *StatusBar) View(inputMode, extra, timestamp string) string {
	width := sb.width
	if width <= 0 {
		width = 80
	}

	modeColor := colors.Blue
	if inputMode == "INSERT" {
		modeColor = colors.Green
	}
	mode := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(modeColor).
		Bold(true).
		Padding(0, 1).
		Render(inputMode)

	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portPath)

	stateText := styles.StateSymbol(sb.state) + " " + sb.state.String()
	if sb.err != nil {
		stateText += ": " + sb.err.Error()
	}
	if sb.state == serial.StateBusy && sb.pending > 0 {
		stateText += fmt.Sprintf(" (%d queued)", sb.pending)
	}
	state := styles.GetStatusStyle(sb.state).Render(stateText)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	left := []string{mode, port, state}
	if extra != "" {
		left = append(left, lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1).
			Render(extra))
	}
	left = append(left, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, left...)

	settings := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render("⚡ " + sb.config.String())
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, sb.Leds(), divider, settings, divider, clock)

	spacer := lipgloss.NewStyle().
		Width(max(width-lipgloss.Width(leftSide)-lipgloss.Width(rightSide), 1)).
		Render("")

	return lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
