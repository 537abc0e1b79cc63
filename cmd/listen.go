/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/colors"
	"github.com/allbin/go-serialctl/internal/tui/components"
	"github.com/allbin/go-serialctl/internal/tui/keys"
	"github.com/allbin/go-serialctl/internal/tui/models"
	"github.com/allbin/go-serialctl/internal/tui/styles"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <port>",
	Short: "Listen for data on a serial port with real-time display",
	Long: `Listen for incoming data on a serial port with a read-only terminal view.

Received frames, modem line changes and port state changes scroll past
with timestamps. Nothing is ever written to the port; RTS and DTR can
still be toggled with r and d.

Example usage:
  serialctl listen /dev/ttyUSB0
  serialctl listen /dev/ttyUSB0 --baud 9600 --framing lines`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scrollback, _ := cmd.Flags().GetInt("scrollback")
		return runListenTUI(args[0], scrollback)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	addPortFlags(listenCmd)
	addFramingFlags(listenCmd)

	listenCmd.Flags().Int("scrollback", 5000, "Number of entries kept in the view")
}

// listenModel represents the Bubble Tea model for the listen command
type listenModel struct {
	*models.SerialModel
	lineCfg   serial.Config
	terminal  *components.Terminal
	statusBar *components.StatusBar
	help      help.Model
	keys      keys.TerminalKeys
}

func runListenTUI(portPath string, scrollback int) error {
	lineCfg, err := cfg.Port.SerialConfig()
	if err != nil {
		return err
	}
	manager, err := newManager()
	if err != nil {
		return err
	}

	m := &listenModel{
		SerialModel: models.NewSerialModel(manager, portPath, scrollback),
		lineCfg:     lineCfg,
		terminal:    components.NewTerminal(80, 20, scrollback),
		statusBar:   components.NewStatusBar(portPath, lineCfg),
		help:        help.New(),
		keys:        keys.NewTerminalKeys(),
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	detach := m.Attach(p.Send)
	_, runErr := p.Run()
	detach()

	if err := m.Cleanup(); err != nil {
		logger.Warn("cleanup failed", "path", portPath, "error", err)
	}
	return runErr
}

func (m *listenModel) Init() tea.Cmd {
	return startCmd(m.Manager(), m.GetPortPath(), m.lineCfg)
}

func (m *listenModel) add(msg components.DataMsg) {
	m.terminal.AddMessage(msg)
}

func (m *listenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.terminal.SetSize(msg.Width, msg.Height-1)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case startResultMsg:
		if msg.err != nil {
			m.add(m.AddEvent(time.Now(), "start failed: %v", msg.err))
		} else {
			m.statusBar.SetModem(m.Manager().ModemState())
		}

	case models.StateMsg:
		m.statusBar.SetState(msg.State, msg.Err)
		switch msg.State {
		case serial.StateReady, serial.StateBusy:
		default:
			if msg.Err != nil {
				m.add(m.AddEvent(msg.Time, "port %s: %v", msg.State, msg.Err))
			} else {
				m.add(m.AddEvent(msg.Time, "port %s", msg.State))
			}
		}

	case models.LineMsg:
		m.statusBar.SetModem(msg.Modem)
		m.add(m.AddEvent(msg.Time, "%s %s", msg.Line, formatSignalState(msg.On)))

	case models.FrameMsg:
		entry := components.DataMsg{Timestamp: msg.Time, Data: msg.Data, Direction: components.DirectionRX}
		m.AddRawData(entry)
		m.add(entry)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Clear):
			m.ClearData()
			m.terminal.Clear()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.ToggleHex):
			m.terminal.ToggleHex()
			m.terminal.Refresh(m.GetRawData())
		case key.Matches(msg, m.keys.ToggleASCII):
			m.terminal.ToggleASCII()
			m.terminal.Refresh(m.GetRawData())
		case key.Matches(msg, m.keys.ToggleRTS):
			m.toggle("RTS", m.Manager().SetRTS, m.Manager().ModemState().RTS)
		case key.Matches(msg, m.keys.ToggleDTR):
			m.toggle("DTR", m.Manager().SetDTR, m.Manager().ModemState().DTR)
		case key.Matches(msg, m.keys.Flush):
			m.add(m.Flush())
		case key.Matches(msg, m.keys.Reconnect):
			return m, startCmd(m.Manager(), m.GetPortPath(), m.lineCfg)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.terminal, cmd = m.terminal.Update(msg)
	return m, cmd
}

func (m *listenModel) toggle(name string, set func(bool) error, current bool) {
	if err := set(!current); err != nil {
		m.add(m.AddEvent(time.Now(), "set %s failed: %v", name, err))
		return
	}
	m.statusBar.SetModem(m.Manager().ModemState())
}

func (m *listenModel) View() string {
	if !m.IsReady() {
		return "Initializing..."
	}

	m.statusBar.SetWidth(m.terminal.Width())
	parts := []string{styles.ContentBorderStyle.Render(m.terminal.View())}
	if m.help.ShowAll {
		helpStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colors.Surface2).
			Padding(1, 2).
			Margin(1, 0)
		parts = append(parts, helpStyle.Render(m.help.View(m.keys)))
	}
	parts = append(parts, m.statusBar.View("NORMAL", "LISTEN", time.Now().Format("15:04:05")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
