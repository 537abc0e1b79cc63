/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/components"
	"github.com/allbin/go-serialctl/internal/tui/keys"
	"github.com/allbin/go-serialctl/internal/tui/models"
	"github.com/allbin/go-serialctl/internal/tui/styles"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <port>",
	Short: "Connect to a serial port with bidirectional communication",
	Long: `Connect to a serial port with an interactive terminal interface.

The port is configured and driven by its read, write and control threads.
The view shows received frames and sent data as table rows, the aggregate
port state (ready, busy, disconnected...) and LEDs for the modem lines.

Keys (normal mode):
  i      insert mode: type and press Enter to send, Tab toggles ascii/hex
  v      visual mode: scroll the history with j/k, g/G
  r / d  toggle RTS / DTR
  R      restart the port threads after a fault
  h / a  toggle hex / ascii columns
  c      clear, ? help, q quit

Example usage:
  serialctl connect /dev/ttyUSB0
  serialctl connect /dev/ttyUSB0 --baud 115200 --framing lines
  serialctl connect /dev/ttyUSB0 --flow-control rtscts --send-mode hex`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sendMode, _ := cmd.Flags().GetString("send-mode")
		lineEnding, _ := cmd.Flags().GetString("line-ending")
		scrollback, _ := cmd.Flags().GetInt("scrollback")

		mode, err := components.ParseSendingMode(sendMode)
		if err != nil {
			return err
		}
		ending, err := parseLineEnding(lineEnding)
		if err != nil {
			return err
		}
		return runConnectTUI(args[0], mode, ending, scrollback)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	addPortFlags(connectCmd)
	addFramingFlags(connectCmd)

	connectCmd.Flags().String("send-mode", "ascii", "Initial sending mode: ascii or hex")
	connectCmd.Flags().String("line-ending", "lf", "Appended to ascii input: lf, crlf, cr or none")
	connectCmd.Flags().Int("scrollback", 5000, "Number of entries kept in the view")
}

func parseLineEnding(s string) (string, error) {
	switch strings.ToLower(s) {
	case "lf":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	case "cr":
		return "\r", nil
	case "none", "":
		return "", nil
	}
	return "", fmt.Errorf("unknown line ending %q (must be lf, crlf, cr or none)", s)
}

// startResultMsg reports the outcome of starting (or restarting) the port
type startResultMsg struct {
	err error
}

// startCmd opens the port if needed and starts its threads off the
// update loop, since thread start blocks until the threads run.
func startCmd(m *serial.Manager, path string, lineCfg serial.Config) tea.Cmd {
	return func() tea.Msg {
		if m.Port().IsOpen() {
			if err := m.Stop(); err != nil {
				return startResultMsg{err: err}
			}
		} else if err := m.OpenPort(describe(path)); err != nil {
			return startResultMsg{err: err}
		}
		return startResultMsg{err: m.Start(lineCfg)}
	}
}

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.SerialModel
	lineCfg   serial.Config
	table     *components.TerminalTable
	statusBar *components.StatusBar
	input     *components.Input
	help      help.Model
	keys      keys.ConnectKeys
}

func runConnectTUI(portPath string, mode components.SendingMode, lineEnding string, scrollback int) error {
	lineCfg, err := cfg.Port.SerialConfig()
	if err != nil {
		return err
	}
	manager, err := newManager()
	if err != nil {
		return err
	}

	m := &connectModel{
		SerialModel: models.NewSerialModel(manager, portPath, scrollback),
		lineCfg:     lineCfg,
		table:       components.NewTerminalTable(0, 0, scrollback),
		statusBar:   components.NewStatusBar(portPath, lineCfg),
		input:       components.NewInput(mode, lineEnding),
		help:        help.New(),
		keys:        keys.NewConnectKeys(),
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	detach := m.Attach(p.Send)
	_, runErr := p.Run()
	detach()

	if err := m.Cleanup(); err != nil {
		logger.Warn("cleanup failed", "path", portPath, "error", err)
	}
	return runErr
}

func (m *connectModel) Init() tea.Cmd {
	return startCmd(m.Manager(), m.GetPortPath(), m.lineCfg)
}

func (m *connectModel) addEntry(msg components.DataMsg) {
	m.table.AddMessage(msg)
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// input box (3) and status bar (1)
		m.table.SetSize(msg.Width, msg.Height-4)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.SetReady(true)

	case startResultMsg:
		if msg.err != nil {
			m.addEntry(m.AddEvent(time.Now(), "start failed: %v", msg.err))
		} else {
			m.statusBar.SetModem(m.Manager().ModemState())
		}

	case models.StateMsg:
		m.statusBar.SetState(msg.State, msg.Err)
		m.statusBar.SetPending(m.Manager().PendingWrites())
		if m.HandleState(msg) {
			m.table.Refresh(m.GetRawData())
		}
		switch msg.State {
		case serial.StateDisconnected, serial.StatePortError:
			if msg.Err != nil {
				m.addEntry(m.AddEvent(msg.Time, "port %s: %v", msg.State, msg.Err))
			} else {
				m.addEntry(m.AddEvent(msg.Time, "port %s", msg.State))
			}
		}

	case models.LineMsg:
		m.statusBar.SetModem(msg.Modem)
		m.addEntry(m.AddEvent(msg.Time, "%s %s", msg.Line, formatSignalState(msg.On)))

	case models.FrameMsg:
		entry := components.DataMsg{Timestamp: msg.Time, Data: msg.Data, Direction: components.DirectionRX}
		m.AddRawData(entry)
		m.addEntry(entry)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			return m, m.updateInsert(msg)
		}
		if cmd, handled := m.updateNormal(msg); handled {
			return m, cmd
		}
	}

	if m.table.GetViewMode() == components.ViewModeVisual {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *connectModel) updateInsert(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.SetInputMode(models.InputModeNormal)
		m.input.Blur()
		return nil
	case key.Matches(msg, m.keys.Enter):
		if m.input.Value() == "" {
			return nil
		}
		payload, err := m.input.Payload()
		if err != nil {
			m.addEntry(m.AddEvent(time.Now(), "invalid input: %v", err))
			return nil
		}
		entry, err := m.Send(payload)
		m.addEntry(entry)
		if err != nil {
			m.addEntry(m.AddEvent(time.Now(), "send failed: %v", err))
		}
		m.input.AddToHistory(m.input.Value())
		m.input.SetValue("")
		return nil
	case key.Matches(msg, m.keys.Up):
		m.input.NavigateHistoryUp()
		return nil
	case key.Matches(msg, m.keys.Down):
		m.input.NavigateHistoryDown()
		return nil
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *connectModel) updateNormal(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.InsertMode):
		m.table.SetViewMode(components.ViewModeFollow)
		m.SetInputMode(models.InputModeInsert)
		return m.input.Focus(), true
	case key.Matches(msg, m.keys.VisualMode):
		if m.table.GetViewMode() == components.ViewModeVisual {
			m.table.SetViewMode(components.ViewModeFollow)
		} else {
			m.table.SetViewMode(components.ViewModeVisual)
		}
		return nil, true
	case key.Matches(msg, m.keys.Escape):
		m.table.SetViewMode(components.ViewModeFollow)
		return nil, true
	case key.Matches(msg, m.keys.Clear):
		m.ClearData()
		m.table.Clear()
		return nil, true
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true
	case key.Matches(msg, m.keys.ToggleHex):
		m.table.ToggleHex()
		return nil, true
	case key.Matches(msg, m.keys.ToggleASCII):
		m.table.ToggleASCII()
		return nil, true
	case key.Matches(msg, m.keys.ToggleSendMode):
		m.input.ToggleSendingMode()
		return nil, true
	case key.Matches(msg, m.keys.ToggleRTS):
		m.toggleLine("RTS", m.Manager().SetRTS, m.Manager().ModemState().RTS)
		return nil, true
	case key.Matches(msg, m.keys.ToggleDTR):
		m.toggleLine("DTR", m.Manager().SetDTR, m.Manager().ModemState().DTR)
		return nil, true
	case key.Matches(msg, m.keys.Flush):
		m.addEntry(m.Flush())
		return nil, true
	case key.Matches(msg, m.keys.Reconnect):
		return startCmd(m.Manager(), m.GetPortPath(), m.lineCfg), true
	}
	return nil, false
}

func (m *connectModel) toggleLine(name string, set func(bool) error, current bool) {
	if err := set(!current); err != nil {
		m.addEntry(m.AddEvent(time.Now(), "set %s failed: %v", name, err))
		return
	}
	m.statusBar.SetModem(m.Manager().ModemState())
	m.addEntry(m.AddEvent(time.Now(), "%s %s", name, formatSignalState(!current)))
}

func (m *connectModel) View() string {
	if !m.IsReady() {
		return "Initializing..."
	}

	extra := ""
	if m.IsInInsertMode() {
		extra = fmt.Sprintf("[%s] Tab to toggle", m.input.GetSendingMode())
	} else if m.table.GetViewMode() == components.ViewModeVisual {
		extra = m.table.GetViewMode().String()
	}

	m.statusBar.SetWidth(m.table.Width())
	parts := []string{
		styles.ContentBorderStyle.Render(m.table.View()),
		m.input.ViewWithMode(m.IsInInsertMode()),
	}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	parts = append(parts, m.statusBar.View(m.GetInputMode().String(), extra, time.Now().Format("15:04:05")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
