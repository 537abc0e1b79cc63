package models

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/components"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// StateMsg carries a manager state change into the program
type StateMsg struct {
	Time  time.Time
	State serial.State
	Err   error
}

// LineMsg carries a modem line change
type LineMsg struct {
	Time  time.Time
	Line  serial.Line
	On    bool
	Modem serial.ModemState
}

// FrameMsg carries a received frame
type FrameMsg struct {
	Time time.Time
	Data []byte
}

// EventMsg maps a manager event to its program message
func EventMsg(m *serial.Manager, ev serial.Event) tea.Msg {
	switch ev.Kind {
	case serial.EventLine:
		return LineMsg{Time: ev.Time, Line: ev.Line, On: ev.On, Modem: m.ModemState()}
	case serial.EventFrame:
		return FrameMsg{Time: ev.Time, Data: ev.Data}
	default:
		return StateMsg{Time: ev.Time, State: ev.State, Err: ev.Err}
	}
}

// SerialModel is the state shared by the port views: the manager, the
// entries received so far and the editing mode. It is only touched from
// the bubbletea update loop; manager events reach it as messages.
type SerialModel struct {
	manager   *serial.Manager
	portPath  string
	rawData   []components.DataMsg
	maxData   int
	inputMode InputMode
	ready     bool
}

func NewSerialModel(manager *serial.Manager, portPath string, scrollback int) *SerialModel {
	return &SerialModel{
		manager:   manager,
		portPath:  portPath,
		maxData:   scrollback,
		inputMode: InputModeNormal,
	}
}

// Attach forwards manager events to send until the returned function is
// called. send is usually tea.Program.Send.
func (m *SerialModel) Attach(send func(tea.Msg)) (detach func()) {
	return m.manager.Subscribe(func(ev serial.Event) {
		send(EventMsg(m.manager, ev))
	})
}

func (m *SerialModel) Manager() *serial.Manager {
	return m.manager
}

func (m *SerialModel) GetPortPath() string {
	return m.portPath
}

func (m *SerialModel) IsReady() bool {
	return m.ready
}

func (m *SerialModel) SetReady(ready bool) {
	m.ready = ready
}

func (m *SerialModel) GetRawData() []components.DataMsg {
	return m.rawData
}

func (m *SerialModel) AddRawData(msg components.DataMsg) {
	m.rawData = append(m.rawData, msg)
	if m.maxData > 0 && len(m.rawData) > m.maxData {
		m.rawData = m.rawData[len(m.rawData)-m.maxData:]
	}
}

// AddEvent records a notification as a text entry
func (m *SerialModel) AddEvent(t time.Time, format string, args ...any) components.DataMsg {
	msg := components.DataMsg{
		Timestamp: t,
		Data:      fmt.Appendf(nil, format, args...),
		Direction: components.DirectionEvent,
	}
	m.AddRawData(msg)
	return msg
}

// SettleWrites moves every queued TX entry to status and reports whether
// anything changed. The manager only reports when the whole queue has
// drained, so all queued entries settle together.
func (m *SerialModel) SettleWrites(status components.TxStatus) bool {
	changed := false
	for i := range m.rawData {
		d := &m.rawData[i]
		if d.Direction == components.DirectionTX && d.Status == components.TxQueued {
			d.Status = status
			changed = true
		}
	}
	return changed
}

// HandleState applies a state change to the pending TX entries
func (m *SerialModel) HandleState(msg StateMsg) bool {
	switch msg.State {
	case serial.StateReady:
		return m.SettleWrites(components.TxSent)
	case serial.StateDisconnected, serial.StatePortError, serial.StatePortClosed:
		return m.SettleWrites(components.TxFailed)
	}
	return false
}

// Send queues data on the manager and records the TX entry
func (m *SerialModel) Send(data []byte) (components.DataMsg, error) {
	msg := components.DataMsg{
		Timestamp: time.Now(),
		Data:      data,
		Direction: components.DirectionTX,
		Status:    components.TxQueued,
	}
	if _, err := m.manager.Write(data); err != nil {
		msg.Status = components.TxFailed
		m.AddRawData(msg)
		return msg, err
	}
	m.AddRawData(msg)
	return msg, nil
}

// Flush discards both driver queues and records the outcome
func (m *SerialModel) Flush() components.DataMsg {
	if err := m.manager.Port().Flush(); err != nil {
		return m.AddEvent(time.Now(), "flush failed: %v", err)
	}
	return m.AddEvent(time.Now(), "driver buffers flushed")
}

func (m *SerialModel) ClearData() {
	m.rawData = nil
}

func (m *SerialModel) GetInputMode() InputMode {
	return m.inputMode
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.inputMode = mode
}

func (m *SerialModel) IsInInsertMode() bool {
	return m.inputMode == InputModeInsert
}

// Cleanup stops the threads and closes the port
func (m *SerialModel) Cleanup() error {
	if err := m.manager.Stop(); err != nil {
		return err
	}
	return m.manager.ClosePort()
}
