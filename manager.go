package serial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// State is the aggregate state of a Manager. Consumers gate their
// affordances on this value alone.
type State int

const (
	StatePortClosed State = iota
	StateDisconnected
	StateConnecting
	StateReady
	StateBusy
	StatePortError
)

func (s State) String() string {
	switch s {
	case StatePortClosed:
		return "port closed"
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StatePortError:
		return "port error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventKind tells which fields of an Event are set
type EventKind int

const (
	EventState EventKind = iota // State, Err
	EventLine                   // Line, On
	EventFrame                  // Data
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventLine:
		return "line"
	case EventFrame:
		return "frame"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one entry of the Manager's notification stream
type Event struct {
	Kind  EventKind
	Time  time.Time
	Path  string
	State State
	Err   error
	Line  Line
	On    bool
	Data  []byte
}

// EventHandler receives events on the goroutine that produced them: line
// events on the control thread, frames on the read thread, state changes
// on the caller or the failing thread. Handlers must not block and must
// not call Start, Stop, OpenPort or ClosePort.
type EventHandler func(Event)

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger, shared with its port and threads
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPort replaces the SerialPort the manager drives
func WithPort(p Port) ManagerOption {
	return func(m *Manager) {
		m.port = p
	}
}

// WithSplitFunc sets the framing policy of received data. Nil delivers
// every read as its own frame.
func WithSplitFunc(split bufio.SplitFunc) ManagerOption {
	return func(m *Manager) {
		m.split = split
	}
}

// WithFlushOnTimeout delivers a partial frame when the line goes quiet
// for a whole read timeout.
func WithFlushOnTimeout(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.flushOnTimeout = enabled
	}
}

// WithScanner replaces the scanner used by Scan and Watch
func WithScanner(s *Scanner) ManagerOption {
	return func(m *Manager) {
		m.scanner = s
	}
}

// WithManagerThreadTimeouts bounds thread start and stop
func WithManagerThreadTimeouts(start, stop time.Duration) ManagerOption {
	return func(m *Manager) {
		m.startTimeout, m.stopTimeout = start, stop
	}
}

// Manager drives one port and its read, write and control threads, and
// folds their notifications into a single event stream.
type Manager struct {
	logger         *slog.Logger
	port           Port
	scanner        *Scanner
	split          bufio.SplitFunc
	flushOnTimeout bool
	startTimeout   time.Duration
	stopTimeout    time.Duration

	read    *ReadThread
	write   *WriteThread
	control *ControlThread

	// mu serializes the lifecycle calls.
	mu   sync.Mutex
	desc PortDescriptor

	stateMu sync.Mutex
	state   State
	err     error

	subMu  sync.RWMutex
	subs   map[int]EventHandler
	nextID int
}

// NewManager returns a manager in StatePortClosed
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger: slog.New(slog.DiscardHandler),
		subs:   make(map[int]EventHandler),
		state:  StatePortClosed,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.port == nil {
		m.port = NewSerialPort(m.logger)
	}
	if m.scanner == nil {
		m.scanner = NewScanner(m.logger)
	}

	threadOpts := []ThreadOption{
		WithThreadLogger(m.logger),
		WithThreadTimeouts(m.startTimeout, m.stopTimeout),
		WithFaultHandler(m.onFault),
	}
	m.read = NewReadThread(m.port, ReadThreadConfig{
		Split:          m.split,
		FlushOnTimeout: m.flushOnTimeout,
		OnFrame:        m.onFrame,
	}, threadOpts...)
	m.write = NewWriteThread(m.port, WriteThreadConfig{
		OnBusy: m.refreshBusy,
		OnIdle: m.refreshBusy,
	}, threadOpts...)
	m.control = NewControlThread(m.port, m.onLine, threadOpts...)
	return m
}

// Scan lists the serial ports that answer with a recognized UART. The
// manager's own open port is not probed again but is listed if it
// qualifies.
func (m *Manager) Scan(ctx context.Context) ([]PortDescriptor, error) {
	skip, own := m.ownDescriptor()
	ports, err := m.scanner.Scan(ctx, skip...)
	if err != nil {
		return nil, err
	}
	if own != nil {
		ports = append(ports, *own)
		slices.SortFunc(ports, func(a, b PortDescriptor) int { return naturalCompare(a.Path, b.Path) })
	}
	return ports, nil
}

// Watch emits a fresh Scan result whenever serial device nodes appear or
// disappear.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration) <-chan []PortDescriptor {
	return m.scanner.Watch(ctx, debounce, func() []string {
		skip, _ := m.ownDescriptor()
		return skip
	})
}

func (m *Manager) ownDescriptor() ([]string, *PortDescriptor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.port.IsOpen() {
		return nil, nil
	}
	d := m.desc
	if u, err := m.port.UART(); err == nil {
		d.UART = u
	}
	if !d.UART.Known() && !m.scanner.IncludeUnrecognized {
		return []string{d.Path}, nil
	}
	if d.DisplayName == "" {
		d.DisplayName = displayName(d)
	}
	return []string{d.Path}, &d
}

// OpenPort opens the described device without configuring it
func (m *Manager) OpenPort(desc PortDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port.IsOpen() {
		return ErrAlreadyOpen
	}
	if err := m.port.Open(desc.Path); err != nil {
		m.logger.Error("open failed", "path", desc.Path, "error", err)
		m.transition(StatePortError, err)
		return err
	}
	m.desc = desc
	m.logger.Info("port opened", "path", desc.Path)
	m.transition(StateDisconnected, nil)
	return nil
}

// Start applies cfg and then starts the read, write and control threads
// in that order. When the configuration is rejected no thread is started
// and the port stays open.
func (m *Manager) Start(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.port.IsOpen() {
		return ErrNotOpen
	}
	if m.running() {
		return ErrThreadsRunning
	}

	m.transition(StateConnecting, nil)
	if err := m.port.ApplyConfig(cfg); err != nil {
		m.logger.Error("configuration rejected", "path", m.desc.Path, "error", err)
		m.transition(StatePortError, err)
		return err
	}
	for _, t := range m.threads() {
		if err := t.Start(); err != nil {
			m.logger.Error("thread start failed", "thread", t.Name(), "error", err)
			m.stopThreads()
			m.transition(StatePortError, err)
			return err
		}
	}

	m.logger.Info("port started", "path", m.desc.Path, "config", cfg.String())
	m.transitionFrom(StateConnecting, StateReady)
	m.refreshBusy()
	return nil
}

// Stop stops the control, write and read threads in that order. Stopping
// a stopped manager does nothing.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.stopThreads()
	switch m.State() {
	case StateConnecting, StateReady, StateBusy:
		m.transition(StateDisconnected, nil)
	}
	return err
}

// ClosePort closes the device. The threads must have been stopped.
func (m *Manager) ClosePort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running() {
		return ErrThreadsRunning
	}
	err := m.port.Close()
	if m.desc.Path != "" {
		m.logger.Info("port closed", "path", m.desc.Path)
	}
	m.desc = PortDescriptor{}
	m.transition(StatePortClosed, nil)
	return err
}

// Write queues data for the write thread and returns the number of bytes
// accepted.
func (m *Manager) Write(data []byte) (int, error) {
	return m.write.Enqueue(data)
}

// SetRTS drives RTS; it does nothing while no port is open
func (m *Manager) SetRTS(on bool) error {
	return m.port.SetRTS(on)
}

// SetDTR drives DTR; it does nothing while no port is open
func (m *Manager) SetDTR(on bool) error {
	return m.port.SetDTR(on)
}

// ModemState returns the last known line states
func (m *Manager) ModemState() ModemState {
	return m.port.ModemState()
}

// AvailableBaudRates lists the rates the open device accepts
func (m *Manager) AvailableBaudRates() ([]int, error) {
	return m.port.AvailableBaudRates()
}

// UART returns the chip family of the open device
func (m *Manager) UART() (UART, error) {
	return m.port.UART()
}

// Config returns the configuration applied by the last successful Start
func (m *Manager) Config() Config {
	return m.port.Config()
}

// Descriptor returns the descriptor passed to OpenPort
func (m *Manager) Descriptor() PortDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.desc
}

// Path returns the device path of the last OpenPort
func (m *Manager) Path() string {
	return m.port.Path()
}

// Port exposes the underlying port for one-off operations such as Flush
func (m *Manager) Port() Port {
	return m.port
}

// State returns the aggregate state
func (m *Manager) State() State {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Err returns the error attached to the last PortError or Disconnected state
func (m *Manager) Err() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.err
}

// ThreadStates reports the read, write and control thread states
func (m *Manager) ThreadStates() (read, write, control ThreadState) {
	return m.read.State(), m.write.State(), m.control.State()
}

// PendingWrites returns the number of frames not yet handed to the driver
func (m *Manager) PendingWrites() int {
	return m.write.Pending()
}

// Subscribe registers h for all events and returns a function removing it
func (m *Manager) Subscribe(h EventHandler) (unsubscribe func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = h
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

func (m *Manager) publish(ev Event) {
	ev.Time = time.Now()
	if ev.Path == "" {
		ev.Path = m.port.Path()
	}

	m.subMu.RLock()
	handlers := make([]EventHandler, 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.subMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// threads returns the threads in start order
func (m *Manager) threads() []*PortThread {
	return []*PortThread{m.read.PortThread, m.write.PortThread, m.control.PortThread}
}

func (m *Manager) running() bool {
	for _, t := range m.threads() {
		if s := t.State(); s != ThreadIdle && s != ThreadStopped {
			return true
		}
	}
	return false
}

// stopThreads stops in reverse start order so no line event fires while
// the data threads shut down. Every thread is asked to stop even if an
// earlier one timed out. Callers hold m.mu.
func (m *Manager) stopThreads() error {
	var errs []error
	for _, t := range slices.Backward(m.threads()) {
		if err := t.Stop(); err != nil {
			m.logger.Error("thread stop failed", "thread", t.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// transition sets the state and publishes it if anything changed
func (m *Manager) transition(to State, err error) {
	m.stateMu.Lock()
	changed := m.state != to || err != nil
	m.state, m.err = to, err
	m.stateMu.Unlock()

	if changed {
		m.publish(Event{Kind: EventState, State: to, Err: err})
	}
}

// transitionFrom moves to `to` only if the state is still `from`
func (m *Manager) transitionFrom(from, to State) {
	m.stateMu.Lock()
	if m.state != from {
		m.stateMu.Unlock()
		return
	}
	m.state, m.err = to, nil
	m.stateMu.Unlock()

	m.publish(Event{Kind: EventState, State: to})
}

// refreshBusy derives Ready or Busy from the write queue while running
func (m *Manager) refreshBusy() {
	m.stateMu.Lock()
	if m.state != StateReady && m.state != StateBusy {
		m.stateMu.Unlock()
		return
	}
	want := StateReady
	if m.write.Pending() > 0 {
		want = StateBusy
	}
	if want == m.state {
		m.stateMu.Unlock()
		return
	}
	m.state = want
	m.stateMu.Unlock()

	m.publish(Event{Kind: EventState, State: want})
}

func (m *Manager) onFrame(data []byte) {
	m.publish(Event{Kind: EventFrame, Data: data})
}

func (m *Manager) onLine(line Line, on bool) {
	m.publish(Event{Kind: EventLine, Line: line, On: on})
}

// onFault reports a failed thread as Disconnected and stops the others.
// It runs on the failing thread, which has already stopped.
func (m *Manager) onFault(thread string, err error) {
	m.logger.Error("port disconnected", "thread", thread, "error", err)
	m.transition(StateDisconnected, err)
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stopThreads()
	}()
}
