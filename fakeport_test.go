package serial

import (
	"bytes"
	"sync"
	"time"
)

// fakePort is an in-memory Port. Input is fed with feed, output collects
// in written, and the modem inputs change through setLines.
type fakePort struct {
	mu      sync.Mutex
	path    string
	open    bool
	cfg     Config
	openErr error
	reject  string // field named by ApplyConfig when non-empty
	uart    UART

	rx       []byte
	rxReady  chan struct{}
	readErr  error
	timedOut bool

	written    bytes.Buffer
	writeLimit int // max bytes accepted per WriteBytes, 0 for all
	writeErr   error
	writeGate  chan struct{}

	modem     ModemState
	pulses    Line
	lineEvent chan struct{}
	lineErr   error

	wake [waitKinds]chan struct{}

	calls []string
}

var _ Port = (*fakePort)(nil)

func newFakePort() *fakePort {
	f := &fakePort{
		cfg:       DefaultConfig(),
		rxReady:   make(chan struct{}, 1),
		lineEvent: make(chan struct{}, 1),
	}
	for i := range f.wake {
		f.wake[i] = make(chan struct{}, 1)
	}
	return f
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (f *fakePort) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePort) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePort) feed(data string) {
	f.mu.Lock()
	f.rx = append(f.rx, data...)
	f.mu.Unlock()
	signal(f.rxReady)
}

func (f *fakePort) failRead(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	signal(f.rxReady)
}

func (f *fakePort) setLines(m ModemState) {
	f.mu.Lock()
	m.RTS, m.DTR = f.modem.RTS, f.modem.DTR
	f.modem = m
	f.mu.Unlock()
	signal(f.lineEvent)
}

// pulse reports lines that toggled and came back since the last sample
func (f *fakePort) pulse(l Line) {
	f.mu.Lock()
	f.pulses |= l
	f.mu.Unlock()
	signal(f.lineEvent)
}

func (f *fakePort) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func (f *fakePort) Open(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	if f.open {
		return &PortError{Kind: KindOpenFailed, Path: path, Err: ErrAlreadyOpen}
	}
	f.path, f.open = path, true
	return nil
}

func (f *fakePort) ApplyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return rejected(f.Path(), "", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrPortClosed
	}
	if f.reject != "" {
		return rejected(f.path, f.reject, nil)
	}
	f.cfg = cfg
	return nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *fakePort) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

func (f *fakePort) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePort) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakePort) ReadBytes(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	n := copy(buf, f.rx)
	f.rx = f.rx[n:]
	if len(f.rx) > 0 {
		signal(f.rxReady)
	}
	return n, nil
}

func (f *fakePort) WriteBytes(data []byte) (int, error) {
	f.mu.Lock()
	gate := f.writeGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	n := len(data)
	if f.writeLimit > 0 {
		n = min(n, f.writeLimit)
	}
	f.written.Write(data[:n])
	return n, nil
}

func (f *fakePort) wait(kind WaitKind, ready chan struct{}, timeout time.Duration) (bool, bool) {
	var expire <-chan time.Time
	if timeout != Infinite {
		expire = time.After(timeout)
	}
	select {
	case <-ready:
		return true, false
	case <-f.wake[kind]:
		return false, false
	case <-expire:
		return false, true
	}
}

func (f *fakePort) WaitReadReady() (bool, error) {
	f.mu.Lock()
	if f.readErr != nil {
		f.mu.Unlock()
		return true, nil
	}
	timeout := f.cfg.ReadTimeout
	f.mu.Unlock()

	ready, timedOut := f.wait(WaitRead, f.rxReady, timeout)
	f.mu.Lock()
	f.timedOut = timedOut
	f.mu.Unlock()
	return ready, nil
}

func (f *fakePort) WaitWriteReady() (bool, error) {
	return true, nil
}

func (f *fakePort) ReadTimedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timedOut
}

func (f *fakePort) WriteTimedOut() bool { return false }

func (f *fakePort) SuspendTransmission() error { f.record("suspend"); return nil }
func (f *fakePort) ResumeTransmission() error  { f.record("resume"); return nil }
func (f *fakePort) FlushIn() error             { f.record("flush in"); return nil }
func (f *fakePort) FlushOut() error            { f.record("flush out"); return nil }
func (f *fakePort) Flush() error               { f.record("flush"); return nil }

func (f *fakePort) WaitForLineStatusChange() error {
	select {
	case <-f.lineEvent:
	case <-f.wake[WaitLines]:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lineErr
}

func (f *fakePort) Interrupt(kind WaitKind) {
	f.record("interrupt " + kind.String())
	signal(f.wake[kind])
}

func (f *fakePort) InterruptWait() {
	f.Interrupt(WaitLines)
}

func (f *fakePort) SampleModemLines() (ModemState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modem, nil
}

func (f *fakePort) LinePulses() Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.pulses
	f.pulses = 0
	return l
}

func (f *fakePort) ModemState() ModemState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modem
}

func (f *fakePort) SetRTS(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modem.RTS = on
	return nil
}

func (f *fakePort) SetDTR(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modem.DTR = on
	return nil
}

func (f *fakePort) UART() (UART, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return UARTUnknown, ErrPortClosed
	}
	return f.uart, nil
}

func (f *fakePort) AvailableBaudRates() ([]int, error) {
	return []int{9600, 115200}, nil
}

// eventually polls cond for up to a second
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
