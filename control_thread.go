package serial

import (
	"errors"
)

// ControlThread watches the modem input lines and reports every
// transition as one call per line. A line that toggled and came back
// between two samples is reported as two calls. Its wait has no timeout,
// so Stop relies on Port.InterruptWait.
type ControlThread struct {
	*PortThread
}

type controlBody struct {
	port   Port
	onLine func(Line, bool)
	last   ModemState
}

// NewControlThread returns an idle control thread. onLine runs on the
// control goroutine.
func NewControlThread(port Port, onLine func(line Line, on bool), opts ...ThreadOption) *ControlThread {
	body := &controlBody{port: port, onLine: onLine}
	if body.onLine == nil {
		body.onLine = func(Line, bool) {}
	}
	return &ControlThread{PortThread: newPortThread("control", body, opts...)}
}

// setup reports the lines that are already on, measured against all-off.
func (c *controlBody) setup() error {
	c.last = ModemState{}
	c.port.LinePulses()
	return c.sample()
}

func (c *controlBody) wait(<-chan struct{}) (bool, error) {
	if err := c.port.WaitForLineStatusChange(); err != nil {
		return false, err
	}
	return true, nil
}

func (c *controlBody) transfer() error {
	return c.sample()
}

func (c *controlBody) sample() error {
	state, err := c.port.SampleModemLines()
	if errors.Is(err, ErrLinesUnsupported) {
		return nil
	}
	if err != nil {
		return err
	}
	changed := state.Changed(c.last)
	for _, line := range changed.Lines() {
		c.onLine(line, state.Get(line))
	}
	for _, line := range (c.port.LinePulses() &^ changed).Lines() {
		c.onLine(line, !state.Get(line))
		c.onLine(line, state.Get(line))
	}
	c.last = state
	return nil
}

func (c *controlBody) interrupt() {
	c.port.InterruptWait()
}
