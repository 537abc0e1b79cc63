package serial

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ThreadState is the lifecycle of a PortThread
type ThreadState int

const (
	ThreadIdle ThreadState = iota
	ThreadStarting
	ThreadRunning
	ThreadStopRequested
	ThreadStopped
)

func (s ThreadState) String() string {
	switch s {
	case ThreadIdle:
		return "idle"
	case ThreadStarting:
		return "starting"
	case ThreadRunning:
		return "running"
	case ThreadStopRequested:
		return "stop requested"
	case ThreadStopped:
		return "stopped"
	}
	return fmt.Sprintf("ThreadState(%d)", int(s))
}

// Default lifecycle bounds for Start and Stop.
const (
	DefaultThreadStartTimeout = 2 * time.Second
	DefaultThreadStopTimeout  = 5 * time.Second
	threadPollInterval        = time.Millisecond
)

// threadBody is the type-specific part of a port thread. wait may block
// until interrupt is called or quit is closed; transfer runs only after
// wait reported readiness and no stop was requested in between. A body
// may also implement teardown() to release its state when the loop ends.
type threadBody interface {
	setup() error
	wait(quit <-chan struct{}) (bool, error)
	transfer() error
	interrupt()
}

// FaultHandler receives the error that stopped a thread. It runs on the
// failing thread's goroutine after the thread reached ThreadStopped.
type FaultHandler func(thread string, err error)

// ThreadOption configures a PortThread
type ThreadOption func(*PortThread)

// WithThreadLogger sets the logger used for lifecycle messages
func WithThreadLogger(logger *slog.Logger) ThreadOption {
	return func(t *PortThread) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithThreadTimeouts bounds how long Start and Stop poll for the worker
func WithThreadTimeouts(start, stop time.Duration) ThreadOption {
	return func(t *PortThread) {
		if start > 0 {
			t.startTimeout = start
		}
		if stop > 0 {
			t.stopTimeout = stop
		}
	}
}

// WithFaultHandler registers the callback for fatal loop errors
func WithFaultHandler(h FaultHandler) ThreadOption {
	return func(t *PortThread) {
		t.fault = h
	}
}

// PortThread runs a wait/transfer loop against a Port on its own
// goroutine. It is restartable: Start is valid from Idle and Stopped.
type PortThread struct {
	name   string
	body   threadBody
	logger *slog.Logger
	fault  FaultHandler

	startTimeout time.Duration
	stopTimeout  time.Duration

	mu    sync.Mutex
	state ThreadState
	quit  chan struct{}
	err   error
}

func newPortThread(name string, body threadBody, opts ...ThreadOption) *PortThread {
	t := &PortThread{
		name:         name,
		body:         body,
		logger:       slog.New(slog.DiscardHandler),
		startTimeout: DefaultThreadStartTimeout,
		stopTimeout:  DefaultThreadStopTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("thread", name)
	return t
}

// Name returns the thread's name ("read", "write" or "control")
func (t *PortThread) Name() string { return t.name }

// State returns the current lifecycle state
func (t *PortThread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the error that last stopped the thread, if any
func (t *PortThread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Start spawns the worker and blocks until it is running. Starting a
// thread that is already running does nothing.
func (t *PortThread) Start() error {
	t.mu.Lock()
	switch t.state {
	case ThreadIdle, ThreadStopped:
	default:
		t.mu.Unlock()
		return nil
	}
	t.state = ThreadStarting
	t.err = nil
	t.quit = make(chan struct{})
	quit := t.quit
	t.mu.Unlock()

	go t.run(quit)

	deadline := time.Now().Add(t.startTimeout)
	for {
		t.mu.Lock()
		state, err := t.state, t.err
		t.mu.Unlock()

		switch state {
		case ThreadRunning, ThreadStopRequested:
			return nil
		case ThreadStopped:
			return &PortError{Kind: KindThreadStartFailed, Op: t.name, Err: err}
		}
		if time.Now().After(deadline) {
			t.requestStop()
			return &PortError{Kind: KindThreadStartFailed, Op: t.name, Err: fmt.Errorf("not running after %s", t.startTimeout)}
		}
		time.Sleep(threadPollInterval)
	}
}

// Stop requests the worker to exit, interrupts its pending wait and
// blocks until it has stopped. Stopping an idle or stopped thread is a
// no-op.
func (t *PortThread) Stop() error {
	if !t.requestStop() {
		return nil
	}
	t.body.interrupt()

	deadline := time.Now().Add(t.stopTimeout)
	for t.State() != ThreadStopped {
		if time.Now().After(deadline) {
			return &PortError{Kind: KindThreadStopTimeout, Op: t.name, Err: fmt.Errorf("still running after %s", t.stopTimeout)}
		}
		time.Sleep(threadPollInterval)
	}
	t.logger.Debug("thread stopped")
	return nil
}

// requestStop moves a live thread to StopRequested. It reports false when
// there is nothing to stop.
func (t *PortThread) requestStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case ThreadIdle, ThreadStopped:
		return false
	case ThreadStopRequested:
		return true
	}
	t.state = ThreadStopRequested
	close(t.quit)
	return true
}

func (t *PortThread) stopping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == ThreadStopRequested
}

func (t *PortThread) run(quit <-chan struct{}) {
	if err := t.body.setup(); err != nil {
		t.finish(err, false)
		return
	}

	t.mu.Lock()
	if t.state == ThreadStarting {
		t.state = ThreadRunning
	}
	t.mu.Unlock()
	t.logger.Debug("thread running")

	for {
		if t.stopping() {
			t.finish(nil, false)
			return
		}
		ready, err := t.body.wait(quit)
		if err != nil {
			t.finish(err, true)
			return
		}
		if t.stopping() {
			t.finish(nil, false)
			return
		}
		if !ready {
			continue
		}
		if err := t.body.transfer(); err != nil {
			t.finish(err, true)
			return
		}
	}
}

// finish moves the thread to Stopped. A loop error is handed to the fault
// handler unless a stop was already requested.
func (t *PortThread) finish(err error, report bool) {
	if td, ok := t.body.(interface{ teardown() }); ok {
		td.teardown()
	}

	t.mu.Lock()
	requested := t.state == ThreadStopRequested
	t.state = ThreadStopped
	t.err = err
	t.mu.Unlock()

	if err == nil || !report || requested {
		return
	}
	t.logger.Error("thread failed", "error", err)
	if t.fault != nil {
		t.fault(t.name, err)
	}
}
