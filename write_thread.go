package serial

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"
)

// WriteThread drains a bounded queue of frames to the port. Each frame is
// written in chunks of at most WriteFrameSize bytes; a partial write
// resumes exactly where the driver stopped accepting bytes.
type WriteThread struct {
	*PortThread
	body *writeBody
}

// WriteThreadConfig holds the write thread's notification hooks
type WriteThreadConfig struct {
	// OnBusy is called when the queue goes from empty to non-empty.
	OnBusy func()
	// OnIdle is called on the write goroutine when the last queued frame
	// has been handed to the driver.
	OnIdle func()
}

type writeBody struct {
	port    Port
	onBusy  func()
	onIdle  func()
	mu        sync.Mutex // guards the queue between setup and teardown
	accepting bool
	queue     chan []byte
	pending   []byte
	frames    atomic.Int64 // queued plus in flight

	frameSize int
	delay     time.Duration
}

// NewWriteThread returns an idle write thread for port
func NewWriteThread(port Port, cfg WriteThreadConfig, opts ...ThreadOption) *WriteThread {
	body := &writeBody{
		port:   port,
		onBusy: cfg.OnBusy,
		onIdle: cfg.OnIdle,
		queue:  make(chan []byte, DefaultConfig().WriteQueueSize),
	}
	if body.onBusy == nil {
		body.onBusy = func() {}
	}
	if body.onIdle == nil {
		body.onIdle = func() {}
	}
	return &WriteThread{PortThread: newPortThread("write", body, opts...), body: body}
}

// Enqueue copies data into the write queue. It fails with
// ErrWriteQueueFull instead of blocking and with ErrNotRunning when the
// thread is not running.
func (w *WriteThread) Enqueue(data []byte) (int, error) {
	if s := w.State(); s != ThreadRunning {
		return 0, ErrNotRunning
	}
	if len(data) == 0 {
		return 0, nil
	}

	w.body.mu.Lock()
	defer w.body.mu.Unlock()

	if !w.body.accepting {
		return 0, ErrNotRunning
	}
	if w.body.frames.Add(1) == 1 {
		w.body.onBusy()
	}
	select {
	case w.body.queue <- bytes.Clone(data):
		return len(data), nil
	default:
		w.body.frames.Add(-1)
		return 0, ErrWriteQueueFull
	}
}

// Pending returns the number of frames not yet fully written
func (w *WriteThread) Pending() int {
	return int(w.body.frames.Load())
}

func (b *writeBody) setup() error {
	cfg := b.port.Config()
	b.frameSize = cfg.WriteFrameSize
	if b.frameSize <= 0 {
		b.frameSize = DefaultConfig().WriteFrameSize
	}
	b.delay = cfg.WriteInterByteDelay

	size := cfg.WriteQueueSize
	if size <= 0 {
		size = DefaultConfig().WriteQueueSize
	}
	b.mu.Lock()
	b.queue = make(chan []byte, size)
	b.pending = nil
	b.frames.Store(0)
	b.accepting = true
	b.mu.Unlock()
	return nil
}

// teardown drops the frames still queued when the thread ends
func (b *writeBody) teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.accepting = false
	for len(b.queue) > 0 {
		<-b.queue
	}
	b.pending = nil
	b.frames.Store(0)
}

func (b *writeBody) wait(quit <-chan struct{}) (bool, error) {
	if len(b.pending) == 0 {
		b.mu.Lock()
		queue := b.queue
		b.mu.Unlock()

		select {
		case frame := <-queue:
			b.pending = frame
		case <-quit:
			return false, nil
		}
	}
	return b.port.WaitWriteReady()
}

func (b *writeBody) transfer() error {
	chunk := b.pending[:min(len(b.pending), b.frameSize)]
	if b.delay > 0 {
		chunk = b.pending[:1]
	}
	n, err := b.port.WriteBytes(chunk)
	if err != nil {
		return err
	}
	b.pending = b.pending[n:]
	if len(b.pending) == 0 {
		b.pending = nil
		if b.frames.Add(-1) == 0 {
			b.onIdle()
		}
	}
	if b.delay > 0 && n > 0 {
		time.Sleep(b.delay)
	}
	return nil
}

func (b *writeBody) interrupt() {
	b.port.Interrupt(WaitWrite)
}
