package serial

import (
	"bufio"
	"fmt"
	"io"
)

// maxFrameFactor bounds buffered, unframed input to this many read frames.
const maxFrameFactor = 64

// maxEmptyReads is how many reads in a row may return nothing after the
// port reported input. A tty at end of file reads zero bytes forever.
const maxEmptyReads = 3

// ReadThread waits for input, reads it and delivers frames cut by a
// caller-supplied SplitFunc.
type ReadThread struct {
	*PortThread
}

type readBody struct {
	port        Port
	framer      *framer
	chunk       []byte
	flushOnIdle bool
	onFrame     func([]byte)
	empty       int
}

// ReadThreadConfig holds the read thread's framing and delivery hooks
type ReadThreadConfig struct {
	// Split cuts the byte stream into frames. Nil passes every read through.
	Split bufio.SplitFunc
	// FlushOnTimeout delivers a partial frame when a read wait times out,
	// for protocols delimited by line silence.
	FlushOnTimeout bool
	// OnFrame is called on the read goroutine, in stream order.
	OnFrame func([]byte)
}

// NewReadThread returns an idle read thread for port
func NewReadThread(port Port, cfg ReadThreadConfig, opts ...ThreadOption) *ReadThread {
	body := &readBody{
		port:        port,
		framer:      newFramer(cfg.Split, 0),
		flushOnIdle: cfg.FlushOnTimeout,
		onFrame:     cfg.OnFrame,
	}
	if body.onFrame == nil {
		body.onFrame = func([]byte) {}
	}
	return &ReadThread{PortThread: newPortThread("read", body, opts...)}
}

func (r *readBody) setup() error {
	size := r.port.Config().ReadFrameSize
	if size <= 0 {
		size = DefaultConfig().ReadFrameSize
	}
	r.chunk = make([]byte, size)
	r.framer.maxFrame = size * maxFrameFactor
	r.framer.reset()
	r.empty = 0
	return nil
}

func (r *readBody) wait(<-chan struct{}) (bool, error) {
	ready, err := r.port.WaitReadReady()
	if err != nil || ready {
		return ready, err
	}
	if r.flushOnIdle && r.framer.pending() > 0 && r.port.ReadTimedOut() {
		if err := r.framer.flush(r.onFrame); err != nil {
			return false, fmt.Errorf("framing: %w", err)
		}
	}
	return false, nil
}

func (r *readBody) transfer() error {
	n, err := r.port.ReadBytes(r.chunk)
	if err != nil {
		return err
	}
	if n == 0 {
		// A flush between the wait and the read can empty the queue once
		r.empty++
		if r.empty >= maxEmptyReads {
			return ioError(r.port.Path(), "read", io.EOF)
		}
		return nil
	}
	r.empty = 0
	if err := r.framer.push(r.chunk[:n], r.onFrame); err != nil {
		return fmt.Errorf("framing: %w", err)
	}
	return nil
}

func (r *readBody) interrupt() {
	r.port.Interrupt(WaitRead)
}
