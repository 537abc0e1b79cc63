package serial

import (
	"bufio"
	"bytes"
)

// Framing policies for the read thread. They are bufio.SplitFunc values,
// so bufio.ScanLines and friends work as well. A nil SplitFunc delivers
// each OS read unchanged.

// SplitTerminator cuts the stream after every occurrence of term. The
// terminator stays part of the frame.
func SplitTerminator(term byte) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if i := bytes.IndexByte(data, term); i >= 0 {
			return i + 1, data[:i+1], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// SplitFixed cuts the stream into frames of exactly size bytes. A short
// tail is delivered only on flush.
func SplitFixed(size int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if size > 0 && len(data) >= size {
			return size, data[:size], nil
		}
		if atEOF && len(data) > 0 {
			return len(data), data, nil
		}
		return 0, nil, nil
	}
}

// framer accumulates reads and cuts them with a SplitFunc. Every byte
// pushed in comes out exactly once and in order.
type framer struct {
	split    bufio.SplitFunc
	maxFrame int
	buf      []byte
}

func newFramer(split bufio.SplitFunc, maxFrame int) *framer {
	return &framer{split: split, maxFrame: maxFrame}
}

func (f *framer) reset() {
	f.buf = f.buf[:0]
}

func (f *framer) pending() int {
	return len(f.buf)
}

// push appends data and calls emit for every complete frame.
func (f *framer) push(data []byte, emit func([]byte)) error {
	if f.split == nil {
		if len(data) > 0 {
			emit(bytes.Clone(data))
		}
		return nil
	}
	f.buf = append(f.buf, data...)
	if err := f.cut(false, emit); err != nil {
		return err
	}
	// A stream that never matches the policy is passed on rather than
	// buffered without bound.
	if f.maxFrame > 0 && len(f.buf) >= f.maxFrame {
		emit(bytes.Clone(f.buf))
		f.reset()
	}
	return nil
}

// flush hands the split function everything that is left, as at end of input.
func (f *framer) flush(emit func([]byte)) error {
	if f.split == nil || len(f.buf) == 0 {
		return nil
	}
	if err := f.cut(true, emit); err != nil {
		return err
	}
	if len(f.buf) > 0 {
		emit(bytes.Clone(f.buf))
		f.reset()
	}
	return nil
}

func (f *framer) cut(atEOF bool, emit func([]byte)) error {
	for len(f.buf) > 0 {
		advance, token, err := f.split(f.buf, atEOF)
		if err != nil && err != bufio.ErrFinalToken {
			return err
		}
		if token != nil {
			emit(bytes.Clone(token))
		}
		if advance <= 0 || advance > len(f.buf) {
			break
		}
		f.buf = append(f.buf[:0], f.buf[advance:]...)
		if err == bufio.ErrFinalToken {
			break
		}
	}
	return nil
}
