package serial

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// waker is an eventfd placed in a poll set next to the device so one
// specific blocked wait can be woken from another goroutine.
type waker struct {
	fd int
}

func newWaker() (*waker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &waker{fd: fd}, nil
}

// wake makes the eventfd readable until the next drain.
func (w *waker) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	// EAGAIN means the counter is saturated, which still reads as woken.
	_, _ = unix.Write(w.fd, buf[:])
}

// drain consumes pending wakes and reports whether there were any.
func (w *waker) drain() bool {
	var buf [8]byte
	n, err := unix.Read(w.fd, buf[:])
	return err == nil && n == 8
}

func (w *waker) close() error {
	return unix.Close(w.fd)
}

// pollFds builds a poll set of the device (if fd >= 0) and the waker.
func (w *waker) pollFds(fd int, events int16) []unix.PollFd {
	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	if fd >= 0 {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: events})
	}
	return fds
}

// poll waits on fds, retrying on EINTR. timeout is in milliseconds, -1 blocks.
func poll(fds []unix.PollFd, timeout int) (int, error) {
	for {
		n, err := unix.Poll(fds, timeout)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
