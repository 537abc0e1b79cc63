package serial

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// lineCounters mirrors struct serial_icounter_struct for TIOCGICOUNT. The
// driver counts every transition of the modem inputs, so a pulse shorter
// than the sampling period still moves its counter.
type lineCounters struct {
	cts, dsr, rng, dcd int32
	rx, tx             int32
	frame, overrun     int32
	parity, brk        int32
	bufOverrun         int32
	reserved           [9]int32
}

// queryLineCounters reads the transition counters of fd. Drivers without
// TIOCGICOUNT (ptys, most USB adapters) fail with ENOTTY or EINVAL.
func queryLineCounters(fd int) (lineCounters, error) {
	var c lineCounters
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCGICOUNT, uintptr(unsafe.Pointer(&c)))
	if errno != 0 {
		return c, errno
	}
	return c, nil
}

// moved returns the input lines whose counters differ from prev
func (c lineCounters) moved(prev lineCounters) Line {
	var l Line
	if c.dcd != prev.dcd {
		l |= LineCAR
	}
	if c.dsr != prev.dsr {
		l |= LineDSR
	}
	if c.cts != prev.cts {
		l |= LineCTS
	}
	if c.rng != prev.rng {
		l |= LineRNG
	}
	return l
}
