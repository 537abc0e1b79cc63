package serial

import (
	"golang.org/x/sys/unix"
)

// baudTable maps line rates to termios speed codes, lowest first.
var baudTable = []struct {
	rate int
	code uint32
}{
	{50, unix.B50},
	{75, unix.B75},
	{110, unix.B110},
	{134, unix.B134},
	{150, unix.B150},
	{200, unix.B200},
	{300, unix.B300},
	{600, unix.B600},
	{1200, unix.B1200},
	{1800, unix.B1800},
	{2400, unix.B2400},
	{4800, unix.B4800},
	{9600, unix.B9600},
	{19200, unix.B19200},
	{38400, unix.B38400},
	{57600, unix.B57600},
	{115200, unix.B115200},
	{230400, unix.B230400},
	{460800, unix.B460800},
	{500000, unix.B500000},
	{576000, unix.B576000},
	{921600, unix.B921600},
	{1000000, unix.B1000000},
	{1152000, unix.B1152000},
	{1500000, unix.B1500000},
	{2000000, unix.B2000000},
	{2500000, unix.B2500000},
	{3000000, unix.B3000000},
	{3500000, unix.B3500000},
	{4000000, unix.B4000000},
}

var dataBitsTable = []struct {
	bits int
	flag uint32
}{
	{5, unix.CS5},
	{6, unix.CS6},
	{7, unix.CS7},
	{8, unix.CS8},
}

// SupportedBaudRates lists every rate the termios mapping knows about.
// AvailableBaudRates narrows this to what an open device accepts.
func SupportedBaudRates() []int {
	rates := make([]int, len(baudTable))
	for i, b := range baudTable {
		rates[i] = b.rate
	}
	return rates
}

func baudCode(rate int) (uint32, bool) {
	for _, b := range baudTable {
		if b.rate == rate {
			return b.code, true
		}
	}
	return 0, false
}

func baudRate(code uint32) int {
	for _, b := range baudTable {
		if b.code == code {
			return b.rate
		}
	}
	return 0
}

// lineSettings is the subset of termios that ApplyConfig verifies.
type lineSettings struct {
	baudRate  int
	dataBits  int
	stopBits  int
	parity    Parity
	rtscts    bool
	xonxoff   bool
	xon, xoff byte
}

func decodeTermios(t *unix.Termios) lineSettings {
	s := lineSettings{
		baudRate: baudRate(t.Cflag & unix.CBAUD),
		stopBits: 1,
		parity:   ParityNone,
		rtscts:   t.Cflag&unix.CRTSCTS != 0,
		xonxoff:  t.Iflag&(unix.IXON|unix.IXOFF) == unix.IXON|unix.IXOFF,
		xon:      t.Cc[unix.VSTART],
		xoff:     t.Cc[unix.VSTOP],
	}
	for _, d := range dataBitsTable {
		if t.Cflag&unix.CSIZE == d.flag {
			s.dataBits = d.bits
		}
	}
	if t.Cflag&unix.CSTOPB != 0 {
		s.stopBits = 2
	}
	if t.Cflag&unix.PARENB != 0 {
		s.parity = ParityEven
		if t.Cflag&unix.PARODD != 0 {
			s.parity = ParityOdd
		}
	}
	return s
}

// apply copies the decoded line settings into cfg
func (s lineSettings) apply(cfg Config) Config {
	cfg.BaudRate = s.baudRate
	cfg.DataBits = s.dataBits
	cfg.StopBits = s.stopBits
	cfg.Parity = s.parity
	cfg.FlowControl = FlowControlNone
	switch {
	case s.rtscts:
		cfg.FlowControl = FlowControlRTSCTS
	case s.xonxoff:
		cfg.FlowControl = FlowControlXonXoff
	}
	cfg.XonChar, cfg.XoffChar = s.xon, s.xoff
	return cfg
}

// encodeTermios returns a raw-mode copy of base carrying cfg's line settings.
func encodeTermios(base unix.Termios, cfg Config) (*unix.Termios, error) {
	code, ok := baudCode(cfg.BaudRate)
	if !ok {
		return nil, ErrInvalidBaudRate
	}
	t := base

	// Raw mode: no input translation, no output processing, no line discipline.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR |
		unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHOE | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CBAUD | unix.CSIZE | unix.CSTOPB | unix.PARENB | unix.PARODD | unix.CMSPAR | unix.CRTSCTS
	t.Cflag |= unix.CLOCAL | unix.CREAD

	// The port is non-blocking; readiness comes from poll.
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	t.Cflag |= code
	t.Ispeed = code
	t.Ospeed = code

	for _, d := range dataBitsTable {
		if d.bits == cfg.DataBits {
			t.Cflag |= d.flag
		}
	}
	if cfg.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}
	switch cfg.Parity {
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
		t.Iflag |= unix.INPCK
	case ParityEven:
		t.Cflag |= unix.PARENB
		t.Iflag |= unix.INPCK
	}
	switch cfg.FlowControl {
	case FlowControlRTSCTS:
		t.Cflag |= unix.CRTSCTS
	case FlowControlXonXoff:
		t.Iflag |= unix.IXON | unix.IXOFF
		t.Cc[unix.VSTART] = cfg.XonChar
		t.Cc[unix.VSTOP] = cfg.XoffChar
	}
	return &t, nil
}

// mismatch returns the name of the first field of cfg that got does not
// carry, or "" when everything took effect.
func mismatch(cfg Config, got lineSettings) string {
	switch {
	case got.baudRate != cfg.BaudRate:
		return "baud rate"
	case got.dataBits != cfg.DataBits:
		return "data bits"
	case got.stopBits != cfg.StopBits:
		return "stop bits"
	case got.parity != cfg.Parity:
		return "parity"
	case got.rtscts != (cfg.FlowControl == FlowControlRTSCTS):
		return "rts/cts"
	case got.xonxoff != (cfg.FlowControl == FlowControlXonXoff):
		return "xon/xoff"
	}
	if cfg.FlowControl == FlowControlXonXoff {
		if got.xon != cfg.XonChar {
			return "xon char"
		}
		if got.xoff != cfg.XoffChar {
			return "xoff char"
		}
	}
	return ""
}
