package serial

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sys/unix"
)

// WaitKind selects one of the three interruptible waits of a port
type WaitKind int

const (
	WaitRead WaitKind = iota
	WaitWrite
	WaitLines
	waitKinds
)

func (k WaitKind) String() string {
	switch k {
	case WaitRead:
		return "read"
	case WaitWrite:
		return "write"
	case WaitLines:
		return "lines"
	}
	return fmt.Sprintf("WaitKind(%d)", int(k))
}

// Port is the capability set the port threads and the Manager rely on.
// SerialPort is the only production implementation.
type Port interface {
	Open(path string) error
	ApplyConfig(cfg Config) error
	Close() error
	Path() string
	IsOpen() bool
	Config() Config

	ReadBytes(buf []byte) (int, error)
	WriteBytes(data []byte) (int, error)
	WaitReadReady() (bool, error)
	WaitWriteReady() (bool, error)
	ReadTimedOut() bool
	WriteTimedOut() bool

	SuspendTransmission() error
	ResumeTransmission() error
	FlushIn() error
	FlushOut() error
	Flush() error

	WaitForLineStatusChange() error
	Interrupt(kind WaitKind)
	InterruptWait()
	SampleModemLines() (ModemState, error)
	LinePulses() Line
	ModemState() ModemState
	SetRTS(on bool) error
	SetDTR(on bool) error

	UART() (UART, error)
	AvailableBaudRates() ([]int, error)
}

// SerialPort owns one TTY file descriptor. Every method takes the port
// mutex for its critical section; the Wait* methods release it while
// blocked in poll.
type SerialPort struct {
	mu       sync.Mutex
	logger   *slog.Logger
	path     string
	fd       int // -1 while closed
	original *unix.Termios
	config   Config
	modem    ModemState
	pulses   Line // lines that toggled and came back between samples
	wakers   [waitKinds]*waker

	readTimedOut  bool
	writeTimedOut bool

	uart        UART
	uartQueried bool
	baudRates   []int
}

// Ensure SerialPort implements Port interface at compile time
var _ Port = (*SerialPort)(nil)

// NewSerialPort returns a closed port. A nil logger discards output.
func NewSerialPort(logger *slog.Logger) *SerialPort {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SerialPort{
		logger: logger,
		fd:     -1,
		config: DefaultConfig(),
	}
}

// Open opens the device non-blocking and takes an exclusive advisory lock
// on it. The current terminal attributes are saved and restored by Close.
func (p *SerialPort) Open(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd >= 0 {
		return &PortError{Kind: KindOpenFailed, Path: path, Err: ErrAlreadyOpen}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return openFailed(path, "open", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		return openFailed(path, "flock", err)
	}
	original, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return openFailed(path, "TCGETS", err)
	}

	var wakers [waitKinds]*waker
	for i := range wakers {
		w, err := newWaker()
		if err != nil {
			closeWakers(wakers[:])
			unix.Close(fd)
			return openFailed(path, "eventfd", err)
		}
		wakers[i] = w
	}

	p.path = path
	p.fd = fd
	p.original = original
	p.wakers = wakers
	p.modem = ModemState{}
	// Outputs start as the driver left them; devices without modem lines
	// report all lines off.
	if status, err := unix.IoctlGetInt(fd, unix.TIOCMGET); err == nil {
		p.modem = p.modem.withInputs(status).withOutputs(status)
	}
	p.logger.Debug("port opened", "path", path)
	return nil
}

func openFailed(path, op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT, unix.ENXIO, unix.ENODEV:
			err = fmt.Errorf("%w: %w", ErrDeviceNotFound, errno)
		case unix.EACCES, unix.EPERM:
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, errno)
		case unix.EWOULDBLOCK, unix.EBUSY:
			err = fmt.Errorf("%w: %w", ErrDeviceInUse, errno)
		case unix.ENOTTY, unix.EINVAL:
			err = fmt.Errorf("%w: %w", ErrNotATTY, errno)
		}
	}
	return &PortError{Kind: KindOpenFailed, Op: op, Path: path, Err: err}
}

func closeWakers(wakers []*waker) {
	for _, w := range wakers {
		if w != nil {
			w.close()
		}
	}
}

// ApplyConfig writes cfg to the device and reads the attributes back.
// Drivers may silently clamp or ignore settings, so the first field that
// did not take effect is reported as ConfigurationRejected and the previous
// attributes are restored.
func (p *SerialPort) ApplyConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return rejected(p.Path(), "", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return ErrPortClosed
	}

	current, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return ioError(p.path, "TCGETS", err)
	}
	want, err := encodeTermios(*current, cfg)
	if err != nil {
		return rejected(p.path, "baud rate", err)
	}
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, want); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return rejected(p.path, "termios", err)
		}
		return ioError(p.path, "TCSETS", err)
	}

	got, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return ioError(p.path, "TCGETS", err)
	}
	if field := mismatch(cfg, decodeTermios(got)); field != "" {
		if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, current); err != nil {
			p.logger.Warn("restoring attributes after rejected config failed", "path", p.path, "error", err)
		}
		return rejected(p.path, field, nil)
	}

	p.config = cfg
	p.logger.Info("port configured", "path", p.path, "config", cfg.String())
	return nil
}

// Close restores the saved attributes and releases the descriptor and its
// lock. Closing a closed port does nothing. Pending waits must have
// returned before Close is called.
func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil
	}

	var errs []error
	if p.original != nil {
		if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, p.original); err != nil {
			errs = append(errs, ioError(p.path, "TCSETS", err))
		}
	}
	closeWakers(p.wakers[:])
	if err := unix.Close(p.fd); err != nil {
		errs = append(errs, ioError(p.path, "close", err))
	}

	p.logger.Debug("port closed", "path", p.path)
	p.fd = -1
	p.original = nil
	p.wakers = [waitKinds]*waker{}
	p.modem = ModemState{}
	p.pulses = 0
	p.readTimedOut, p.writeTimedOut = false, false
	p.uart, p.uartQueried = UARTUnknown, false
	p.baudRates = nil
	return errors.Join(errs...)
}

// Path returns the device path of the last Open
func (p *SerialPort) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

// IsOpen reports whether the port holds a descriptor
func (p *SerialPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fd >= 0
}

// Config returns the last successfully applied configuration
func (p *SerialPort) Config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config
}

// DeviceSettings reads the line settings the device currently holds,
// which differ from Config until a configuration has been applied.
// Timeouts and sizes are not device state and keep their defaults.
func (p *SerialPort) DeviceSettings() (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return Config{}, ErrPortClosed
	}
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return Config{}, ioError(p.path, "TCGETS", err)
	}
	return decodeTermios(t).apply(DefaultConfig()), nil
}

// ReadBytes reads whatever is buffered. No data is (0, nil), not an error.
func (p *SerialPort) ReadBytes(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return 0, ErrPortClosed
	}
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if temporary(err) {
			return 0, nil
		}
		return 0, ioError(p.path, "read", err)
	}
	return n, nil
}

// WriteBytes writes as much of data as the driver accepts right now.
// A full output buffer is (0, nil).
func (p *SerialPort) WriteBytes(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return 0, ErrPortClosed
	}
	if len(data) == 0 {
		return 0, nil
	}
	n, err := unix.Write(p.fd, data)
	if err != nil {
		if temporary(err) {
			return 0, nil
		}
		return 0, ioError(p.path, "write", err)
	}
	return n, nil
}

func temporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

// WaitReadReady blocks for at most the read timeout until input is
// available. It returns false without error on timeout or interrupt.
func (p *SerialPort) WaitReadReady() (bool, error) {
	ready, timedOut, err := p.waitReady(WaitRead, unix.POLLIN)
	p.mu.Lock()
	p.readTimedOut = timedOut
	p.mu.Unlock()
	return ready, err
}

// WaitWriteReady blocks for at most the write timeout until the driver
// accepts output. It returns false without error on timeout or interrupt.
func (p *SerialPort) WaitWriteReady() (bool, error) {
	ready, timedOut, err := p.waitReady(WaitWrite, unix.POLLOUT)
	p.mu.Lock()
	p.writeTimedOut = timedOut
	p.mu.Unlock()
	return ready, err
}

// ReadTimedOut reports whether the last WaitReadReady hit its timeout
func (p *SerialPort) ReadTimedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimedOut
}

// WriteTimedOut reports whether the last WaitWriteReady hit its timeout
func (p *SerialPort) WriteTimedOut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeTimedOut
}

func (p *SerialPort) waitReady(kind WaitKind, events int16) (ready, timedOut bool, err error) {
	p.mu.Lock()
	if p.fd < 0 {
		p.mu.Unlock()
		return false, false, ErrPortClosed
	}
	fd, path, w := p.fd, p.path, p.wakers[kind]
	timeout := p.config.ReadTimeout
	if kind == WaitWrite {
		timeout = p.config.WriteTimeout
	}
	p.mu.Unlock()

	fds := w.pollFds(fd, events)
	n, err := poll(fds, pollTimeout(timeout))
	if err != nil {
		return false, false, ioError(path, "poll", err)
	}
	if n == 0 {
		return false, true, nil
	}
	if fds[0].Revents&unix.POLLIN != 0 {
		w.drain()
		return false, false, nil
	}

	// A hung up tty reports POLLHUP together with POLLIN
	revents := fds[1].Revents
	switch {
	case revents&unix.POLLNVAL != 0:
		return false, false, ioError(path, "poll", unix.EBADF)
	case revents&(unix.POLLHUP|unix.POLLERR) != 0:
		return false, false, ioError(path, "poll", unix.EIO)
	case revents&events != 0:
		return true, false, nil
	}
	return false, false, nil
}

// Interrupt wakes a pending wait of the given kind. If nothing is waiting
// the next wait of that kind returns immediately.
func (p *SerialPort) Interrupt(kind WaitKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 || kind < 0 || kind >= waitKinds {
		return
	}
	p.wakers[kind].wake()
}

// InterruptWait makes a pending WaitForLineStatusChange return nil
func (p *SerialPort) InterruptWait() {
	p.Interrupt(WaitLines)
}

// WaitForLineStatusChange blocks until an input line differs from the last
// sample, or until InterruptWait. Where the driver keeps transition
// counters a line that toggled and returned between two samples also ends
// the wait and is reported by LinePulses. Devices without modem lines only
// return on interrupt.
func (p *SerialPort) WaitForLineStatusChange() error {
	p.mu.Lock()
	if p.fd < 0 {
		p.mu.Unlock()
		return ErrPortClosed
	}
	fd, path, w := p.fd, p.path, p.wakers[WaitLines]
	interval := max(int(p.config.LinePollInterval.Milliseconds()), 1)
	baseline := lineMaskToTIOCM(p.modem.Inputs())
	p.mu.Unlock()

	counters, countErr := queryLineCounters(fd)
	timeout := interval
	for {
		n, err := poll(w.pollFds(-1, 0), timeout)
		if err != nil {
			return ioError(path, "poll", err)
		}
		if n > 0 {
			w.drain()
			return nil
		}

		status, err := p.modemStatus()
		switch {
		case errors.Is(err, ErrLinesUnsupported):
			timeout = -1
			continue
		case err != nil:
			return err
		}
		levels := detectLineChanges(baseline, status)

		var pulses Line
		if countErr == nil {
			if now, err := p.lineCounters(); err == nil {
				pulses = now.moved(counters) &^ levels
			}
		}
		if pulses != 0 {
			p.mu.Lock()
			p.pulses |= pulses
			p.mu.Unlock()
		}
		if levels != 0 || pulses != 0 {
			return nil
		}
	}
}

func (p *SerialPort) lineCounters() (lineCounters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return lineCounters{}, ErrPortClosed
	}
	return queryLineCounters(p.fd)
}

// LinePulses returns and clears the input lines that toggled and came
// back to their sampled level during a line wait
func (p *SerialPort) LinePulses() Line {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.pulses
	p.pulses = 0
	return l
}

func (p *SerialPort) modemStatus() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return 0, ErrPortClosed
	}
	status, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		if linesUnsupported(err) {
			return 0, ErrLinesUnsupported
		}
		return 0, ioError(p.path, "TIOCMGET", err)
	}
	return status, nil
}

func linesUnsupported(err error) bool {
	return errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL)
}

// SampleModemLines reads the four input lines and records them
func (p *SerialPort) SampleModemLines() (ModemState, error) {
	status, err := p.modemStatus()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		return p.modem, err
	}
	p.modem = p.modem.withInputs(status)
	return p.modem, nil
}

// ModemState returns the last sampled inputs and commanded outputs
func (p *SerialPort) ModemState() ModemState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modem
}

// SetRTS drives Request To Send. It is a no-op on a closed port.
func (p *SerialPort) SetRTS(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil
	}
	if err := p.setLine(unix.TIOCM_RTS, on); err != nil {
		return err
	}
	p.modem.RTS = on
	return nil
}

// SetDTR drives Data Terminal Ready. It is a no-op on a closed port.
func (p *SerialPort) SetDTR(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil
	}
	if err := p.setLine(unix.TIOCM_DTR, on); err != nil {
		return err
	}
	p.modem.DTR = on
	return nil
}

// setLine must be called with p.mu held
func (p *SerialPort) setLine(bit int, on bool) error {
	req, op := uint(unix.TIOCMBIC), "TIOCMBIC"
	if on {
		req, op = unix.TIOCMBIS, "TIOCMBIS"
	}
	if err := unix.IoctlSetPointerInt(p.fd, req, bit); err != nil {
		if linesUnsupported(err) {
			return ErrLinesUnsupported
		}
		return ioError(p.path, op, err)
	}
	return nil
}

// SuspendTransmission asks the peer to pause: RTS is dropped under
// hardware flow control, a STOP character is sent under XON/XOFF.
func (p *SerialPort) SuspendTransmission() error {
	return p.flow(false)
}

// ResumeTransmission undoes SuspendTransmission
func (p *SerialPort) ResumeTransmission() error {
	return p.flow(true)
}

func (p *SerialPort) flow(resume bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return ErrPortClosed
	}
	switch p.config.FlowControl {
	case FlowControlRTSCTS:
		if err := p.setLine(unix.TIOCM_RTS, resume); err != nil {
			return err
		}
		p.modem.RTS = resume
	case FlowControlXonXoff:
		action := unix.TCIOFF
		if resume {
			action = unix.TCION
		}
		if err := unix.IoctlSetInt(p.fd, unix.TCXONC, action); err != nil {
			return ioError(p.path, "TCXONC", err)
		}
	}
	return nil
}

// FlushIn discards received but unread bytes
func (p *SerialPort) FlushIn() error {
	return p.flush(unix.TCIFLUSH)
}

// FlushOut discards written but untransmitted bytes
func (p *SerialPort) FlushOut() error {
	return p.flush(unix.TCOFLUSH)
}

// Flush discards both directions
func (p *SerialPort) Flush() error {
	return p.flush(unix.TCIOFLUSH)
}

func (p *SerialPort) flush(queue int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return ErrPortClosed
	}
	if err := unix.IoctlSetInt(p.fd, unix.TCFLSH, queue); err != nil {
		return ioError(p.path, "TCFLSH", err)
	}
	return nil
}

// UART returns the chip family, queried once per open
func (p *SerialPort) UART() (UART, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return UARTUnknown, ErrPortClosed
	}
	if !p.uartQueried {
		u, err := queryUART(p.fd)
		if err != nil {
			return UARTUnknown, ioError(p.path, "TIOCGSERIAL", err)
		}
		p.uart, p.uartQueried = u, true
	}
	return p.uart, nil
}

// AvailableBaudRates probes which rates the open device accepts by setting
// each candidate and reading it back. The result is cached until Close.
func (p *SerialPort) AvailableBaudRates() ([]int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fd < 0 {
		return nil, ErrPortClosed
	}
	if p.baudRates != nil {
		return slices.Clone(p.baudRates), nil
	}

	current, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return nil, ioError(p.path, "TCGETS", err)
	}
	defer unix.IoctlSetTermios(p.fd, unix.TCSETS, current)

	rates := make([]int, 0, len(baudTable))
	for _, b := range baudTable {
		t := *current
		t.Cflag = t.Cflag&^unix.CBAUD | b.code
		t.Ispeed, t.Ospeed = b.code, b.code
		if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, &t); err != nil {
			continue
		}
		got, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
		if err != nil {
			return nil, ioError(p.path, "TCGETS", err)
		}
		if got.Cflag&unix.CBAUD == b.code {
			rates = append(rates, b.rate)
		}
	}
	p.baudRates = rates
	p.logger.Debug("probed baud rates", "path", p.path, "count", len(rates))
	return slices.Clone(rates), nil
}
