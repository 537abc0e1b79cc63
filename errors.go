package serial

import (
	"errors"
	"fmt"
)

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrNotATTY          = errors.New("device is not a terminal")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")
	ErrLinesUnsupported = errors.New("device has no modem control lines")

	// Manager lifecycle errors
	ErrNotOpen        = errors.New("no port is open")
	ErrAlreadyOpen    = errors.New("a port is already open")
	ErrNotRunning     = errors.New("port threads are not running")
	ErrThreadsRunning = errors.New("port threads are still running")
	ErrWriteQueueFull = errors.New("write queue is full")

	// USB-related errors
	ErrUSBInfoNotAvailable  = errors.New("USB device information not available")
	ErrUSBResetNotAvailable = errors.New("usbreset utility not available")
)

// Kind sentinels. A *PortError matches the sentinel of its Kind with errors.Is.
var (
	ErrOpenFailed            = errors.New("open failed")
	ErrConfigurationRejected = errors.New("configuration rejected")
	ErrIO                    = errors.New("i/o error")
	ErrThreadStartFailed     = errors.New("thread start failed")
	ErrThreadStopTimeout     = errors.New("thread stop timeout")
)

// ErrorKind classifies a PortError.
type ErrorKind int

const (
	KindOpenFailed ErrorKind = iota + 1
	KindConfigurationRejected
	KindIO
	KindThreadStartFailed
	KindThreadStopTimeout
)

var kindSentinels = map[ErrorKind]error{
	KindOpenFailed:            ErrOpenFailed,
	KindConfigurationRejected: ErrConfigurationRejected,
	KindIO:                    ErrIO,
	KindThreadStartFailed:     ErrThreadStartFailed,
	KindThreadStopTimeout:     ErrThreadStopTimeout,
}

func (k ErrorKind) String() string {
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// PortError is returned by SerialPort and the port threads. Err carries the
// underlying cause, usually a unix.Errno, so errors.Is works against both
// the kind sentinel and the OS error.
type PortError struct {
	Kind  ErrorKind
	Op    string // ioctl or call that failed, e.g. "TCSETS"
	Path  string
	Field string // first mismatching field for KindConfigurationRejected
	Err   error
}

func (e *PortError) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Op != "" {
		msg += " (" + e.Op + ")"
	}
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PortError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *PortError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Recoverable reports whether the caller may retry with another device or
// another configuration.
func (e *PortError) Recoverable() bool {
	return e.Kind == KindOpenFailed || e.Kind == KindConfigurationRejected
}

func ioError(path, op string, err error) error {
	return &PortError{Kind: KindIO, Op: op, Path: path, Err: err}
}

func rejected(path, field string, err error) error {
	return &PortError{Kind: KindConfigurationRejected, Path: path, Field: field, Err: err}
}
