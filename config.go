package serial

import (
	"fmt"
	"strings"
	"time"
)

// Infinite is the timeout sentinel meaning "block until ready".
const Infinite time.Duration = -1

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	default:
		return fmt.Sprintf("Parity(%d)", int(p))
	}
}

// Letter returns the conventional one-letter form used in "8N1".
func (p Parity) Letter() string {
	return strings.ToUpper(p.String()[:1])
}

// ParseParity accepts "none", "odd", "even" or their first letter.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "n", "":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	}
	return 0, fmt.Errorf("%w: parity %q", ErrInvalidConfig, s)
}

// FlowControl represents the flow control mode. Exactly one mode is active.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
	FlowControlXonXoff
)

func (f FlowControl) String() string {
	switch f {
	case FlowControlNone:
		return "none"
	case FlowControlRTSCTS:
		return "rtscts"
	case FlowControlXonXoff:
		return "xonxoff"
	default:
		return fmt.Sprintf("FlowControl(%d)", int(f))
	}
}

// ParseFlowControl accepts "none", "rtscts"/"hardware" and "xonxoff"/"software".
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return FlowControlNone, nil
	case "rtscts", "rts/cts", "hardware", "hw":
		return FlowControlRTSCTS, nil
	case "xonxoff", "xon/xoff", "software", "sw":
		return FlowControlXonXoff, nil
	}
	return 0, fmt.Errorf("%w: flow control %q", ErrInvalidConfig, s)
}

// Default XON/XOFF characters (DC1/DC3).
const (
	DefaultXonChar  byte = 0x11
	DefaultXoffChar byte = 0x13
)

// Config holds the configuration for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl
	XonChar     byte
	XoffChar    byte

	// ReadTimeout and WriteTimeout bound each readiness wait. Infinite blocks.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ReadFrameSize  int // bytes requested per OS read
	WriteFrameSize int // max bytes handed to a single OS write
	WriteQueueSize int // frames accepted ahead of the write thread

	// WriteInterByteDelay switches the write thread to byte-per-byte
	// output with this pause between bytes. Zero disables it.
	WriteInterByteDelay time.Duration

	// LinePollInterval is how often a line-status wait samples the inputs.
	LinePollInterval time.Duration
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns 9600-8-N-1 without flow control
func DefaultConfig() Config {
	return Config{
		BaudRate:         9600,
		DataBits:         8,
		StopBits:         1,
		Parity:           ParityNone,
		FlowControl:      FlowControlNone,
		XonChar:          DefaultXonChar,
		XoffChar:         DefaultXoffChar,
		ReadTimeout:      500 * time.Millisecond,
		WriteTimeout:     500 * time.Millisecond,
		ReadFrameSize:    1024,
		WriteFrameSize:   1024,
		WriteQueueSize:   10,
		LinePollInterval: 10 * time.Millisecond,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// String renders the line settings as e.g. "115200-8-N-1 rtscts".
func (c Config) String() string {
	return fmt.Sprintf("%d-%d-%s-%d %s", c.BaudRate, c.DataBits, c.Parity.Letter(), c.StopBits, c.FlowControl)
}

// Validate checks that every field is in range.
func (c Config) Validate() error {
	if _, ok := baudCode(c.BaudRate); !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBaudRate, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d", ErrInvalidConfig, c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, c.StopBits)
	}
	if c.Parity < ParityNone || c.Parity > ParityEven {
		return fmt.Errorf("%w: parity %d", ErrInvalidConfig, c.Parity)
	}
	if c.FlowControl < FlowControlNone || c.FlowControl > FlowControlXonXoff {
		return fmt.Errorf("%w: flow control %d", ErrInvalidConfig, c.FlowControl)
	}
	if c.FlowControl == FlowControlXonXoff && c.XonChar == c.XoffChar {
		return fmt.Errorf("%w: XON and XOFF are both 0x%02x", ErrInvalidConfig, c.XonChar)
	}
	if !validTimeout(c.ReadTimeout) || !validTimeout(c.WriteTimeout) {
		return fmt.Errorf("%w: timeouts must be >= 0 or Infinite", ErrInvalidConfig)
	}
	if c.ReadFrameSize <= 0 || c.WriteFrameSize <= 0 || c.WriteQueueSize <= 0 {
		return fmt.Errorf("%w: frame and queue sizes must be positive", ErrInvalidConfig)
	}
	if c.WriteInterByteDelay < 0 || c.LinePollInterval <= 0 {
		return fmt.Errorf("%w: delays must be positive", ErrInvalidConfig)
	}
	return nil
}

func validTimeout(d time.Duration) bool {
	return d >= 0 || d == Infinite
}

// pollTimeout converts a configured timeout to unix.Poll milliseconds.
func pollTimeout(d time.Duration) int {
	if d == Infinite {
		return -1
	}
	return int(d.Milliseconds())
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, ok := baudCode(rate); !ok {
			return fmt.Errorf("%w: %d", ErrInvalidBaudRate, rate)
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParityEven {
			return ErrInvalidConfig
		}
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc < FlowControlNone || fc > FlowControlXonXoff {
			return ErrInvalidConfig
		}
		c.FlowControl = fc
		return nil
	}
}

// WithXonXoffChars sets the software flow control characters
func WithXonXoffChars(xon, xoff byte) Option {
	return func(c *Config) error {
		if xon == xoff {
			return ErrInvalidConfig
		}
		c.XonChar, c.XoffChar = xon, xoff
		return nil
	}
}

// WithReadTimeout sets the read readiness timeout (Infinite to block)
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if !validTimeout(d) {
			return ErrInvalidConfig
		}
		c.ReadTimeout = d
		return nil
	}
}

// WithWriteTimeout sets the write readiness timeout (Infinite to block)
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if !validTimeout(d) {
			return ErrInvalidConfig
		}
		c.WriteTimeout = d
		return nil
	}
}

// WithFrameSizes sets the per-call read and write sizes
func WithFrameSizes(read, write int) Option {
	return func(c *Config) error {
		if read <= 0 || write <= 0 {
			return ErrInvalidConfig
		}
		c.ReadFrameSize, c.WriteFrameSize = read, write
		return nil
	}
}

// WithWriteQueueSize bounds the number of frames waiting for the write thread
func WithWriteQueueSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return ErrInvalidConfig
		}
		c.WriteQueueSize = n
		return nil
	}
}

// WithInterByteDelay enables byte-per-byte writes for slow devices
func WithInterByteDelay(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return ErrInvalidConfig
		}
		c.WriteInterByteDelay = d
		return nil
	}
}

// WithLinePollInterval sets the modem line sampling period
func WithLinePollInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return ErrInvalidConfig
		}
		c.LinePollInterval = d
		return nil
	}
}
