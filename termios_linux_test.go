package serial

import (
	"slices"
	"testing"

	"golang.org/x/sys/unix"
)

func TestEncodeDecodeTermios(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"9600 8N1", nil},
		{"115200 7E1", []Option{WithBaudRate(115200), WithDataBits(7), WithParity(ParityEven)}},
		{"57600 5O2", []Option{WithBaudRate(57600), WithDataBits(5), WithParity(ParityOdd), WithStopBits(2)}},
		{"rtscts", []Option{WithFlowControl(FlowControlRTSCTS)}},
		{"xonxoff custom chars", []Option{WithFlowControl(FlowControlXonXoff), WithXonXoffChars('Q', 'S')}},
		{"4000000", []Option{WithBaudRate(4000000)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.opts...)
			if err != nil {
				t.Fatalf("NewConfig() error = %v", err)
			}

			// Start from a cooked terminal to make sure raw mode clears it
			base := unix.Termios{
				Iflag: unix.ICRNL | unix.IXON,
				Oflag: unix.OPOST,
				Lflag: unix.ICANON | unix.ECHO | unix.ISIG,
				Cflag: unix.B38400 | unix.CS8 | unix.PARENB | unix.CRTSCTS,
			}
			encoded, err := encodeTermios(base, cfg)
			if err != nil {
				t.Fatalf("encodeTermios() error = %v", err)
			}

			if field := mismatch(cfg, decodeTermios(encoded)); field != "" {
				t.Errorf("mismatch() = %q after round trip", field)
			}
			if encoded.Lflag&(unix.ICANON|unix.ECHO|unix.ISIG) != 0 {
				t.Errorf("Lflag = %#x, expected raw mode", encoded.Lflag)
			}
			if encoded.Oflag&unix.OPOST != 0 {
				t.Error("OPOST still set")
			}
			if encoded.Cflag&(unix.CLOCAL|unix.CREAD) != unix.CLOCAL|unix.CREAD {
				t.Error("CLOCAL|CREAD not set")
			}
			if encoded.Cc[unix.VMIN] != 0 || encoded.Cc[unix.VTIME] != 0 {
				t.Error("VMIN/VTIME should be zero on a non-blocking port")
			}
		})
	}
}

func TestEncodeTermiosInvalidBaud(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaudRate = 31250
	if _, err := encodeTermios(unix.Termios{}, cfg); err != ErrInvalidBaudRate {
		t.Errorf("encodeTermios() error = %v, expected %v", err, ErrInvalidBaudRate)
	}
}

// TestMismatch tests that the first field the driver did not take is named
func TestMismatch(t *testing.T) {
	cfg, err := NewConfig(WithBaudRate(19200), WithDataBits(7), WithParity(ParityEven))
	if err != nil {
		t.Fatal(err)
	}
	good := lineSettings{baudRate: 19200, dataBits: 7, stopBits: 1, parity: ParityEven}

	tests := []struct {
		name     string
		modify   func(*lineSettings)
		expected string
	}{
		{"match", func(*lineSettings) {}, ""},
		{"baud", func(s *lineSettings) { s.baudRate = 9600 }, "baud rate"},
		{"forced CS8", func(s *lineSettings) { s.dataBits = 8 }, "data bits"},
		{"parity cleared", func(s *lineSettings) { s.parity = ParityNone }, "parity"},
		{"stop bits", func(s *lineSettings) { s.stopBits = 2 }, "stop bits"},
		{"unexpected rtscts", func(s *lineSettings) { s.rtscts = true }, "rts/cts"},
		{"data bits before parity", func(s *lineSettings) {
			s.dataBits = 8
			s.parity = ParityNone
		}, "data bits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := good
			tt.modify(&got)
			if field := mismatch(cfg, got); field != tt.expected {
				t.Errorf("mismatch() = %q, expected %q", field, tt.expected)
			}
		})
	}

	xcfg, _ := NewConfig(WithFlowControl(FlowControlXonXoff))
	xgot := lineSettings{baudRate: 9600, dataBits: 8, stopBits: 1, xonxoff: true, xon: DefaultXonChar, xoff: 0}
	if field := mismatch(xcfg, xgot); field != "xoff char" {
		t.Errorf("mismatch() = %q, expected %q", field, "xoff char")
	}
}

func TestLineSettingsApply(t *testing.T) {
	s := lineSettings{baudRate: 115200, dataBits: 7, stopBits: 2, parity: ParityOdd, rtscts: true, xon: 1, xoff: 2}
	cfg := s.apply(DefaultConfig())

	if cfg.String() != "115200-7-O-2 rtscts" {
		t.Errorf("apply() = %q", cfg.String())
	}
	if cfg.XonChar != 1 || cfg.XoffChar != 2 {
		t.Errorf("xon/xoff = %#x/%#x", cfg.XonChar, cfg.XoffChar)
	}
	if cfg.ReadTimeout != DefaultConfig().ReadTimeout {
		t.Error("apply() must leave non-line fields alone")
	}
}

func TestSupportedBaudRates(t *testing.T) {
	rates := SupportedBaudRates()
	if !slices.IsSorted(rates) {
		t.Error("SupportedBaudRates() is not ascending")
	}
	for _, rate := range []int{50, 9600, 115200, 4000000} {
		if !slices.Contains(rates, rate) {
			t.Errorf("SupportedBaudRates() missing %d", rate)
		}
		code, ok := baudCode(rate)
		if !ok || baudRate(code) != rate {
			t.Errorf("baudCode/baudRate(%d) do not round trip", rate)
		}
	}
	if baudRate(0xFFFF) != 0 {
		t.Error("unknown speed code should decode to 0")
	}
}
