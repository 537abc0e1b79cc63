package components

import (
	"errors"
	"strings"
	"testing"
	"time"

	serial "github.com/allbin/go-serialctl"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		input    string
		expected []byte
		wantErr  bool
	}{
		{"48656C6C6F", []byte("Hello"), false},
		{"48 65 6C 6C 6F", []byte("Hello"), false},
		{"  0d0a ", []byte{0x0d, 0x0a}, false},
		{"", nil, true},
		{"ABC", nil, true},
		{"ZZ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if string(got) != string(tt.expected) {
				t.Errorf("ParseHex(%q) = %X, expected %X", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSendingMode(t *testing.T) {
	tests := []struct {
		input    string
		expected SendingMode
		wantErr  bool
	}{
		{"ascii", SendingModeASCII, false},
		{"", SendingModeASCII, false},
		{"HEX", SendingModeHex, false},
		{"binary", SendingModeASCII, true},
	}
	for _, tt := range tests {
		got, err := ParseSendingMode(tt.input)
		if (err != nil) != tt.wantErr || got != tt.expected {
			t.Errorf("ParseSendingMode(%q) = %v, %v", tt.input, got, err)
		}
	}
}

func TestInputPayload(t *testing.T) {
	in := NewInput(SendingModeASCII, "\r\n")
	in.SetValue("AT")
	got, err := in.Payload()
	if err != nil || string(got) != "AT\r\n" {
		t.Errorf("Payload() = %q, %v", got, err)
	}

	in.ToggleSendingMode()
	if in.GetSendingMode() != SendingModeHex {
		t.Fatalf("GetSendingMode() = %v, expected HEX", in.GetSendingMode())
	}
	in.SetValue("41 54")
	got, err = in.Payload()
	if err != nil || string(got) != "AT" {
		t.Errorf("hex Payload() = %q, %v", got, err)
	}
}

func TestInputHistory(t *testing.T) {
	in := NewInput(SendingModeASCII, "")
	in.AddToHistory("first")
	in.AddToHistory("second")

	in.SetValue("draft")
	in.NavigateHistoryUp()
	if in.Value() != "second" {
		t.Errorf("Value() = %q, expected second", in.Value())
	}
	in.NavigateHistoryUp()
	if in.Value() != "first" {
		t.Errorf("Value() = %q, expected first", in.Value())
	}
	in.NavigateHistoryDown()
	in.NavigateHistoryDown()
	if in.Value() != "draft" {
		t.Errorf("Value() = %q, expected the draft back", in.Value())
	}
}

func TestASCIIString(t *testing.T) {
	tests := []struct {
		input    []byte
		expected string
	}{
		{[]byte("PING"), "PING"},
		{[]byte("OK\r\n"), "OK.."},
		{[]byte{0x1b, '[', '2', 'J'}, ".[2J"},
		{[]byte{0x7f, 0xff}, ".."},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := ASCIIString(tt.input); got != tt.expected {
			t.Errorf("ASCIIString(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestHexString(t *testing.T) {
	if got := HexString([]byte{0x0d, 0x0a, 0xff}); got != "0D 0A FF" {
		t.Errorf("HexString() = %q", got)
	}
}

func TestIndicator(t *testing.T) {
	tests := []struct {
		msg      DataMsg
		expected string
	}{
		{DataMsg{Direction: DirectionRX}, "↙ RX"},
		{DataMsg{Direction: DirectionTX, Status: TxQueued}, "↗ TX ○"},
		{DataMsg{Direction: DirectionTX, Status: TxSent}, "↗ TX ✓"},
		{DataMsg{Direction: DirectionTX, Status: TxFailed}, "↗ TX ✗"},
		{DataMsg{Direction: DirectionEvent}, "• EV"},
	}
	for _, tt := range tests {
		if got := Indicator(tt.msg); got != tt.expected {
			t.Errorf("Indicator(%+v) = %q, expected %q", tt.msg, got, tt.expected)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	ts := time.Date(2025, 1, 2, 10, 11, 12, 345_000_000, time.UTC)
	df := NewDataFormatter(true, true)

	got := df.FormatMessage(DataMsg{Timestamp: ts, Data: []byte("OK\n"), Direction: DirectionRX})
	for _, want := range []string{"[10:11:12.345]", "HEX: 4F 4B 0A", "ASCII: OK."} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatMessage() = %q, missing %q", got, want)
		}
	}

	df.SetDisplayMode(false, false)
	got = df.FormatMessage(DataMsg{Timestamp: ts, Data: []byte("OK\n")})
	if !strings.Contains(got, "BYTES: 3") {
		t.Errorf("FormatMessage() without columns = %q", got)
	}

	// Events ignore the display mode
	got = df.FormatMessage(DataMsg{Timestamp: ts, Data: []byte("CTS on"), Direction: DirectionEvent})
	if !strings.Contains(got, "CTS on") || strings.Contains(got, "BYTES") {
		t.Errorf("FormatMessage(event) = %q", got)
	}
}

func TestPortTable(t *testing.T) {
	ports := []serial.PortDescriptor{
		{Path: "/dev/ttyS0", DisplayName: "Standard Serial Port (ttyS0, 16550A)", UART: serial.UART16550A},
		{
			Path:        "/dev/ttyUSB0",
			DisplayName: "FT232R USB UART (ttyUSB0)",
			USB:         &serial.USBInfo{VendorID: "0403", ProductID: "6001", SerialNumber: "A10K1234"},
		},
	}
	out := PortTable(ports, 120)
	for _, want := range []string{"Port", "ttyS0", "16550A", "ttyUSB0", "0403:6001", "A10K1234"} {
		if !strings.Contains(out, want) {
			t.Errorf("PortTable() missing %q:\n%s", want, out)
		}
	}
}

func TestStatusBar(t *testing.T) {
	sb := NewStatusBar("/dev/ttyUSB0", serial.DefaultConfig())
	if sb.State() != serial.StatePortClosed {
		t.Errorf("initial State() = %v", sb.State())
	}

	sb.SetWidth(160)
	sb.SetState(serial.StateBusy, nil)
	sb.SetPending(2)
	out := sb.View("NORMAL", "", "12:00:00")
	for _, want := range []string{"NORMAL", "/dev/ttyUSB0", "busy (2 queued)", "9600-8-N-1", "CTS"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q: %s", want, out)
		}
	}

	cause := errors.New("input/output error")
	sb.SetState(serial.StateDisconnected, cause)
	if sb.Err() != cause {
		t.Errorf("Err() = %v", sb.Err())
	}
	if out := sb.View("INSERT", "HEX", ""); !strings.Contains(out, "disconnected: input/output error") {
		t.Errorf("View() = %s", out)
	}
}

func TestTerminalTableViewMode(t *testing.T) {
	tt := NewTerminalTable(100, 20, 10)
	if tt.GetViewMode() != ViewModeFollow {
		t.Errorf("initial GetViewMode() = %v", tt.GetViewMode())
	}
	tt.SetViewMode(ViewModeVisual)
	if got := tt.GetViewMode().String(); got != "VISUAL" {
		t.Errorf("GetViewMode() = %q, expected VISUAL", got)
	}
	tt.SetViewMode(ViewModeFollow)

	for i := 0; i < 15; i++ {
		tt.AddMessage(DataMsg{Timestamp: time.Now(), Data: []byte{byte('a' + i)}})
	}
	// Scrollback keeps the last ten entries, the newest is visible
	if out := tt.View(); !strings.Contains(out, "6F") {
		t.Errorf("View() does not show the newest entry:\n%s", out)
	}
}
