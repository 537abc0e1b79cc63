package serial

import (
	"reflect"
	"testing"

	"golang.org/x/sys/unix"
)

// TestLineMaskToTIOCM tests the line mask conversion
func TestLineMaskToTIOCM(t *testing.T) {
	tests := []struct {
		name     string
		mask     Line
		expected int
	}{
		{
			name:     "CTS only",
			mask:     LineCTS,
			expected: unix.TIOCM_CTS,
		},
		{
			name:     "DSR only",
			mask:     LineDSR,
			expected: unix.TIOCM_DSR,
		},
		{
			name:     "RNG only",
			mask:     LineRNG,
			expected: unix.TIOCM_RI,
		},
		{
			name:     "CAR only",
			mask:     LineCAR,
			expected: unix.TIOCM_CAR,
		},
		{
			name:     "Multiple lines",
			mask:     LineCTS | LineDSR,
			expected: unix.TIOCM_CTS | unix.TIOCM_DSR,
		},
		{
			name:     "All lines",
			mask:     AllLines,
			expected: unix.TIOCM_CTS | unix.TIOCM_DSR | unix.TIOCM_RI | unix.TIOCM_CAR,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := lineMaskToTIOCM(tt.mask)
			if result != tt.expected {
				t.Errorf("lineMaskToTIOCM(%v) = %v, want %v", tt.mask, result, tt.expected)
			}
		})
	}
}

// TestDetectLineChanges tests line change detection
func TestDetectLineChanges(t *testing.T) {
	tests := []struct {
		name      string
		oldStatus int
		newStatus int
		expected  Line
	}{
		{
			name:      "No change",
			oldStatus: unix.TIOCM_CTS | unix.TIOCM_DSR,
			newStatus: unix.TIOCM_CTS | unix.TIOCM_DSR,
			expected:  0,
		},
		{
			name:      "CTS changed",
			oldStatus: 0,
			newStatus: unix.TIOCM_CTS,
			expected:  LineCTS,
		},
		{
			name:      "Carrier dropped and ring started",
			oldStatus: unix.TIOCM_CAR,
			newStatus: unix.TIOCM_RI,
			expected:  LineCAR | LineRNG,
		},
		{
			name:      "Outputs are ignored",
			oldStatus: unix.TIOCM_RTS,
			newStatus: unix.TIOCM_DTR,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detectLineChanges(tt.oldStatus, tt.newStatus)
			if result != tt.expected {
				t.Errorf("detectLineChanges(%#x, %#x) = %v, want %v", tt.oldStatus, tt.newStatus, result, tt.expected)
			}
		})
	}
}

func TestLineString(t *testing.T) {
	tests := []struct {
		line     Line
		expected string
	}{
		{0, "none"},
		{LineCAR, "CAR"},
		{LineCTS | LineDSR, "DSR|CTS"},
		{AllLines, "CAR|DSR|CTS|RNG"},
	}
	for _, tt := range tests {
		if got := tt.line.String(); got != tt.expected {
			t.Errorf("Line(%d).String() = %q, want %q", int(tt.line), got, tt.expected)
		}
	}

	got := (LineRNG | LineCAR).Lines()
	if want := []Line{LineCAR, LineRNG}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %v, want %v", got, want)
	}
}

func TestModemStateFromStatus(t *testing.T) {
	status := unix.TIOCM_CAR | unix.TIOCM_CTS | unix.TIOCM_RTS
	m := ModemState{}.withInputs(status).withOutputs(status)

	expected := ModemState{CAR: true, CTS: true, RTS: true}
	if m != expected {
		t.Errorf("state = %+v, want %+v", m, expected)
	}
	if m.Inputs() != LineCAR|LineCTS {
		t.Errorf("Inputs() = %v, want CAR|CTS", m.Inputs())
	}
	if !m.Get(LineCAR) || m.Get(LineDSR) {
		t.Errorf("Get() disagrees with %+v", m)
	}
	if got := m.String(); got != "CAR=1 DSR=0 CTS=1 RNG=0 RTS=1 DTR=0" {
		t.Errorf("String() = %q", got)
	}

	// withInputs keeps the commanded outputs
	next := m.withInputs(unix.TIOCM_DSR | unix.TIOCM_CTS)
	if !next.RTS || next.DTR {
		t.Errorf("outputs changed: %+v", next)
	}
	if changed := next.Changed(m); changed != LineCAR|LineDSR {
		t.Errorf("Changed() = %v, want CAR|DSR", changed)
	}
}
