package publish

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	serial "github.com/allbin/go-serialctl"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, device, suffix string
		want                   string
	}{
		{"serial", "/dev/ttyUSB0", "frame", "serial.ttyUSB0.frame"},
		{"site.serial", "/dev/ttyS1", "state", "site.serial.ttyS1.state"},
		{"serial", "/dev/serial/by-id/usb-FTDI.v1", "tx", "serial.usb-FTDI_v1.tx"},
		{"serial", "", "line", "serial.unknown.line"},
	}

	for _, tt := range tests {
		if got := Subject(tt.prefix, tt.device, tt.suffix); got != tt.want {
			t.Errorf("Subject(%q, %q, %q) = %q, want %q", tt.prefix, tt.device, tt.suffix, got, tt.want)
		}
	}
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ev   serial.Event
		want string
	}{
		{
			name: "frame",
			ev:   serial.Event{Kind: serial.EventFrame, Time: now, Path: "/dev/ttyS0", Data: []byte("PING\n")},
			want: `{"time":"2025-03-01T12:00:00Z","device":"/dev/ttyS0","kind":"frame","data":"UElORwo="}`,
		},
		{
			name: "line off",
			ev:   serial.Event{Kind: serial.EventLine, Time: now, Path: "/dev/ttyS0", Line: serial.LineCTS},
			want: `{"time":"2025-03-01T12:00:00Z","device":"/dev/ttyS0","kind":"line","line":"CTS","on":false}`,
		},
		{
			name: "state with error",
			ev: serial.Event{Kind: serial.EventState, Time: now, Path: "/dev/ttyS0",
				State: serial.StateDisconnected, Err: errors.New("unplugged")},
			want: `{"time":"2025-03-01T12:00:00Z","device":"/dev/ttyS0","kind":"state","state":"disconnected","error":"unplugged"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(NewMessage(tt.ev))
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("message = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	p := &Publisher{}
	if err := p.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
