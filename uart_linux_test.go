package serial

import (
	"testing"
	"unsafe"
)

func TestUARTFromPortType(t *testing.T) {
	tests := []struct {
		typ      int32
		expected UART
		name     string
		known    bool
	}{
		{0, UARTUnknown, "unknown", false},
		{1, UART8250, "8250", true},
		{4, UART16550A, "16550A", true},
		{10, UART16C950, "16C950", true},
		{13, UARTRSA, "RSA", true},
		{99, UARTUnknown, "unknown", false},
	}

	for _, tt := range tests {
		got := uartFromPortType(tt.typ)
		if got != tt.expected {
			t.Errorf("uartFromPortType(%d) = %v, expected %v", tt.typ, got, tt.expected)
		}
		if got.String() != tt.name {
			t.Errorf("String() = %q, expected %q", got.String(), tt.name)
		}
		if got.Known() != tt.known {
			t.Errorf("Known() = %v, expected %v", got.Known(), tt.known)
		}
	}

	if got := UART(42).String(); got != "UART(42)" {
		t.Errorf("UART(42).String() = %q", got)
	}
}

// TestSerialStructSize tests the layout against struct serial_struct (72 bytes on 64-bit)
func TestSerialStructSize(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout check only for 64-bit")
	}
	if size := unsafe.Sizeof(serialStruct{}); size != 72 {
		t.Errorf("sizeof(serialStruct) = %d, expected 72", size)
	}
}
