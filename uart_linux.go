package serial

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UART identifies the chip family behind a serial device
type UART int

const (
	UARTUnknown UART = iota
	UART8250
	UART16450
	UART16550
	UART16550A
	UARTCirrus
	UART16650
	UART16650V2
	UART16750
	UARTStartech
	UART16C950
	UART16654
	UART16850
	UARTRSA
)

var uartNames = map[UART]string{
	UARTUnknown:  "unknown",
	UART8250:     "8250",
	UART16450:    "16450",
	UART16550:    "16550",
	UART16550A:   "16550A",
	UARTCirrus:   "Cirrus",
	UART16650:    "16650",
	UART16650V2:  "16650V2",
	UART16750:    "16750",
	UARTStartech: "Startech",
	UART16C950:   "16C950",
	UART16654:    "16654",
	UART16850:    "16850",
	UARTRSA:      "RSA",
}

func (u UART) String() string {
	if name, ok := uartNames[u]; ok {
		return name
	}
	return fmt.Sprintf("UART(%d)", int(u))
}

// Known reports whether u is a recognized family
func (u UART) Known() bool {
	_, ok := uartNames[u]
	return ok && u != UARTUnknown
}

// portTypes maps the PORT_* values of serial_struct.type
// (include/uapi/linux/serial.h) onto UART.
var portTypes = map[int32]UART{
	0:  UARTUnknown, // PORT_UNKNOWN
	1:  UART8250,
	2:  UART16450,
	3:  UART16550,
	4:  UART16550A,
	5:  UARTCirrus,
	6:  UART16650,
	7:  UART16650V2,
	8:  UART16750,
	9:  UARTStartech,
	10: UART16C950,
	11: UART16654,
	12: UART16850,
	13: UARTRSA,
}

func uartFromPortType(typ int32) UART {
	return portTypes[typ]
}

// serialStruct mirrors struct serial_struct for TIOCGSERIAL.
type serialStruct struct {
	typ           int32
	line          int32
	port          uint32
	irq           int32
	flags         int32
	xmitFifoSize  int32
	customDivisor int32
	baudBase      int32
	closeDelay    uint16
	ioType        byte
	reservedChar  byte
	hub6          int32
	closingWait   uint16
	closingWait2  uint16
	iomemBase     uintptr
	iomemRegShift uint16
	portHigh      uint32
	iomapBase     uint64
}

// queryUART reads the UART family of fd. Drivers without TIOCGSERIAL
// (USB CDC, ptys) report UARTUnknown without an error.
func queryUART(fd int) (UART, error) {
	var ss serialStruct
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCGSERIAL, uintptr(unsafe.Pointer(&ss)))
	switch errno {
	case 0:
		return uartFromPortType(ss.typ), nil
	case unix.ENOTTY, unix.EINVAL:
		return UARTUnknown, nil
	default:
		return UARTUnknown, errno
	}
}
