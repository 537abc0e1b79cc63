package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/go-serialctl/internal/tui/colors"
)

// Direction tells where a terminal entry came from
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
	DirectionEvent // line changes, state changes and local errors
)

// TxStatus tracks a queued write
type TxStatus int

const (
	TxQueued TxStatus = iota
	TxSent
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxQueued:
		return "QUEUED"
	case TxSent:
		return "SENT"
	case TxFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// DataMsg is one entry of the terminal: a received frame, a sent frame or
// a notification rendered as text.
type DataMsg struct {
	Timestamp time.Time
	Data      []byte
	Direction Direction
	Status    TxStatus // TX only
}

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) SetDisplayMode(showHex, showASCII bool) {
	df.mode.ShowHex = showHex
	df.mode.ShowASCII = showASCII
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

// HexString renders bytes as space separated upper case hex
func HexString(data []byte) string {
	return fmt.Sprintf("% X", data)
}

// ASCIIString renders printable bytes and replaces the rest with dots, so
// received data never reaches the terminal as control sequences.
func ASCIIString(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Indicator returns the short direction marker of an entry
func Indicator(msg DataMsg) string {
	switch msg.Direction {
	case DirectionTX:
		switch msg.Status {
		case TxQueued:
			return "↗ TX ○"
		case TxSent:
			return "↗ TX ✓"
		case TxFailed:
			return "↗ TX ✗"
		}
		return "↗ TX"
	case DirectionEvent:
		return "• EV"
	}
	return "↙ RX"
}

func indicatorColor(msg DataMsg) lipgloss.Color {
	switch msg.Direction {
	case DirectionTX:
		switch msg.Status {
		case TxQueued:
			return colors.Yellow
		case TxFailed:
			return colors.Failure
		}
		return colors.Sent
	case DirectionEvent:
		return colors.Lavender
	}
	return colors.Received
}

func (df *DataFormatter) FormatMessage(msg DataMsg) string {
	indicator := lipgloss.NewStyle().
		Foreground(indicatorColor(msg)).
		Bold(true).
		Render(Indicator(msg))

	timestamp := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Render(fmt.Sprintf("[%s]", msg.Timestamp.Format("15:04:05.000")))

	// Events are text and bypass the hex and ascii columns
	if msg.Direction == DirectionEvent {
		return fmt.Sprintf("%s %s: %s", timestamp, indicator, ASCIIString(msg.Data))
	}

	var parts []string
	if df.mode.ShowHex {
		parts = append(parts, "HEX: "+HexString(msg.Data))
	}
	if df.mode.ShowASCII {
		parts = append(parts, "ASCII: "+ASCIIString(msg.Data))
	}
	if !df.mode.ShowHex && !df.mode.ShowASCII {
		parts = append(parts, fmt.Sprintf("BYTES: %d", len(msg.Data)))
	}

	return fmt.Sprintf("%s %s: %s", timestamp, indicator, strings.Join(parts, "  "))
}

func (df *DataFormatter) FormatMessages(messages []DataMsg) []string {
	formatted := make([]string, len(messages))
	for i, msg := range messages {
		formatted[i] = df.FormatMessage(msg)
	}
	return formatted
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}
