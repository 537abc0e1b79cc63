package serial

import (
	"strings"

	"golang.org/x/sys/unix"
)

// Line identifies modem input lines. Values combine as a bit set.
type Line int

const (
	LineCAR Line = 1 << iota // Carrier Detect
	LineDSR                  // Data Set Ready
	LineCTS                  // Clear To Send
	LineRNG                  // Ring Indicator

	AllLines = LineCAR | LineDSR | LineCTS | LineRNG
)

// lineBits pairs each input line with its TIOCM bit.
var lineBits = []struct {
	line Line
	bit  int
	name string
}{
	{LineCAR, unix.TIOCM_CAR, "CAR"},
	{LineDSR, unix.TIOCM_DSR, "DSR"},
	{LineCTS, unix.TIOCM_CTS, "CTS"},
	{LineRNG, unix.TIOCM_RI, "RNG"},
}

// Lines splits a set into its individual lines in CAR, DSR, CTS, RNG order
func (l Line) Lines() []Line {
	var lines []Line
	for _, lb := range lineBits {
		if l&lb.line != 0 {
			lines = append(lines, lb.line)
		}
	}
	return lines
}

func (l Line) String() string {
	var names []string
	for _, lb := range lineBits {
		if l&lb.line != 0 {
			names = append(names, lb.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// lineMaskToTIOCM converts a Line set to TIOCM bits
func lineMaskToTIOCM(mask Line) int {
	var bits int
	for _, lb := range lineBits {
		if mask&lb.line != 0 {
			bits |= lb.bit
		}
	}
	return bits
}

// ModemState holds the last sampled inputs and the last commanded outputs
type ModemState struct {
	CAR bool // Carrier Detect
	DSR bool // Data Set Ready
	CTS bool // Clear To Send
	RNG bool // Ring Indicator
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

// Get returns the state of a single input line
func (m ModemState) Get(l Line) bool {
	switch l {
	case LineCAR:
		return m.CAR
	case LineDSR:
		return m.DSR
	case LineCTS:
		return m.CTS
	case LineRNG:
		return m.RNG
	}
	return false
}

// Inputs returns the set of input lines that are on
func (m ModemState) Inputs() Line {
	var on Line
	for _, lb := range lineBits {
		if m.Get(lb.line) {
			on |= lb.line
		}
	}
	return on
}

// Changed returns the input lines whose state differs from prev
func (m ModemState) Changed(prev ModemState) Line {
	return m.Inputs() ^ prev.Inputs()
}

func (m ModemState) String() string {
	flag := func(name string, on bool) string {
		if on {
			return name + "=1"
		}
		return name + "=0"
	}
	return strings.Join([]string{
		flag("CAR", m.CAR), flag("DSR", m.DSR), flag("CTS", m.CTS),
		flag("RNG", m.RNG), flag("RTS", m.RTS), flag("DTR", m.DTR),
	}, " ")
}

// withInputs returns m with the inputs replaced from a TIOCMGET word
func (m ModemState) withInputs(status int) ModemState {
	m.CAR = status&unix.TIOCM_CAR != 0
	m.DSR = status&unix.TIOCM_DSR != 0
	m.CTS = status&unix.TIOCM_CTS != 0
	m.RNG = status&unix.TIOCM_RI != 0
	return m
}

// withOutputs returns m with RTS and DTR taken from a TIOCMGET word
func (m ModemState) withOutputs(status int) ModemState {
	m.RTS = status&unix.TIOCM_RTS != 0
	m.DTR = status&unix.TIOCM_DTR != 0
	return m
}

// detectLineChanges compares two TIOCMGET words over the input lines
func detectLineChanges(oldStatus, newStatus int) Line {
	var changed Line
	for _, lb := range lineBits {
		if (oldStatus&lb.bit != 0) != (newStatus&lb.bit != 0) {
			changed |= lb.line
		}
	}
	return changed
}
