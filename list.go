package serial

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// PortDescriptor is one entry of a scan result
type PortDescriptor struct {
	Path        string
	DisplayName string
	UART        UART
	USB         *USBInfo
}

// Name returns the device node name, e.g. "ttyS0"
func (d PortDescriptor) Name() string {
	return filepath.Base(d.Path)
}

// Default device name patterns for serial ports under /dev
var (
	DefaultPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
		regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
		regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
		regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
		regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
		regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
		regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
		regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	}

	DefaultExcludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
		regexp.MustCompile(`^console$`), // Console
		regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
		regexp.MustCompile(`^pty.*$`),   // BSD pseudo-terminals
	}
)

// Scanner finds serial ports by device name and probes each candidate
type Scanner struct {
	Dir      string
	Patterns []*regexp.Regexp
	Exclude  []*regexp.Regexp

	// IncludeUnrecognized keeps candidates that open fine but report no
	// UART family, which is the norm for USB CDC adapters.
	IncludeUnrecognized bool
	// Concurrency bounds the number of simultaneous probes.
	Concurrency int

	logger  *slog.Logger
	newPort func() Port
	usb     func() (map[string]*USBInfo, error)
}

// NewScanner returns a Scanner over /dev with the default patterns
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{
		Dir:         "/dev",
		Patterns:    DefaultPatterns,
		Exclude:     DefaultExcludePatterns,
		Concurrency: 4,
		logger:      logger,
		newPort:     func() Port { return NewSerialPort(logger) },
		usb:         enumerateUSB,
	}
}

// ListPorts returns the serial port candidates under /dev in numeric order
func ListPorts() ([]string, error) {
	return NewScanner(nil).Candidates()
}

// Candidates lists character devices whose names match the patterns,
// sorted so that ttyS2 comes before ttyS10.
func (s *Scanner) Candidates() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if matchAny(s.Exclude, name) || !matchAny(s.Patterns, name) {
			continue
		}
		fullPath := filepath.Join(s.Dir, name)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	slices.SortFunc(ports, naturalCompare)
	return ports, nil
}

func matchAny(patterns []*regexp.Regexp, name string) bool {
	for _, p := range patterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Scan probes every candidate except the paths in skip. A candidate is
// opened, asked for its UART and closed again; no configuration is
// applied. The result keeps the numeric candidate order.
func (s *Scanner) Scan(ctx context.Context, skip ...string) ([]PortDescriptor, error) {
	paths, err := s.Candidates()
	if err != nil {
		return nil, err
	}
	paths = slices.DeleteFunc(paths, func(p string) bool { return slices.Contains(skip, p) })

	usb, err := s.usb()
	if err != nil {
		s.logger.Debug("USB enumeration failed, using sysfs only", "error", err)
	}

	found := make([]*PortDescriptor, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d, ok := s.probe(path); ok {
				d.USB = lookupUSB(usb, path)
				d.DisplayName = displayName(d)
				found[i] = &d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]PortDescriptor, 0, len(found))
	for _, d := range found {
		if d != nil {
			result = append(result, *d)
		}
	}
	s.logger.Debug("scan complete", "candidates", len(paths), "found", len(result))
	return result, nil
}

// Describe builds the descriptor of a known path without opening it. The
// UART stays unknown; USB details are filled in when available.
func (s *Scanner) Describe(path string) PortDescriptor {
	d := PortDescriptor{Path: path}
	usb, err := s.usb()
	if err != nil {
		s.logger.Debug("USB enumeration failed, using sysfs only", "error", err)
	}
	d.USB = lookupUSB(usb, path)
	d.DisplayName = displayName(d)
	return d
}

func (s *Scanner) probe(path string) (PortDescriptor, bool) {
	p := s.newPort()
	if err := p.Open(path); err != nil {
		s.logger.Debug("probe open failed", "path", path, "error", err)
		return PortDescriptor{}, false
	}
	defer p.Close()

	uart, err := p.UART()
	if err != nil {
		s.logger.Debug("probe UART query failed", "path", path, "error", err)
		return PortDescriptor{}, false
	}
	if !uart.Known() && !s.IncludeUnrecognized {
		s.logger.Debug("probe skipped unrecognized UART", "path", path)
		return PortDescriptor{}, false
	}
	return PortDescriptor{Path: path, UART: uart}, true
}

func displayName(d PortDescriptor) string {
	name := d.Name()
	if d.USB != nil && d.USB.Product != "" {
		return fmt.Sprintf("%s (%s)", d.USB.Product, name)
	}
	if d.UART.Known() {
		return fmt.Sprintf("%s (%s, %s)", getPortDescription(name), name, d.UART)
	}
	return fmt.Sprintf("%s (%s)", getPortDescription(name), name)
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// naturalCompare orders strings with embedded numbers by numeric value,
// so "ttyS2" < "ttyS10".
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		da, db := isDigit(a[0]), isDigit(b[0])
		switch {
		case da && db:
			na, ra := splitDigits(a)
			nb, rb := splitDigits(b)
			// Compare by magnitude first, then lexically for equal lengths.
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if c := cmp.Compare(len(ta), len(tb)); c != 0 {
				return c
			}
			if c := strings.Compare(ta, tb); c != 0 {
				return c
			}
			a, b = ra, rb
		case a[0] != b[0]:
			return cmp.Compare(int(a[0]), int(b[0]))
		default:
			a, b = a[1:], b[1:]
		}
	}
	return cmp.Compare(len(a), len(b))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}
