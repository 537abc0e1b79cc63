/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/components"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:     "scan",
	Aliases: []string{"list"},
	Short:   "List serial ports with a recognized UART",
	Long: `Scan for serial ports and list those whose driver reports a recognized
UART family.

Candidates are device nodes such as ttyS*, ttyUSB*, ttyACM* and ttyAMA*,
listed in numeric order (ttyS2 before ttyS10). Each is opened read-only
for a moment to query its UART; no line settings are changed. USB CDC
adapters report no UART family and need --include-unrecognized.

With --watch the table is printed again whenever ports appear or vanish.

Example usage:
  serialctl scan
  serialctl scan --include-unrecognized --filter usb
  serialctl scan --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		filter, _ := cmd.Flags().GetString("filter")
		watch, _ := cmd.Flags().GetBool("watch")

		m, err := newManager()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !watch {
			ports, err := m.Scan(ctx)
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}
			renderPorts(filterPorts(ports, filter), plain)
			return nil
		}

		fmt.Fprintln(os.Stderr, "Watching for serial ports, press Ctrl+C to stop")
		for ports := range m.Watch(ctx, cfg.Scan.WatchDebounce) {
			fmt.Printf("\n[%s]\n", time.Now().Format("15:04:05"))
			renderPorts(filterPorts(ports, filter), plain)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("filter", "F", "", "Filter by port type: usb, standard, arm, all")
	scanCmd.Flags().Bool("plain", false, "Print one path per line")
	scanCmd.Flags().BoolP("watch", "w", false, "Print the list again when ports change")
	scanCmd.Flags().BoolP("include-unrecognized", "a", false, "Also list ports without a recognized UART")
}

// filterPorts filters the port list based on the specified filter type
func filterPorts(ports []serial.PortDescriptor, filterType string) []serial.PortDescriptor {
	if filterType == "" || filterType == "all" {
		return ports
	}

	var filtered []serial.PortDescriptor
	for _, p := range ports {
		name := strings.ToLower(p.Name())
		switch strings.ToLower(filterType) {
		case "usb":
			if p.USB != nil || strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm") {
				filtered = append(filtered, p)
			}
		case "standard":
			if strings.HasPrefix(name, "ttys") {
				filtered = append(filtered, p)
			}
		case "arm":
			if strings.HasPrefix(name, "ttyama") {
				filtered = append(filtered, p)
			}
		}
	}
	return filtered
}

func renderPorts(ports []serial.PortDescriptor, plain bool) {
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return
	}
	if plain {
		for _, p := range ports {
			fmt.Println(p.Path)
		}
		return
	}

	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil {
		width = 100
	}
	title := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Found %d serial port(s):", len(ports)))
	fmt.Println(title)
	fmt.Println(components.PortTable(ports, width))
}
