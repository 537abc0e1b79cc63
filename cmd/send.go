/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/components"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port with configurable options.

This command sends data to the specified serial port. Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | serialctl send /dev/ttyUSB0
- Interactive mode: serialctl send /dev/ttyUSB0 (prompts for input)

The data is queued on the write thread and the command returns once the
queue has drained or --timeout expires.

Example usage:
  serialctl send "Hello World" /dev/ttyUSB0
  serialctl send "AT+GMR" /dev/ttyUSB0 --newline
  serialctl send 48656C6C6F /dev/ttyUSB0 --hex
  echo "test" | serialctl send /dev/ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data, portPath string

		if len(args) == 1 {
			portPath = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data, portPath = args[0], args[1]
		}

		addNewline, _ := cmd.Flags().GetBool("newline")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		payload := []byte(data)
		if hexMode {
			var err error
			hexStr := strings.NewReplacer("0x", "", "0X", "").Replace(data)
			if payload, err = components.ParseHex(hexStr); err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		} else if addNewline {
			payload = append(payload, '\n')
		}

		return sendData(portPath, payload, timeout)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addPortFlags(sendCmd)

	sendCmd.Flags().BoolP("newline", "n", false, "Add newline character to the end of data")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for the write queue to drain")
}

func promptForData() string {
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

func sendData(portPath string, data []byte, timeout time.Duration) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)
	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), portPath)

	m, err := newManager()
	if err != nil {
		return err
	}
	lineCfg, err := startPort(m, portPath)
	if err != nil {
		return err
	}
	defer shutdown(m)

	fmt.Printf("%s Connected (%s)\n", successStyle.Render("✓"), lineCfg)
	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(data))

	if _, err := m.Write(data); err != nil {
		return fmt.Errorf("failed to queue data: %w", err)
	}
	if err := waitDrained(m, timeout); err != nil {
		return err
	}

	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), len(data))

	preview := data
	if len(preview) > 50 {
		preview = preview[:50]
	}
	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), components.ASCIIString(preview))
	return nil
}

// waitDrained blocks until the write queue is empty and the manager is
// Ready again. A fault that disconnects the port ends the wait with its
// error.
func waitDrained(m *serial.Manager, timeout time.Duration) error {
	states := make(chan serial.Event, 8)
	unsubscribe := m.Subscribe(func(ev serial.Event) {
		if ev.Kind != serial.EventState {
			return
		}
		select {
		case states <- ev:
		default:
		}
	})
	defer unsubscribe()

	deadline := time.After(timeout)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		switch m.State() {
		case serial.StateReady:
			if m.PendingWrites() == 0 {
				return nil
			}
		case serial.StateDisconnected, serial.StatePortError, serial.StatePortClosed:
			if err := m.Err(); err != nil {
				return fmt.Errorf("port %s: %w", m.State(), err)
			}
			return fmt.Errorf("port %s before the data was sent", m.State())
		}
		select {
		case <-states:
		case <-tick.C:
		case <-deadline:
			return fmt.Errorf("timed out after %v with %d frame(s) queued", timeout, m.PendingWrites())
		}
	}
}
