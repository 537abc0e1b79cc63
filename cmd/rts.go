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

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
)

// rtsCmd represents the rts command
var rtsCmd = &cobra.Command{
	Use:   "rts <port> <state>",
	Short: "Control RTS (Request To Send) signal",
	Long: `Manually set the RTS (Request To Send) signal state.

The RTS signal can be used for hardware flow control or custom signaling.
Most drivers drop RTS and DTR when the last descriptor closes, so use
--hold to keep the port open (0 holds until Ctrl+C).

Examples:
  serialctl rts /dev/ttyUSB0 high
  serialctl rts /dev/ttyUSB0 off --hold 5s

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetLine(cmd, args, "RTS", (*serial.SerialPort).SetRTS, func(m serial.ModemState) bool { return m.RTS })
	},
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

// runSetLine drives one output line, reads it back and optionally holds
// the port open.
func runSetLine(cmd *cobra.Command, args []string, name string,
	set func(*serial.SerialPort, bool) error, get func(serial.ModemState) bool) error {
	state, err := parseSignalState(args[1])
	if err != nil {
		return err
	}

	port, err := openOnly(args[0])
	if err != nil {
		return err
	}
	defer port.Close()

	if err := set(port, state); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	modem, err := port.SampleModemLines()
	if err != nil {
		printErr("Warning: could not verify %s state: %v", name, err)
		modem = port.ModemState()
	}
	fmt.Printf("%s set to %s on %s\n", name, formatSignalState(get(modem)), args[0])

	if !cmd.Flags().Changed("hold") {
		return nil
	}
	hold, _ := cmd.Flags().GetDuration("hold")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if hold > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, hold)
		defer cancel()
	}
	<-ctx.Done()
	return nil
}

func addHoldFlag(cmd *cobra.Command) {
	cmd.Flags().Duration("hold", 0, "Keep the port open for this long after setting the line (0 until Ctrl+C)")
}

func init() {
	rootCmd.AddCommand(rtsCmd)
	addHoldFlag(rtsCmd)
}
