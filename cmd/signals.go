/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals <port>",
	Short: "Display current modem signal states",
	Long: `Display the current state of all modem control signals.

Shows the state of CAR, DSR, CTS, RNG, RTS, and DTR for the specified port.

Examples:
  serialctl signals /dev/ttyUSB0
  serialctl signals /dev/ttyACM0

Signal meanings:
  CAR - Carrier Detect (input)
  DSR - Data Set Ready (input)
  CTS - Clear To Send (input)
  RNG - Ring Indicator (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openOnly(args[0])
		if err != nil {
			return err
		}
		defer port.Close()

		signals, err := port.SampleModemLines()
		if err != nil {
			return fmt.Errorf("failed to read modem signals: %w", err)
		}

		fmt.Printf("Modem Signals for %s:\n\n", args[0])
		fmt.Printf("  CAR (Carrier Detect):      %s\n", formatSignalState(signals.CAR))
		fmt.Printf("  DSR (Data Set Ready):      %s\n", formatSignalState(signals.DSR))
		fmt.Printf("  CTS (Clear To Send):       %s\n", formatSignalState(signals.CTS))
		fmt.Printf("  RNG (Ring Indicator):      %s\n", formatSignalState(signals.RNG))
		fmt.Printf("  RTS (Request To Send):     %s\n", formatSignalState(signals.RTS))
		fmt.Printf("  DTR (Data Terminal Ready): %s\n", formatSignalState(signals.DTR))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}
