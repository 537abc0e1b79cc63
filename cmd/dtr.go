/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
)

// dtrCmd represents the dtr command
var dtrCmd = &cobra.Command{
	Use:   "dtr <port> <state>",
	Short: "Control DTR (Data Terminal Ready) signal",
	Long: `Manually set the DTR (Data Terminal Ready) signal state.

The DTR signal indicates that the terminal is ready for communication.

Examples:
  serialctl dtr /dev/ttyUSB0 high
  serialctl dtr /dev/ttyUSB0 low --hold 0

Valid states: high, low, on, off, true, false, 1, 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetLine(cmd, args, "DTR", (*serial.SerialPort).SetDTR, func(m serial.ModemState) bool { return m.DTR })
	},
}

func init() {
	rootCmd.AddCommand(dtrCmd)
	addHoldFlag(dtrCmd)
}
