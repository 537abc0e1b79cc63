/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <port|--serial serial>",
	Short: "Reset a USB serial device",
	Long: `Perform a USB-level reset on a serial device. This can recover devices
that are hung or unresponsive without physically unplugging them.

The device will re-enumerate after reset, which may cause the port path
to change (e.g., /dev/ttyUSB0 might become /dev/ttyUSB1). Use serial
numbers to reliably identify devices after reset.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo serialctl reset /dev/ttyUSB0          # Reset by port path
  sudo serialctl reset --serial NC7ILXW1     # Reset by serial number`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag == "" && len(args) != 1 {
			return errors.New("requires either a port path argument or --serial flag")
		}
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !serial.IsUSBResetAvailable() {
			return fmt.Errorf("%w: install with: sudo apt-get install usbutils", serial.ErrUSBResetNotAvailable)
		}

		serialFlag, _ := cmd.Flags().GetString("serial")
		settle, _ := cmd.Flags().GetDuration("settle")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		var portPath string
		if serialFlag != "" {
			var err error
			if portPath, err = findBySerial(ctx, serialFlag); err != nil {
				return err
			}
			fmt.Printf("Resetting USB device with serial %s (%s)\n", serialFlag, portPath)
		} else {
			portPath = args[0]
			fmt.Printf("Resetting USB device: %s\n", portPath)
		}

		if err := serial.ResetUSBDevice(ctx, portPath, settle); err != nil {
			if errors.Is(err, serial.ErrUSBInfoNotAvailable) {
				return fmt.Errorf("%s does not appear to be a USB device: %w", portPath, err)
			}
			return err
		}

		fmt.Println("USB device reset successfully")
		fmt.Println("Device will re-enumerate (port path may change)")
		fmt.Println("\nUse 'serialctl scan --include-unrecognized' to see the updated device list")
		return nil
	},
}

// findBySerial scans every candidate, recognized UART or not, for the
// USB serial number.
func findBySerial(ctx context.Context, serialNumber string) (string, error) {
	scanner := serial.NewScanner(logger)
	scanner.IncludeUnrecognized = true
	ports, err := scanner.Scan(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.USB != nil && p.USB.SerialNumber == serialNumber {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("%w: no device with serial number %q", serial.ErrUSBInfoNotAvailable, serialNumber)
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by serial number")
	resetCmd.Flags().Duration("settle", 2*time.Second, "Time to wait for the device to re-enumerate")
	resetCmd.Flags().Duration("timeout", 30*time.Second, "Overall timeout")
}
