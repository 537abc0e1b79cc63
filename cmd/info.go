/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Display detailed information about a serial port",
	Long: `Display what is known about a serial port: its UART family, the baud
rates the driver accepts, the current line settings and, for USB devices,
the vendor and product metadata from sysfs.

The port is opened without changing its settings; probing the baud rates
restores the original configuration afterwards.

Examples:
  serialctl info /dev/ttyS0
  serialctl info /dev/ttyUSB0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc := describe(args[0])

		port, err := openOnly(desc.Path)
		if err != nil {
			return err
		}
		defer port.Close()

		uart, err := port.UART()
		if err != nil {
			return err
		}
		rates, err := port.AvailableBaudRates()
		if err != nil {
			return err
		}
		modem, modemErr := port.SampleModemLines()
		if modemErr != nil {
			logger.Debug("modem lines unavailable", "path", desc.Path, "error", modemErr)
		}

		fmt.Printf("Port Information: %s\n\n", desc.Path)
		fmt.Printf("  Name:        %s\n", desc.Name())
		fmt.Printf("  Description: %s\n", desc.DisplayName)
		fmt.Printf("  UART:        %s\n", uart)
		if settings, err := port.DeviceSettings(); err == nil {
			fmt.Printf("  Settings:    %s\n", settings)
		}
		if modemErr == nil {
			fmt.Printf("  Lines:       %s\n", modem)
		}
		fmt.Printf("  Baud rates:  %s\n", joinInts(rates))

		if info := desc.USB; info != nil {
			fmt.Println("\nUSB Device Information:")
			fields := []struct{ label, value string }{
				{"Vendor ID", info.VendorID},
				{"Product ID", info.ProductID},
				{"Serial", info.SerialNumber},
				{"Interface", info.InterfaceNumber},
				{"Bus", info.BusNumber},
				{"Device", info.DeviceNumber},
				{"Manufacturer", info.Manufacturer},
				{"Product", info.Product},
			}
			for _, f := range fields {
				if f.value != "" {
					fmt.Printf("  %-13s %s\n", f.label+":", f.value)
				}
			}
		}
		return nil
	},
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
