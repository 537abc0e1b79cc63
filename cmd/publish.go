/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/allbin/go-serialctl/internal/publish"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <port>",
	Short: "Bridge a serial port to NATS",
	Long: `Start a port and mirror its event stream to NATS.

Every state change, modem line change and received frame is published as
JSON on <prefix>.<device>.<kind>, for example serial.ttyUSB0.frame. With
--bridge-writes, payloads published on <prefix>.<device>.tx are written to
the port.

Example usage:
  serialctl publish /dev/ttyUSB0 --framing lines
  serialctl publish /dev/ttyUSB0 --nats-url nats://broker:4222 --bridge-writes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, _ := cmd.Flags().GetBool("bridge-writes")

		pub, err := publish.Connect(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer pub.Close()

		m, err := newManager()
		if err != nil {
			return err
		}
		unsubscribe := m.Subscribe(pub.Handler())
		defer unsubscribe()

		lineCfg, err := startPort(m, args[0])
		if err != nil {
			return err
		}
		defer shutdown(m)

		if bridge {
			sub, err := pub.BridgeWrites(m, args[0])
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("publishing", "path", args[0], "config", lineCfg.String(),
			"subject", publish.Subject(cfg.NATS.SubjectPrefix, args[0], ">"))
		fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop")
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	addPortFlags(publishCmd)
	addFramingFlags(publishCmd)

	publishCmd.Flags().String("nats-url", "nats://localhost:4222", "NATS server URL")
	publishCmd.Flags().String("subject-prefix", "serial", "Subject prefix")
	publishCmd.Flags().Bool("bridge-writes", false, "Write payloads from <prefix>.<device>.tx to the port")
}
