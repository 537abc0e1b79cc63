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

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
)

var (
	monitorSignals []string
	monitorTimeout time.Duration
)

// monitorCmd represents the monitor command
var monitorCmd = &cobra.Command{
	Use:   "monitor <port>",
	Short: "Monitor modem signal changes",
	Long: `Monitor modem input line changes in real-time.

The port is configured and its control thread reports every change of the
selected lines. State changes of the port itself (for example a fault that
disconnects it) are reported too. Press Ctrl+C to stop.

Examples:
  serialctl monitor /dev/ttyUSB0
  serialctl monitor /dev/ttyUSB0 --signals cts,dsr
  serialctl monitor /dev/ttyUSB0 --signals car --timeout 30s

Available signals: car, dsr, cts, rng`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, err := parseSignalMask(monitorSignals)
		if err != nil {
			return err
		}

		m, err := newManager()
		if err != nil {
			return err
		}

		events := make(chan serial.Event, 64)
		unsubscribe := m.Subscribe(func(ev serial.Event) {
			if ev.Kind == serial.EventFrame || (ev.Kind == serial.EventLine && ev.Line&mask == 0) {
				return
			}
			select {
			case events <- ev:
			default:
				logger.Warn("monitor output is behind, dropping event", "kind", ev.Kind)
			}
		})
		defer unsubscribe()

		if _, err := startPort(m, args[0]); err != nil {
			return err
		}
		defer shutdown(m)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Monitoring signals on %s (signals: %s)\n", args[0], mask)
		fmt.Println("Press Ctrl+C to stop")
		printSignalState("Initial", m.ModemState(), mask)

		var idle <-chan time.Time
		for {
			if monitorTimeout > 0 {
				idle = time.After(monitorTimeout)
			}
			select {
			case <-ctx.Done():
				fmt.Println("\nStopping monitor...")
				return nil
			case <-idle:
				fmt.Printf("[%s] Timeout - no signal changes\n", time.Now().Format("15:04:05"))
			case ev := <-events:
				printEvent(ev)
			}
		}
	},
}

func parseSignalMask(signalNames []string) (serial.Line, error) {
	if len(signalNames) == 0 {
		return serial.AllLines, nil
	}

	var mask serial.Line
	for _, name := range signalNames {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "car", "dcd":
			mask |= serial.LineCAR
		case "dsr":
			mask |= serial.LineDSR
		case "cts":
			mask |= serial.LineCTS
		case "rng", "ri":
			mask |= serial.LineRNG
		default:
			return 0, fmt.Errorf("unknown signal: %s (valid: car, dsr, cts, rng)", name)
		}
	}
	return mask, nil
}

func printSignalState(prefix string, signals serial.ModemState, mask serial.Line) {
	fmt.Printf("[%s] %s state:\n", time.Now().Format("15:04:05"), prefix)
	for _, line := range mask.Lines() {
		fmt.Printf("  %s: %s\n", line, formatSignalState(signals.Get(line)))
	}
	fmt.Println()
}

func printEvent(ev serial.Event) {
	switch ev.Kind {
	case serial.EventLine:
		fmt.Printf("[%s] %s: %s\n", stamp(ev.Time), ev.Line, formatSignalState(ev.On))
	case serial.EventState:
		if ev.Err != nil {
			fmt.Printf("[%s] port %s: %v\n", stamp(ev.Time), ev.State, ev.Err)
		} else {
			fmt.Printf("[%s] port %s\n", stamp(ev.Time), ev.State)
		}
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	addPortFlags(monitorCmd)

	monitorCmd.Flags().StringSliceVarP(&monitorSignals, "signals", "s", []string{"car", "dsr", "cts", "rng"},
		"Signals to monitor (comma-separated: car,dsr,cts,rng)")
	monitorCmd.Flags().DurationVarP(&monitorTimeout, "timeout", "t", 0,
		"Report when no change arrives for this long (0 = never)")
}
