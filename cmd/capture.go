/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/tui/components"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <port> <output-file>",
	Short: "Capture serial data to a file",
	Long: `Capture incoming serial data to a file for later parsing.

Frames delivered by the read thread are appended to the output file as
received. With --framing lines (or terminator/fixed) each frame is written
whole; --timestamps prefixes every frame with its receive time and writes
it as hex and ascii instead of raw bytes.

Runs until interrupted (Ctrl+C) or until the port faults.

Example usage:
  serialctl capture /dev/ttyUSB0 data.log
  serialctl capture /dev/ttyUSB0 output.txt --baud 115200 --framing lines
  serialctl capture /dev/ttyUSB0 capture.log --console --timestamps`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showConsole, _ := cmd.Flags().GetBool("console")
		timestamps, _ := cmd.Flags().GetBool("timestamps")
		return runCapture(args[0], args[1], showConsole, timestamps)
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
	addPortFlags(captureCmd)
	addFramingFlags(captureCmd)

	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
	captureCmd.Flags().Bool("timestamps", false, "Write one timestamped hex/ascii line per frame")
}

// frameWriter formats frames for the capture file
func frameWriter(w io.Writer, timestamps bool) func(serial.Event) (int, error) {
	return func(ev serial.Event) (int, error) {
		if !timestamps {
			return w.Write(ev.Data)
		}
		return fmt.Fprintf(w, "%s %s | %s\n",
			ev.Time.Format(time.RFC3339Nano), components.HexString(ev.Data), components.ASCIIString(ev.Data))
	}
}

func runCapture(portPath, outputPath string, showConsole, timestamps bool) error {
	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	m, err := newManager()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Frames arrive on the read thread
	var bytesWritten atomic.Int64
	write := frameWriter(file, timestamps)
	faulted := make(chan error, 1)
	writeFailed := make(chan error, 1)
	unsubscribe := m.Subscribe(func(ev serial.Event) {
		switch {
		case ev.Kind == serial.EventFrame:
			if _, err := write(ev); err != nil {
				select {
				case writeFailed <- err:
				default:
				}
				return
			}
			bytesWritten.Add(int64(len(ev.Data)))
			if showConsole {
				os.Stdout.Write(ev.Data)
			}
		case ev.Kind == serial.EventState && ev.State == serial.StateDisconnected && ev.Err != nil:
			select {
			case faulted <- ev.Err:
			default:
			}
		}
	})
	defer unsubscribe()

	lineCfg, err := startPort(m, portPath)
	if err != nil {
		return err
	}
	defer shutdown(m)

	fmt.Fprintf(os.Stderr, "Capturing data from %s (%s) to %s\n", portPath, lineCfg, outputPath)
	if showConsole {
		fmt.Fprintf(os.Stderr, "Console display enabled\n")
	}
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	startTime := time.Now()
	select {
	case <-ctx.Done():
	case err := <-faulted:
		return fmt.Errorf("read error: %w", err)
	case err := <-writeFailed:
		return fmt.Errorf("write error: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d bytes written in %v\n",
		bytesWritten.Load(), time.Since(startTime).Round(time.Millisecond))
	return nil
}
