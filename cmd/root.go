/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/config"
	"github.com/allbin/go-serialctl/internal/logging"
)

var (
	cfgFile   string
	v         *viper.Viper
	cfg       *config.Config
	logger    = slog.New(slog.DiscardHandler)
	logCloser io.Closer
)

// flagKeys maps flag names to configuration keys. A command's flags are
// bound when it runs, so commands sharing a flag name do not fight over
// the binding.
var flagKeys = map[string]string{
	"log-level":            "logging.level",
	"log-format":           "logging.format",
	"log-file":             "logging.file",
	"baud":                 "port.baud_rate",
	"data-bits":            "port.data_bits",
	"stop-bits":            "port.stop_bits",
	"parity":               "port.parity",
	"flow-control":         "port.flow_control",
	"read-timeout":         "port.read_timeout",
	"write-timeout":        "port.write_timeout",
	"inter-byte-delay":     "port.inter_byte_delay",
	"framing":              "port.framing",
	"terminator":           "port.terminator",
	"fixed-size":           "port.fixed_size",
	"flush-on-timeout":     "port.flush_on_timeout",
	"include-unrecognized": "scan.include_unrecognized",
	"nats-url":             "nats.url",
	"subject-prefix":       "nats.subject_prefix",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialctl",
	Short: "Scan, configure and talk to serial ports",
	Long: `serialctl drives POSIX serial ports: it finds ports with a recognized
UART, applies and verifies line settings, watches the modem lines and
moves data through dedicated read and write threads.

Settings come from flags, SERIALCTL_* environment variables and an
optional config file ($HOME/.serialctl.yaml or /etc/serialctl/config.yaml).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if v, err = config.NewViper(cfgFile); err != nil {
			return err
		}
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		if logger, logCloser, err = logging.New(cfg.Logging, os.Stderr); err != nil {
			return err
		}
		logger.Debug("configuration loaded", "file", v.ConfigFileUsed())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.serialctl.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format on stderr: text or json")
	rootCmd.PersistentFlags().String("log-file", "", "Write JSON logs to this file with rotation")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			errs = append(errs, v.BindPFlag(key, f))
		}
	})
	return errors.Join(errs...)
}

// addPortFlags registers the line setting flags on a command that opens
// and starts a port.
func addPortFlags(cmd *cobra.Command) {
	d := serial.DefaultConfig()
	f := cmd.Flags()
	f.IntP("baud", "b", d.BaudRate, "Baud rate")
	f.Int("data-bits", d.DataBits, "Data bits: 5, 6, 7 or 8")
	f.Int("stop-bits", d.StopBits, "Stop bits: 1 or 2")
	f.StringP("parity", "p", d.Parity.String(), "Parity: none, odd, even")
	f.StringP("flow-control", "f", d.FlowControl.String(), "Flow control: none, rtscts, xonxoff")
	f.Duration("read-timeout", d.ReadTimeout, "Read wait bound (negative waits forever)")
	f.Duration("write-timeout", d.WriteTimeout, "Write wait bound (negative waits forever)")
	f.Duration("inter-byte-delay", 0, "Delay between written bytes")
}

// addFramingFlags registers the receive framing flags
func addFramingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("framing", "raw", "Frame received data: raw, lines, terminator, fixed")
	f.Int("terminator", '\n', "Terminator byte value for terminator framing")
	f.Int("fixed-size", 0, "Frame size for fixed framing")
	f.Bool("flush-on-timeout", false, "Deliver a partial frame when the line goes quiet")
}

// newManager builds a manager with the configured framing
func newManager() (*serial.Manager, error) {
	split, err := cfg.Port.SplitFunc()
	if err != nil {
		return nil, err
	}
	scanner := serial.NewScanner(logger)
	scanner.IncludeUnrecognized = cfg.Scan.IncludeUnrecognized
	scanner.Concurrency = cfg.Scan.Concurrency

	return serial.NewManager(
		serial.WithLogger(logger),
		serial.WithScanner(scanner),
		serial.WithSplitFunc(split),
		serial.WithFlushOnTimeout(cfg.Port.FlushOnTimeout),
	), nil
}

// startPort opens path on m and starts its threads with the configured
// line settings. On failure the port is closed again.
func startPort(m *serial.Manager, path string) (serial.Config, error) {
	lineCfg, err := cfg.Port.SerialConfig()
	if err != nil {
		return serial.Config{}, err
	}
	if err := m.OpenPort(describe(path)); err != nil {
		return serial.Config{}, err
	}
	if err := m.Start(lineCfg); err != nil {
		m.ClosePort()
		return serial.Config{}, err
	}
	return lineCfg, nil
}

// shutdown stops the threads and closes the port
func shutdown(m *serial.Manager) error {
	return errors.Join(m.Stop(), m.ClosePort())
}

// openOnly opens path without starting any thread, for one-off line and
// identity queries.
func openOnly(path string) (*serial.SerialPort, error) {
	p := serial.NewSerialPort(logger)
	if err := p.Open(path); err != nil {
		return nil, err
	}
	return p, nil
}

func describe(path string) serial.PortDescriptor {
	return serial.NewScanner(logger).Describe(path)
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func stamp(t time.Time) string {
	return t.Format("15:04:05.000")
}

func printErr(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
