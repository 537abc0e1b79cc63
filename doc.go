// Package serial controls POSIX serial ports: discovery, line
// configuration with read-back verification, modem line monitoring and
// threaded transfer.
//
// The package targets Linux (x86_64 and ARM) and talks to the tty driver
// through termios and the TIOCM* ioctls.
//
// # Manager
//
// Most programs only need a Manager. It owns one port, its read, write
// and control threads, and a single event stream:
//
//	m := serial.NewManager(
//	    serial.WithLogger(logger),
//	    serial.WithSplitFunc(serial.SplitTerminator('\n')),
//	)
//	m.Subscribe(func(ev serial.Event) {
//	    switch ev.Kind {
//	    case serial.EventFrame:
//	        fmt.Printf("rx %q\n", ev.Data)
//	    case serial.EventLine:
//	        fmt.Printf("%s=%v\n", ev.Line, ev.On)
//	    case serial.EventState:
//	        fmt.Println("state", ev.State, ev.Err)
//	    }
//	})
//
//	ports, err := m.Scan(ctx)
//	if err := m.OpenPort(ports[0]); err != nil { ... }
//
//	cfg, err := serial.NewConfig(serial.WithBaudRate(115200))
//	if err := m.Start(cfg); err != nil { ... } // ConfigurationRejected names the field
//
//	m.Write([]byte("PING\n"))
//	...
//	m.Stop()      // control, write, read
//	m.ClosePort()
//
// The aggregate State moves through PortClosed, Disconnected, Connecting,
// Ready and Busy; PortError reports open and configuration failures. A
// thread that fails stops the others and leaves the manager Disconnected
// with the cause in Event.Err.
//
// # Port
//
// SerialPort is the low level device. Reads and writes never block beyond
// the configured timeouts; a read with no data returns (0, nil). Waits can
// be interrupted from another goroutine with Interrupt and InterruptWait,
// which is how threads are stopped promptly:
//
//	p := serial.NewSerialPort(logger)
//	if err := p.Open("/dev/ttyS0"); err != nil { ... }
//	defer p.Close() // restores the original attributes
//
//	if err := p.ApplyConfig(cfg); err != nil {
//	    var pe *serial.PortError
//	    if errors.As(err, &pe) && pe.Kind == serial.KindConfigurationRejected {
//	        log.Printf("driver refused %s", pe.Field)
//	    }
//	}
//
// # Discovery
//
// A Scanner lists device nodes matching ttyS*, ttyUSB*, ttyACM* and the
// other common patterns in numeric order, opens each briefly without
// touching its settings and keeps those that report a recognized UART.
// Watch rescans whenever nodes appear or disappear under /dev.
//
// # Errors
//
// Failures are *PortError values carrying an ErrorKind (OpenFailed,
// ConfigurationRejected, IoError, ThreadStartFailed, ThreadStopTimeout).
// errors.Is matches both the kind sentinels and the underlying causes:
//
//	if errors.Is(err, serial.ErrDeviceInUse) { ... }
//	if errors.Is(err, serial.ErrConfigurationRejected) { ... }
//
// # Default Configuration
//
//   - BaudRate: 9600
//   - DataBits: 8
//   - StopBits: 1
//   - Parity: None
//   - FlowControl: None
//   - ReadTimeout, WriteTimeout: 500ms (Infinite waits forever)
//   - Read and write frame sizes: 1024 bytes
//   - Write queue: 10 frames
//
// USB helpers (metadata, device reset) are Linux-only and rely on sysfs
// and the usbreset utility.
package serial
