// Package publish bridges a serial.Manager to NATS: events go out on
// <prefix>.<device>.<kind>, and payloads received on <prefix>.<device>.tx
// are written to the port.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	serial "github.com/allbin/go-serialctl"
	"github.com/allbin/go-serialctl/internal/config"
)

// Message is the JSON payload of a published event
type Message struct {
	Time   time.Time `json:"time"`
	Device string    `json:"device"`
	Kind   string    `json:"kind"`
	State  string    `json:"state,omitempty"`
	Error  string    `json:"error,omitempty"`
	Line   string    `json:"line,omitempty"`
	On     *bool     `json:"on,omitempty"`
	Data   []byte    `json:"data,omitempty"`
}

// NewMessage converts a manager event
func NewMessage(ev serial.Event) Message {
	msg := Message{
		Time:   ev.Time,
		Device: ev.Path,
		Kind:   ev.Kind.String(),
	}
	switch ev.Kind {
	case serial.EventState:
		msg.State = ev.State.String()
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	case serial.EventLine:
		on := ev.On
		msg.Line = ev.Line.String()
		msg.On = &on
	case serial.EventFrame:
		msg.Data = ev.Data
	}
	return msg
}

// Subject builds "<prefix>.<device>.<suffix>" with the device node name
// as token, e.g. serial.ttyUSB0.frame
func Subject(prefix, device, suffix string) string {
	base := filepath.Base(device)
	if device == "" || base == "." || base == "/" {
		base = "unknown"
	}
	token := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(base)
	return prefix + "." + token + "." + suffix
}

// Publisher owns the NATS connection
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS with reconnect handling
func Connect(cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS", "url", cfg.URL)

	return &Publisher{conn: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Handler returns a manager event handler that publishes every event.
// Publishing is buffered by the client so the calling thread never blocks
// on the network.
func (p *Publisher) Handler() serial.EventHandler {
	return func(ev serial.Event) {
		payload, err := json.Marshal(NewMessage(ev))
		if err != nil {
			p.logger.Error("failed to encode event", "error", err)
			return
		}
		subject := Subject(p.prefix, ev.Path, ev.Kind.String())
		if err := p.conn.Publish(subject, payload); err != nil {
			p.logger.Warn("publish failed", "subject", subject, "error", err)
		}
	}
}

// BridgeWrites writes every message received on <prefix>.<device>.tx to
// the manager's port.
func (p *Publisher) BridgeWrites(m *serial.Manager, device string) (*nats.Subscription, error) {
	subject := Subject(p.prefix, device, "tx")
	sub, err := p.conn.Subscribe(subject, func(msg *nats.Msg) {
		if _, err := m.Write(msg.Data); err != nil {
			p.logger.Warn("dropped bridged write", "subject", subject, "bytes", len(msg.Data), "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	p.logger.Info("bridging writes", "subject", subject)
	return sub, nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	p.conn = nil
	return err
}
