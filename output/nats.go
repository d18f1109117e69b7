package output

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when publishing without a live NATS connection
var ErrNotConnected = errors.New("nats not connected")

// Publisher is the part of a NATS connection the publishers need.
// *nats.Conn and *NATSConnection both satisfy it.
type Publisher interface {
	Publish(subject string, data []byte) error
	IsConnected() bool
}

// NATSConnection manages NATS connection
type NATSConnection struct {
	conn   *nats.Conn
	url    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NATSOptions contains configuration for NewNATSConnection
type NATSOptions struct {
	URL           string
	Name          string // client name shown by the server, e.g. "BaudSniffer bench-01"
	MaxReconnects int    // -1 = unlimited
	ReconnectWait time.Duration
	Logger        *slog.Logger
}

// NewNATSConnection creates a new NATS connection
func NewNATSConnection(opts *NATSOptions) (*NATSConnection, error) {
	logger := opts.Logger

	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
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
	if opts.ReconnectWait > 0 {
		natsOpts = append(natsOpts, nats.ReconnectWait(opts.ReconnectWait))
	}

	conn, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", opts.URL, err)
	}

	logger.Info("Connected to NATS", "url", opts.URL)

	return &NATSConnection{
		conn:   conn,
		url:    opts.URL,
		logger: logger,
	}, nil
}

// Publish sends data on subject
func (nc *NATSConnection) Publish(subject string, data []byte) error {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.conn == nil {
		return ErrNotConnected
	}
	return nc.conn.Publish(subject, data)
}

// Flush waits for buffered messages to reach the server
func (nc *NATSConnection) Flush(timeout time.Duration) error {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.conn == nil {
		return ErrNotConnected
	}
	return nc.conn.FlushTimeout(timeout)
}

// Close drains and closes the NATS connection
func (nc *NATSConnection) Close() {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.conn != nil {
		if err := nc.conn.Drain(); err != nil {
			nc.conn.Close()
		}
		nc.conn = nil
		nc.logger.Info("Closed NATS connection")
	}
}

// IsConnected returns true if connected to NATS
func (nc *NATSConnection) IsConnected() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.conn != nil && nc.conn.IsConnected()
}

// Subject kinds published under the configured prefix
const (
	SubjectEvents     = "events"
	SubjectProgress   = "progress"
	SubjectTranscript = "transcript"
)

// BuildSubject constructs a subject in the format {prefix}.{kind}.{instance}
func BuildSubject(subjectPrefix, kind, instanceID string) string {
	return subjectPrefix + "." + kind + "." + instanceID
}
