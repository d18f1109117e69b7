package output

import (
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"baudsniffer/sweep"
)

// Event is the structure published to NATS for every sweep event.
// Keep it simple and flat for easy querying.
type Event struct {
	Timestamp  time.Time      `json:"ts"`
	Type       string         `json:"type"`
	InstanceID string         `json:"instance"`
	RunID      string         `json:"run,omitempty"`
	Port       string         `json:"port,omitempty"`  // /dev/ttyUSB0, COM4, etc
	Token      string         `json:"token,omitempty"` // 8N1, 7E2, etc
	BaudRate   int            `json:"baud,omitempty"`
	Index      int            `json:"index,omitempty"`
	Total      int            `json:"total,omitempty"`
	Message    string         `json:"msg,omitempty"`     // Human-readable message
	Details    map[string]any `json:"details,omitempty"` // Optional extra data
}

// FromSweep converts a sweep event into its published form
func FromSweep(event sweep.Event) Event {
	out := Event{
		Timestamp: event.Time,
		Type:      string(event.Type),
		RunID:     event.RunID,
		Port:      event.Port,
		Token:     event.Token,
		BaudRate:  event.BaudRate,
		Index:     event.Index,
		Total:     event.Total,
	}

	switch event.Type {
	case sweep.EventSweepStarted:
		out.Message = "Sweep started"
	case sweep.EventSweepFinished:
		out.Message = "Sweep finished"
	case sweep.EventTokenSkipped:
		out.Message = "Line setting skipped"
	case sweep.EventUnreachable:
		out.Message = "No device reachable"
	case sweep.EventProbeAccepted:
		out.Message = "Connection probably ok"
	}

	if event.IsProbe() && event.Type != sweep.EventProbeFailed {
		out.Details = map[string]any{
			"bytes":    len(event.Raw),
			"text":     event.Text,
			"raw_hex":  hex.EncodeToString(event.Raw),
			"accepted": event.Accepted,
		}
	}
	if event.Err != nil {
		if out.Details == nil {
			out.Details = map[string]any{}
		}
		out.Details["error"] = event.Err.Error()
	}

	return out
}

// EventPublisher publishes sweep events to NATS.
// It's designed to be optional - if nil, nothing breaks.
type EventPublisher struct {
	conn       Publisher
	subject    string
	instanceID string
	logger     *slog.Logger
}

// EventPublisherConfig contains configuration for EventPublisher
type EventPublisherConfig struct {
	Conn       Publisher
	Subject    string // e.g., "baudsniffer.events.bench-01"
	InstanceID string
	Logger     *slog.Logger
}

// NewEventPublisher creates a new EventPublisher.
// Returns nil if conn is nil (disabled mode).
func NewEventPublisher(cfg *EventPublisherConfig) *EventPublisher {
	if cfg == nil || cfg.Conn == nil {
		return nil
	}

	return &EventPublisher{
		conn:       cfg.Conn,
		subject:    cfg.Subject,
		instanceID: cfg.InstanceID,
		logger:     cfg.Logger,
	}
}

// Observe is a sweep Observer. Safe to call on nil receiver.
func (e *EventPublisher) Observe(event sweep.Event) {
	if e == nil {
		return
	}
	e.Publish(FromSweep(event))
}

// Publish sends an event to NATS. Safe to call on nil receiver.
func (e *EventPublisher) Publish(event Event) {
	if e == nil || e.conn == nil || !e.conn.IsConnected() {
		return
	}

	// Fill in defaults
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.InstanceID == "" {
		event.InstanceID = e.instanceID
	}

	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}

	if err := e.conn.Publish(e.subject, data); err != nil {
		e.logger.Warn("Failed to publish event", "error", err, "type", event.Type)
		return
	}

	e.logger.Debug("Published event",
		"type", event.Type,
		"setting", event.Token,
		"baud", event.BaudRate)
}
