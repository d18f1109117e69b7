package sweep

import "time"

// EventType identifies what happened during a sweep
type EventType string

const (
	EventSweepStarted  EventType = "sweep_started"
	EventSweepFinished EventType = "sweep_finished"
	EventTokenSkipped  EventType = "token_skipped"
	EventProbeAccepted EventType = "probe_accepted"
	EventProbeRejected EventType = "probe_rejected"
	EventProbeFailed   EventType = "probe_failed"
	EventUnreachable   EventType = "unreachable"
)

// Event describes one step of a sweep. Probe events carry the combination,
// the sample and the verdict; lifecycle events carry counts.
type Event struct {
	Time     time.Time
	Type     EventType
	RunID    string
	Port     string
	Token    string
	BaudRate int
	Index    int // 1-based probe number, 0 for non-probe events
	Total    int // planned probe count
	Raw      []byte
	Text     string
	Accepted bool
	Err      error
}

// IsProbe reports whether the event describes a single probe
func (e Event) IsProbe() bool {
	switch e.Type {
	case EventProbeAccepted, EventProbeRejected, EventProbeFailed:
		return true
	}
	return false
}

// Observer is called synchronously for every event of a run. Observers don't
// know about NATS, metrics or files; the caller wires them.
type Observer func(event Event)

// Observers fans one event out to several observers
func Observers(observers ...Observer) Observer {
	return func(event Event) {
		for _, o := range observers {
			if o != nil {
				o(event)
			}
		}
	}
}
