package sweep

import (
	"sync"
	"time"
)

// Run states reported by Tracker
const (
	StateIdle     = "idle"
	StateRunning  = "running"
	StateFinished = "finished"
)

// Progress is a point-in-time view of the current or last run
type Progress struct {
	State       string        `json:"state"`
	RunID       string        `json:"run_id,omitempty"`
	Port        string        `json:"port,omitempty"`
	Done        int           `json:"done"`
	Total       int           `json:"total"`
	Current     string        `json:"current,omitempty"` // last probed combination
	Accepted    []Combination `json:"accepted"`
	Skipped     []string      `json:"skipped,omitempty"`
	Failures    int           `json:"failures"`
	Unreachable bool          `json:"unreachable"`
	Started     time.Time     `json:"started,omitempty"`
	Updated     time.Time     `json:"updated,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Percent returns the completed share of the run, 0-100
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// Tracker folds events into a Progress. Observe may be called from the sweep
// goroutine while Snapshot is called from HTTP handlers or publishers.
type Tracker struct {
	mu       sync.RWMutex
	progress Progress
}

// NewTracker creates an idle Tracker
func NewTracker() *Tracker {
	return &Tracker{progress: Progress{State: StateIdle, Accepted: []Combination{}}}
}

// Observe is a sweep Observer
func (t *Tracker) Observe(event Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := &t.progress
	p.Updated = event.Time

	switch event.Type {
	case EventSweepStarted:
		*p = Progress{
			State:    StateRunning,
			RunID:    event.RunID,
			Port:     event.Port,
			Total:    event.Total,
			Accepted: []Combination{},
			Started:  event.Time,
			Updated:  event.Time,
		}
	case EventSweepFinished:
		p.State = StateFinished
		if event.Err != nil {
			p.Error = event.Err.Error()
		}
	case EventTokenSkipped:
		p.Done = event.Index
		p.Skipped = append(p.Skipped, event.Token)
	case EventUnreachable:
		p.Unreachable = true
	case EventProbeAccepted, EventProbeRejected, EventProbeFailed:
		p.Done = event.Index
		p.Current = Combination{Token: event.Token, BaudRate: event.BaudRate}.String()
		switch event.Type {
		case EventProbeAccepted:
			p.Accepted = append(p.Accepted, Combination{Token: event.Token, BaudRate: event.BaudRate})
		case EventProbeFailed:
			p.Failures++
		}
	}
}

// Snapshot returns a copy safe to hand to other goroutines
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := t.progress
	p.Accepted = append([]Combination{}, t.progress.Accepted...)
	p.Skipped = append([]string(nil), t.progress.Skipped...)
	return p
}
