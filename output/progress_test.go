package output

import (
	"encoding/json"
	"testing"
	"time"

	"baudsniffer/sweep"
)

func TestProgressPublisherDefaults(t *testing.T) {
	p := NewProgressPublisher(&ProgressPublisherConfig{
		Logger:       testLogger(),
		ProgressFunc: func() sweep.Progress { return sweep.Progress{} },
	})
	if p.interval != 30*time.Second {
		t.Errorf("interval = %v, want 30s", p.interval)
	}
}

func TestProgressPublisherStartStop(t *testing.T) {
	conn := &fakePublisher{connected: true}
	p := NewProgressPublisher(&ProgressPublisherConfig{
		Conn:       conn,
		Subject:    "lab.progress.bench-01",
		InstanceID: "bench-01",
		Interval:   time.Hour,
		Logger:     testLogger(),
		ProgressFunc: func() sweep.Progress {
			return sweep.Progress{State: sweep.StateRunning, Done: 45, Total: 180}
		},
	})

	p.Start()
	p.Stop()
	p.Stop()

	// One on start, one final on stop
	if conn.count() != 2 {
		t.Fatalf("published %d messages, want 2", conn.count())
	}

	var msg ProgressMessage
	if err := json.Unmarshal(conn.messages[1], &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Version != 1 {
		t.Errorf("Version = %d, want 1", msg.Version)
	}
	if msg.InstanceID != "bench-01" {
		t.Errorf("InstanceID = %q, want bench-01", msg.InstanceID)
	}
	if msg.Percent != 25 {
		t.Errorf("Percent = %v, want 25", msg.Percent)
	}
	if msg.Progress.Total != 180 {
		t.Errorf("Progress.Total = %d, want 180", msg.Progress.Total)
	}
}

func TestProgressPublisherDisconnected(t *testing.T) {
	conn := &fakePublisher{connected: false}
	called := false
	p := NewProgressPublisher(&ProgressPublisherConfig{
		Conn:     conn,
		Interval: time.Hour,
		Logger:   testLogger(),
		ProgressFunc: func() sweep.Progress {
			called = true
			return sweep.Progress{}
		},
	})

	p.Start()
	p.Stop()

	if conn.count() != 0 {
		t.Errorf("published %d messages while disconnected, want 0", conn.count())
	}
	if called {
		t.Error("progress should not be collected while disconnected")
	}
}
