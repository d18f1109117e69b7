package monitoring

import (
	"context"
	"testing"
	"time"
)

func subscribe(t *testing.T, b *SSEBroker, filter string) *SSEClient {
	t.Helper()
	client, ok := b.Subscribe(context.Background(), filter)
	if !ok {
		t.Fatalf("Subscribe(%q) failed", filter)
	}
	return client
}

func receive(t *testing.T, c *SSEClient) (BroadcastMessage, bool) {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg, true
	case <-time.After(200 * time.Millisecond):
		return BroadcastMessage{}, false
	}
}

func TestSSEClientFilter(t *testing.T) {
	tests := []struct {
		filter string
		event  string
		want   bool
	}{
		{"", "probe_rejected", true},
		{FilterAll, "probe_rejected", true},
		{"probe_accepted", "probe_accepted", true},
		{"probe_accepted", "probe_rejected", false},
		{"probe_accepted, unreachable", "unreachable", true},
		{"probe_accepted,unreachable", "sweep_started", false},
		{"probe_failed,all", "sweep_started", true},
	}

	for _, tt := range tests {
		c := newSSEClient(tt.filter, 1)
		if got := c.wants(tt.event); got != tt.want {
			t.Errorf("filter %q wants(%q) = %v, want %v", tt.filter, tt.event, got, tt.want)
		}
	}
}

func TestSSEBrokerFilters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewSSEBroker()
	go b.Run(ctx)

	all := subscribe(t, b, FilterAll)
	accepted := subscribe(t, b, "probe_accepted")

	b.Broadcast("probe_rejected", `{"n":1}`)
	b.Broadcast("probe_accepted", `{"n":2}`)

	for _, want := range []string{`{"n":1}`, `{"n":2}`} {
		msg, ok := receive(t, all)
		if !ok {
			t.Fatalf("all-client missed %s", want)
		}
		if msg.Data != want {
			t.Errorf("all-client got %s, want %s", msg.Data, want)
		}
	}

	msg, ok := receive(t, accepted)
	if !ok || msg.Type != "probe_accepted" {
		t.Errorf("filtered client got %+v (ok=%v), want probe_accepted", msg, ok)
	}
	if _, ok := receive(t, accepted); ok {
		t.Error("filtered client should not receive other event types")
	}

	if n := b.ClientCount(); n != 2 {
		t.Errorf("ClientCount() = %d, want 2", n)
	}
}

func TestSSEBrokerDropsForSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewSSEBroker()
	go b.Run(ctx)

	slow := newSSEClient(FilterAll, 1)
	b.register <- slow

	b.Broadcast("probe_rejected", "1")
	b.Broadcast("probe_rejected", "2")

	deadline := time.Now().Add(time.Second)
	for b.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := b.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if msg, ok := receive(t, slow); !ok || msg.Data != "1" {
		t.Errorf("slow client got %+v (ok=%v), want first event", msg, ok)
	}
}

func TestSSEBrokerShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewSSEBroker()

	stopped := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(stopped)
	}()

	client := subscribe(t, b, FilterAll)
	cancel()
	<-stopped

	select {
	case <-client.done:
	default:
		t.Error("client done channel should be closed on shutdown")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}

	if _, ok := b.Subscribe(ctx, FilterAll); ok {
		t.Error("Subscribe() after shutdown should fail")
	}
}

func TestSSEBrokerUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewSSEBroker()
	go b.Run(ctx)

	client := subscribe(t, b, FilterAll)
	b.Unsubscribe(ctx, client)

	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("client done channel should be closed on unsubscribe")
	}
}
