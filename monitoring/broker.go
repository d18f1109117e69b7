package monitoring

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// FilterAll subscribes a client to every event type
const FilterAll = "all"

// clientBuffer is the number of events a slow client may lag behind before
// events are dropped for it
const clientBuffer = 64

// SSEClient is one /api/events subscriber
type SSEClient struct {
	types map[string]bool // nil = every type
	send  chan BroadcastMessage
	done  chan struct{}
}

// newSSEClient parses a filter such as "probe_accepted,unreachable"
func newSSEClient(filter string, buffer int) *SSEClient {
	c := &SSEClient{
		send: make(chan BroadcastMessage, buffer),
		done: make(chan struct{}),
	}

	for _, t := range strings.Split(filter, ",") {
		t = strings.TrimSpace(t)
		if t == "" || t == FilterAll {
			c.types = nil
			return c
		}
		if c.types == nil {
			c.types = make(map[string]bool)
		}
		c.types[t] = true
	}
	return c
}

func (c *SSEClient) wants(eventType string) bool {
	return c.types == nil || c.types[eventType]
}

// SSEBroker fans sweep events out to SSE clients. All client bookkeeping
// happens on the Run goroutine.
type SSEBroker struct {
	clients    map[*SSEClient]struct{}
	register   chan *SSEClient
	unregister chan *SSEClient
	broadcast  chan BroadcastMessage
	mu         sync.RWMutex
	dropped    atomic.Int64
}

// BroadcastMessage contains an encoded event and its type
type BroadcastMessage struct {
	Type string
	Data string
}

// NewSSEBroker creates a new SSE broker
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients:    make(map[*SSEClient]struct{}),
		register:   make(chan *SSEClient),
		unregister: make(chan *SSEClient),
		broadcast:  make(chan BroadcastMessage, 256),
	}
}

// Run serves subscriptions and broadcasts until ctx is done, then closes
// every client
func (b *SSEBroker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client.done)
				delete(b.clients, client)
			}
			b.mu.Unlock()
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = struct{}{}
			b.mu.Unlock()

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				close(client.done)
				delete(b.clients, client)
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				if !client.wants(msg.Type) {
					continue
				}
				select {
				case client.send <- msg:
				default:
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Subscribe registers a client for the given filter. It returns false when
// ctx ends first, e.g. because the server is shutting down.
func (b *SSEBroker) Subscribe(ctx context.Context, filter string) (*SSEClient, bool) {
	client := newSSEClient(filter, clientBuffer)
	select {
	case b.register <- client:
		return client, true
	case <-ctx.Done():
		return nil, false
	}
}

// Unsubscribe removes a client; it is a no-op once ctx is done
func (b *SSEBroker) Unsubscribe(ctx context.Context, client *SSEClient) {
	select {
	case b.unregister <- client:
	case <-ctx.Done():
	}
}

// Broadcast queues an encoded event. The sweep never waits on slow
// clients: when the queue is full the event is dropped.
func (b *SSEBroker) Broadcast(eventType, data string) {
	select {
	case b.broadcast <- BroadcastMessage{Type: eventType, Data: data}:
	default:
		b.dropped.Add(1)
	}
}

// ClientCount returns the number of connected clients
func (b *SSEBroker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Dropped returns how many events were not delivered because a queue was full
func (b *SSEBroker) Dropped() int64 {
	return b.dropped.Load()
}
