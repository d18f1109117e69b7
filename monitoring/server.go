// Package monitoring serves live sweep progress over HTTP: JSON status,
// a Server-Sent Events feed of probe events, the transcript tail and
// Prometheus metrics.
package monitoring

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"baudsniffer/config"
	"baudsniffer/output"
	"baudsniffer/sweep"
)

// ServerConfig contains configuration for Server
type ServerConfig struct {
	Monitoring     *config.MonitoringConfig
	InstanceID     string
	Tracker        *sweep.Tracker
	Metrics        *Metrics
	TranscriptPath string // empty = no transcript feed
	Logger         *slog.Logger
}

// Server provides HTTP monitoring endpoints
type Server struct {
	config         *config.MonitoringConfig
	instanceID     string
	tracker        *sweep.Tracker
	metrics        *Metrics
	transcriptPath string
	logger         *slog.Logger
	server         *http.Server
	broker         *SSEBroker
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewServer creates a new monitoring server and starts its SSE broker
func NewServer(cfg *ServerConfig) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	broker := NewSSEBroker()

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = sweep.NewTracker()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(tracker, nil)
	}

	s := &Server{
		config:         cfg.Monitoring,
		instanceID:     cfg.InstanceID,
		tracker:        tracker,
		metrics:        metrics,
		transcriptPath: cfg.TranscriptPath,
		logger:         cfg.Logger,
		broker:         broker,
		ctx:            ctx,
		cancel:         cancel,
	}

	// Start broker
	go broker.Run(ctx)

	return s
}

// Observe is a sweep Observer that pushes every event to SSE clients
func (s *Server) Observe(event sweep.Event) {
	data, err := json.Marshal(output.FromSweep(event))
	if err != nil {
		s.logger.Debug("Failed to encode event for SSE", "error", err)
		return
	}
	s.broker.Broadcast(string(event.Type), string(data))
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/progress", s.handleProgress)
	mux.HandleFunc("/api/events", s.handleSSE)
	mux.HandleFunc("/api/transcript", s.handleTranscript)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

// Start starts the monitoring HTTP server. The listener is opened before
// returning so a port conflict is reported to the caller.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting monitoring server", "port", s.config.Port)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Monitoring server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the monitoring server
func (s *Server) Stop(ctx context.Context) error {
	// Cancel broker first - this closes SSE client connections
	s.cancel()

	if s.server == nil {
		return nil
	}

	// SSE connections should close quickly once broker signals them
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("Stopping monitoring server")
	return s.server.Shutdown(shutdownCtx)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"instance_id": s.instanceID,
		"sse_clients": s.broker.ClientCount(),
		"sse_dropped": s.broker.Dropped(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// ProgressResponse is the /api/progress payload
type ProgressResponse struct {
	InstanceID string         `json:"instance_id"`
	Percent    float64        `json:"percent"`
	Progress   sweep.Progress `json:"progress"`
}

// handleProgress returns the current sweep progress
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p := s.tracker.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProgressResponse{
		InstanceID: s.instanceID,
		Percent:    p.Percent(),
		Progress:   p,
	})
}

// handleSSE handles Server-Sent Events connections for real-time streaming.
// Query params: type (event type, default all)
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	filter := r.URL.Query().Get("type")
	if filter == "" {
		filter = FilterAll
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// The broker may already be gone on shutdown
	client, ok := s.broker.Subscribe(s.ctx, filter)
	if !ok {
		return
	}
	defer s.broker.Unsubscribe(s.ctx, client)

	// Send initial connection event
	fmt.Fprintf(w, "event: connected\ndata: {\"type\":%q}\n\n", filter)
	flusher.Flush()

	// Start keepalive ticker (every 15s)
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	// Stream events
	for {
		select {
		case <-r.Context().Done():
			// Client disconnected
			return

		case <-client.done:
			// Server shutting down
			return

		case msg := <-client.send:
			// JSON payloads never contain raw newlines
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
			flusher.Flush()

		case <-keepalive.C:
			// Send keepalive comment to prevent connection timeout
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

// handleTranscript returns the last N transcript lines.
// Query params: count (default 50, max 200)
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.transcriptPath == "" {
		http.Error(w, "transcript disabled", http.StatusNotFound)
		return
	}

	// Parse optional count parameter (default 50, max 200)
	count := 50
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 {
			count = n
		}
	}
	if count > 200 {
		count = 200
	}

	lines, err := tailFile(s.transcriptPath, count)
	if err != nil {
		s.logger.Warn("Failed to read transcript", "path", s.transcriptPath, "error", err)
		lines = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"path":  s.transcriptPath,
		"lines": lines,
	})
}

// tailFile returns the last n lines from a file.
// Uses a ring buffer to keep memory bounded regardless of file size.
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Ring buffer to hold last n lines
	ring := make([]string, n)
	idx := 0
	count := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % n
		count++
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if count == 0 {
		return []string{}, nil
	}

	if count < n {
		// File has fewer lines than requested
		return ring[:count], nil
	}

	// Reorder ring buffer: idx points to oldest line
	result := make([]string, n)
	for i := 0; i < n; i++ {
		result[i] = ring[(idx+i)%n]
	}
	return result, nil
}
