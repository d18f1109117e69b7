package output

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"baudsniffer/sweep"
)

// ProgressPublisher publishes periodic progress heartbeats to NATS while a
// sweep runs, so a long unattended sweep can be followed remotely.
type ProgressPublisher struct {
	conn       Publisher
	subject    string
	instanceID string
	startTime  time.Time
	interval   time.Duration
	logger     *slog.Logger

	progressFunc func() sweep.Progress // Callback to get current progress

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// ProgressMessage is the JSON payload published to NATS
type ProgressMessage struct {
	Version    int            `json:"v"`
	Timestamp  string         `json:"ts"`
	InstanceID string         `json:"instance_id"`
	UptimeSec  int64          `json:"uptime_sec"`
	Percent    float64        `json:"percent"`
	Progress   sweep.Progress `json:"progress"`
}

// ProgressPublisherConfig contains configuration for ProgressPublisher
type ProgressPublisherConfig struct {
	Conn         Publisher
	Subject      string        // e.g., "baudsniffer.progress.bench-01"
	InstanceID   string        // e.g., "bench-01"
	Interval     time.Duration // How often to publish (default 30s)
	Logger       *slog.Logger
	ProgressFunc func() sweep.Progress
}

// NewProgressPublisher creates a new ProgressPublisher
func NewProgressPublisher(cfg *ProgressPublisherConfig) *ProgressPublisher {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &ProgressPublisher{
		conn:         cfg.Conn,
		subject:      cfg.Subject,
		instanceID:   cfg.InstanceID,
		startTime:    time.Now(),
		interval:     interval,
		logger:       cfg.Logger,
		progressFunc: cfg.ProgressFunc,
		stopCh:       make(chan struct{}),
	}
}

// Start begins publishing progress heartbeats
func (p *ProgressPublisher) Start() {
	p.wg.Add(1)
	go p.publishLoop()
	p.logger.Info("Progress publisher started",
		"subject", p.subject,
		"interval", p.interval)
}

// Stop stops the publisher after sending a final heartbeat. Safe to call
// more than once.
func (p *ProgressPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		p.logger.Info("Progress publisher stopped")
	})
}

func (p *ProgressPublisher) publishLoop() {
	defer p.wg.Done()

	// Publish immediately on start
	p.publish()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			// Publish final message before stopping
			p.publish()
			return
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *ProgressPublisher) publish() {
	if p.conn == nil || !p.conn.IsConnected() {
		p.logger.Debug("Skipping progress publish - NATS not connected")
		return
	}

	data, err := json.Marshal(p.message())
	if err != nil {
		p.logger.Error("Failed to marshal progress message", "error", err)
		return
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("Failed to publish progress message", "error", err)
		return
	}

	p.logger.Debug("Published progress heartbeat", "subject", p.subject)
}

func (p *ProgressPublisher) message() ProgressMessage {
	progress := p.progressFunc()
	return ProgressMessage{
		Version:    1,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		InstanceID: p.instanceID,
		UptimeSec:  int64(time.Since(p.startTime).Seconds()),
		Percent:    progress.Percent(),
		Progress:   progress,
	}
}
