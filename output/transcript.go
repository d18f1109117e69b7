package output

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"baudsniffer/sweep"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Transcript records every probe of a sweep to a rotating file and,
// optionally, mirrors each line to NATS.
type Transcript struct {
	logWriter   io.WriteCloser
	path        string
	natsConn    Publisher
	natsSubject string
	logger      *slog.Logger
	mu          sync.Mutex
}

// TranscriptConfig contains configuration for Transcript
type TranscriptConfig struct {
	Identifier    string // file name stem, e.g. instance id "bench-01"
	LogBasePath   string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogCompress   bool
	NATSConn      Publisher // nil = file only
	NATSSubject   string
	Logger        *slog.Logger
}

// NewTranscript creates a new Transcript
func NewTranscript(cfg *TranscriptConfig) *Transcript {
	// e.g., bench-01 -> /var/log/baudsniffer/bench-01-transcript.log
	logPath := filepath.Join(cfg.LogBasePath, cfg.Identifier+"-transcript.log")

	// Create rotating log writer
	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
	}

	tr := &Transcript{
		logWriter:   logWriter,
		path:        logPath,
		natsConn:    cfg.NATSConn,
		natsSubject: cfg.NATSSubject,
		logger:      cfg.Logger,
	}

	cfg.Logger.Info("Initialized transcript",
		"log_path", logPath,
		"nats_subject", cfg.NATSSubject,
		"nats_enabled", cfg.NATSConn != nil)

	return tr
}

// Path returns the transcript file path
func (tr *Transcript) Path() string {
	return tr.path
}

// Observe is a sweep Observer. Only probe events are written.
func (tr *Transcript) Observe(event sweep.Event) {
	if !event.IsProbe() {
		return
	}
	if err := tr.WriteLine(FormatProbe(event)); err != nil {
		tr.logger.Debug("Transcript write failed", "error", err)
	}
}

// FormatProbe renders one probe as a transcript line:
// [run][token][baud][timestamp] verdict bytes=N text="..." raw="..."
func FormatProbe(event sweep.Event) string {
	var b strings.Builder
	b.WriteString(BuildHeader(event.RunID, event.Token, event.BaudRate, event.Time))

	switch event.Type {
	case sweep.EventProbeAccepted:
		b.WriteString("accepted")
	case sweep.EventProbeRejected:
		b.WriteString("rejected")
	default:
		b.WriteString("failed")
	}

	if event.Err != nil {
		fmt.Fprintf(&b, " error=%s", strconv.Quote(event.Err.Error()))
		return b.String()
	}

	fmt.Fprintf(&b, " bytes=%d text=%s raw=%s",
		len(event.Raw),
		strconv.Quote(event.Text),
		strconv.Quote(string(event.Raw)))
	return b.String()
}

// Write writes data to the transcript file and NATS
func (tr *Transcript) Write(data string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var lastErr error

	// Write to log file (primary output)
	if _, err := io.WriteString(tr.logWriter, data); err != nil {
		tr.logger.Error("Failed to write transcript", "path", tr.path, "error", err)
		lastErr = err
	}

	// Write to NATS (secondary output - continue on failure)
	if tr.natsConn != nil && tr.natsConn.IsConnected() {
		if err := tr.natsConn.Publish(tr.natsSubject, []byte(data)); err != nil {
			tr.logger.Warn("Failed to publish to NATS",
				"subject", tr.natsSubject,
				"error", err)
			// Don't override lastErr if log write succeeded
			if lastErr == nil {
				lastErr = err
			}
		}
	}

	return lastErr
}

// WriteLine writes a single line (adds newline if not present)
func (tr *Transcript) WriteLine(line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	return tr.Write(line)
}

// Close closes the log writer
func (tr *Transcript) Close() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.logWriter != nil {
		return tr.logWriter.Close()
	}

	return nil
}
