package serial

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"baudsniffer/settings"
)

// ProbeRequest fully describes one hardware interaction
type ProbeRequest struct {
	Setting    settings.LineSetting
	BaudRate   int
	SampleSize int
	Timeout    time.Duration
}

// Prober opens a port with the request's settings, reads at most
// req.SampleSize bytes within req.Timeout and closes the port again.
// An empty sample is a normal result; err is non-nil only for transport
// failures.
type Prober interface {
	Probe(portName string, req ProbeRequest) ([]byte, error)
}

// PortProber implements Prober on top of go.bug.st/serial
type PortProber struct {
	Open   Opener
	Logger *slog.Logger
}

// NewPortProber creates a PortProber that opens real serial ports
func NewPortProber(logger *slog.Logger) *PortProber {
	return &PortProber{
		Open:   OpenPort,
		Logger: logger,
	}
}

// Probe implements Prober. The port is closed before Probe returns, on every
// path.
func (p *PortProber) Probe(portName string, req ProbeRequest) ([]byte, error) {
	open := p.Open
	if open == nil {
		open = OpenPort
	}

	port, err := open(portName, ModeFor(req))
	if err != nil {
		return nil, &ChannelError{Port: portName, Op: "open", Err: err}
	}
	defer func() {
		if cerr := port.Close(); cerr != nil && p.Logger != nil {
			p.Logger.Debug("Failed to close port", "device", portName, "error", cerr)
		}
	}()

	// Flush anything buffered while the port sat at a previous setting
	if err := port.ResetInputBuffer(); err != nil && p.Logger != nil {
		p.Logger.Debug("Failed to reset input buffer", "device", portName, "error", err)
	}

	return readSample(port, portName, req.SampleSize, req.Timeout)
}

// readSample reads until size bytes arrived or timeout elapsed. Each read
// waits at most for the time left, so the whole sample is bounded by timeout.
func readSample(port Port, portName string, size int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, size)
	total := 0
	deadline := time.Now().Add(timeout)

	for total < size {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		if err := port.SetReadTimeout(remaining); err != nil {
			return buf[:total], &ChannelError{Port: portName, Op: "configure", Err: err}
		}

		n, err := port.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				break
			}
			return buf[:total], &ChannelError{Port: portName, Op: "read", Err: err}
		}

		// (0, nil) means the read timeout expired
		if n == 0 {
			break
		}
	}

	return buf[:total], nil
}

// String is used in log output
func (r ProbeRequest) String() string {
	return fmt.Sprintf("%s@%d", r.Setting, r.BaudRate)
}
