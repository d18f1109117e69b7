// Package sweep drives the exhaustive search over line settings and baud
// rates and ranks the combinations the heuristic accepted.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"baudsniffer/heuristic"
	"baudsniffer/serial"
	"baudsniffer/settings"

	"github.com/google/uuid"
)

// ErrNoDeviceReachable is returned when the very first probe of a run cannot
// reach the port and the engine was told to abort in that case.
var ErrNoDeviceReachable = errors.New("no device reachable")

// Plan is the search space of one run
type Plan struct {
	Port       string
	Tokens     []string // line-setting tokens, outer loop
	BaudRates  []int    // inner loop
	SampleSize int
	Timeout    time.Duration
}

// Combination is an accepted line setting / baud rate pair. Token is the
// caller's token string, kept as the human-facing label.
type Combination struct {
	Token    string `json:"token"`
	BaudRate int    `json:"baud_rate"`
}

func (c Combination) String() string {
	return fmt.Sprintf("%s %d bps", c.Token, c.BaudRate)
}

// ProbeResult is the outcome of one probe after decoding
type ProbeResult struct {
	Request serial.ProbeRequest
	Raw     []byte
	Text    string
}

// Result is what one run produced. It belongs to the caller; the engine keeps
// no state between runs.
type Result struct {
	RunID       string
	Port        string
	Accepted    []Combination // probe order: line setting outer, baud inner
	Skipped     []string      // tokens that failed to decode
	Probes      int
	Failures    int // probes that hit a transport error
	Unreachable bool
	Started     time.Time
	Finished    time.Time
}

// Elapsed returns the wall time the run took
func (r *Result) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Config contains configuration for Engine
type Config struct {
	Prober             serial.Prober
	Checker            *heuristic.Checker // nil = UTF-8
	SettleDelay        time.Duration      // pause between probes
	AbortOnUnreachable bool
	Observer           Observer
	Logger             *slog.Logger
}

// Engine runs sweeps. Probes execute strictly one at a time.
type Engine struct {
	prober             serial.Prober
	checker            *heuristic.Checker
	settleDelay        time.Duration
	abortOnUnreachable bool
	observer           Observer
	logger             *slog.Logger
	newRunID           func() string
}

// NewEngine creates a new Engine
func NewEngine(cfg *Config) *Engine {
	checker := cfg.Checker
	if checker == nil {
		checker = heuristic.UTF8()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		prober:             cfg.Prober,
		checker:            checker,
		settleDelay:        cfg.SettleDelay,
		abortOnUnreachable: cfg.AbortOnUnreachable,
		observer:           cfg.Observer,
		logger:             logger,
		newRunID:           uuid.NewString,
	}
}

// Run probes every combination of plan.Tokens x plan.BaudRates in order and
// collects the ones the heuristic accepts. It never stops early on an
// acceptance. Cancellation is honoured between combinations only; on cancel
// or abort the partial result is returned together with the error.
func (e *Engine) Run(ctx context.Context, plan Plan) (*Result, error) {
	res := &Result{
		RunID:    e.newRunID(),
		Port:     plan.Port,
		Accepted: []Combination{},
		Started:  time.Now(),
	}
	total := plan.ProbeCount()

	e.logger.Info("Starting sweep",
		"device", plan.Port,
		"run", res.RunID,
		"settings", plan.Tokens,
		"rates", plan.BaudRates,
		"probes", total,
		"estimate_min", Minutes(plan.Estimate()))

	e.emit(Event{Type: EventSweepStarted, RunID: res.RunID, Port: plan.Port, Total: total})

	err := e.sweep(ctx, plan, res, total)
	res.Finished = time.Now()

	e.logger.Info("Sweep finished",
		"device", plan.Port,
		"run", res.RunID,
		"probes", res.Probes,
		"accepted", len(res.Accepted),
		"skipped", len(res.Skipped),
		"failures", res.Failures,
		"elapsed_min", Minutes(res.Elapsed()),
		"error", err)

	e.emit(Event{
		Type:  EventSweepFinished,
		RunID: res.RunID,
		Port:  plan.Port,
		Index: total,
		Total: total,
		Err:   err,
	})

	return res, err
}

func (e *Engine) sweep(ctx context.Context, plan Plan, res *Result, total int) error {
	position := 0

	for _, token := range plan.Tokens {
		if settings.Oversized(token) {
			e.logger.Warn("Line setting too long, using first characters",
				"setting", token,
				"used", token[:settings.TokenLength])
		}

		setting, err := settings.Decode(token)
		if err != nil {
			position += len(plan.BaudRates)
			res.Skipped = append(res.Skipped, token)
			e.logger.Warn("Skipping line setting", "setting", token, "error", err)
			e.emit(Event{
				Type:  EventTokenSkipped,
				RunID: res.RunID,
				Port:  plan.Port,
				Token: token,
				Index: position,
				Total: total,
				Err:   err,
			})
			continue
		}

		for _, baudRate := range plan.BaudRates {
			if err := ctx.Err(); err != nil {
				return err
			}

			// Let USB-to-serial adapters settle after the previous close
			if res.Probes > 0 && e.settleDelay > 0 {
				if err := sleep(ctx, e.settleDelay); err != nil {
					return err
				}
			}

			position++
			req := serial.ProbeRequest{
				Setting:    setting,
				BaudRate:   baudRate,
				SampleSize: plan.SampleSize,
				Timeout:    plan.Timeout,
			}

			if err := e.probe(plan.Port, token, req, res, position, total); err != nil {
				return err
			}
		}
	}

	return nil
}

// probe runs one combination. It only returns an error when the run must
// stop.
func (e *Engine) probe(port, token string, req serial.ProbeRequest, res *Result, position, total int) error {
	first := res.Probes == 0

	e.logger.Debug("Trying combination", "device", port, "setting", token, "baud", req.BaudRate)

	raw, err := e.prober.Probe(port, req)
	res.Probes++

	event := Event{
		RunID:    res.RunID,
		Port:     port,
		Token:    token,
		BaudRate: req.BaudRate,
		Index:    position,
		Total:    total,
	}

	if err != nil {
		res.Failures++
		e.logger.Warn("Probe failed", "device", port, "setting", token, "baud", req.BaudRate, "error", err)

		event.Type = EventProbeFailed
		event.Err = err
		e.emit(event)

		if first {
			res.Unreachable = true
			e.logger.Warn("No device reachable on first probe", "device", port, "error", err)
			e.emit(Event{
				Type:  EventUnreachable,
				RunID: res.RunID,
				Port:  port,
				Index: position,
				Total: total,
				Err:   err,
			})
			if e.abortOnUnreachable {
				return fmt.Errorf("%w: %w", ErrNoDeviceReachable, err)
			}
		}
		return nil
	}

	result := ProbeResult{Request: req, Raw: raw, Text: e.checker.Decode(raw)}
	accepted := e.checker.Accept(result.Raw, result.Text)

	e.logger.Debug("Probe result",
		"device", port,
		"setting", token,
		"baud", req.BaudRate,
		"bytes", len(result.Raw),
		"text", result.Text,
		"raw", fmt.Sprintf("%q", result.Raw),
		"accepted", accepted)

	if accepted {
		res.Accepted = append(res.Accepted, Combination{Token: token, BaudRate: req.BaudRate})
		e.logger.Info("Connection probably ok", "device", port, "setting", token, "baud", req.BaudRate)
		event.Type = EventProbeAccepted
	} else {
		event.Type = EventProbeRejected
	}

	event.Raw = result.Raw
	event.Text = result.Text
	event.Accepted = accepted
	e.emit(event)

	return nil
}

func (e *Engine) emit(event Event) {
	if e.observer == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	e.observer(event)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
