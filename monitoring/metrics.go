package monitoring

import (
	"net/http"
	"sync"

	"baudsniffer/sweep"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "baudsniffer"

// Sweep outcomes used as the "outcome" label
const (
	OutcomeFound = "found"
	OutcomeNone  = "none"
	OutcomeError = "error"
)

// TransportStats returns cumulative transport counters, e.g. from
// serial.StatsProber.Stats
type TransportStats func() (probes, bytesRead, errors int64)

// Metrics exposes sweep activity to Prometheus on a private registry
type Metrics struct {
	registry    *prometheus.Registry
	probes      *prometheus.CounterVec
	skipped     prometheus.Counter
	sampleBytes prometheus.Histogram
	sweeps      *prometheus.CounterVec

	mu          sync.Mutex
	runAccepted int
}

// NewMetrics creates the collectors. tracker and stats may be nil.
func NewMetrics(tracker *sweep.Tracker, stats TransportStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Number of probes by result (accepted, rejected, failed)",
		}, []string{"result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_settings_skipped_total",
			Help:      "Number of line settings skipped because they could not be decoded",
		}),
		sampleBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_sample_bytes",
			Help:      "Bytes captured per completed probe",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Number of finished sweeps by outcome (found, none, error)",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(m.probes, m.skipped, m.sampleBytes, m.sweeps)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(newSweepCollector(tracker, stats))

	return m
}

// Observe is a sweep Observer
func (m *Metrics) Observe(event sweep.Event) {
	switch event.Type {
	case sweep.EventSweepStarted:
		m.mu.Lock()
		m.runAccepted = 0
		m.mu.Unlock()
	case sweep.EventProbeAccepted:
		m.mu.Lock()
		m.runAccepted++
		m.mu.Unlock()
		m.probes.WithLabelValues("accepted").Inc()
		m.sampleBytes.Observe(float64(len(event.Raw)))
	case sweep.EventProbeRejected:
		m.probes.WithLabelValues("rejected").Inc()
		m.sampleBytes.Observe(float64(len(event.Raw)))
	case sweep.EventProbeFailed:
		m.probes.WithLabelValues("failed").Inc()
	case sweep.EventTokenSkipped:
		m.skipped.Inc()
	case sweep.EventSweepFinished:
		m.sweeps.WithLabelValues(m.outcome(event)).Inc()
	}
}

func (m *Metrics) outcome(event sweep.Event) string {
	if event.Err != nil {
		return OutcomeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runAccepted > 0 {
		return OutcomeFound
	}
	return OutcomeNone
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// sweepCollector reads progress and transport counters at scrape time
type sweepCollector struct {
	tracker *sweep.Tracker
	stats   TransportStats

	done           *prometheus.Desc
	total          *prometheus.Desc
	accepted       *prometheus.Desc
	transportOpens *prometheus.Desc
	transportBytes *prometheus.Desc
	transportErrs  *prometheus.Desc
}

func newSweepCollector(tracker *sweep.Tracker, stats TransportStats) *sweepCollector {
	return &sweepCollector{
		tracker: tracker,
		stats:   stats,
		done: prometheus.NewDesc(
			namespace+"_sweep_done_probes",
			"Probes completed in the current or last sweep",
			[]string{"port"},
			nil,
		),
		total: prometheus.NewDesc(
			namespace+"_sweep_planned_probes",
			"Probes planned for the current or last sweep",
			[]string{"port"},
			nil,
		),
		accepted: prometheus.NewDesc(
			namespace+"_sweep_accepted_combinations",
			"Combinations accepted so far in the current or last sweep",
			[]string{"port"},
			nil,
		),
		transportOpens: prometheus.NewDesc(
			namespace+"_transport_probes_total",
			"Probes issued to the serial transport",
			nil,
			nil,
		),
		transportBytes: prometheus.NewDesc(
			namespace+"_transport_read_bytes_total",
			"Bytes read from the serial transport",
			nil,
			nil,
		),
		transportErrs: prometheus.NewDesc(
			namespace+"_transport_errors_total",
			"Serial transport errors",
			nil,
			nil,
		),
	}
}

func (c *sweepCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.done
	ch <- c.total
	ch <- c.accepted
	ch <- c.transportOpens
	ch <- c.transportBytes
	ch <- c.transportErrs
}

func (c *sweepCollector) Collect(ch chan<- prometheus.Metric) {
	if c.tracker != nil {
		p := c.tracker.Snapshot()
		if p.State != sweep.StateIdle {
			ch <- prometheus.MustNewConstMetric(c.done, prometheus.GaugeValue, float64(p.Done), p.Port)
			ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(p.Total), p.Port)
			ch <- prometheus.MustNewConstMetric(c.accepted, prometheus.GaugeValue, float64(len(p.Accepted)), p.Port)
		}
	}

	if c.stats != nil {
		probes, bytesRead, errs := c.stats()
		ch <- prometheus.MustNewConstMetric(c.transportOpens, prometheus.CounterValue, float64(probes))
		ch <- prometheus.MustNewConstMetric(c.transportBytes, prometheus.CounterValue, float64(bytesRead))
		ch <- prometheus.MustNewConstMetric(c.transportErrs, prometheus.CounterValue, float64(errs))
	}
}
