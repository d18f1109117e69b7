package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"baudsniffer/config"
	"baudsniffer/heuristic"
	"baudsniffer/monitoring"
	"baudsniffer/output"
	"baudsniffer/serial"
	"baudsniffer/sweep"

	"github.com/spf13/cobra"
)

// errNoConfirmation is returned when stdin closes before the user answers
var errNoConfirmation = errors.New("no confirmation received, use --yes to start without prompting")

// sniffCmd represents the sniff command
var sniffCmd = &cobra.Command{
	Use:   "sniff [port]",
	Short: "Probe a serial port with every line setting and baud rate",
	Long: `Probe a serial port with every combination of line setting and baud rate
and report the combinations that produced legible text.

The port can be given as an argument, with --config or through the
BAUDSNIFFER_SWEEP_PORT environment variable. Examples:

  baudsniffer sniff /dev/ttyUSB0
  baudsniffer sniff COM4 --settings 8N1,7E1 --bauds 9600,115200 --timeout 2s
  baudsniffer sniff --config bench.yaml --monitor --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSniffCmd,
}

func init() {
	rootCmd.AddCommand(sniffCmd)

	f := sniffCmd.Flags()
	f.StringSliceP("settings", "s", nil, "Line settings to try, e.g. 8N1,7E1 (default: all twelve)")
	f.IntSliceP("bauds", "b", nil, "Baud rates to try (default: 110 to 256000)")
	f.Int("sample-size", config.DefaultSampleSize, "Bytes to read per probe")
	f.Duration("timeout", config.DefaultProbeTimeout, "Maximum wait per probe")
	f.Duration("settle", config.DefaultSettleDelay, "Pause between probes")
	f.String("encoding", "utf-8", "Character encoding of the expected text")
	f.Bool("abort-on-unreachable", false, "Stop when the first probe cannot open the port")
	f.String("instance", "default", "Instance id used in NATS subjects and file names")
	f.String("log-dir", "", "Directory for rotating log and transcript files")
	f.Bool("transcript", false, "Write every probe to a transcript file (needs --log-dir)")
	f.Bool("monitor", false, "Serve progress, events and metrics over HTTP")
	f.Int("monitor-port", 8089, "Port for --monitor")
	f.Bool("nats", false, "Publish events and progress to NATS")
	f.String("nats-url", "nats://localhost:4222", "NATS server URL")
	f.Bool("json", false, "Print the report as JSON")
	f.BoolP("yes", "y", false, "Start without asking for confirmation")

	bindings := map[string]string{
		"sweep.line_settings":        "settings",
		"sweep.baud_rates":           "bauds",
		"sweep.sample_size":          "sample-size",
		"sweep.probe_timeout":        "timeout",
		"sweep.settle_delay":         "settle",
		"sweep.encoding":             "encoding",
		"sweep.abort_on_unreachable": "abort-on-unreachable",
		"app.instance_id":            "instance",
		"logging.base_path":          "log-dir",
		"logging.transcript":         "transcript",
		"monitoring.enabled":         "monitor",
		"monitoring.port":            "monitor-port",
		"nats.enabled":               "nats",
		"nats.url":                   "nats-url",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func runSniffCmd(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		v.Set("sweep.port", args[0])
	}

	cfg, err := config.LoadViper(v, configPath)
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	yes, _ := cmd.Flags().GetBool("yes")

	logger, closer := setupLogging(&cfg.Logging, debug, cmd.ErrOrStderr())
	defer closer.Close()

	logger.Info("Starting BaudSniffer",
		"version", appVersion,
		"instance", cfg.App.InstanceID,
		"config", configPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &sniffer{
		cfg:    cfg,
		logger: logger,
		out:    cmd.OutOrStdout(),
		in:     cmd.InOrStdin(),
		json:   jsonOut,
		yes:    yes,
		host:   currentHost(),
	}
	return s.run(ctx)
}

// sniffer wires one sweep to its observers and renders the outcome
type sniffer struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	in     io.Reader
	json   bool
	yes    bool
	host   host
	prober serial.Prober // nil = real serial port
}

func (s *sniffer) run(ctx context.Context) error {
	sc := s.cfg.Sweep

	for _, w := range hostWarnings(sc.Port, s.host) {
		s.logger.Warn("Port check", "device", sc.Port, "warning", w)
		if !s.json {
			fmt.Fprintln(s.out, warnStyle.Render("Attention: "+w))
		}
	}

	checker, err := heuristic.New(sc.Encoding)
	if err != nil {
		return err
	}

	plan := sweep.Plan{
		Port:       sc.Port,
		Tokens:     sc.LineSettings,
		BaudRates:  sc.BaudRates,
		SampleSize: sc.SampleSize,
		Timeout:    sc.ProbeTimeout,
	}

	if !s.json {
		fmt.Fprintf(s.out, "Used serial port: %s\n", sc.Port)
		fmt.Fprintf(s.out, "Estimated time: %.2f min (%d probes)\n\n",
			sweep.Minutes(plan.Estimate()), plan.ProbeCount())
	}

	if !s.yes {
		ok, err := confirm(s.in, s.out, "Start sweep?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(s.out, "Aborted")
			return nil
		}
	}

	prober := s.prober
	if prober == nil {
		prober = serial.NewPortProber(s.logger)
	}
	stats := serial.NewStatsProber(prober)

	tracker := sweep.NewTracker()
	observers := []sweep.Observer{tracker.Observe}
	if !s.json {
		observers = append(observers, consoleObserver(s.out))
	}

	natsConn := s.connectNATS()
	if natsConn != nil {
		defer natsConn.Close()

		events := output.NewEventPublisher(&output.EventPublisherConfig{
			Conn:       natsConn,
			Subject:    output.BuildSubject(s.cfg.NATS.SubjectPrefix, output.SubjectEvents, s.cfg.App.InstanceID),
			InstanceID: s.cfg.App.InstanceID,
			Logger:     s.logger,
		})
		observers = append(observers, events.Observe)

		progress := output.NewProgressPublisher(&output.ProgressPublisherConfig{
			Conn:         natsConn,
			Subject:      output.BuildSubject(s.cfg.NATS.SubjectPrefix, output.SubjectProgress, s.cfg.App.InstanceID),
			InstanceID:   s.cfg.App.InstanceID,
			Interval:     s.cfg.NATS.HeartbeatInterval(),
			Logger:       s.logger,
			ProgressFunc: tracker.Snapshot,
		})
		progress.Start()
		defer progress.Stop()
	}

	var transcriptPath string
	if s.cfg.Logging.Transcript {
		tcfg := &output.TranscriptConfig{
			Identifier:    s.cfg.App.InstanceID,
			LogBasePath:   s.cfg.Logging.BasePath,
			LogMaxSizeMB:  s.cfg.Logging.MaxSizeMB,
			LogMaxBackups: s.cfg.Logging.MaxBackups,
			LogCompress:   s.cfg.Logging.Compress,
			Logger:        s.logger,
		}
		if natsConn != nil {
			tcfg.NATSConn = natsConn
			tcfg.NATSSubject = output.BuildSubject(s.cfg.NATS.SubjectPrefix, output.SubjectTranscript, s.cfg.App.InstanceID)
		}
		transcript := output.NewTranscript(tcfg)
		defer transcript.Close()
		transcriptPath = transcript.Path()
		observers = append(observers, transcript.Observe)
	}

	if s.cfg.Monitoring.Enabled {
		metrics := monitoring.NewMetrics(tracker, stats.Stats)
		server := monitoring.NewServer(&monitoring.ServerConfig{
			Monitoring:     &s.cfg.Monitoring,
			InstanceID:     s.cfg.App.InstanceID,
			Tracker:        tracker,
			Metrics:        metrics,
			TranscriptPath: transcriptPath,
			Logger:         s.logger,
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Stop(context.Background())
		observers = append(observers, metrics.Observe, server.Observe)

		if !s.json {
			fmt.Fprintf(s.out, "Progress: http://localhost:%d/api/progress\n\n", s.cfg.Monitoring.Port)
		}
	}

	engine := sweep.NewEngine(&sweep.Config{
		Prober:             stats,
		Checker:            checker,
		SettleDelay:        sc.SettleDelay,
		AbortOnUnreachable: sc.AbortOnUnreachable,
		Observer:           sweep.Observers(observers...),
		Logger:             s.logger,
	})

	res, runErr := engine.Run(ctx, plan)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if runErr != nil && !interrupted {
		return runErr
	}

	probes, bytesRead, errs := stats.Stats()
	s.logger.Info("Transport statistics",
		"device", sc.Port,
		"probes", probes,
		"bytes", bytesRead,
		"errors", errs)

	summary := newSummary(res, sweep.Rank(res.Accepted), plan, interrupted)
	summary.Transcript = transcriptPath

	if s.json {
		return writeJSON(s.out, summary)
	}
	renderReport(s.out, summary)
	return nil
}

// connectNATS returns nil when NATS is disabled or unreachable; the sweep
// never depends on it.
func (s *sniffer) connectNATS() *output.NATSConnection {
	if !s.cfg.NATS.Enabled {
		return nil
	}

	conn, err := output.NewNATSConnection(&output.NATSOptions{
		URL:           s.cfg.NATS.URL,
		Name:          appName + " " + s.cfg.App.InstanceID,
		MaxReconnects: s.cfg.NATS.MaxReconnects,
		ReconnectWait: s.cfg.NATS.ReconnectWait(),
		Logger:        s.logger,
	})
	if err != nil {
		s.logger.Warn("Continuing without NATS", "error", err)
		return nil
	}
	return conn
}

// confirm asks a yes/no question; an empty answer means yes
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [Y/n] ", question)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return false, errNoConfirmation
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// consoleObserver prints one line per probe, like watching the port by hand
func consoleObserver(w io.Writer) sweep.Observer {
	return func(event sweep.Event) {
		switch event.Type {
		case sweep.EventTokenSkipped:
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Skipping line setting %q: %v", event.Token, event.Err)))
		case sweep.EventUnreachable:
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("No device reachable on %s: %v", event.Port, event.Err)))
		case sweep.EventProbeAccepted, sweep.EventProbeRejected, sweep.EventProbeFailed:
			fmt.Fprintln(w, formatProbeLine(event))
		}
	}
}

func formatProbeLine(event sweep.Event) string {
	width := len(fmt.Sprint(event.Total))
	prefix := fmt.Sprintf("[%*d/%d] %-4s %6d bps  ", width, event.Index, event.Total, event.Token, event.BaudRate)

	switch event.Type {
	case sweep.EventProbeAccepted:
		return prefix + okStyle.Render("Connection probably ok") + fmt.Sprintf("  text=%q", event.Text)
	case sweep.EventProbeRejected:
		return prefix + fmt.Sprintf("rejected  text=%q raw=%q", event.Text, event.Raw)
	default:
		return prefix + errStyle.Render(fmt.Sprintf("failed: %v", event.Err))
	}
}
