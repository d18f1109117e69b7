package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"baudsniffer/sweep"
)

func newTestTranscript(t testing.TB, conn Publisher) *Transcript {
	t.Helper()
	return NewTranscript(&TranscriptConfig{
		Identifier:    "bench-01",
		LogBasePath:   t.TempDir(),
		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		NATSConn:      conn,
		NATSSubject:   "lab.transcript.bench-01",
		Logger:        testLogger(),
	})
}

func TestTranscriptPath(t *testing.T) {
	tr := newTestTranscript(t, nil)
	defer tr.Close()

	if filepath.Base(tr.Path()) != "bench-01-transcript.log" {
		t.Errorf("Path() = %q, want base bench-01-transcript.log", tr.Path())
	}
}

func TestTranscriptObserve(t *testing.T) {
	conn := &fakePublisher{connected: true}
	tr := newTestTranscript(t, conn)

	ts := time.Date(2025, 12, 3, 15, 4, 5, 123000000, time.UTC)
	events := []sweep.Event{
		{Type: sweep.EventSweepStarted, Time: ts},
		{Type: sweep.EventProbeAccepted, Time: ts, RunID: "3f2a9c1e-aaaa", Token: "8N1", BaudRate: 9600, Raw: []byte("HELLO\r\n"), Text: "HELLO\r\n", Accepted: true},
		{Type: sweep.EventProbeRejected, Time: ts, RunID: "3f2a9c1e-aaaa", Token: "8N1", BaudRate: 300, Raw: []byte{0x00, 0xfe}, Text: "\x00\ufffd"},
		{Type: sweep.EventProbeFailed, Time: ts, RunID: "3f2a9c1e-aaaa", Token: "7E1", BaudRate: 110, Err: errors.New("port busy")},
		{Type: sweep.EventSweepFinished, Time: ts},
	}
	for _, e := range events {
		tr.Observe(e)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("Failed to read transcript: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	want := []string{
		`[3f2a9c1e][8N1][9600][2025-12-03 15:04:05.123] accepted bytes=7 text="HELLO\r\n" raw="HELLO\r\n"`,
		`[3f2a9c1e][8N1][300][2025-12-03 15:04:05.123] rejected bytes=2 text="\x00�" raw="\x00\xfe"`,
		`[3f2a9c1e][7E1][110][2025-12-03 15:04:05.123] failed error="port busy"`,
	}
	if len(lines) != len(want) {
		t.Fatalf("transcript has %d lines, want %d:\n%s", len(lines), len(want), content)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}

	if conn.count() != 3 {
		t.Errorf("mirrored %d lines to NATS, want 3", conn.count())
	}
	if conn.subjects[0] != "lab.transcript.bench-01" {
		t.Errorf("subject = %q, want lab.transcript.bench-01", conn.subjects[0])
	}
}

func TestTranscriptNATSFailureReported(t *testing.T) {
	conn := &fakePublisher{connected: true, err: errors.New("nats down")}
	tr := newTestTranscript(t, conn)
	defer tr.Close()

	if err := tr.WriteLine("x"); err == nil {
		t.Error("WriteLine() should report the NATS failure")
	}

	content, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("Failed to read transcript: %v", err)
	}
	if string(content) != "x\n" {
		t.Errorf("file content = %q, want %q", content, "x\n")
	}
}

func TestTranscriptWriteLine(t *testing.T) {
	tr := newTestTranscript(t, nil)

	tests := []string{"no newline", "has newline\n"}
	for _, line := range tests {
		if err := tr.WriteLine(line); err != nil {
			t.Errorf("WriteLine(%q) error = %v", line, err)
		}
	}
	tr.Close()

	content, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("Failed to read transcript: %v", err)
	}
	if string(content) != "no newline\nhas newline\n" {
		t.Errorf("content = %q", content)
	}
}

func BenchmarkTranscriptObserve(b *testing.B) {
	tr := newTestTranscript(b, nil)
	defer tr.Close()

	event := sweep.Event{
		Type:     sweep.EventProbeRejected,
		Time:     time.Now(),
		RunID:    "3f2a9c1e-aaaa",
		Token:    "8N1",
		BaudRate: 9600,
		Raw:      []byte("0123456789"),
		Text:     "0123456789",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Observe(event)
	}
}
