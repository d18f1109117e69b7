package sweep

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"baudsniffer/heuristic"
	"baudsniffer/serial"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProber answers from a table keyed by "token@baud"
type fakeProber struct {
	replies map[string][]byte
	errs    map[string]error
	failAll error
	calls   []serial.ProbeRequest
	onProbe func(n int)
}

func (f *fakeProber) Probe(portName string, req serial.ProbeRequest) ([]byte, error) {
	f.calls = append(f.calls, req)
	if f.onProbe != nil {
		f.onProbe(len(f.calls))
	}
	if f.failAll != nil {
		return nil, f.failAll
	}
	key := fmt.Sprintf("%s@%d", req.Setting.Token, req.BaudRate)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.replies[key], nil
}

func testPlan(tokens []string, rates []int) Plan {
	return Plan{
		Port:       "/dev/ttyS1",
		Tokens:     tokens,
		BaudRates:  rates,
		SampleSize: 10,
		Timeout:    10 * time.Second,
	}
}

func TestRunProbesFullCrossProduct(t *testing.T) {
	prober := &fakeProber{replies: map[string][]byte{
		"8N1@9600":   []byte("HELLO123\r\n"),
		"8N1@300":    []byte("HELLO123\r\n"),
		"7E2@115200": []byte("OK\r\n"),
	}}
	engine := NewEngine(&Config{Prober: prober})

	tokens := []string{"8N1", "7E2", "8E1"}
	rates := []int{300, 9600, 115200}
	res, err := engine.Run(context.Background(), testPlan(tokens, rates))
	require.NoError(t, err)

	assert.Len(t, prober.calls, len(tokens)*len(rates))
	assert.Equal(t, len(tokens)*len(rates), res.Probes)

	want := []Combination{
		{Token: "8N1", BaudRate: 300},
		{Token: "8N1", BaudRate: 9600},
		{Token: "7E2", BaudRate: 115200},
	}
	if diff := cmp.Diff(want, res.Accepted); diff != "" {
		t.Errorf("Accepted mismatch (-want +got):\n%s", diff)
	}
}

func TestRunProbeOrder(t *testing.T) {
	prober := &fakeProber{}
	engine := NewEngine(&Config{Prober: prober})

	_, err := engine.Run(context.Background(), testPlan([]string{"8N1", "7E1"}, []int{9600, 300}))
	require.NoError(t, err)

	var got []string
	for _, req := range prober.calls {
		got = append(got, req.String())
	}
	want := []string{"8N1@9600", "8N1@300", "7E1@9600", "7E1@300"}
	assert.Equal(t, want, got)

	for _, req := range prober.calls {
		assert.Equal(t, 10, req.SampleSize)
		assert.Equal(t, 10*time.Second, req.Timeout)
	}
}

func TestRunSkipsUndecodableTokens(t *testing.T) {
	prober := &fakeProber{replies: map[string][]byte{"8N1@9600": []byte("ready")}}
	var skipped []Event
	engine := NewEngine(&Config{
		Prober: prober,
		Observer: func(e Event) {
			if e.Type == EventTokenSkipped {
				skipped = append(skipped, e)
			}
		},
	})

	res, err := engine.Run(context.Background(), testPlan([]string{"9N1", "8N1", "8N", "8X1"}, []int{300, 9600}))
	require.NoError(t, err)

	assert.Len(t, prober.calls, 2, "only the decodable token is probed")
	assert.Equal(t, []string{"9N1", "8N", "8X1"}, res.Skipped)
	assert.Equal(t, []Combination{{Token: "8N1", BaudRate: 9600}}, res.Accepted)

	require.Len(t, skipped, 3)
	assert.Equal(t, "9N1", skipped[0].Token)
	assert.Equal(t, 2, skipped[0].Index)
	assert.Error(t, skipped[0].Err)
}

func TestRunOversizedTokenKeepsLabel(t *testing.T) {
	prober := &fakeProber{replies: map[string][]byte{"8N1@9600": []byte("ready")}}
	engine := NewEngine(&Config{Prober: prober})

	res, err := engine.Run(context.Background(), testPlan([]string{"8N1-extra"}, []int{9600}))
	require.NoError(t, err)

	require.Len(t, prober.calls, 1)
	assert.Equal(t, "8N1", prober.calls[0].Setting.Token)
	assert.Equal(t, []Combination{{Token: "8N1-extra", BaudRate: 9600}}, res.Accepted)
}

func TestRunAlwaysFailingTransport(t *testing.T) {
	prober := &fakeProber{failAll: &serial.ChannelError{Port: "/dev/ttyS9", Op: "open", Err: errors.New("no such file")}}
	var failed, unreachable int
	engine := NewEngine(&Config{
		Prober: prober,
		Observer: func(e Event) {
			switch e.Type {
			case EventProbeFailed:
				failed++
			case EventUnreachable:
				unreachable++
			}
		},
	})

	tokens := []string{"8N1", "8N2", "7E1"}
	rates := []int{300, 1200, 9600, 115200}
	res, err := engine.Run(context.Background(), testPlan(tokens, rates))
	require.NoError(t, err)

	assert.Len(t, prober.calls, len(tokens)*len(rates))
	assert.Empty(t, res.Accepted)
	assert.NotNil(t, res.Accepted)
	assert.True(t, res.Unreachable)
	assert.Equal(t, len(tokens)*len(rates), res.Failures)
	assert.Equal(t, len(tokens)*len(rates), failed)
	assert.Equal(t, 1, unreachable)
}

func TestRunAbortOnUnreachable(t *testing.T) {
	chErr := &serial.ChannelError{Port: "COM9", Op: "open", Err: errors.New("access denied")}
	prober := &fakeProber{failAll: chErr}
	engine := NewEngine(&Config{Prober: prober, AbortOnUnreachable: true})

	res, err := engine.Run(context.Background(), testPlan([]string{"8N1", "7E1"}, []int{300, 9600}))
	require.ErrorIs(t, err, ErrNoDeviceReachable)
	require.ErrorAs(t, err, &chErr)

	assert.Len(t, prober.calls, 1)
	require.NotNil(t, res)
	assert.True(t, res.Unreachable)
	assert.Empty(t, res.Accepted)
}

func TestRunTransientFailureLaterIsNotUnreachable(t *testing.T) {
	prober := &fakeProber{
		replies: map[string][]byte{"8N1@300": []byte("hi")},
		errs:    map[string]error{"8N1@9600": errors.New("port busy")},
	}
	engine := NewEngine(&Config{Prober: prober, AbortOnUnreachable: true})

	res, err := engine.Run(context.Background(), testPlan([]string{"8N1"}, []int{300, 9600, 19200}))
	require.NoError(t, err)

	assert.False(t, res.Unreachable)
	assert.Equal(t, 1, res.Failures)
	assert.Len(t, prober.calls, 3)
	assert.Equal(t, []Combination{{Token: "8N1", BaudRate: 300}}, res.Accepted)
}

func TestRunCancelStopsBetweenCombinations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &fakeProber{
		replies: map[string][]byte{"8N1@300": []byte("first"), "8N1@1200": []byte("second")},
	}
	prober.onProbe = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	engine := NewEngine(&Config{Prober: prober})

	res, err := engine.Run(ctx, testPlan([]string{"8N1", "7E1"}, []int{300, 1200, 9600}))
	require.ErrorIs(t, err, context.Canceled)

	// The in-flight probe completes, nothing after it starts
	assert.Len(t, prober.calls, 2)
	require.NotNil(t, res)
	assert.Equal(t, []Combination{
		{Token: "8N1", BaudRate: 300},
		{Token: "8N1", BaudRate: 1200},
	}, res.Accepted)
	assert.False(t, res.Finished.IsZero())
}

func TestRunSettleDelayHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := &fakeProber{onProbe: func(int) { cancel() }}
	engine := NewEngine(&Config{Prober: prober, SettleDelay: time.Hour})

	start := time.Now()
	_, err := engine.Run(ctx, testPlan([]string{"8N1"}, []int{300, 9600}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Len(t, prober.calls, 1)
}

func TestRunEventsPerProbe(t *testing.T) {
	prober := &fakeProber{replies: map[string][]byte{
		"8N1@300":  []byte("HELLO\r\n"),
		"8N1@9600": {0x00, 0xFF},
	}}
	var events []Event
	engine := NewEngine(&Config{Prober: prober, Observer: func(e Event) { events = append(events, e) }})

	res, err := engine.Run(context.Background(), testPlan([]string{"8N1"}, []int{300, 9600}))
	require.NoError(t, err)

	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
		assert.Equal(t, res.RunID, e.RunID)
		assert.False(t, e.Time.IsZero())
	}
	assert.Equal(t, []EventType{
		EventSweepStarted,
		EventProbeAccepted,
		EventProbeRejected,
		EventSweepFinished,
	}, types)

	accepted := events[1]
	assert.True(t, accepted.IsProbe())
	assert.True(t, accepted.Accepted)
	assert.Equal(t, "HELLO\r\n", accepted.Text)
	assert.Equal(t, 1, accepted.Index)
	assert.Equal(t, 2, accepted.Total)

	rejected := events[2]
	assert.False(t, rejected.Accepted)
	assert.Equal(t, []byte{0x00, 0xFF}, rejected.Raw)
	assert.False(t, events[0].IsProbe())
}

func TestRunIndependentRuns(t *testing.T) {
	prober := &fakeProber{replies: map[string][]byte{"8N1@9600": []byte("ok")}}
	engine := NewEngine(&Config{Prober: prober})
	plan := testPlan([]string{"8N1"}, []int{9600})

	first, err := engine.Run(context.Background(), plan)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Len(t, first.Accepted, 1)
	assert.Len(t, second.Accepted, 1)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunUsesConfiguredEncoding(t *testing.T) {
	latin1, err := heuristic.New("iso-8859-1")
	require.NoError(t, err)

	prober := &fakeProber{replies: map[string][]byte{"8N1@9600": {'c', 'a', 'f', 0xE9}}}

	utf8Res, err := NewEngine(&Config{Prober: prober}).Run(context.Background(), testPlan([]string{"8N1"}, []int{9600}))
	require.NoError(t, err)
	assert.Empty(t, utf8Res.Accepted)

	latinRes, err := NewEngine(&Config{Prober: prober, Checker: latin1}).Run(context.Background(), testPlan([]string{"8N1"}, []int{9600}))
	require.NoError(t, err)
	assert.Len(t, latinRes.Accepted, 1)
}

func TestObserversFanOut(t *testing.T) {
	var a, b int
	obs := Observers(func(Event) { a++ }, nil, func(Event) { b++ })
	obs(Event{Type: EventSweepStarted})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}
