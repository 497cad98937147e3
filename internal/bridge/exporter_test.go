package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

type sample struct {
	fingerprint string
	counters    map[string]uint64
	at          time.Time
}

type fakeWriter struct {
	mu      sync.Mutex
	samples []sample
}

func (w *fakeWriter) WriteResolverStats(fingerprint string, counters map[string]uint64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, sample{fingerprint, counters, at})
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}

type fixedStats resolver.StatsSnapshot

func (s fixedStats) Stats() resolver.StatsSnapshot { return resolver.StatsSnapshot(s) }

type fixedMetrics Metrics

func (m fixedMetrics) Metrics() Metrics { return Metrics(m) }

func TestNewStatsExporter_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts StatsExporterOptions
	}{
		{"no source", StatsExporterOptions{Writer: &fakeWriter{}, Interval: time.Second}},
		{"no writer", StatsExporterOptions{Resolver: fixedStats{}, Interval: time.Second}},
		{"zero interval", StatsExporterOptions{Resolver: fixedStats{}, Writer: &fakeWriter{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStatsExporter(tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestStatsExporter_Export(t *testing.T) {
	w := &fakeWriter{}
	e, err := NewStatsExporter(StatsExporterOptions{
		Resolver:    fixedStats{Calls: 10, ModeMatched: 6, DefaultApplied: 2, NoMatch: 1, Unknown: 1},
		Bridge:      fixedMetrics{Received: 11, Published: 10, DecodeErrors: 1},
		Writer:      w,
		Interval:    time.Minute,
		Fingerprint: "3f2a",
	})
	require.NoError(t, err)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return at }

	e.Export()

	require.Len(t, w.samples, 1)
	s := w.samples[0]
	assert.Equal(t, "3f2a", s.fingerprint)
	assert.Equal(t, at, s.at)
	assert.Equal(t, uint64(10), s.counters["calls"])
	assert.Equal(t, uint64(2), s.counters["errors"])
	assert.Equal(t, uint64(2), s.counters["fallbacks"])
	assert.Equal(t, uint64(11), s.counters["snapshots_received"])
	assert.Equal(t, uint64(1), s.counters["decode_errors"])
}

func TestStatsExporter_WithoutBridge(t *testing.T) {
	w := &fakeWriter{}
	e, err := NewStatsExporter(StatsExporterOptions{Resolver: fixedStats{Calls: 1}, Writer: w, Interval: time.Minute})
	require.NoError(t, err)

	e.Export()

	require.Len(t, w.samples, 1)
	assert.NotContains(t, w.samples[0].counters, "snapshots_received")
}

func TestStatsExporter_Run(t *testing.T) {
	w := &fakeWriter{}
	e, err := NewStatsExporter(StatsExporterOptions{
		Resolver: fixedStats{Calls: 3},
		Writer:   w,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return w.count() >= 2 }, time.Second, 5*time.Millisecond)
	before := w.count()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// A final sample is written on shutdown.
	assert.Greater(t, w.count(), before)
}

func TestCounters(t *testing.T) {
	r := resolver.New(nil)
	r.Resolve("NOPE", nil)

	c := Counters(r.Stats())
	assert.Equal(t, uint64(1), c["calls"])
	assert.Equal(t, uint64(1), c["unknown"])
	assert.Equal(t, uint64(1), c["errors"])
	assert.Len(t, c, 9)
}
