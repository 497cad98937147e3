package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

// StatsSource provides resolver counters. *resolver.Resolver satisfies it.
type StatsSource interface {
	Stats() resolver.StatsSnapshot
}

// MetricsSource provides bridge counters. *SnapshotBridge satisfies it.
type MetricsSource interface {
	Metrics() Metrics
}

// StatsWriter persists one sample of counters. *influxdb.Client satisfies it.
type StatsWriter interface {
	WriteResolverStats(fingerprint string, counters map[string]uint64, at time.Time)
}

// StatsExporterOptions holds the dependencies of a StatsExporter.
type StatsExporterOptions struct {
	Resolver StatsSource
	Writer   StatsWriter

	// Bridge is optional; its counters are added to each sample when set.
	Bridge MetricsSource

	// Fingerprint tags every sample with the compiled table it belongs to.
	Fingerprint string

	Interval time.Duration
	Logger   Logger
}

// StatsExporter periodically writes resolver counters. Counters are
// cumulative since process start; rates are left to the query side.
type StatsExporter struct {
	source      StatsSource
	bridge      MetricsSource
	writer      StatsWriter
	fingerprint string
	interval    time.Duration
	logger      Logger
	now         func() time.Time
}

// NewStatsExporter creates an exporter. Call Run to start it.
func NewStatsExporter(opts StatsExporterOptions) (*StatsExporter, error) {
	if opts.Resolver == nil {
		return nil, fmt.Errorf("stats source is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("stats writer is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", opts.Interval)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &StatsExporter{
		source:      opts.Resolver,
		bridge:      opts.Bridge,
		writer:      opts.Writer,
		fingerprint: opts.Fingerprint,
		interval:    opts.Interval,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Run writes a sample every interval until ctx is cancelled, then writes a
// final sample so the last counters are not lost.
func (e *StatsExporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("stats exporter started", "interval", e.interval)

	for {
		select {
		case <-ctx.Done():
			e.Export()
			e.logger.Info("stats exporter stopped")
			return nil
		case <-ticker.C:
			e.Export()
		}
	}
}

// Export writes one sample immediately.
func (e *StatsExporter) Export() {
	counters := Counters(e.source.Stats())
	if e.bridge != nil {
		m := e.bridge.Metrics()
		counters["snapshots_received"] = m.Received
		counters["resolutions_published"] = m.Published
		counters["decode_errors"] = m.DecodeErrors
		counters["publish_errors"] = m.PublishErrors
	}

	e.writer.WriteResolverStats(e.fingerprint, counters, e.now())
	e.logger.Debug("stats exported", "calls", counters["calls"])
}

// Counters flattens a stats snapshot into named fields.
func Counters(s resolver.StatsSnapshot) map[string]uint64 {
	return map[string]uint64{
		"calls":           s.Calls,
		"static":          s.Static,
		"mode_matched":    s.ModeMatched,
		"default_applied": s.DefaultApplied,
		"base_applied":    s.BaseApplied,
		"unknown":         s.Unknown,
		"no_match":        s.NoMatch,
		"errors":          s.Errors(),
		"fallbacks":       s.Fallbacks(),
	}
}
