package resolver

import (
	"fmt"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/compiler"
)

// outcome is the terminal state a resolution reached.
type outcome int

const (
	outcomeStatic outcome = iota
	outcomeMode
	outcomeDefault
	outcomeBase
	outcomeUnknown
	outcomeNoMatch
)

// Logger defines the logging interface used by the Resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver selects the active configuration of a device from a live
// snapshot.
//
// Thread Safety:
//   - The table is immutable and read without locking.
//   - Statistics are atomic counters.
//   - All methods are safe for concurrent use.
type Resolver struct {
	table  *compiler.Table
	stats  Stats
	logger Logger
}

// New creates a resolver over a compiled table. A nil table resolves every
// device type as unknown.
func New(table *compiler.Table) *Resolver {
	if table == nil {
		table, _ = compiler.NewTable() //nolint:errcheck // Empty table cannot fail
	}
	return &Resolver{table: table, logger: noopLogger{}}
}

// SetLogger sets the logger for the resolver. Call before sharing the
// resolver between goroutines.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Table returns the compiled table the resolver reads.
func (r *Resolver) Table() *compiler.Table {
	return r.table
}

// Stats returns a snapshot of the resolution counters.
func (r *Resolver) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// Resolve returns the active platforms of deviceType for the given snapshot.
// The returned platforms are a deep copy owned by the caller. A nil snapshot
// is treated as empty.
func (r *Resolver) Resolve(deviceType string, snapshot capability.IOSnapshot) capability.Result {
	res, o := r.resolve(deviceType, snapshot)
	r.stats.record(o)
	return res
}

func (r *Resolver) resolve(deviceType string, snapshot capability.IOSnapshot) (capability.Result, outcome) {
	entry, ok := r.table.Lookup(deviceType)
	if !ok {
		return capability.Failure(fmt.Errorf("%w: %s", capability.ErrUnknownDeviceType, deviceType)), outcomeUnknown
	}

	if !entry.Features.IsDynamic {
		return capability.Success(entry.Platforms.DeepCopy(), ""), outcomeStatic
	}

	for _, m := range entry.Modes {
		if m.Condition.Matches(snapshot) {
			return capability.Success(m.Platforms.DeepCopy(), m.Name), outcomeMode
		}
	}

	if entry.DefaultMode != "" {
		if m, ok := entry.Mode(entry.DefaultMode); ok {
			r.logger.Debug("no mode matched, using default",
				"device_type", deviceType, "mode", m.Name)
			return capability.Warning(m.Platforms.DeepCopy(), m.Name, capability.ReasonDefaultMode), outcomeDefault
		}
	}

	if len(entry.Platforms) > 0 {
		r.logger.Debug("no mode matched, using base configuration", "device_type", deviceType)
		return capability.Warning(entry.Platforms.DeepCopy(), "", capability.ReasonBaseConfig), outcomeBase
	}

	r.logger.Debug("no configuration for dynamic device", "device_type", deviceType)
	return capability.Failure(fmt.Errorf("%w: %s", capability.ErrNoModeMatch, deviceType)), outcomeNoMatch
}
