package resolver

import "sync/atomic"

// Stats counts resolution outcomes. All counters are atomic; recording
// never affects a result.
type Stats struct {
	calls          atomic.Uint64
	static         atomic.Uint64
	modeMatched    atomic.Uint64
	defaultApplied atomic.Uint64
	baseApplied    atomic.Uint64
	unknown        atomic.Uint64
	noMatch        atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Calls          uint64 `json:"calls"`
	Static         uint64 `json:"static"`
	ModeMatched    uint64 `json:"mode_matched"`
	DefaultApplied uint64 `json:"default_applied"`
	BaseApplied    uint64 `json:"base_applied"`
	Unknown        uint64 `json:"unknown"`
	NoMatch        uint64 `json:"no_match"`
}

// Errors returns the number of calls that produced an error result.
func (s StatsSnapshot) Errors() uint64 {
	return s.Unknown + s.NoMatch
}

// Fallbacks returns the number of calls that produced a warning result.
func (s StatsSnapshot) Fallbacks() uint64 {
	return s.DefaultApplied + s.BaseApplied
}

// Snapshot returns the current counter values. Counters are read one by one,
// so a snapshot taken under load may be off by in-flight calls.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Calls:          s.calls.Load(),
		Static:         s.static.Load(),
		ModeMatched:    s.modeMatched.Load(),
		DefaultApplied: s.defaultApplied.Load(),
		BaseApplied:    s.baseApplied.Load(),
		Unknown:        s.unknown.Load(),
		NoMatch:        s.noMatch.Load(),
	}
}

func (s *Stats) record(o outcome) {
	s.calls.Add(1)
	switch o {
	case outcomeStatic:
		s.static.Add(1)
	case outcomeMode:
		s.modeMatched.Add(1)
	case outcomeDefault:
		s.defaultApplied.Add(1)
	case outcomeBase:
		s.baseApplied.Add(1)
	case outcomeUnknown:
		s.unknown.Add(1)
	case outcomeNoMatch:
		s.noMatch.Add(1)
	}
}
