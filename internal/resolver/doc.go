// Package resolver answers runtime capability queries against a compiled
// table.
//
// Resolve walks a fixed state machine per call:
//
//	Lookup -> Static
//	       -> ModeMatch -> DefaultFallback -> BaseFallback -> NoMatch
//
// The first declared mode whose condition matches the snapshot wins. When no
// mode matches, the default mode is used, then the base platforms; both
// fallbacks are reported as warnings. Failures are returned as error results,
// never as Go errors or panics.
//
// A Resolver holds no mutable state apart from atomic call counters, so one
// instance can serve any number of goroutines.
//
// Facade layers the entity-facing queries (IsSupported, PlatformsFor,
// Capabilities) on top of Resolve.
package resolver
