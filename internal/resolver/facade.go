package resolver

import (
	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// Facade is the query surface consumed by the entity layer. It holds only a
// reference to the resolver and adds no state.
type Facade struct {
	resolver *Resolver
}

// NewFacade creates a facade over r.
func NewFacade(r *Resolver) *Facade {
	return &Facade{resolver: r}
}

// Resolve is Resolver.Resolve.
func (f *Facade) Resolve(deviceType string, snapshot capability.IOSnapshot) capability.Result {
	return f.resolver.Resolve(deviceType, snapshot)
}

// IsSupported reports whether deviceType resolves to anything other than
// an unknown-type error. The probe resolution is not counted in Stats.
func (f *Facade) IsSupported(deviceType string) bool {
	_, o := f.resolver.resolve(deviceType, nil)
	return o != outcomeUnknown
}

// PlatformsFor returns the IO keys of each active platform, sorted.
// Returns nil when resolution fails.
func (f *Facade) PlatformsFor(deviceType string, snapshot capability.IOSnapshot) map[capability.PlatformName][]capability.IOKey {
	res := f.resolver.Resolve(deviceType, snapshot)
	if !res.OK() {
		return nil
	}
	return res.Platforms.IOKeys()
}

// Capabilities lists every platform the device type can expose, across the
// base configuration and all modes, followed by its feature flags.
// Returns nil for unknown device types. It reads the compiled entry because
// a single resolution only ever reveals one mode.
func (f *Facade) Capabilities(deviceType string) []string {
	entry, ok := f.resolver.Table().Lookup(deviceType)
	if !ok {
		return nil
	}

	names := entry.AllPlatformNames()
	flags := entry.Features.Flags()
	out := make([]string, 0, len(names)+len(flags))
	for _, name := range names {
		out = append(out, string(name))
	}
	return append(out, flags...)
}
