package compiler

import "fmt"

// MaskPolicy selects how a bitwise-and mask in a mode condition is reduced
// to a plain value set.
type MaskPolicy string

// Mask policies.
const (
	// MaskPremasked keeps the compared values and assumes the transport layer
	// delivers the field already masked. Values that cannot survive the mask
	// are dropped with a warning.
	MaskPremasked MaskPolicy = "premasked"

	// MaskExpand enumerates every raw value of MaskWidthBits bits whose masked
	// value is in the compared set.
	MaskExpand MaskPolicy = "expand"
)

// Compiler defaults.
const (
	DefaultMaskWidthBits = 16
	maxMaskWidthBits     = 24

	// maxExpandedValues bounds the size of an expanded condition value set.
	maxExpandedValues = 4096
)

// Logger defines the logging interface used by the compiler.
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

// ConditionOptions controls condition compilation.
type ConditionOptions struct {
	MaskPolicy    MaskPolicy
	MaskWidthBits int
}

// Options configures a Compile run. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	Condition ConditionOptions

	// Overrides are the static feature override tables.
	Overrides OverrideTables

	// Bitmasks defines which IO keys explode into virtual subdevices.
	Bitmasks BitmaskTable

	// Logger receives debug output. Nil means discard.
	Logger Logger
}

// DefaultOptions returns options with the built-in tables.
func DefaultOptions() Options {
	return Options{
		Condition: ConditionOptions{
			MaskPolicy:    MaskPremasked,
			MaskWidthBits: DefaultMaskWidthBits,
		},
		Overrides: DefaultOverrideTables(),
		Bitmasks:  DefaultBitmaskTable(),
	}
}

// ParseMaskPolicy converts a configuration string to a MaskPolicy.
func ParseMaskPolicy(s string) (MaskPolicy, error) {
	switch MaskPolicy(s) {
	case MaskPremasked, MaskExpand:
		return MaskPolicy(s), nil
	case "":
		return MaskPremasked, nil
	default:
		return "", fmt.Errorf("unknown mask policy %q (want %s or %s)", s, MaskPremasked, MaskExpand)
	}
}

func (o Options) logger() Logger {
	if o.Logger == nil {
		return noopLogger{}
	}
	return o.Logger
}
