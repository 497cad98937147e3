package capability

import "errors"

// Domain errors shared by the compiler and the resolver.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(res.Err, capability.ErrUnknownDeviceType) {
//	    // capability unavailable
//	}
var (
	// ErrUnknownDeviceType is returned when a device type is not in the compiled table.
	ErrUnknownDeviceType = errors.New("unknown device type")

	// ErrStructuralValidation is returned when a compiled entry fails validation.
	ErrStructuralValidation = errors.New("capability: invalid entry")

	// ErrNoModeMatch is returned when no mode, default or base configuration applies.
	ErrNoModeMatch = errors.New("no valid configuration for dynamic device")

	// ErrConfigurationCollision is returned when a generated key already exists.
	ErrConfigurationCollision = errors.New("capability: configuration collision")

	// ErrInvalidPlatform is returned when a platform name is not in the vocabulary.
	ErrInvalidPlatform = errors.New("capability: invalid platform")

	// ErrInvalidRW is returned when an IO declares an rw value other than R, W or RW.
	ErrInvalidRW = errors.New("capability: invalid rw")

	// ErrInvalidIOKey is returned when an IO key is empty or malformed.
	ErrInvalidIOKey = errors.New("capability: invalid io key")
)
