package catalog

import "errors"

// Domain-specific errors for catalog loading.
var (
	// ErrInvalidCatalog is returned when a catalog document is malformed.
	ErrInvalidCatalog = errors.New("catalog: invalid document")

	// ErrDuplicateDeviceType is returned when a device type is declared twice.
	ErrDuplicateDeviceType = errors.New("catalog: duplicate device type")

	// ErrDuplicateVersion is returned when a base declares the same version key twice.
	ErrDuplicateVersion = errors.New("catalog: duplicate version")
)
