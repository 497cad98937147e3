package capability

import (
	"fmt"
	"regexp"
)

// Validation constants.
const (
	maxIOKeyLength = 64
	ioKeyPattern   = `^[A-Za-z][A-Za-z0-9_]*$`
)

var ioKeyRegex = regexp.MustCompile(ioKeyPattern)

// Pre-computed validation sets for O(1) lookups instead of O(n) linear search.
var (
	validPlatforms map[PlatformName]struct{}
	validRW        map[RW]struct{}
)

func init() {
	validPlatforms = make(map[PlatformName]struct{}, len(AllPlatforms()))
	for _, p := range AllPlatforms() {
		validPlatforms[p] = struct{}{}
	}

	validRW = map[RW]struct{}{
		RWRead:      {},
		RWWrite:     {},
		RWReadWrite: {},
	}
}

// ValidatePlatform checks that a platform name belongs to the vocabulary.
func ValidatePlatform(p PlatformName) error {
	if _, ok := validPlatforms[p]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPlatform, p)
}

// ValidateRW checks an rw value. The empty value is accepted and means
// the catalog left it unspecified.
func ValidateRW(rw RW) error {
	if rw == "" {
		return nil
	}
	if _, ok := validRW[rw]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q (want R, W or RW)", ErrInvalidRW, rw)
}

// ValidateIOKey checks that an IO key is usable as a snapshot field name.
func ValidateIOKey(key IOKey) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIOKey)
	}
	if len(key) > maxIOKeyLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidIOKey, key, maxIOKeyLength)
	}
	if !ioKeyRegex.MatchString(string(key)) {
		return fmt.Errorf("%w: %q", ErrInvalidIOKey, key)
	}
	return nil
}
