package compiler

import (
	"fmt"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
)

// VersionSource supplies the version table. *catalog.Catalog satisfies it.
type VersionSource interface {
	Versions(base string) []catalog.Version
	VersionBases() []string
}

// VariantKey returns the device type of a version variant.
func VariantKey(base, version string) string {
	return base + "_" + version
}

// ExpandVersions materialises one entry per version of every versioned base.
// taken holds every device type already claimed; new keys are added to it.
// A collision or a bad platform replacement fails that variant only.
func ExpandVersions(bases []*capability.DeviceConfig, src VersionSource, taken map[string]struct{}) ([]*capability.DeviceConfig, []Exclusion, []string) {
	var (
		variants []*capability.DeviceConfig
		failed   []Exclusion
		warnings []string
	)

	byType := make(map[string]*capability.DeviceConfig, len(bases))
	for _, b := range bases {
		byType[b.DeviceType] = b
	}

	for _, base := range bases {
		if !base.Features.IsVersioned {
			continue
		}
		versions := src.Versions(base.DeviceType)
		if len(versions) == 0 {
			warnings = append(warnings, fmt.Sprintf("versioned device %s has no version table entries", base.DeviceType))
			continue
		}

		for _, v := range versions {
			key := VariantKey(base.DeviceType, v.Key)
			if _, exists := taken[key]; exists {
				failed = append(failed, Exclusion{
					DeviceType: key,
					Reasons:    []string{fmt.Sprintf("%v: version %s of %s", capability.ErrConfigurationCollision, v.Key, base.DeviceType)},
				})
				continue
			}

			variant, err := materialiseVersion(base, key, v)
			if err != nil {
				failed = append(failed, Exclusion{DeviceType: key, Reasons: []string{err.Error()}})
				continue
			}
			taken[key] = struct{}{}
			variants = append(variants, variant)
		}
	}

	for _, baseType := range src.VersionBases() {
		base, ok := byType[baseType]
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("version table entries for %s ignored: no such compiled device", baseType))
		case !base.Features.IsVersioned:
			warnings = append(warnings, fmt.Sprintf("version table entries for %s ignored: device is not versioned", baseType))
		}
	}

	return variants, failed, warnings
}

func materialiseVersion(base *capability.DeviceConfig, key string, v catalog.Version) (*capability.DeviceConfig, error) {
	variant := base.DeepCopy()
	variant.DeviceType = key
	variant.DisplayName = fmt.Sprintf("%s (%s)", base.DisplayName, v.Key)

	variant.Features = variant.Features.Apply(v.Features)
	variant.Features.IsVersioned = false
	variant.Features.VersionOf = base.DeviceType
	variant.Features.VersionKey = v.Key

	if v.Platforms != nil {
		platforms, err := NormalizePlatforms(v.Platforms)
		if err != nil {
			return nil, fmt.Errorf("version %s platforms: %w", v.Key, err)
		}
		variant.Platforms = platforms
	}

	return variant, nil
}
