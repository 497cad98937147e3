package compiler

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
)

// Exclusion records why a device type was left out of the compiled table.
type Exclusion struct {
	DeviceType string   `json:"device_type"`
	Reasons    []string `json:"reasons"`
}

// Report is the outcome of a Compile run.
type Report struct {
	// Valid lists the device types in the table, in pipeline order.
	Valid []string `json:"valid"`

	// Excluded lists the device types that failed a stage, with reasons.
	Excluded []Exclusion `json:"excluded"`

	// Warnings are catalog-level findings that never exclude anything.
	Warnings []string `json:"warnings"`

	// Layout is the generation mix of the raw catalog.
	Layout catalog.Layout `json:"layout"`
}

func (r *Report) exclude(deviceType string, reasons ...string) {
	r.Excluded = append(r.Excluded, Exclusion{DeviceType: deviceType, Reasons: reasons})
}

// Err returns nil when nothing was excluded, otherwise an error naming every
// excluded device type. Used by strict mode.
func (r *Report) Err() error {
	if len(r.Excluded) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.Excluded))
	for _, e := range r.Excluded {
		parts = append(parts, fmt.Sprintf("%s (%s)", e.DeviceType, strings.Join(e.Reasons, "; ")))
	}
	return fmt.Errorf("%w: %d excluded: %s",
		capability.ErrStructuralValidation, len(r.Excluded), strings.Join(parts, ", "))
}

// Validate checks one compiled entry and returns every problem found.
// An empty result means the entry is valid.
func Validate(e *capability.DeviceConfig) []string {
	var reasons []string
	add := func(format string, args ...any) {
		reasons = append(reasons, fmt.Sprintf(format, args...))
	}

	if e.DeviceType == "" {
		add("device type is required")
	}
	if e.DisplayName == "" {
		add("name is required")
	}
	if !e.Features.Generation.Valid() {
		add("features: unknown generation %d", e.Features.Generation)
	}

	hasPlatforms := len(e.Platforms) > 0
	for _, m := range e.Modes {
		if len(m.Platforms) > 0 {
			hasPlatforms = true
		}
	}
	if !hasPlatforms {
		add("platforms: none declared")
	}

	reasons = append(reasons, validatePlatforms("", e.Platforms)...)
	reasons = append(reasons, validateModes(e)...)
	reasons = append(reasons, validateProvenance(e)...)

	if e.Climate != nil {
		declared := e.DeclaredIOKeys()
		for _, io := range []capability.IOKey{e.Climate.TargetIO, e.Climate.CurrentIO} {
			if _, ok := declared[io]; io != "" && !ok {
				add("climate_config: io %s is not declared", io)
			}
		}
	}
	if e.Fan != nil && e.Fan.SpeedIO != "" {
		if _, ok := e.DeclaredIOKeys()[e.Fan.SpeedIO]; !ok {
			add("fan_config: io %s is not declared", e.Fan.SpeedIO)
		}
	}

	return reasons
}

func validatePlatforms(scope string, platforms capability.PlatformMap) []string {
	var reasons []string
	for _, name := range platforms.Names() {
		if err := capability.ValidatePlatform(name); err != nil {
			reasons = append(reasons, scope+err.Error())
			continue
		}
		ios := platforms[name]
		for _, key := range ios.Keys() {
			if err := capability.ValidateIOKey(key); err != nil {
				reasons = append(reasons, fmt.Sprintf("%splatform %s: %v", scope, name, err))
			}
			if err := capability.ValidateRW(ios[key].RW); err != nil {
				reasons = append(reasons, fmt.Sprintf("%splatform %s: io %s: %v", scope, name, key, err))
			}
		}
	}
	return reasons
}

func validateModes(e *capability.DeviceConfig) []string {
	var reasons []string
	add := func(format string, args ...any) {
		reasons = append(reasons, fmt.Sprintf(format, args...))
	}

	if e.Features.IsDynamic && len(e.Modes) == 0 {
		add("dynamic device has no modes")
	}
	if !e.Features.IsDynamic && len(e.Modes) > 0 {
		add("modes declared on a non-dynamic device")
	}

	declared := e.DeclaredIOKeys()
	seen := make(map[string]struct{}, len(e.Modes))
	for _, m := range e.Modes {
		if m.Name == "" {
			add("mode with empty name")
		}
		if _, dup := seen[m.Name]; dup {
			add("mode %s declared twice", m.Name)
		}
		seen[m.Name] = struct{}{}

		scope := fmt.Sprintf("mode %s: ", m.Name)
		reasons = append(reasons, validatePlatforms(scope, m.Platforms)...)

		if !e.Features.IsDynamic {
			continue
		}
		if m.Condition.IsZero() || len(m.Condition.Allowed) == 0 {
			add("%scondition is empty", scope)
			continue
		}
		if err := capability.ValidateIOKey(m.Condition.Field); err != nil {
			add("%scondition: %v", scope, err)
			continue
		}
		if len(e.SnapshotKeys) > 0 {
			if _, ok := declared[m.Condition.Field]; !ok {
				add("%scondition field %s is not a declared io", scope, m.Condition.Field)
			}
		}
	}

	if e.DefaultMode != "" {
		if _, ok := e.Mode(e.DefaultMode); !ok {
			add("default_mode %s is not in the mode table", e.DefaultMode)
		}
	}
	return reasons
}

func validateProvenance(e *capability.DeviceConfig) []string {
	var reasons []string
	f := e.Features

	if e.IsVariant() {
		if f.VersionKey == "" || e.DeviceType != VariantKey(f.VersionOf, f.VersionKey) {
			reasons = append(reasons, fmt.Sprintf("version provenance %s/%s does not match key", f.VersionOf, f.VersionKey))
		}
		if f.IsVersioned {
			reasons = append(reasons, "version variant is itself marked versioned")
		}
	}

	if e.IsVirtual() {
		if !strings.HasPrefix(e.DeviceType, fmt.Sprintf("%s_%s_", f.VirtualOf, f.VirtualIO)) || f.VirtualBit == "" {
			reasons = append(reasons, fmt.Sprintf("virtual provenance %s/%s/%s does not match key", f.VirtualOf, f.VirtualIO, f.VirtualBit))
		}
		ioCount := 0
		for _, ios := range e.Platforms {
			ioCount += len(ios)
		}
		if len(e.Platforms) != 1 || ioCount != 1 {
			reasons = append(reasons, "virtual subdevice must expose exactly one platform with one io")
		}
		if f.IsDynamic || f.IsVersioned || len(e.Modes) > 0 {
			reasons = append(reasons, "virtual subdevice cannot be dynamic or versioned")
		}
	}

	return reasons
}

// EntryWarnings returns findings on a valid entry that do not exclude it.
// Without snapshot_keys a mode condition may name a field the device
// never declares; the entry still compiles but that mode may never match.
func EntryWarnings(e *capability.DeviceConfig) []string {
	if !e.Features.IsDynamic || len(e.SnapshotKeys) > 0 {
		return nil
	}

	var warnings []string
	declared := e.DeclaredIOKeys()
	for _, m := range e.Modes {
		if _, ok := declared[m.Condition.Field]; !ok {
			warnings = append(warnings, fmt.Sprintf(
				"mode %s: condition field %s is not a declared io and snapshot_keys is absent", m.Name, m.Condition.Field))
		}
	}
	return warnings
}

// CatalogWarnings returns catalog-wide findings over the valid entries.
func CatalogWarnings(entries []*capability.DeviceConfig) []string {
	var dynamic, versioned bool
	for _, e := range entries {
		dynamic = dynamic || e.Features.IsDynamic
		versioned = versioned || e.Features.IsVersioned
	}

	var warnings []string
	if !dynamic {
		warnings = append(warnings, "catalog contains no dynamic device")
	}
	if !versioned {
		warnings = append(warnings, "catalog contains no versioned device")
	}
	return warnings
}
