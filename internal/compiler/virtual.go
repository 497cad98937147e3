package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// BitDefinition describes one bit or bit field of a bitmask IO.
// Bit selects a single bit; otherwise Shift and Width select a field.
type BitDefinition struct {
	Name        string                  `mapstructure:"name"`
	Bit         *int                    `mapstructure:"bit"`
	Shift       int                     `mapstructure:"shift"`
	Width       int                     `mapstructure:"width"`
	Platform    capability.PlatformName `mapstructure:"platform"`
	Description string                  `mapstructure:"description"`
	DeviceClass string                  `mapstructure:"device_class"`
}

// conversion returns how the transport value is reduced to this bit or field.
func (d BitDefinition) conversion() string {
	if d.Bit != nil {
		return fmt.Sprintf("bit_%d", *d.Bit)
	}
	return fmt.Sprintf("field_%d_%d", d.Shift, d.Width)
}

func (d BitDefinition) dataType() string {
	if d.Bit != nil {
		return "bit"
	}
	return "bit_field"
}

// BitmaskRule maps an IO identifier to its bit definitions.
type BitmaskRule struct {
	Identifier capability.IOKey
	// Prefix matches any IO key starting with Identifier.
	Prefix bool
	Bits   []BitDefinition
}

// BitmaskTable is the closed list of bitmask-bearing identifiers.
type BitmaskTable []BitmaskRule

// Match returns the rule for an IO key. Exact rules win over prefix rules,
// and longer prefixes win over shorter ones.
func (t BitmaskTable) Match(key capability.IOKey) (BitmaskRule, bool) {
	var (
		best  BitmaskRule
		found bool
	)
	for _, r := range t {
		if !r.Prefix {
			if r.Identifier == key {
				return r, true
			}
			continue
		}
		if strings.HasPrefix(string(key), string(r.Identifier)) &&
			(!found || len(r.Identifier) > len(best.Identifier)) {
			best, found = r, true
		}
	}
	return best, found
}

func bit(n int) *int { return &n }

// DefaultBitmaskTable returns the built-in bitmask definitions.
func DefaultBitmaskTable() BitmaskTable {
	problem := func(name string, n int, class string) BitDefinition {
		return BitDefinition{
			Name:        name,
			Bit:         bit(n),
			Platform:    capability.PlatformBinarySensor,
			Description: strings.ReplaceAll(name, "_", " "),
			DeviceClass: class,
		}
	}

	return BitmaskTable{
		{
			Identifier: "ALM",
			Bits: []BitDefinition{
				problem("tamper", 0, "tamper"),
				problem("low_battery", 1, "battery"),
				problem("over_temperature", 2, "heat"),
				problem("sensor_fault", 3, "problem"),
				problem("water_leak", 4, "moisture"),
				problem("smoke", 5, "smoke"),
				problem("gas", 6, "gas"),
				problem("door_forced", 7, "safety"),
				problem("offline", 8, "connectivity"),
				problem("high_humidity", 9, "moisture"),
			},
		},
		{
			Identifier: "EVTLO",
			Prefix:     true,
			Bits: []BitDefinition{
				{Name: "user", Shift: 0, Width: 12, Platform: capability.PlatformSensor, Description: "last user"},
				{Name: "method", Shift: 12, Width: 4, Platform: capability.PlatformSensor, Description: "unlock method"},
				{Name: "unlocked", Bit: bit(16), Platform: capability.PlatformBinarySensor, Description: "unlocked", DeviceClass: "lock"},
			},
		},
		{
			Identifier: "EVTALM",
			Prefix:     true,
			Bits: []BitDefinition{
				problem("tamper", 0, "tamper"),
				problem("forced_open", 1, "safety"),
				problem("low_battery", 2, "battery"),
				problem("jammed", 3, "problem"),
				problem("wrong_code", 4, "safety"),
			},
		},
	}
}

// VirtualKey returns the device type of a virtual subdevice.
func VirtualKey(deviceType string, io capability.IOKey, name string) string {
	return fmt.Sprintf("%s_%s_%s", deviceType, io, name)
}

// ExpandVirtual emits one single-platform entry per bit definition of every
// bitmask IO of every entry. inline holds per-device bit definitions that
// take precedence over the table for their IO key. taken holds every device
// type already claimed; new keys are added to it.
func ExpandVirtual(
	entries []*capability.DeviceConfig,
	table BitmaskTable,
	inline map[string]map[capability.IOKey][]BitDefinition,
	taken map[string]struct{},
) ([]*capability.DeviceConfig, []Exclusion, []string) {
	var (
		virtuals []*capability.DeviceConfig
		failed   []Exclusion
		warnings []string
	)

	for _, entry := range entries {
		if entry.IsVirtual() {
			continue
		}

		declared := entry.DeclaredIOKeys()
		own := inline[entry.Features.VersionOf]
		if !entry.IsVariant() {
			own = inline[entry.DeviceType]
		}
		for _, io := range slices.Sorted(maps.Keys(own)) {
			if _, ok := declared[io]; !ok {
				warnings = append(warnings, fmt.Sprintf("%s: bitmask_config for undeclared io %s ignored", entry.DeviceType, io))
			}
		}

		for _, io := range platformIOKeys(entry) {
			defs, ok := own[io]
			if !ok {
				rule, matched := table.Match(io)
				if !matched {
					continue
				}
				defs = rule.Bits
			}

			for _, def := range defs {
				key := VirtualKey(entry.DeviceType, io, def.Name)
				if _, exists := taken[key]; exists {
					failed = append(failed, Exclusion{
						DeviceType: key,
						Reasons:    []string{fmt.Sprintf("%v: bit %s of %s.%s", capability.ErrConfigurationCollision, def.Name, entry.DeviceType, io)},
					})
					continue
				}
				taken[key] = struct{}{}
				virtuals = append(virtuals, newVirtual(entry, io, def, key))
			}
		}
	}

	return virtuals, failed, warnings
}

// platformIOKeys returns the sorted IO keys exposed by the base and mode platforms.
func platformIOKeys(entry *capability.DeviceConfig) []capability.IOKey {
	seen := make(map[capability.IOKey]struct{})
	collect := func(p capability.PlatformMap) {
		for _, ios := range p {
			for k := range ios {
				seen[k] = struct{}{}
			}
		}
	}
	collect(entry.Platforms)
	for _, m := range entry.Modes {
		collect(m.Platforms)
	}
	return slices.Sorted(maps.Keys(seen))
}

func newVirtual(parent *capability.DeviceConfig, io capability.IOKey, def BitDefinition, key string) *capability.DeviceConfig {
	platform := def.Platform
	if platform == "" {
		platform = capability.PlatformBinarySensor
	}
	description := def.Description
	if description == "" {
		description = def.Name
	}

	return &capability.DeviceConfig{
		DeviceType:  key,
		DisplayName: fmt.Sprintf("%s %s", parent.DisplayName, description),
		Features: capability.FeatureSet{
			Generation: parent.Features.Generation,
			VirtualOf:  parent.DeviceType,
			VirtualIO:  io,
			VirtualBit: def.Name,
		},
		Platforms: capability.PlatformMap{
			platform: capability.IOMap{
				io: {
					Description: description,
					RW:          capability.RWRead,
					DataType:    def.dataType(),
					Conversion:  def.conversion(),
					DeviceClass: def.DeviceClass,
				},
			},
		},
	}
}
