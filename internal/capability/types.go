package capability

import (
	"maps"
	"slices"
)

// PlatformName is one capability category a device can expose.
type PlatformName string

// Platform constants. The set is closed: the validator rejects anything else.
const (
	PlatformSwitch       PlatformName = "switch"
	PlatformBinarySensor PlatformName = "binary_sensor"
	PlatformSensor       PlatformName = "sensor"
	PlatformCover        PlatformName = "cover"
	PlatformLight        PlatformName = "light"
	PlatformClimate      PlatformName = "climate"
	PlatformFan          PlatformName = "fan"
	PlatformLock         PlatformName = "lock"
	PlatformButton       PlatformName = "button"
	PlatformValve        PlatformName = "valve"
	PlatformCamera       PlatformName = "camera"
	PlatformRemote       PlatformName = "remote"
	PlatformSiren        PlatformName = "siren"
	PlatformAirPurifier  PlatformName = "air_purifier"
	PlatformEvent        PlatformName = "event"
)

// AllPlatforms returns all valid platform names.
func AllPlatforms() []PlatformName {
	return []PlatformName{
		PlatformSwitch, PlatformBinarySensor, PlatformSensor, PlatformCover,
		PlatformLight, PlatformClimate, PlatformFan, PlatformLock,
		PlatformButton, PlatformValve, PlatformCamera, PlatformRemote,
		PlatformSiren, PlatformAirPurifier, PlatformEvent,
	}
}

// IOKey names a register or field in a device's live data snapshot.
type IOKey string

// RW describes the read/write semantics of an IO port.
type RW string

// RW constants. An empty RW means the catalog did not say.
const (
	RWRead      RW = "R"
	RWWrite     RW = "W"
	RWReadWrite RW = "RW"
)

// Command is one control command an IO port accepts.
type Command struct {
	Type        int    `yaml:"type" json:"type" mapstructure:"type" cbor:"type"`
	Val         *int   `yaml:"val,omitempty" json:"val,omitempty" mapstructure:"val" cbor:"val,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" mapstructure:"description" cbor:"description,omitempty"`
}

// IOAttributeSpec is the compiled metadata of one IO port.
type IOAttributeSpec struct {
	Description string             `yaml:"description" json:"description" mapstructure:"description" cbor:"description"`
	RW          RW                 `yaml:"rw" json:"rw" mapstructure:"rw" cbor:"rw"`
	DataType    string             `yaml:"data_type,omitempty" json:"data_type,omitempty" mapstructure:"data_type" cbor:"data_type,omitempty"`
	Conversion  string             `yaml:"conversion,omitempty" json:"conversion,omitempty" mapstructure:"conversion" cbor:"conversion,omitempty"`
	DeviceClass string             `yaml:"device_class,omitempty" json:"device_class,omitempty" mapstructure:"device_class" cbor:"device_class,omitempty"`
	Unit        string             `yaml:"unit,omitempty" json:"unit,omitempty" mapstructure:"unit" cbor:"unit,omitempty"`
	StateClass  string             `yaml:"state_class,omitempty" json:"state_class,omitempty" mapstructure:"state_class" cbor:"state_class,omitempty"`
	Commands    map[string]Command `yaml:"commands,omitempty" json:"commands,omitempty" mapstructure:"commands" cbor:"commands,omitempty"`
}

// Clone returns an independent copy of the spec.
func (s IOAttributeSpec) Clone() IOAttributeSpec {
	cpy := s
	if s.Commands != nil {
		cpy.Commands = make(map[string]Command, len(s.Commands))
		for name, cmd := range s.Commands {
			if cmd.Val != nil {
				v := *cmd.Val
				cmd.Val = &v
			}
			cpy.Commands[name] = cmd
		}
	}
	return cpy
}

// IOMap maps IO keys to their specs within one platform.
type IOMap map[IOKey]IOAttributeSpec

// Keys returns the IO keys in sorted order.
func (m IOMap) Keys() []IOKey {
	return slices.Sorted(maps.Keys(m))
}

// PlatformMap is the canonical {platform -> {io_key -> spec}} shape.
type PlatformMap map[PlatformName]IOMap

// DeepCopy returns an independent copy of the platform map.
// A nil map copies to nil.
func (p PlatformMap) DeepCopy() PlatformMap {
	if p == nil {
		return nil
	}
	cpy := make(PlatformMap, len(p))
	for name, ios := range p {
		inner := make(IOMap, len(ios))
		for key, spec := range ios {
			inner[key] = spec.Clone()
		}
		cpy[name] = inner
	}
	return cpy
}

// Names returns the platform names in sorted order.
func (p PlatformMap) Names() []PlatformName {
	return slices.Sorted(maps.Keys(p))
}

// IOKeys returns platform -> sorted IO keys.
func (p PlatformMap) IOKeys() map[PlatformName][]IOKey {
	out := make(map[PlatformName][]IOKey, len(p))
	for name, ios := range p {
		out[name] = ios.Keys()
	}
	return out
}

// ModeEntry is one mutually-exclusive configuration of a dynamic device.
type ModeEntry struct {
	Name      string      `cbor:"name"`
	Condition Condition   `cbor:"condition"`
	Platforms PlatformMap `cbor:"platforms"`
}

// ClimateConfig carries the climate sub-configuration of device-centric descriptors.
type ClimateConfig struct {
	HVACModes   map[int]string `mapstructure:"hvac_modes" cbor:"hvac_modes,omitempty"`
	MinTemp     float64        `mapstructure:"min_temp" cbor:"min_temp,omitempty"`
	MaxTemp     float64        `mapstructure:"max_temp" cbor:"max_temp,omitempty"`
	TargetIO    IOKey          `mapstructure:"target_io" cbor:"target_io,omitempty"`
	CurrentIO   IOKey          `mapstructure:"current_io" cbor:"current_io,omitempty"`
	Temperature string         `mapstructure:"temperature_unit" cbor:"temperature_unit,omitempty"`
}

// FanConfig carries the fan sub-configuration of device-centric descriptors.
type FanConfig struct {
	SpeedIO IOKey          `mapstructure:"speed_io" cbor:"speed_io,omitempty"`
	Presets map[string]int `mapstructure:"presets" cbor:"presets,omitempty"`
}

// DeviceConfig is the compiled entry for one device type.
// It is owned by the compiled table and never mutated after construction.
type DeviceConfig struct {
	DeviceType  string         `cbor:"device_type"`
	DisplayName string         `cbor:"display_name"`
	Features    FeatureSet     `cbor:"features"`
	Platforms   PlatformMap    `cbor:"platforms"`
	Modes       []ModeEntry    `cbor:"modes,omitempty"`
	DefaultMode string         `cbor:"default_mode,omitempty"`
	Climate     *ClimateConfig `cbor:"climate,omitempty"`
	Fan         *FanConfig     `cbor:"fan,omitempty"`

	// SnapshotKeys lists IO keys the device reports that no platform exposes,
	// typically mode-selector registers.
	SnapshotKeys []IOKey `cbor:"snapshot_keys,omitempty"`
}

// DeepCopy creates a complete independent copy of the DeviceConfig.
func (d *DeviceConfig) DeepCopy() *DeviceConfig {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Platforms = d.Platforms.DeepCopy()

	if d.Modes != nil {
		cpy.Modes = make([]ModeEntry, len(d.Modes))
		for i, m := range d.Modes {
			cpy.Modes[i] = ModeEntry{
				Name:      m.Name,
				Condition: m.Condition.clone(),
				Platforms: m.Platforms.DeepCopy(),
			}
		}
	}

	if d.Climate != nil {
		c := *d.Climate
		c.HVACModes = maps.Clone(d.Climate.HVACModes)
		cpy.Climate = &c
	}
	if d.Fan != nil {
		f := *d.Fan
		f.Presets = maps.Clone(d.Fan.Presets)
		cpy.Fan = &f
	}

	cpy.SnapshotKeys = slices.Clone(d.SnapshotKeys)
	return &cpy
}

// Mode returns the mode with the given name.
func (d *DeviceConfig) Mode(name string) (ModeEntry, bool) {
	for _, m := range d.Modes {
		if m.Name == name {
			return m, true
		}
	}
	return ModeEntry{}, false
}

// AllPlatformNames returns every platform used by the entry, base and modes, sorted.
func (d *DeviceConfig) AllPlatformNames() []PlatformName {
	seen := make(map[PlatformName]struct{})
	for name := range d.Platforms {
		seen[name] = struct{}{}
	}
	for _, m := range d.Modes {
		for name := range m.Platforms {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// DeclaredIOKeys returns the set of IO keys the device may report:
// every platform IO (base and modes) plus SnapshotKeys.
func (d *DeviceConfig) DeclaredIOKeys() map[IOKey]struct{} {
	keys := make(map[IOKey]struct{})
	collect := func(p PlatformMap) {
		for _, ios := range p {
			for key := range ios {
				keys[key] = struct{}{}
			}
		}
	}
	collect(d.Platforms)
	for _, m := range d.Modes {
		collect(m.Platforms)
	}
	for _, key := range d.SnapshotKeys {
		keys[key] = struct{}{}
	}
	return keys
}

// IsVirtual reports whether the entry was generated from a bitmask IO.
func (d *DeviceConfig) IsVirtual() bool {
	return d.Features.VirtualOf != ""
}

// IsVariant reports whether the entry was materialised from a versioned template.
func (d *DeviceConfig) IsVariant() bool {
	return d.Features.VersionOf != ""
}
