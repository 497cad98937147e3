package compiler

import (
	"fmt"
	"maps"
	"slices"

	"github.com/go-viper/mapstructure/v2"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
)

// Descriptor keys with a fixed meaning. None of them is ever a platform.
const (
	keyDynamic       = "dynamic"
	keyVersioned     = "versioned"
	keyDescription   = "description"
	keyName          = "name"
	keyCategory      = "category"
	keyGeneration    = "_generation"
	keyDefaultMode   = "default_mode"
	keyModes         = "modes"
	keyPlatforms     = "platforms"
	keySnapshotKeys  = "snapshot_keys"
	keyIO            = "io"
	keyClimateConfig = "climate_config"
	keyBitmaskConfig = "bitmask_config"
	keyCoverConfig   = "cover_config"
	keyFanConfig     = "fan_config"
	keyCondition     = "condition"
)

var reservedKeys = map[string]struct{}{
	keyDynamic:       {},
	keyVersioned:     {},
	keyDescription:   {},
	keyName:          {},
	keyCategory:      {},
	keyGeneration:    {},
	keyDefaultMode:   {},
	keyModes:         {},
	keyPlatforms:     {},
	keySnapshotKeys:  {},
	keyIO:            {},
	keyClimateConfig: {},
	keyBitmaskConfig: {},
	keyCoverConfig:   {},
	keyFanConfig:     {},
}

// IsReservedKey reports whether a top-level descriptor key has a fixed
// meaning and is never read as a platform.
func IsReservedKey(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// RawMode is a mode block before its condition is compiled.
type RawMode struct {
	Name      string
	Condition any
	Platforms capability.PlatformMap
}

// CoverConfig is the generation-2 cover sub-configuration.
type CoverConfig struct {
	Type        string `mapstructure:"type"`
	Positioning *bool  `mapstructure:"positioning"`
}

// Normalized is a descriptor after shape normalisation. Nothing downstream
// looks at raw shapes again.
type Normalized struct {
	Generation   capability.Generation
	DisplayName  string
	Platforms    capability.PlatformMap
	Modes        []RawMode
	DefaultMode  string
	SnapshotKeys []capability.IOKey
	Cover        *CoverConfig
	Climate      *capability.ClimateConfig
	Fan          *capability.FanConfig

	// Bitmasks holds inline bit definitions keyed by IO.
	Bitmasks map[capability.IOKey][]BitDefinition
}

// NormalizeDescriptor flattens a raw descriptor of the given generation.
func NormalizeDescriptor(desc *catalog.RawDescriptor, gen capability.Generation) (*Normalized, error) {
	n := &Normalized{
		Generation:  gen,
		DisplayName: desc.StringField(keyName),
		DefaultMode: desc.StringField(keyDefaultMode),
	}
	if n.DisplayName == "" {
		n.DisplayName = desc.StringField(keyDescription)
	}

	if raw, ok := desc.Get(keySnapshotKeys); ok {
		keys, err := ioKeyList(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", keySnapshotKeys, err)
		}
		n.SnapshotKeys = keys
	}

	var err error
	if gen == capability.GenerationDeviceCentric {
		err = n.readDeviceCentric(desc)
	} else {
		err = n.readLegacy(desc)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// readLegacy reads generation-1 descriptors: platforms are top-level keys and
// mode blocks are top-level maps carrying a condition, in declaration order.
func (n *Normalized) readLegacy(desc *catalog.RawDescriptor) error {
	n.Platforms = capability.PlatformMap{}

	for _, key := range desc.Keys() {
		if IsReservedKey(key) {
			continue
		}
		value, _ := desc.Get(key)

		if block, ok := value.(map[string]any); ok {
			if cond, isMode := block[keyCondition]; isMode {
				platforms, err := modePlatforms(block)
				if err != nil {
					return fmt.Errorf("mode %s: %w", key, err)
				}
				n.Modes = append(n.Modes, RawMode{Name: key, Condition: cond, Platforms: platforms})
				continue
			}
		}

		ios, err := NormalizePlatform(value)
		if err != nil {
			return fmt.Errorf("platform %s: %w", key, err)
		}
		n.Platforms[capability.PlatformName(key)] = ios
	}

	if raw, ok := desc.Get(keyModes); ok {
		modes, err := readModeList(raw)
		if err != nil {
			return err
		}
		n.Modes = append(n.Modes, modes...)
	}

	return nil
}

// modePlatforms reads the platforms of a legacy mode block: either an
// explicit platforms map or every key other than condition and description.
func modePlatforms(block map[string]any) (capability.PlatformMap, error) {
	if raw, ok := block[keyPlatforms]; ok {
		return NormalizePlatforms(raw)
	}

	rest := make(map[string]any, len(block))
	for k, v := range block {
		if k == keyCondition || k == keyDescription || k == keyName {
			continue
		}
		rest[k] = v
	}
	return NormalizePlatforms(rest)
}

// readDeviceCentric reads generation-2 descriptors.
func (n *Normalized) readDeviceCentric(desc *catalog.RawDescriptor) error {
	switch {
	case desc.Has(keyPlatforms):
		raw, _ := desc.Get(keyPlatforms)
		platforms, err := NormalizePlatforms(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", keyPlatforms, err)
		}
		n.Platforms = platforms
	case desc.Has(keyCategory) && desc.Has(keyIO):
		category := desc.StringField(keyCategory)
		if category == "" {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidShape, keyCategory)
		}
		raw, _ := desc.Get(keyIO)
		ios, err := NormalizePlatform(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", keyIO, err)
		}
		n.Platforms = capability.PlatformMap{capability.PlatformName(category): ios}
	default:
		n.Platforms = capability.PlatformMap{}
	}

	if raw, ok := desc.Get(keyModes); ok {
		modes, err := readModeList(raw)
		if err != nil {
			return err
		}
		n.Modes = modes
	}

	if raw, ok := desc.Get(keyCoverConfig); ok {
		n.Cover = &CoverConfig{}
		if err := decodeStrict(raw, n.Cover); err != nil {
			return fmt.Errorf("%s: %w", keyCoverConfig, err)
		}
	}
	if raw, ok := desc.Get(keyClimateConfig); ok {
		n.Climate = &capability.ClimateConfig{}
		if err := decodeStrict(raw, n.Climate); err != nil {
			return fmt.Errorf("%s: %w", keyClimateConfig, err)
		}
	}
	if raw, ok := desc.Get(keyFanConfig); ok {
		n.Fan = &capability.FanConfig{}
		if err := decodeStrict(raw, n.Fan); err != nil {
			return fmt.Errorf("%s: %w", keyFanConfig, err)
		}
	}
	if raw, ok := desc.Get(keyBitmaskConfig); ok {
		defs := map[capability.IOKey][]BitDefinition{}
		if err := decodeStrict(raw, &defs); err != nil {
			return fmt.Errorf("%s: %w", keyBitmaskConfig, err)
		}
		n.Bitmasks = defs
	}

	return nil
}

// readModeList reads the generation-2 modes sequence.
func readModeList(raw any) ([]RawMode, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidShape, keyModes)
	}

	modes := make([]RawMode, 0, len(items))
	for i, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a mapping", ErrInvalidShape, keyModes, i)
		}
		name, _ := block[keyName].(string) //nolint:errcheck // Type assertion, not an error
		if name == "" {
			return nil, fmt.Errorf("%w: %s[%d] has no name", ErrInvalidShape, keyModes, i)
		}
		cond, ok := block[keyCondition]
		if !ok {
			return nil, fmt.Errorf("%w: mode %s has no condition", ErrInvalidShape, name)
		}
		platforms, err := NormalizePlatforms(block[keyPlatforms])
		if err != nil {
			return nil, fmt.Errorf("mode %s: %w", name, err)
		}
		modes = append(modes, RawMode{Name: name, Condition: cond, Platforms: platforms})
	}
	return modes, nil
}

// NormalizePlatforms converts a {platform: shape} map into a PlatformMap.
// A nil value yields an empty map.
func NormalizePlatforms(raw any) (capability.PlatformMap, error) {
	if raw == nil {
		return capability.PlatformMap{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: platforms must be a mapping, got %T", ErrInvalidShape, raw)
	}

	out := make(capability.PlatformMap, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		ios, err := NormalizePlatform(m[name])
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", name, err)
		}
		out[capability.PlatformName(name)] = ios
	}
	return out, nil
}

// NormalizePlatform converts one platform value into an IOMap. Accepted shapes:
//
//	{io: [P1, P2], description: ..., rw: ...}   list form, attributes shared
//	{P1: {description: ..., rw: ...}, P2: ...}  detailed map form
//	[P1, P2]                                    bare list of IO keys
//
// Inside the detailed form a plain string becomes the description of a spec
// with empty rw, and a null value becomes an empty spec.
func NormalizePlatform(raw any) (capability.IOMap, error) {
	switch v := raw.(type) {
	case []any:
		keys, err := ioKeyList(v)
		if err != nil {
			return nil, err
		}
		out := make(capability.IOMap, len(keys))
		for _, k := range keys {
			out[k] = capability.IOAttributeSpec{}
		}
		return out, nil

	case map[string]any:
		if ioList, ok := v[keyIO]; ok {
			return normalizeListForm(ioList, v)
		}
		return normalizeDetailedForm(v)

	default:
		return nil, fmt.Errorf("%w: unsupported platform value %T", ErrInvalidShape, raw)
	}
}

func normalizeListForm(ioList any, attrs map[string]any) (capability.IOMap, error) {
	// The io value may itself be a detailed map, as in generation-2 category+io.
	if detailed, ok := ioList.(map[string]any); ok {
		return normalizeDetailedForm(detailed)
	}

	keys, err := ioKeyList(ioList)
	if err != nil {
		return nil, err
	}

	shared := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if k != keyIO {
			shared[k] = v
		}
	}
	var spec capability.IOAttributeSpec
	if err := decodeStrict(shared, &spec); err != nil {
		return nil, err
	}

	out := make(capability.IOMap, len(keys))
	for _, k := range keys {
		out[k] = spec.Clone()
	}
	return out, nil
}

func normalizeDetailedForm(m map[string]any) (capability.IOMap, error) {
	out := make(capability.IOMap, len(m))
	for key, value := range m {
		spec, err := decodeIOSpec(value)
		if err != nil {
			return nil, fmt.Errorf("io %s: %w", key, err)
		}
		out[capability.IOKey(key)] = spec
	}
	return out, nil
}

// ioAttributeKeys are the fields that identify a map as an IO spec.
var ioAttributeKeys = []string{"description", "rw", "data_type", "conversion", "commands"}

func decodeIOSpec(value any) (capability.IOAttributeSpec, error) {
	switch v := value.(type) {
	case nil:
		return capability.IOAttributeSpec{}, nil
	case string:
		return capability.IOAttributeSpec{Description: v}, nil
	case map[string]any:
		if !slices.ContainsFunc(ioAttributeKeys, func(k string) bool { _, ok := v[k]; return ok }) {
			return capability.IOAttributeSpec{}, fmt.Errorf("%w: io mapping has no description", ErrInvalidShape)
		}
		var spec capability.IOAttributeSpec
		if err := decodeLoose(v, &spec); err != nil {
			return capability.IOAttributeSpec{}, err
		}
		return spec, nil
	default:
		return capability.IOAttributeSpec{}, fmt.Errorf("%w: unsupported io value %T", ErrInvalidShape, value)
	}
}

// ioKeyList accepts a list of strings or a single string.
func ioKeyList(raw any) ([]capability.IOKey, error) {
	switch v := raw.(type) {
	case string:
		return []capability.IOKey{capability.IOKey(v)}, nil
	case []any:
		keys := make([]capability.IOKey, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: io list item %d is %T, want string", ErrInvalidShape, i, item)
			}
			keys = append(keys, capability.IOKey(s))
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("%w: io list must be a list, got %T", ErrInvalidShape, raw)
	}
}

// decodeStrict decodes raw into out, rejecting unknown fields.
func decodeStrict(raw, out any) error {
	return decode(raw, out, true)
}

// decodeLoose decodes raw into out, ignoring unknown fields.
func decodeLoose(raw, out any) error {
	return decode(raw, out, false)
}

func decode(raw, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      strict,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShape, err)
	}
	return nil
}
