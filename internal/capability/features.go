package capability

// Generation identifies which raw schema generation a descriptor used.
type Generation int

// Generation constants.
const (
	GenerationLegacy        Generation = 1
	GenerationDeviceCentric Generation = 2
)

// Valid reports whether g is a known generation.
func (g Generation) Valid() bool {
	return g == GenerationLegacy || g == GenerationDeviceCentric
}

// Cover types.
const (
	CoverTypePositional    = "positional"
	CoverTypeNonPositional = "nonpositional"
)

// Light types.
const (
	LightTypeBasic     = "basic"
	LightTypeDimmer    = "dimmer"
	LightTypeColorTemp = "color_temp" //nolint:misspell // matches the catalog vocabulary
	LightTypeRGB       = "rgb"
	LightTypeRGBW      = "rgbw"
)

// FeatureSet is the closed set of capability flags of a compiled entry,
// plus the provenance recorded by the compiler.
type FeatureSet struct {
	Generation Generation `cbor:"generation"`

	IsDynamic      bool   `cbor:"is_dynamic"`
	IsVersioned    bool   `cbor:"is_versioned"`
	CoverType      string `cbor:"cover_type,omitempty"`
	LightType      string `cbor:"light_type,omitempty"`
	HasPositioning bool   `cbor:"has_positioning"`
	HasDynColor    bool   `cbor:"has_dyn_color"`
	ColorTemp      bool   `cbor:"color_temp"`

	// Version provenance, set on entries materialised from a versioned template.
	VersionOf  string `cbor:"version_of,omitempty"`
	VersionKey string `cbor:"version_key,omitempty"`

	// Virtual provenance, set on entries exploded from a bitmask IO.
	VirtualOf  string `cbor:"virtual_of,omitempty"`
	VirtualIO  IOKey  `cbor:"virtual_io,omitempty"`
	VirtualBit string `cbor:"virtual_bit,omitempty"`
}

// FeatureOverride is a partial FeatureSet. Nil fields leave the target untouched.
type FeatureOverride struct {
	IsDynamic      *bool   `yaml:"is_dynamic,omitempty" mapstructure:"is_dynamic"`
	IsVersioned    *bool   `yaml:"is_versioned,omitempty" mapstructure:"is_versioned"`
	CoverType      *string `yaml:"cover_type,omitempty" mapstructure:"cover_type"`
	LightType      *string `yaml:"light_type,omitempty" mapstructure:"light_type"`
	HasPositioning *bool   `yaml:"has_positioning,omitempty" mapstructure:"has_positioning"`
	HasDynColor    *bool   `yaml:"has_dyn_color,omitempty" mapstructure:"has_dyn_color"`
	ColorTemp      *bool   `yaml:"color_temp,omitempty" mapstructure:"color_temp"`
}

// Apply merges o on top of f, last-wins per field, and returns the result.
func (f FeatureSet) Apply(o FeatureOverride) FeatureSet {
	if o.IsDynamic != nil {
		f.IsDynamic = *o.IsDynamic
	}
	if o.IsVersioned != nil {
		f.IsVersioned = *o.IsVersioned
	}
	if o.CoverType != nil {
		f.CoverType = *o.CoverType
	}
	if o.LightType != nil {
		f.LightType = *o.LightType
	}
	if o.HasPositioning != nil {
		f.HasPositioning = *o.HasPositioning
	}
	if o.HasDynColor != nil {
		f.HasDynColor = *o.HasDynColor
	}
	if o.ColorTemp != nil {
		f.ColorTemp = *o.ColorTemp
	}
	return f
}

// IsZero reports whether the override sets nothing.
func (o FeatureOverride) IsZero() bool {
	return o == FeatureOverride{}
}

// Flags renders the capability flags as stable labels.
// Provenance is not included.
func (f FeatureSet) Flags() []string {
	var flags []string
	if f.IsDynamic {
		flags = append(flags, "is_dynamic")
	}
	if f.IsVersioned {
		flags = append(flags, "is_versioned")
	}
	if f.CoverType != "" {
		flags = append(flags, "cover_type:"+f.CoverType)
	}
	if f.LightType != "" {
		flags = append(flags, "light_type:"+f.LightType)
	}
	if f.HasPositioning {
		flags = append(flags, "has_positioning")
	}
	if f.HasDynColor {
		flags = append(flags, "has_dyn_color")
	}
	if f.ColorTemp {
		flags = append(flags, "color_temp")
	}
	return flags
}

// Bool returns a pointer to b, for building overrides.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for building overrides.
func String(s string) *string { return &s }
