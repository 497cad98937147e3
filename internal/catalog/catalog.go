package catalog

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/go-viper/mapstructure/v2"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// RawDescriptor is the uninterpreted descriptor of one device type.
// Top-level keys keep their declaration order.
type RawDescriptor struct {
	DeviceType string

	keys   []string
	fields map[string]any
}

// NewRawDescriptor creates an empty descriptor for deviceType.
func NewRawDescriptor(deviceType string) *RawDescriptor {
	return &RawDescriptor{
		DeviceType: deviceType,
		fields:     make(map[string]any),
	}
}

// Set stores a top-level value. New keys are appended to the key order;
// replacing an existing key keeps its position.
func (d *RawDescriptor) Set(key string, value any) {
	if _, ok := d.fields[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.fields[key] = value
}

// Get returns the value stored under key.
func (d *RawDescriptor) Get(key string) (any, bool) {
	v, ok := d.fields[key]
	return v, ok
}

// Has reports whether key is present.
func (d *RawDescriptor) Has(key string) bool {
	_, ok := d.fields[key]
	return ok
}

// Keys returns the top-level keys in declaration order.
func (d *RawDescriptor) Keys() []string {
	return slices.Clone(d.keys)
}

// StringField returns the value of key when it is a string.
func (d *RawDescriptor) StringField(key string) string {
	s, _ := d.fields[key].(string) //nolint:errcheck // Type assertion, not an error
	return s
}

// BoolField returns the value of key when it is a bool.
func (d *RawDescriptor) BoolField(key string) bool {
	b, _ := d.fields[key].(bool) //nolint:errcheck // Type assertion, not an error
	return b
}

// Version is one entry of the version table: overrides applied on top of a
// versioned base to produce "{base}_{Key}".
type Version struct {
	Key string

	// Features are merged last-wins onto the base FeatureSet.
	Features capability.FeatureOverride

	// Platforms, when non-nil, replaces the base platforms wholesale.
	// It holds the raw platform shapes and is normalised by the compiler.
	Platforms map[string]any
}

// versionBody is the decoded shape of one version table entry.
type versionBody struct {
	Features  capability.FeatureOverride `mapstructure:"features"`
	Platforms map[string]any             `mapstructure:"platforms"`
}

// decodeVersion decodes a raw version entry.
func decodeVersion(key string, raw any) (Version, error) {
	var body versionBody
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &body,
		ErrorUnused: true,
	})
	if err != nil {
		return Version{}, fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Version{}, fmt.Errorf("%w: version %q: %w", ErrInvalidCatalog, key, err)
	}
	return Version{Key: key, Features: body.Features, Platforms: body.Platforms}, nil
}

// Rejection records one descriptor or version entry that could not be
// decoded. Version is empty for a descriptor.
type Rejection struct {
	DeviceType string
	Version    string
	Source     string
	Err        error
}

// Key returns the device type the rejected entry would have produced.
func (r Rejection) Key() string {
	if r.Version == "" {
		return r.DeviceType
	}
	return r.DeviceType + "_" + r.Version
}

func (r Rejection) Error() string {
	return fmt.Sprintf("%s: %s: %v", r.Source, r.Key(), r.Err)
}

// Catalog is a set of raw descriptors plus a version table.
type Catalog struct {
	descriptors []*RawDescriptor
	index       map[string]int
	versions    map[string][]Version
	rejected    []Rejection
	sources     []string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		index:    make(map[string]int),
		versions: make(map[string][]Version),
	}
}

// Add appends a descriptor. Returns ErrDuplicateDeviceType if the device
// type is already present.
func (c *Catalog) Add(d *RawDescriptor) error {
	if d.DeviceType == "" {
		return fmt.Errorf("%w: empty device type", ErrInvalidCatalog)
	}
	if _, exists := c.index[d.DeviceType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDeviceType, d.DeviceType)
	}
	c.index[d.DeviceType] = len(c.descriptors)
	c.descriptors = append(c.descriptors, d)
	return nil
}

// AddVersion records a version for base. Returns ErrDuplicateVersion if the
// base already has a version with the same key.
func (c *Catalog) AddVersion(base string, v Version) error {
	for _, existing := range c.versions[base] {
		if existing.Key == v.Key {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateVersion, base, v.Key)
		}
	}
	c.versions[base] = append(c.versions[base], v)
	return nil
}

// Reject records an entry that could not be decoded.
func (c *Catalog) Reject(r Rejection) {
	c.rejected = append(c.rejected, r)
}

// Rejected returns the entries dropped while loading, in load order.
func (c *Catalog) Rejected() []Rejection {
	return slices.Clone(c.rejected)
}

// Merge adds every descriptor and version of other to c. Entries that
// already exist in c are rejected; the first declaration wins.
func (c *Catalog) Merge(other *Catalog) {
	source := ""
	if len(other.sources) > 0 {
		source = other.sources[0]
	}
	for _, d := range other.descriptors {
		if err := c.Add(d); err != nil {
			c.Reject(Rejection{DeviceType: d.DeviceType, Source: source, Err: err})
		}
	}
	for _, base := range other.VersionBases() {
		for _, v := range other.versions[base] {
			if err := c.AddVersion(base, v); err != nil {
				c.Reject(Rejection{DeviceType: base, Version: v.Key, Source: source, Err: err})
			}
		}
	}
	c.rejected = append(c.rejected, other.rejected...)
	c.sources = append(c.sources, other.sources...)
}

// Descriptors returns the descriptors in declaration order.
func (c *Catalog) Descriptors() []*RawDescriptor {
	return slices.Clone(c.descriptors)
}

// Descriptor returns the descriptor for deviceType.
func (c *Catalog) Descriptor(deviceType string) (*RawDescriptor, bool) {
	i, ok := c.index[deviceType]
	if !ok {
		return nil, false
	}
	return c.descriptors[i], true
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.descriptors)
}

// Versions returns the versions declared for base, sorted by key.
func (c *Catalog) Versions(base string) []Version {
	out := slices.Clone(c.versions[base])
	slices.SortFunc(out, func(a, b Version) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// VersionBases returns every base named in the version table, sorted.
func (c *Catalog) VersionBases() []string {
	return slices.Sorted(maps.Keys(c.versions))
}

// Sources returns the files or databases the catalog was read from.
func (c *Catalog) Sources() []string {
	return slices.Clone(c.sources)
}
