package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

const testCatalog = `
devices:
  SL_SW_IF3:
    name: Three-gang switch
    switch:
      L1: {description: Left, rw: RW}
      L2: {description: Middle, rw: RW}
  SL_NATURE:
    name: Nature panel
    dynamic: true
    switch_mode:
      condition: "P5 & 0xFF == 1"
      switch: [P1, P2, P3]
    climate_mode:
      condition: "P5 & 0xFF in [3, 6]"
      climate: [P1, P4]
  SL_DOOYA:
    _generation: 2
    name: Curtain motor
    category: cover
    cover_config: {type: positional, positioning: true}
    platforms:
      cover: {P1: {description: Position, rw: RW}}
versions:
  SL_LI_WW:
    V2: {platforms: {light: {P1: {description: Brightness, rw: RW}}}}
    V1: {features: {color_temp: true}}
`

func TestParse_PreservesOrder(t *testing.T) {
	cat, err := Parse([]byte(testCatalog), "test.yaml")
	require.NoError(t, err)

	require.Equal(t, 3, cat.Len())

	var types []string
	for _, d := range cat.Descriptors() {
		types = append(types, d.DeviceType)
	}
	assert.Equal(t, []string{"SL_SW_IF3", "SL_NATURE", "SL_DOOYA"}, types)

	nature, ok := cat.Descriptor("SL_NATURE")
	require.True(t, ok)
	assert.Equal(t, []string{"name", "dynamic", "switch_mode", "climate_mode"}, nature.Keys())
	assert.True(t, nature.BoolField("dynamic"))
	assert.Equal(t, "Nature panel", nature.StringField("name"))

	mode, ok := nature.Get("switch_mode")
	require.True(t, ok)
	assert.Equal(t, "P5 & 0xFF == 1", mode.(map[string]any)["condition"])
}

func TestParse_Versions(t *testing.T) {
	cat, err := Parse([]byte(testCatalog), "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"SL_LI_WW"}, cat.VersionBases())

	versions := cat.Versions("SL_LI_WW")
	require.Len(t, versions, 2)

	assert.Equal(t, "V1", versions[0].Key)
	require.NotNil(t, versions[0].Features.ColorTemp)
	assert.True(t, *versions[0].Features.ColorTemp)
	assert.Nil(t, versions[0].Platforms)

	assert.Equal(t, "V2", versions[1].Key)
	assert.True(t, versions[1].Features.IsZero())
	assert.Contains(t, versions[1].Platforms, "light")
}

func TestParse_JSON(t *testing.T) {
	doc := `{"devices": {"SL_SC_THL": {"name": "Env sensor", "sensor": ["T", "H"]}}}`

	cat, err := Parse([]byte(doc), "test.json")
	require.NoError(t, err)

	d, ok := cat.Descriptor("SL_SC_THL")
	require.True(t, ok)
	assert.Equal(t, []any{"T", "H"}, d.fields["sensor"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a mapping", "- a\n- b\n"},
		{"unknown section", "gadgets: {}\n"},
		{"devices not a mapping", "devices: [1, 2]\n"},
		{"bad yaml", "devices: {X: [}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), "bad.yaml")
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}
}

func TestParse_RejectsBadEntries(t *testing.T) {
	const good = "devices:\n  GOOD: {name: good, switch: [L1]}\n"

	tests := []struct {
		name    string
		doc     string
		wantKey string
	}{
		{"scalar descriptor", good + "  BAD: 5\n", "BAD"},
		{"list descriptor", good + "  BAD: [1, 2]\n", "BAD"},
		{"key declared twice", good + "  BAD:\n    name: a\n    name: b\n", "BAD"},
		{"unknown version field", good + "versions:\n  V:\n    V1: {feature: {color_temp: true}}\n", "V_V1"},
		{"versions of base not a mapping", good + "versions:\n  V: 3\n", "V"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := Parse([]byte(tt.doc), "mixed.yaml")
			require.NoError(t, err)

			_, ok := cat.Descriptor("GOOD")
			assert.True(t, ok)

			rejected := cat.Rejected()
			require.Len(t, rejected, 1)
			assert.Equal(t, tt.wantKey, rejected[0].Key())
			assert.Equal(t, "mixed.yaml", rejected[0].Source)
			assert.ErrorIs(t, rejected[0].Err, ErrInvalidCatalog)
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cat, err := Parse(nil, "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
	assert.Equal(t, LayoutEmpty, ClassifyCatalog(cat))
}

func TestCatalog_DuplicateDeviceType(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Add(NewRawDescriptor("A")))

	err := cat.Add(NewRawDescriptor("A"))
	assert.ErrorIs(t, err, ErrDuplicateDeviceType)
}

func TestCatalog_DuplicateVersion(t *testing.T) {
	cat := New()
	require.NoError(t, cat.AddVersion("A", Version{Key: "V1"}))

	err := cat.AddVersion("A", Version{Key: "V1"})
	assert.ErrorIs(t, err, ErrDuplicateVersion)
}

func TestLoadDir_MergesInLexicalOrder(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("20-lights.yaml", "devices:\n  SL_LI_WW: {name: Light, versioned: true, light: [P1]}\n")
	write("10-switches.yml", "devices:\n  SL_SW_IF1: {name: Switch, switch: [L1]}\n")
	write("30-versions.json", `{"versions": {"SL_LI_WW": {"V1": {"features": {"color_temp": true}}}}}`)
	write("notes.txt", "ignored")

	cat, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, 2, cat.Len())
	assert.Equal(t, "SL_SW_IF1", cat.Descriptors()[0].DeviceType)
	assert.Equal(t, "SL_LI_WW", cat.Descriptors()[1].DeviceType)
	assert.Len(t, cat.Versions("SL_LI_WW"), 1)
	assert.Len(t, cat.Sources(), 3)
}

func TestLoadDir_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	body := []byte("devices:\n  SL_SW_IF1: {name: Switch, switch: [L1]}\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), body, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), body, 0o600))

	cat, err := LoadDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, cat.Len())
	rejected := cat.Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, "SL_SW_IF1", rejected[0].Key())
	assert.Equal(t, filepath.Join(dir, "b.yaml"), rejected[0].Source)
	assert.ErrorIs(t, rejected[0].Err, ErrDuplicateDeviceType)
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	cat, err := Parse([]byte(testCatalog), "test.yaml")
	require.NoError(t, err)

	sw, _ := cat.Descriptor("SL_SW_IF3")
	dooya, _ := cat.Descriptor("SL_DOOYA")

	assert.Equal(t, capability.GenerationLegacy, Classify(sw))
	assert.Equal(t, capability.GenerationDeviceCentric, Classify(dooya))
	assert.Equal(t, LayoutMixed, ClassifyCatalog(cat))
}

func TestClassify_EachMarker(t *testing.T) {
	for _, marker := range generationMarkers {
		d := NewRawDescriptor("X")
		d.Set("name", "x")
		d.Set(marker, map[string]any{})
		assert.Equal(t, capability.GenerationDeviceCentric, Classify(d), marker)
	}
}

func TestClassifyCatalog_SingleGeneration(t *testing.T) {
	legacy := New()
	require.NoError(t, legacy.Add(NewRawDescriptor("A")))
	assert.Equal(t, LayoutLegacy, ClassifyCatalog(legacy))

	centric := New()
	d := NewRawDescriptor("B")
	d.Set("category", "cover")
	require.NoError(t, centric.Add(d))
	assert.Equal(t, LayoutDeviceCentric, ClassifyCatalog(centric))
}

func TestRawDescriptor_SetKeepsPosition(t *testing.T) {
	d := NewRawDescriptor("X")
	d.Set("a", 1)
	d.Set("b", 2)
	d.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, d.Keys())
	v, _ := d.Get("a")
	assert.Equal(t, 3, v)
}
