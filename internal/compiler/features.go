package compiler

import (
	"strings"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
)

// OverrideTables are the static per-device-type corrections applied after
// feature derivation. Later sources win: derived flags, then
// CoverPositioning, then Features.
type OverrideTables struct {
	// CoverPositioning forces HasPositioning (and the matching CoverType)
	// for cover devices.
	CoverPositioning map[string]bool

	// Features is merged field by field onto the derived set.
	Features map[string]capability.FeatureOverride
}

// DefaultOverrideTables returns the built-in override tables.
func DefaultOverrideTables() OverrideTables {
	return OverrideTables{
		CoverPositioning: map[string]bool{
			"SL_DOOYA":  true,
			"SL_P_V2":   true,
			"SL_CN_IF":  false,
			"SL_ETDOOR": false,
			"SL_SW_WIN": false,
		},
		Features: map[string]capability.FeatureOverride{
			"SL_LI_WW": {
				ColorTemp: capability.Bool(true),
				LightType: capability.String(capability.LightTypeColorTemp),
			},
			"SL_SPOT": {
				HasDynColor: capability.Bool(true),
				LightType:   capability.String(capability.LightTypeRGB),
			},
			"SL_SC_RGB": {
				LightType: capability.String(capability.LightTypeRGB),
			},
			"SL_CT_RGBW": {
				HasDynColor: capability.Bool(true),
				LightType:   capability.String(capability.LightTypeRGBW),
			},
			"OD_WE_QUAN": {
				HasDynColor: capability.Bool(true),
				LightType:   capability.String(capability.LightTypeRGBW),
			},
		},
	}
}

// colorKeywords mark an IO as carrying dynamic colour.
var colorKeywords = []string{"color", "rgb", "hsv"}

// ExtractFeatures derives the FeatureSet of a normalised descriptor and
// applies the override tables for its device type.
func ExtractFeatures(desc *catalog.RawDescriptor, n *Normalized, tables OverrideTables) capability.FeatureSet {
	f := capability.FeatureSet{
		Generation:  n.Generation,
		IsDynamic:   desc.BoolField(keyDynamic),
		IsVersioned: desc.BoolField(keyVersioned),
	}

	all := allPlatformMaps(n)

	deriveCover(&f, n, all)
	deriveLight(&f, all)
	f.HasDynColor = anyIO(all, func(_ capability.PlatformName, spec capability.IOAttributeSpec) bool {
		return containsAny(spec.Description, colorKeywords) || containsAny(spec.DataType, colorKeywords)
	})

	if positioning, ok := tables.CoverPositioning[desc.DeviceType]; ok {
		f.HasPositioning = positioning
		if f.CoverType != "" {
			f.CoverType = coverTypeFor(positioning)
		}
	}
	if o, ok := tables.Features[desc.DeviceType]; ok {
		f = f.Apply(o)
	}

	return f
}

func deriveCover(f *capability.FeatureSet, n *Normalized, all []capability.PlatformMap) {
	if n.Cover != nil {
		if n.Cover.Positioning != nil {
			f.HasPositioning = *n.Cover.Positioning
		}
		f.CoverType = n.Cover.Type
		if f.CoverType == "" {
			f.CoverType = coverTypeFor(f.HasPositioning)
		}
		return
	}

	hasCover := false
	for _, p := range all {
		if _, ok := p[capability.PlatformCover]; ok {
			hasCover = true
			break
		}
	}
	if !hasCover {
		return
	}

	f.HasPositioning = anyIO(all, func(name capability.PlatformName, spec capability.IOAttributeSpec) bool {
		return name == capability.PlatformCover &&
			(containsAny(spec.DataType, []string{"position"}) || containsAny(spec.Description, []string{"position"}))
	})
	f.CoverType = coverTypeFor(f.HasPositioning)
}

func coverTypeFor(positioning bool) string {
	if positioning {
		return capability.CoverTypePositional
	}
	return capability.CoverTypeNonPositional
}

// lightRanks orders light types by capability; the richest IO wins.
var lightRanks = []struct {
	keyword string
	kind    string
}{
	{"rgbw", capability.LightTypeRGBW},
	{"rgb", capability.LightTypeRGB},
	{"color_temp", capability.LightTypeColorTemp},
	{"colour_temp", capability.LightTypeColorTemp},
	{"dimmer", capability.LightTypeDimmer},
	{"brightness", capability.LightTypeDimmer},
}

func deriveLight(f *capability.FeatureSet, all []capability.PlatformMap) {
	var lightIOs []capability.IOAttributeSpec
	for _, p := range all {
		for _, spec := range p[capability.PlatformLight] {
			lightIOs = append(lightIOs, spec)
		}
	}
	if len(lightIOs) == 0 {
		return
	}

	f.LightType = capability.LightTypeBasic
	for _, rank := range lightRanks {
		found := false
		for _, spec := range lightIOs {
			if containsAny(spec.DataType, []string{rank.keyword}) {
				found = true
				break
			}
		}
		if found {
			f.LightType = rank.kind
			break
		}
	}

	for _, spec := range lightIOs {
		if containsAny(spec.DataType, []string{"color_temp", "colour_temp"}) {
			f.ColorTemp = true
			break
		}
	}
}

// allPlatformMaps returns the base platforms followed by every mode's.
func allPlatformMaps(n *Normalized) []capability.PlatformMap {
	all := []capability.PlatformMap{n.Platforms}
	for _, m := range n.Modes {
		all = append(all, m.Platforms)
	}
	return all
}

func anyIO(all []capability.PlatformMap, pred func(capability.PlatformName, capability.IOAttributeSpec) bool) bool {
	for _, p := range all {
		for name, ios := range p {
			for _, spec := range ios {
				if pred(name, spec) {
					return true
				}
			}
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
