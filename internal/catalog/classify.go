package catalog

import "github.com/nerrad567/gray-logic-devcaps/internal/capability"

// Layout summarises which schema generations a catalog contains.
type Layout string

// Layout constants.
const (
	LayoutEmpty         Layout = "empty"
	LayoutLegacy        Layout = "legacy"
	LayoutDeviceCentric Layout = "device_centric"
	LayoutMixed         Layout = "mixed"
)

// generationMarkers are the top-level keys that only device-centric
// descriptors carry.
var generationMarkers = []string{
	"category",
	"climate_config",
	"bitmask_config",
	"cover_config",
	"fan_config",
	"_generation",
}

// Classify returns the schema generation of a single descriptor.
// The result depends on the descriptor's own keys only.
func Classify(d *RawDescriptor) capability.Generation {
	for _, marker := range generationMarkers {
		if d.Has(marker) {
			return capability.GenerationDeviceCentric
		}
	}
	return capability.GenerationLegacy
}

// ClassifyCatalog reports the generation mix of the whole catalog.
// It is informational only.
func ClassifyCatalog(c *Catalog) Layout {
	var legacy, centric int
	for _, d := range c.descriptors {
		if Classify(d) == capability.GenerationDeviceCentric {
			centric++
		} else {
			legacy++
		}
	}

	switch {
	case legacy == 0 && centric == 0:
		return LayoutEmpty
	case centric == 0:
		return LayoutLegacy
	case legacy == 0:
		return LayoutDeviceCentric
	default:
		return LayoutMixed
	}
}
