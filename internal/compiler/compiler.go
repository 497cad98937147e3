package compiler

import (
	"fmt"
	"slices"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/catalog"
)

// Compile runs the full pipeline over a raw catalog:
//
//	classify -> normalise -> extract features -> compile conditions
//	  -> expand versions -> expand virtual subdevices -> validate -> table
//
// Descriptors are processed in declaration order and each one independently.
// A failure at any stage excludes that entry (and anything derived from it)
// and is recorded in the report; the rest of the catalog still compiles.
func Compile(cat *catalog.Catalog, opts Options) (*Table, *Report) {
	log := opts.logger()
	report := &Report{Layout: catalog.ClassifyCatalog(cat)}

	for _, r := range cat.Rejected() {
		log.Debug("catalog entry rejected", "device_type", r.Key(), "source", r.Source, "error", r.Err)
		report.exclude(r.Key(), r.Err.Error())
	}

	taken := make(map[string]struct{}, cat.Len())
	for _, d := range cat.Descriptors() {
		taken[d.DeviceType] = struct{}{}
	}

	var bases []*capability.DeviceConfig
	inline := make(map[string]map[capability.IOKey][]BitDefinition)

	for _, desc := range cat.Descriptors() {
		entry, n, warnings, err := CompileDescriptor(desc, opts.Condition, opts.Overrides)
		for _, w := range warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", desc.DeviceType, w))
		}
		if err != nil {
			log.Debug("descriptor excluded", "device_type", desc.DeviceType, "error", err)
			report.exclude(desc.DeviceType, err.Error())
			continue
		}
		if len(n.Bitmasks) > 0 {
			inline[desc.DeviceType] = n.Bitmasks
		}
		bases = append(bases, entry)
	}

	variants, failed, warnings := ExpandVersions(bases, cat, taken)
	report.Excluded = append(report.Excluded, failed...)
	report.Warnings = append(report.Warnings, warnings...)

	all := slices.Concat(bases, variants)
	virtuals, failed, warnings := ExpandVirtual(all, opts.Bitmasks, inline, taken)
	report.Excluded = append(report.Excluded, failed...)
	report.Warnings = append(report.Warnings, warnings...)
	all = append(all, virtuals...)

	log.Debug("expansion complete",
		"bases", len(bases), "variants", len(variants), "virtuals", len(virtuals))

	valid := validateAll(all, report)
	for _, e := range valid {
		for _, w := range EntryWarnings(e) {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", e.DeviceType, w))
		}
	}
	report.Warnings = append(report.Warnings, CatalogWarnings(valid)...)

	table, err := NewTable(valid...)
	if err != nil {
		// Keys are unique by construction.
		report.Warnings = append(report.Warnings, err.Error())
		table, _ = NewTable() //nolint:errcheck // Empty table cannot fail
	}

	log.Debug("catalog compiled",
		"valid", len(report.Valid), "excluded", len(report.Excluded), "fingerprint", table.Fingerprint())
	return table, report
}

// validateAll validates every entry and drops entries whose parent (base of
// a variant, owner of a virtual subdevice) did not make it.
func validateAll(all []*capability.DeviceConfig, report *Report) []*capability.DeviceConfig {
	ok := make(map[string]bool, len(all))
	var valid []*capability.DeviceConfig

	for _, e := range all {
		reasons := Validate(e)

		parent := e.Features.VersionOf
		if e.IsVirtual() {
			parent = e.Features.VirtualOf
		}
		if parent != "" && !ok[parent] {
			reasons = append(reasons, fmt.Sprintf("parent %s was excluded", parent))
		}

		if len(reasons) > 0 {
			report.exclude(e.DeviceType, reasons...)
			continue
		}
		ok[e.DeviceType] = true
		valid = append(valid, e)
		report.Valid = append(report.Valid, e.DeviceType)
	}
	return valid
}

// CompileDescriptor runs the per-entry stages: classification, normalisation,
// feature extraction and condition compilation. It does not validate.
func CompileDescriptor(desc *catalog.RawDescriptor, condOpts ConditionOptions, tables OverrideTables) (*capability.DeviceConfig, *Normalized, []string, error) {
	gen := catalog.Classify(desc)

	n, err := NormalizeDescriptor(desc, gen)
	if err != nil {
		return nil, nil, nil, err
	}

	features := ExtractFeatures(desc, n, tables)

	var warnings []string
	modes := make([]capability.ModeEntry, 0, len(n.Modes))
	for _, m := range n.Modes {
		entry := capability.ModeEntry{Name: m.Name, Platforms: m.Platforms}
		if features.IsDynamic {
			cond, w, err := CompileCondition(m.Condition, condOpts)
			for _, msg := range w {
				warnings = append(warnings, fmt.Sprintf("mode %s: %s", m.Name, msg))
			}
			if err != nil {
				return nil, nil, warnings, fmt.Errorf("mode %s: %w", m.Name, err)
			}
			entry.Condition = cond
		}
		modes = append(modes, entry)
	}
	if len(modes) == 0 {
		modes = nil
	}

	return &capability.DeviceConfig{
		DeviceType:   desc.DeviceType,
		DisplayName:  n.DisplayName,
		Features:     features,
		Platforms:    n.Platforms,
		Modes:        modes,
		DefaultMode:  n.DefaultMode,
		Climate:      n.Climate,
		Fan:          n.Fan,
		SnapshotKeys: n.SnapshotKeys,
	}, n, warnings, nil
}
