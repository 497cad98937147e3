// Package compiler turns a raw device catalog into an immutable Table.
//
// # Pipeline
//
//	catalog.Classify        generation 1 (legacy) or 2 (device-centric)
//	NormalizeDescriptor     raw shapes -> {platform -> {io -> spec}}
//	ExtractFeatures         derived flags + static override tables
//	CompileCondition        mode conditions -> field + allowed value set
//	ExpandVersions          "{base}_{version}" variants
//	ExpandVirtual           "{device}_{io}_{bit}" subdevices
//	Validate                per-entry structural checks
//	NewTable                immutable table + fingerprint
//
// Each descriptor is compiled on its own. A descriptor that fails any stage
// is excluded and reported; it never takes the rest of the catalog down with
// it. The Report lists valid and excluded device types plus catalog-level
// warnings.
//
// # Conditions
//
// Condition text is parsed exactly once, here, with the expr parser. Only
// equality, list membership, a bitwise-and mask and or-unions over a single
// field are accepted. The output is a plain value set; nothing textual
// reaches the resolver. How a mask is reduced is chosen by MaskPolicy.
//
// Compile is a one-shot batch operation and is not meant to be called
// concurrently with itself on the same Options. The resulting Table is safe
// for concurrent use.
package compiler
