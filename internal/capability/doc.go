// Package capability defines the typed intermediate representation shared by
// the compiler and the resolver.
//
// Everything in this package is produced once by the compiler pipeline and is
// read-only afterwards. Raw catalog shapes never reach this package; by the
// time a value is a DeviceConfig every IO map has been normalised, every mode
// condition has been reduced to a finite value set and every platform name has
// been checked against the closed vocabulary.
//
// # Key Types
//
//   - PlatformName: one capability category (switch, sensor, cover, ...)
//   - IOAttributeSpec: metadata of one IO port inside a platform
//   - FeatureSet: capability flags plus provenance (generation, version, virtual)
//   - Condition: a field plus the set of raw values that activate a mode
//   - ModeEntry: one mutually-exclusive configuration of a dynamic device
//   - DeviceConfig: the compiled entry for one device type
//   - IOSnapshot: the live IO values of one physical device (external input)
//   - Result: the outcome of one resolution (Success, Warning or Error)
//
// # Thread Safety
//
// Values are immutable once compiled. Condition.Matches and the accessor
// methods perform no writes and are safe for concurrent use. Callers that want
// to modify a DeviceConfig must DeepCopy it first.
package capability
