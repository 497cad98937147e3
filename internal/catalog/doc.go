// Package catalog loads the raw device catalog the compiler consumes.
//
// A catalog holds one RawDescriptor per device type plus an optional version
// table. Descriptors are kept close to their source form: the top-level keys
// are stored in declaration order (generation-1 dynamic devices declare their
// modes as top-level blocks, so order matters) and nested values are left as
// generic maps for the compiler's normaliser to interpret.
//
// # Sources
//
//   - Parse: one YAML or JSON document with "devices" and "versions" sections
//   - LoadFile / LoadDir: files on disk, directories merged in lexical order
//   - LoadSQLite: descriptor bodies stored in the device_descriptors and
//     device_versions tables created by the embedded migrations
//
// # Classification
//
// Classify reports which schema generation a single descriptor uses, based
// only on the descriptor's own keys. ClassifyCatalog summarises the whole
// catalog for logging; it never influences how an entry is compiled.
//
// A Catalog is built once at start-up and discarded after compilation.
// It is not safe for concurrent mutation.
package catalog
