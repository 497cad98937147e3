package compiler

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// fingerprintNamespace scopes table fingerprints.
var fingerprintNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:devcaps:compiled-table"))

// tableEncMode is the deterministic CBOR mode used for fingerprints.
var tableEncMode cbor.EncMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		ShortestFloat: cbor.ShortestFloat16,
	}
	tableEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create table CBOR encoder mode: %v", err))
	}
}

// Table is the immutable compiled configuration table.
//
// Thread Safety:
//   - A Table is never modified after NewTable returns; all methods are safe
//     for concurrent use without locking.
type Table struct {
	entries     map[string]*capability.DeviceConfig
	order       []string
	fingerprint uuid.UUID
}

// NewTable builds a table from compiled entries. The entries are deep-copied.
// Returns ErrConfigurationCollision if two entries share a device type.
func NewTable(entries ...*capability.DeviceConfig) (*Table, error) {
	t := &Table{entries: make(map[string]*capability.DeviceConfig, len(entries))}
	for _, e := range entries {
		if _, exists := t.entries[e.DeviceType]; exists {
			return nil, fmt.Errorf("%w: %s", capability.ErrConfigurationCollision, e.DeviceType)
		}
		t.entries[e.DeviceType] = e.DeepCopy()
	}
	t.order = slices.Sorted(maps.Keys(t.entries))

	fp, err := t.computeFingerprint()
	if err != nil {
		return nil, err
	}
	t.fingerprint = fp
	return t, nil
}

// Lookup returns the entry for deviceType. The entry is shared and must not
// be modified.
func (t *Table) Lookup(deviceType string) (*capability.DeviceConfig, bool) {
	e, ok := t.entries[deviceType]
	return e, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// DeviceTypes returns every device type in sorted order.
func (t *Table) DeviceTypes() []string {
	return slices.Clone(t.order)
}

// Fingerprint identifies the table contents. Tables compiled from the same
// catalog with the same options have equal fingerprints.
func (t *Table) Fingerprint() uuid.UUID {
	return t.fingerprint
}

func (t *Table) computeFingerprint() (uuid.UUID, error) {
	sorted := make([]*capability.DeviceConfig, 0, len(t.order))
	for _, dt := range t.order {
		sorted = append(sorted, t.entries[dt])
	}

	data, err := tableEncMode.Marshal(sorted)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding table: %w", err)
	}
	return uuid.NewSHA1(fingerprintNamespace, data), nil
}
