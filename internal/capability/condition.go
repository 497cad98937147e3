package capability

import "slices"

// Condition is a compiled mode predicate: the raw value of Field must be one
// of Allowed. Allowed is sorted and free of duplicates; no mask, comparator or
// expression text is kept.
type Condition struct {
	Field   IOKey `cbor:"field"`
	Allowed []int `cbor:"allowed"`
}

// NewCondition builds a Condition, sorting and de-duplicating values.
func NewCondition(field IOKey, values ...int) Condition {
	allowed := slices.Clone(values)
	slices.Sort(allowed)
	return Condition{
		Field:   field,
		Allowed: slices.Compact(allowed),
	}
}

// Matches reports whether the snapshot satisfies the condition.
// A field missing from the snapshot never matches.
func (c Condition) Matches(snapshot IOSnapshot) bool {
	v, ok := snapshot[c.Field]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(c.Allowed, v.Val)
	return found
}

// IsZero reports whether the condition was never set.
func (c Condition) IsZero() bool {
	return c.Field == "" && len(c.Allowed) == 0
}

func (c Condition) clone() Condition {
	return Condition{Field: c.Field, Allowed: slices.Clone(c.Allowed)}
}
