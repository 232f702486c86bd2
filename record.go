package deepview

// Record is the generic persisted representation of an entity: scalar
// columns plus eager-loaded or nested related records keyed by relation
// name. Identity lives under the "id" key.
type Record map[string]any

// ID returns the record identity, nil if the record has none yet.
func (r Record) ID() any {
	return r["id"]
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
