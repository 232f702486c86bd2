package query

// Filter is an equality predicate on a field name or dotted field path.
type Filter struct {
	Field string
	Value string
}

// Order is a single ordering key.
type Order struct {
	Field string
	Desc  bool
}

// Plan is the resolved fetch specification for one request: which
// relation paths to eager-load and which predicates and ordering to
// apply. Plans are ephemeral, owned by the request that shaped them,
// and executed by the storage collaborator.
type Plan struct {
	// EagerLoad holds the relation paths to load with the root records,
	// sorted, after exclusion and depth filtering.
	EagerLoad []string
	// Filters holds the validated equality predicates, ordered by field
	// name for determinism.
	Filters []Filter
	// OrderBy holds the validated ordering keys in caller order.
	OrderBy []Order
}
