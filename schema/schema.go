package schema

import (
	"sort"

	"github.com/go-openapi/inflect"

	"github.com/syssam/deepview"
)

// Kind is the cardinality of a relation between two entity types.
type Kind uint8

const (
	// ToOne is a relation holding a single target record. The foreign
	// key resides on the source table.
	ToOne Kind = iota
	// ToMany is a relation holding multiple target records. The foreign
	// key resides on the target table.
	ToMany
	// Reverse is the back-reference of a ToOne relation declared on the
	// target side. It behaves like ToMany for traversal and loading.
	Reverse
)

// String returns the string representation of the relation kind.
func (k Kind) String() string {
	switch k {
	case ToOne:
		return "to_one"
	case ToMany:
		return "to_many"
	case Reverse:
		return "reverse"
	default:
		return "unknown"
	}
}

// Many reports whether the relation loads multiple target records.
func (k Kind) Many() bool {
	return k == ToMany || k == Reverse
}

// FieldType is the scalar kind of an entity field.
type FieldType uint8

// Field types supported by the schema. Scalar value validation is
// delegated to the validator collaborator; the type only describes the
// declared shape.
const (
	TypeInvalid FieldType = iota
	TypeString
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeBytes
	TypeJSON
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeString:  "string",
	TypeInt:     "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeTime:    "time",
	TypeBytes:   "bytes",
	TypeJSON:    "json",
}

// String returns the string representation of the field type.
func (t FieldType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Field is a scalar field of an entity type.
type Field struct {
	Name     string
	Type     FieldType
	Optional bool // nullable in storage, skippable on create
	Unique   bool
}

// Relation is a declared reference from one entity type to another.
type Relation struct {
	// Name of the relation, a single path segment.
	Name string
	// Kind is the relation cardinality.
	Kind Kind
	// Target names the referenced entity type.
	Target string
	// Column is the foreign-key column backing the relation. For ToOne
	// it resides on the source table (default "<name>_id"), for Reverse
	// on the target table (default "<source>_id"), and for ToMany in
	// the join table referencing the target (default "<target>_id").
	Column string
	// Through is the join table of a ToMany relation
	// (default "<source table>_<name>").
	Through string
	// ThroughColumn is the join-table column referencing the source
	// side of a ToMany relation (default "<source>_id").
	ThroughColumn string
}

// EntityType is a named node of the schema graph. It is built once at
// startup and treated as immutable input by every other package.
type EntityType struct {
	// Name is the unique entity name, e.g. "User".
	Name string
	// Table is the storage collection backing the entity. Defaults to
	// the snake-cased plural of Name.
	Table string
	// Fields are the scalar fields, in declaration order.
	Fields []Field
	// Relations are the declared relations, in declaration order.
	Relations []Relation

	fields    map[string]int
	relations map[string]int
}

// Field returns the scalar field with the given name.
func (t *EntityType) Field(name string) (Field, bool) {
	i, ok := t.fields[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// Relation returns the relation with the given name.
func (t *EntityType) Relation(name string) (Relation, bool) {
	i, ok := t.relations[name]
	if !ok {
		return Relation{}, false
	}
	return t.Relations[i], true
}

// index builds the name lookup tables and applies naming defaults.
func (t *EntityType) index() error {
	if t.Table == "" {
		t.Table = inflect.Pluralize(inflect.Underscore(t.Name))
	}
	t.fields = make(map[string]int, len(t.Fields))
	for i, f := range t.Fields {
		if f.Name == "" {
			return deepview.NewSchemaError(t.Name, "", "field %d has no name", i)
		}
		if _, ok := t.fields[f.Name]; ok {
			return deepview.NewSchemaError(t.Name, "", "duplicate field %q", f.Name)
		}
		t.fields[f.Name] = i
	}
	t.relations = make(map[string]int, len(t.Relations))
	for i, r := range t.Relations {
		if r.Name == "" {
			return deepview.NewSchemaError(t.Name, "", "relation %d has no name", i)
		}
		if _, ok := t.relations[r.Name]; ok {
			return deepview.NewSchemaError(t.Name, r.Name, "duplicate relation")
		}
		if _, ok := t.fields[r.Name]; ok {
			return deepview.NewSchemaError(t.Name, r.Name, "relation shadows a scalar field")
		}
		switch r.Kind {
		case ToOne:
			if r.Column == "" {
				r.Column = inflect.Underscore(r.Name) + "_id"
			}
		case Reverse:
			if r.Column == "" {
				r.Column = inflect.Underscore(t.Name) + "_id"
			}
		case ToMany:
			if r.Column == "" {
				r.Column = inflect.Underscore(r.Target) + "_id"
			}
			if r.Through == "" {
				r.Through = t.Table + "_" + r.Name
			}
			if r.ThroughColumn == "" {
				r.ThroughColumn = inflect.Underscore(t.Name) + "_id"
			}
		default:
			return deepview.NewSchemaError(t.Name, r.Name, "unknown relation kind %d", r.Kind)
		}
		t.Relations[i] = r
		t.relations[r.Name] = i
	}
	return nil
}

// Graph is the immutable set of entity types making up the schema. All
// relation targets are resolved and validated at construction; a Graph
// that was built successfully never yields a schema error afterwards.
type Graph struct {
	types map[string]*EntityType
	order []string
}

// NewGraph builds and validates a Graph from the given entity types.
// It returns a *deepview.SchemaError if an entity is declared twice or
// a relation targets an undeclared entity.
func NewGraph(types ...*EntityType) (*Graph, error) {
	g := &Graph{types: make(map[string]*EntityType, len(types))}
	for _, t := range types {
		if t.Name == "" {
			return nil, deepview.NewSchemaError("", "", "entity with empty name")
		}
		if _, ok := g.types[t.Name]; ok {
			return nil, deepview.NewSchemaError(t.Name, "", "duplicate entity name")
		}
		if err := t.index(); err != nil {
			return nil, err
		}
		g.types[t.Name] = t
		g.order = append(g.order, t.Name)
	}
	for _, t := range g.types {
		for _, r := range t.Relations {
			if _, ok := g.types[r.Target]; !ok {
				return nil, deepview.NewSchemaError(t.Name, r.Name, "targets undeclared entity %q", r.Target)
			}
		}
	}
	return g, nil
}

// Type returns the entity type with the given name.
func (g *Graph) Type(name string) (*EntityType, bool) {
	t, ok := g.types[name]
	return t, ok
}

// Types returns all entity types in declaration order.
func (g *Graph) Types() []*EntityType {
	ts := make([]*EntityType, len(g.order))
	for i, name := range g.order {
		ts[i] = g.types[name]
	}
	return ts
}

// Target resolves the target entity type of a relation. The graph is
// validated at construction, so resolution cannot fail for a relation
// that belongs to one of its entity types.
func (g *Graph) Target(r Relation) *EntityType {
	return g.types[r.Target]
}

// sorted returns the given set as a sorted slice.
func sorted(set map[string]struct{}) []string {
	ss := make([]string, 0, len(set))
	for s := range set {
		ss = append(ss, s)
	}
	sort.Strings(ss)
	return ss
}
