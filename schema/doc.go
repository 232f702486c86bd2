// Package schema holds the entity graph that drives deepview: entity
// types, their scalar fields and their relations to other entity types.
//
// The graph is an explicit, immutable data structure built once at
// process start, either declaratively (FromYAML) or from the storage
// layer's own schema description (Inspect). No runtime reflection is
// involved; every other package treats the graph as read-only input.
//
// # Relation Kinds
//
// Relations carry one of three cardinalities:
//
//   - ToOne: the source row holds the foreign key (Post -> author)
//   - ToMany: multiple targets through an association table
//   - Reverse: the back-reference of a ToOne (User -> posts)
//
// Relations may form cycles, including direct self-references; the
// path walker is cycle-safe.
//
// # Relation Paths
//
// Graph.Paths enumerates every dotted relation path reachable from an
// entity type without revisiting an ancestor type on the same path:
//
//	g.Paths(post) // ["author", "author.profile", "comments", ...]
//
// Graph.FieldPaths extends each step with the scalar fields of the
// entity reached, producing the fixed legal set that request filter and
// ordering keys are validated against.
package schema
