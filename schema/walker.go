package schema

import "strings"

// PathSeparator joins relation names into a dotted relation path.
const PathSeparator = "."

// Paths enumerates every relation path reachable from root without
// revisiting an entity type already present as an ancestor on the same
// path. The result is finite for cyclic schemas, including direct
// self-references, and is returned sorted for determinism. An entity
// type with no relations yields an empty slice.
func (g *Graph) Paths(root *EntityType) []string {
	set := make(map[string]struct{})
	g.walk(root, map[string]struct{}{}, "", set, false)
	return sorted(set)
}

// FieldPaths enumerates every name usable as a filter or ordering key
// for root: its own scalar fields, every relation path, and every
// relation path extended with a scalar field of the path's target.
// This is the fixed legal set that untrusted request keys are looked
// up against.
func (g *Graph) FieldPaths(root *EntityType) []string {
	set := make(map[string]struct{})
	g.walk(root, map[string]struct{}{}, "", set, true)
	return sorted(set)
}

// walk descends the relation graph accumulating dotted paths. visited
// holds the entity types already expanded as ancestors of root; a
// relation whose target is an ancestor is not traversed, which bounds
// every path by the number of distinct entity types. Each call receives
// its own copy of visited, so sibling branches do not exclude each
// other's targets.
func (g *Graph) walk(root *EntityType, visited map[string]struct{}, prefix string, out map[string]struct{}, withFields bool) {
	if withFields {
		for _, f := range root.Fields {
			out[prefix+f.Name] = struct{}{}
		}
	}
	next := make(map[string]struct{}, len(visited)+1)
	for name := range visited {
		next[name] = struct{}{}
	}
	next[root.Name] = struct{}{}
	for _, rel := range root.Relations {
		if _, ok := visited[rel.Target]; ok {
			continue
		}
		out[prefix+rel.Name] = struct{}{}
		g.walk(g.types[rel.Target], next, prefix+rel.Name+PathSeparator, out, withFields)
	}
}

// Segments splits a relation path into its relation names.
func Segments(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSeparator)
}

// Resolve follows a relation path from root and returns the relations
// traversed. It returns false if any segment is not a declared relation
// of the entity reached so far.
func (g *Graph) Resolve(root *EntityType, path string) ([]Relation, bool) {
	var rels []Relation
	cur := root
	for _, seg := range Segments(path) {
		rel, ok := cur.Relation(seg)
		if !ok {
			return nil, false
		}
		rels = append(rels, rel)
		cur = g.types[rel.Target]
	}
	return rels, true
}
