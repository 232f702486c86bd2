// Package write implements the nested write engine: it decodes a
// nested payload into a write graph and persists the whole graph, root
// and related entities, in one atomic transaction.
package write

import (
	"errors"
	"fmt"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/schema"
)

// Graph is the ephemeral tree submitted for a deep create/update: one
// node per entity payload, children keyed by relation name. It exists
// only for the duration of the transaction that persists it.
type Graph struct {
	// Type is the entity type of this node.
	Type *schema.EntityType
	// Fields holds the scalar values of the node, including an optional
	// "id" selecting update-or-create over plain create.
	Fields map[string]any
	// ToOne holds child payloads keyed by to-one relation name. A nil
	// child clears the relation.
	ToOne map[string]*Graph
	// ToMany holds child payload lists keyed by to-many or reverse
	// relation name.
	ToMany map[string][]*Graph
}

// Decode splits a nested payload into a write graph for root: scalar
// values by field name, child payloads by relation name. A key that is
// neither a field, the identity, nor a relation of the entity reached
// is rejected with a *deepview.ValidationError naming its path.
func Decode(g *schema.Graph, root *schema.EntityType, payload map[string]any) (*Graph, error) {
	return decode(g, root, payload, "")
}

func decode(g *schema.Graph, root *schema.EntityType, payload map[string]any, path string) (*Graph, error) {
	node := &Graph{Type: root, Fields: make(map[string]any)}
	for key, value := range payload {
		if key == "id" {
			node.Fields[key] = value
			continue
		}
		if _, ok := root.Field(key); ok {
			node.Fields[key] = value
			continue
		}
		rel, ok := root.Relation(key)
		if !ok {
			return nil, deepview.NewValidationError(root.Name, path, []string{key},
				fmt.Errorf("unknown field or relation %q", key))
		}
		target := g.Target(rel)
		childPath := joinPath(path, key)
		switch rel.Kind {
		case schema.ToOne:
			if value == nil {
				if node.ToOne == nil {
					node.ToOne = make(map[string]*Graph)
				}
				node.ToOne[key] = nil
				continue
			}
			m, ok := value.(map[string]any)
			if !ok {
				return nil, deepview.NewValidationError(root.Name, path, []string{key},
					errors.New("to-one payload must be an object or null"))
			}
			child, err := decode(g, target, m, childPath)
			if err != nil {
				return nil, err
			}
			if node.ToOne == nil {
				node.ToOne = make(map[string]*Graph)
			}
			node.ToOne[key] = child
		default:
			list, ok := value.([]any)
			if !ok {
				return nil, deepview.NewValidationError(root.Name, path, []string{key},
					errors.New("to-many payload must be a list"))
			}
			children := make([]*Graph, 0, len(list))
			for i, item := range list {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, deepview.NewValidationError(target.Name, indexPath(childPath, i), nil,
						errors.New("to-many element must be an object"))
				}
				child, err := decode(g, target, m, indexPath(childPath, i))
				if err != nil {
					return nil, err
				}
				children = append(children, child)
			}
			if node.ToMany == nil {
				node.ToMany = make(map[string][]*Graph)
			}
			node.ToMany[key] = children
		}
	}
	return node, nil
}

// joinPath appends a relation segment to a write-graph path.
func joinPath(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + schema.PathSeparator + seg
}

// indexPath appends a list index to a write-graph path, e.g. "comments[1]".
func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
