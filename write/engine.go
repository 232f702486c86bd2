package write

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/schema"
)

// Store is the transactional write capability of the storage layer.
type Store interface {
	// Tx opens the transaction spanning one nested write.
	Tx(ctx context.Context) (Tx, error)
}

// Tx is a single storage transaction. Save inserts a new record or
// updates an existing one when fields carries an "id"; it returns the
// persisted representation including the assigned identity.
type Tx interface {
	Save(ctx context.Context, t *schema.EntityType, fields map[string]any) (deepview.Record, error)
	// Associate links an existing target record to an owner record
	// through a to-many relation.
	Associate(ctx context.Context, owner *schema.EntityType, rel schema.Relation, ownerID, targetID any) error
	Commit() error
	Rollback() error
}

// Engine persists write graphs. The zero value is not usable; construct
// with NewEngine.
type Engine struct {
	store    Store
	validate FieldValidator
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidator replaces the default type validator.
func WithValidator(v FieldValidator) Option {
	return func(e *Engine) { e.validate = v }
}

// WithIDFunc replaces the client-side identity generator. Passing nil
// delegates identity assignment to the storage layer (e.g. serial
// columns).
func WithIDFunc(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

// NewEngine returns an Engine writing through store. By default new
// records receive a client-side UUID identity and scalar values are
// checked against their declared field types.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		validate: TypeValidator{},
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Upsert persists the write graph inside one transaction: every node is
// created or updated and wired to its parent, all-or-nothing. On any
// failure the transaction is rolled back and storage is left unchanged.
//
// With raiseOnInvalid set, the first validation failure aborts the
// write with a *deepview.ValidationError locating the offending node
// and fields. Without it, invalid fields are dropped from their node
// and the remainder of the graph is still written; this
// partial-acceptance policy is opt-in by the caller.
func (e *Engine) Upsert(ctx context.Context, g *Graph, raiseOnInvalid bool) (deepview.Record, error) {
	tx, err := e.store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := e.upsertNode(ctx, tx, g, "", raiseOnInvalid)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, &deepview.RollbackError{Err: rerr})
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// upsertNode persists one node: to-one children first so their identity
// can be wired into the node's foreign keys, then the node itself, then
// to-many children with the node's identity injected.
func (e *Engine) upsertNode(ctx context.Context, tx Tx, g *Graph, path string, raise bool) (deepview.Record, error) {
	fields := make(map[string]any, len(g.Fields))
	for k, v := range g.Fields {
		fields[k] = v
	}
	if issues := e.validate.Validate(g.Type, fields); len(issues) > 0 {
		if raise {
			return nil, validationError(g.Type, path, issues)
		}
		for name := range issues {
			delete(fields, name)
		}
	}

	children := make(map[string]deepview.Record, len(g.ToOne))
	for _, rel := range g.Type.Relations {
		if rel.Kind != schema.ToOne {
			continue
		}
		child, ok := g.ToOne[rel.Name]
		if !ok {
			continue
		}
		if child == nil {
			fields[rel.Column] = nil
			continue
		}
		childRec, err := e.upsertNode(ctx, tx, child, joinPath(path, rel.Name), raise)
		if err != nil {
			return nil, err
		}
		fields[rel.Column] = childRec.ID()
		children[rel.Name] = childRec
	}

	if _, ok := fields["id"]; !ok && e.newID != nil {
		fields["id"] = e.newID()
	}
	rec, err := tx.Save(ctx, g.Type, fields)
	if err != nil {
		return nil, err
	}
	for name, childRec := range children {
		rec[name] = childRec
	}

	for _, rel := range g.Type.Relations {
		if !rel.Kind.Many() {
			continue
		}
		nodes, ok := g.ToMany[rel.Name]
		if !ok {
			continue
		}
		childRecs := make([]deepview.Record, 0, len(nodes))
		for i, child := range nodes {
			if rel.Kind == schema.Reverse {
				// The child row carries the foreign key back to this
				// node; inject it before the child is persisted.
				if child.Fields == nil {
					child.Fields = make(map[string]any)
				}
				child.Fields[rel.Column] = rec.ID()
			}
			childRec, err := e.upsertNode(ctx, tx, child, indexPath(joinPath(path, rel.Name), i), raise)
			if err != nil {
				return nil, err
			}
			if rel.Kind == schema.ToMany {
				if err := tx.Associate(ctx, g.Type, rel, rec.ID(), childRec.ID()); err != nil {
					return nil, err
				}
			}
			childRecs = append(childRecs, childRec)
		}
		rec[rel.Name] = childRecs
	}
	return rec, nil
}

// validationError assembles a deterministic error from per-field issues.
func validationError(t *schema.EntityType, path string, issues map[string]error) error {
	names := make([]string, 0, len(issues))
	for name := range issues {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, issues[name])
	}
	return deepview.NewValidationError(t.Name, path, names, errors.Join(errs...))
}
