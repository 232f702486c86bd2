// Package memstore provides an in-memory storage backend implementing
// both the fetch and the transactional write contracts. It backs tests
// and small tools that need full traversal semantics without a
// database.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/query"
	"github.com/syssam/deepview/schema"
	"github.com/syssam/deepview/write"
)

type link struct {
	owner, target string
}

// Store keeps one map of records per entity table and one set of id
// pairs per join table. All reads return copies; stored records are
// never aliased to callers.
type Store struct {
	graph *schema.Graph
	coll  *collate.Collator

	mu     sync.RWMutex
	tables map[string]map[string]deepview.Record
	links  map[string]map[link]struct{}
	serial atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithLanguage sets the collation language used for string ordering.
func WithLanguage(tag language.Tag) Option {
	return func(s *Store) { s.coll = collate.New(tag) }
}

// NewStore returns an empty Store for the given schema graph. String
// ordering defaults to the root collation.
func NewStore(g *schema.Graph, opts ...Option) *Store {
	s := &Store{
		graph:  g,
		coll:   collate.New(language.Und),
		tables: make(map[string]map[string]deepview.Record),
		links:  make(map[string]map[link]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ write.Store = (*Store)(nil)

// Seed inserts records directly, outside any transaction. Records must
// carry an "id". Intended for test fixtures.
func (s *Store) Seed(t *schema.EntityType, recs ...deepview.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		s.put(t.Table, rec.Clone())
	}
}

// SeedLink records a join-table pair, outside any transaction.
func (s *Store) SeedLink(through string, ownerID, targetID any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLink(through, ownerID, targetID)
}

func (s *Store) put(table string, rec deepview.Record) {
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]deepview.Record)
		s.tables[table] = rows
	}
	rows[idKey(rec.ID())] = rec
}

func (s *Store) addLink(through string, ownerID, targetID any) {
	pairs, ok := s.links[through]
	if !ok {
		pairs = make(map[link]struct{})
		s.links[through] = pairs
	}
	pairs[link{owner: idKey(ownerID), target: idKey(targetID)}] = struct{}{}
}

// idKey normalizes identity values so int64 and string forms of the
// same id collide.
func idKey(v any) string {
	return fmt.Sprint(v)
}

// Fetch evaluates plan against the stored records of t. Results are
// deep copies ordered by the plan's keys, with every planned relation
// path attached.
func (s *Store) Fetch(ctx context.Context, t *schema.EntityType, plan *query.Plan) ([]deepview.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []deepview.Record
	for _, rec := range s.tables[t.Table] {
		ok, err := s.matches(t, rec, plan.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			recs = append(recs, rec.Clone())
		}
	}
	if err := s.order(t, recs, plan.OrderBy); err != nil {
		return nil, err
	}
	if err := s.attach(t, recs, plan.EagerLoad); err != nil {
		return nil, err
	}
	return recs, nil
}

// FetchOne evaluates plan narrowed to a single identity. It returns a
// *deepview.NotFoundError when no record matches.
func (s *Store) FetchOne(ctx context.Context, t *schema.EntityType, id any, plan *query.Plan) (deepview.Record, error) {
	p := *plan
	p.Filters = append(append([]query.Filter{}, plan.Filters...), query.Filter{Field: "id", Value: fmt.Sprint(id)})
	recs, err := s.Fetch(ctx, t, &p)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, deepview.NewNotFoundErrorWithID(t.Name, id)
	}
	return recs[0], nil
}

// matches reports whether rec satisfies every filter. A dotted filter
// matches when any record reachable over the path carries the value.
func (s *Store) matches(t *schema.EntityType, rec deepview.Record, filters []query.Filter) (bool, error) {
	for _, f := range filters {
		vals, err := s.valuesAt(t, rec, schema.Segments(f.Field))
		if err != nil {
			return false, err
		}
		hit := false
		for _, v := range vals {
			if fmt.Sprint(v) == f.Value {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

// valuesAt collects the values reachable from rec over a dotted path.
// The final segment may be a scalar field or a relation; a relation
// terminal yields the related identities.
func (s *Store) valuesAt(t *schema.EntityType, rec deepview.Record, segs []string) ([]any, error) {
	seg := segs[0]
	if len(segs) == 1 {
		if _, ok := t.Field(seg); ok || seg == "id" {
			if v, ok := rec[seg]; ok && v != nil {
				return []any{v}, nil
			}
			return nil, nil
		}
	}
	rel, ok := t.Relation(seg)
	if !ok {
		return nil, deepview.NewSchemaError(t.Name, seg, "filter path names an undeclared relation")
	}
	related := s.related(t, rel, rec)
	if len(segs) == 1 {
		vals := make([]any, 0, len(related))
		for _, r := range related {
			vals = append(vals, r.ID())
		}
		return vals, nil
	}
	target := s.graph.Target(rel)
	var vals []any
	for _, r := range related {
		vs, err := s.valuesAt(target, r, segs[1:])
		if err != nil {
			return nil, err
		}
		vals = append(vals, vs...)
	}
	return vals, nil
}

// related returns the records reachable from rec over one relation.
// Results alias stored records and must not escape without cloning.
func (s *Store) related(t *schema.EntityType, rel schema.Relation, rec deepview.Record) []deepview.Record {
	target := s.graph.Target(rel)
	switch rel.Kind {
	case schema.ToOne:
		fk, ok := rec[rel.Column]
		if !ok || fk == nil {
			return nil
		}
		if child, ok := s.tables[target.Table][idKey(fk)]; ok {
			return []deepview.Record{child}
		}
		return nil
	case schema.Reverse:
		id := idKey(rec.ID())
		var out []deepview.Record
		for _, key := range sortedKeys(s.tables[target.Table]) {
			child := s.tables[target.Table][key]
			if fk, ok := child[rel.Column]; ok && fk != nil && idKey(fk) == id {
				out = append(out, child)
			}
		}
		return out
	default: // ToMany
		id := idKey(rec.ID())
		var out []deepview.Record
		for _, key := range sortedLinks(s.links[rel.Through]) {
			if key.owner != id {
				continue
			}
			if child, ok := s.tables[target.Table][key.target]; ok {
				out = append(out, child)
			}
		}
		return out
	}
}

// order sorts recs by the plan's keys, collating strings and comparing
// numbers numerically.
func (s *Store) order(t *schema.EntityType, recs []deepview.Record, keys []query.Order) error {
	for _, o := range keys {
		segs := schema.Segments(o.Field)
		if len(segs) == 1 {
			if _, ok := t.Field(segs[0]); !ok && segs[0] != "id" {
				if _, ok := t.Relation(segs[0]); !ok {
					return deepview.NewSchemaError(t.Name, segs[0], "ordering path names an undeclared field")
				}
			}
		}
	}
	var sortErr error
	sort.SliceStable(recs, func(i, j int) bool {
		for _, o := range keys {
			vi, err := s.valuesAt(t, recs[i], schema.Segments(o.Field))
			if err != nil && sortErr == nil {
				sortErr = err
			}
			vj, err := s.valuesAt(t, recs[j], schema.Segments(o.Field))
			if err != nil && sortErr == nil {
				sortErr = err
			}
			c := s.compare(first(vi), first(vj))
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}

func first(vals []any) any {
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

// compare orders two scalar values: nils first, numbers numerically,
// everything else by collated string form.
func (s *Store) compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return s.coll.CompareString(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// attach loads the relation records named by paths onto recs.
func (s *Store) attach(t *schema.EntityType, recs []deepview.Record, paths []string) error {
	if len(recs) == 0 || len(paths) == 0 {
		return nil
	}
	grouped := make(map[string][]string)
	for _, p := range paths {
		seg, rest, _ := strings.Cut(p, schema.PathSeparator)
		if rest != "" {
			grouped[seg] = append(grouped[seg], rest)
		} else if _, ok := grouped[seg]; !ok {
			grouped[seg] = nil
		}
	}
	for _, seg := range sortedKeys(grouped) {
		rel, ok := t.Relation(seg)
		if !ok {
			return deepview.NewSchemaError(t.Name, seg, "eager-load path names an undeclared relation")
		}
		target := s.graph.Target(rel)
		var children []deepview.Record
		for _, rec := range recs {
			related := s.related(t, rel, rec)
			clones := make([]deepview.Record, len(related))
			for i, r := range related {
				clones[i] = r.Clone()
			}
			children = append(children, clones...)
			if rel.Kind == schema.ToOne {
				if len(clones) > 0 {
					rec[rel.Name] = clones[0]
				}
			} else {
				rec[rel.Name] = clones
			}
		}
		if err := s.attach(target, children, grouped[seg]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[M map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedLinks(m map[link]struct{}) []link {
	pairs := make([]link, 0, len(m))
	for k := range m {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].owner != pairs[j].owner {
			return pairs[i].owner < pairs[j].owner
		}
		return pairs[i].target < pairs[j].target
	})
	return pairs
}

// Tx opens a write transaction. The store is locked for the duration
// of the transaction; a rollback restores the snapshot taken here.
func (s *Store) Tx(ctx context.Context) (write.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &memTx{store: s, tables: snapshotTables(s.tables), links: snapshotLinks(s.links)}, nil
}

type memTx struct {
	store  *Store
	tables map[string]map[string]deepview.Record
	links  map[string]map[link]struct{}
	done   bool
}

// Save inserts or merges a record. Unknown identities create a new
// record; known ones receive the given fields on top of the stored
// state.
func (t *memTx) Save(ctx context.Context, et *schema.EntityType, fields map[string]any) (deepview.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, ok := fields["id"]
	if !ok || id == nil {
		id = t.store.serial.Add(1)
	}
	rec, ok := t.store.tables[et.Table][idKey(id)]
	if !ok {
		rec = deepview.Record{"id": id}
	} else {
		rec = rec.Clone()
	}
	for k, v := range fields {
		rec[k] = v
	}
	t.store.put(et.Table, rec)
	return rec.Clone(), nil
}

// Associate records the join-table pair of a to-many relation.
func (t *memTx) Associate(ctx context.Context, owner *schema.EntityType, rel schema.Relation, ownerID, targetID any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.addLink(rel.Through, ownerID, targetID)
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.tables = t.tables
	t.store.links = t.links
	t.store.mu.Unlock()
	return nil
}

func snapshotTables(tables map[string]map[string]deepview.Record) map[string]map[string]deepview.Record {
	snap := make(map[string]map[string]deepview.Record, len(tables))
	for table, rows := range tables {
		rc := make(map[string]deepview.Record, len(rows))
		for id, rec := range rows {
			rc[id] = rec.Clone()
		}
		snap[table] = rc
	}
	return snap
}

func snapshotLinks(links map[string]map[link]struct{}) map[string]map[link]struct{} {
	snap := make(map[string]map[link]struct{}, len(links))
	for through, pairs := range links {
		pc := make(map[link]struct{}, len(pairs))
		for p := range pairs {
			pc[p] = struct{}{}
		}
		snap[through] = pc
	}
	return snap
}
