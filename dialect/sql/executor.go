package sql

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/dialect"
	"github.com/syssam/deepview/query"
	"github.com/syssam/deepview/schema"
)

// Executor runs fetch plans against a SQL database. Root records are
// selected with the plan's predicates and ordering; eager-loaded
// relations are fetched in one batched follow-up query per path
// segment, never one query per record.
type Executor struct {
	drv   *Driver
	graph *schema.Graph
}

// NewExecutor returns an Executor for the given driver and schema graph.
func NewExecutor(drv *Driver, g *schema.Graph) *Executor {
	return &Executor{drv: drv, graph: g}
}

// Fetch executes plan for the entity type t and returns the matching
// records with all planned relation paths loaded.
func (e *Executor) Fetch(ctx context.Context, t *schema.EntityType, plan *query.Plan) ([]deepview.Record, error) {
	recs, err := e.fetchRoots(ctx, t, plan)
	if err != nil {
		return nil, err
	}
	if err := e.eagerLoad(ctx, t, recs, plan.EagerLoad); err != nil {
		return nil, err
	}
	return recs, nil
}

// FetchOne executes plan narrowed to a single identity. It returns a
// *deepview.NotFoundError when no record matches.
func (e *Executor) FetchOne(ctx context.Context, t *schema.EntityType, id any, plan *query.Plan) (deepview.Record, error) {
	p := *plan
	p.Filters = append(append([]query.Filter{}, plan.Filters...), query.Filter{Field: "id", Value: fmt.Sprint(id)})
	recs, err := e.Fetch(ctx, t, &p)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, deepview.NewNotFoundErrorWithID(t.Name, id)
	}
	return recs[0], nil
}

// fetchRoots selects the root records, joining related tables as needed
// by dotted filter and ordering fields.
func (e *Executor) fetchRoots(ctx context.Context, t *schema.EntityType, plan *query.Plan) ([]deepview.Record, error) {
	s := newSelector(e.drv.Dialect(), e.graph, t)
	for _, f := range plan.Filters {
		if err := s.filter(f.Field, f.Value); err != nil {
			return nil, err
		}
	}
	for _, o := range plan.OrderBy {
		if err := s.orderBy(o.Field, o.Desc); err != nil {
			return nil, err
		}
	}
	stmt, args := s.build()
	return e.queryRecords(ctx, stmt, args)
}

// queryRecords runs a SELECT and scans every row into a generic record.
func (e *Executor) queryRecords(ctx context.Context, stmt string, args []any) ([]deepview.Record, error) {
	var rows Rows
	if err := e.drv.Query(ctx, stmt, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var recs []deepview.Record
	for rows.Next() {
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := make(deepview.Record, len(cols))
		for i, col := range cols {
			v := *dest[i].(*any)
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			rec[col] = v
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// eagerLoad attaches the relation records named by paths to recs,
// descending one path segment at a time.
func (e *Executor) eagerLoad(ctx context.Context, t *schema.EntityType, recs []deepview.Record, paths []string) error {
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
	segs := make([]string, 0, len(grouped))
	for seg := range grouped {
		segs = append(segs, seg)
	}
	sort.Strings(segs)
	for _, seg := range segs {
		rel, ok := t.Relation(seg)
		if !ok {
			return deepview.NewSchemaError(t.Name, seg, "eager-load path names an undeclared relation")
		}
		children, err := e.loadRelation(ctx, t, rel, recs)
		if err != nil {
			return err
		}
		if err := e.eagerLoad(ctx, e.graph.Target(rel), children, grouped[seg]); err != nil {
			return err
		}
	}
	return nil
}

// loadRelation fetches one relation for all parent records in a single
// batch and wires the results in. It returns the distinct child records
// for recursive loading.
func (e *Executor) loadRelation(ctx context.Context, t *schema.EntityType, rel schema.Relation, parents []deepview.Record) ([]deepview.Record, error) {
	target := e.graph.Target(rel)
	switch rel.Kind {
	case schema.ToOne:
		keys := collectKeys(parents, rel.Column)
		byID, children, err := e.selectByKeys(ctx, target.Table, "id", keys)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			if child, ok := byID[keyOf(p[rel.Column])]; ok {
				p[rel.Name] = child
			}
		}
		return children, nil
	case schema.Reverse:
		keys := collectKeys(parents, "id")
		_, children, err := e.selectByKeys(ctx, target.Table, rel.Column, keys)
		if err != nil {
			return nil, err
		}
		grouped := make(map[string][]deepview.Record)
		for _, c := range children {
			grouped[keyOf(c[rel.Column])] = append(grouped[keyOf(c[rel.Column])], c)
		}
		for _, p := range parents {
			group := grouped[keyOf(p["id"])]
			if group == nil {
				group = []deepview.Record{}
			}
			p[rel.Name] = group
		}
		return children, nil
	default: // ToMany through a join table
		keys := collectKeys(parents, "id")
		pairs, err := e.joinPairs(ctx, rel, keys)
		if err != nil {
			return nil, err
		}
		childKeys := make([]any, 0, len(pairs))
		seen := make(map[string]struct{})
		for _, pr := range pairs {
			if _, ok := seen[keyOf(pr.target)]; !ok {
				seen[keyOf(pr.target)] = struct{}{}
				childKeys = append(childKeys, pr.target)
			}
		}
		byID, children, err := e.selectByKeys(ctx, target.Table, "id", childKeys)
		if err != nil {
			return nil, err
		}
		grouped := make(map[string][]deepview.Record)
		for _, pr := range pairs {
			if child, ok := byID[keyOf(pr.target)]; ok {
				grouped[keyOf(pr.owner)] = append(grouped[keyOf(pr.owner)], child)
			}
		}
		for _, p := range parents {
			group := grouped[keyOf(p["id"])]
			if group == nil {
				group = []deepview.Record{}
			}
			p[rel.Name] = group
		}
		return children, nil
	}
}

type joinPair struct {
	owner, target any
}

// joinPairs reads the (owner, target) id pairs of a ToMany relation for
// the given owner keys.
func (e *Executor) joinPairs(ctx context.Context, rel schema.Relation, keys []any) ([]joinPair, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	d := e.drv.Dialect()
	stmt := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		ident(d, rel.ThroughColumn), ident(d, rel.Column), ident(d, rel.Through),
		ident(d, rel.ThroughColumn), placeholders(d, 1, len(keys)))
	var rows Rows
	if err := e.drv.Query(ctx, stmt, keys, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var pairs []joinPair
	for rows.Next() {
		var owner, target any
		if err := rows.Scan(&owner, &target); err != nil {
			return nil, err
		}
		pairs = append(pairs, joinPair{owner: owner, target: target})
	}
	return pairs, rows.Err()
}

// selectByKeys selects all rows of table whose column is in keys,
// returning them indexed by id and as a slice.
func (e *Executor) selectByKeys(ctx context.Context, table, column string, keys []any) (map[string]deepview.Record, []deepview.Record, error) {
	if len(keys) == 0 {
		return nil, nil, nil
	}
	d := e.drv.Dialect()
	stmt := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		ident(d, table), ident(d, column), placeholders(d, 1, len(keys)))
	recs, err := e.queryRecords(ctx, stmt, keys)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]deepview.Record, len(recs))
	for _, r := range recs {
		byID[keyOf(r["id"])] = r
	}
	return byID, recs, nil
}

// collectKeys returns the distinct non-nil values of column across recs.
func collectKeys(recs []deepview.Record, column string) []any {
	seen := make(map[string]struct{}, len(recs))
	keys := make([]any, 0, len(recs))
	for _, r := range recs {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		if _, dup := seen[keyOf(v)]; dup {
			continue
		}
		seen[keyOf(v)] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

// keyOf normalizes an identity value for map indexing, so int64 ids
// from scans match int or string ids from payloads.
func keyOf(v any) string {
	return fmt.Sprint(v)
}

// ident quotes a SQL identifier per dialect after validating it.
func ident(d, name string) string {
	if !isValidIdentifier(name) {
		// Identifiers originate in the validated schema graph; a bad
		// one is a programming error surfaced loudly at query time.
		panic(fmt.Sprintf("dialect/sql: invalid identifier %q", name))
	}
	if d == dialect.MySQL {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// placeholders renders n statement placeholders starting at position
// start (1-based, relevant for the postgres $N form).
func placeholders(d string, start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		if d == dialect.Postgres {
			ph[i] = "$" + strconv.Itoa(start+i)
		} else {
			ph[i] = "?"
		}
	}
	return strings.Join(ph, ", ")
}

// selector accumulates the base SELECT of a fetch plan: joins for
// dotted fields, equality predicates and ordering.
type selector struct {
	dialect  string
	graph    *schema.Graph
	root     *schema.EntityType
	joins    []string
	aliases  map[string]string // relation path -> table alias
	where    []string
	args     []any
	order    []string
	distinct bool
	nextID   int
}

func newSelector(d string, g *schema.Graph, root *schema.EntityType) *selector {
	return &selector{
		dialect: d,
		graph:   g,
		root:    root,
		aliases: map[string]string{"": "t0"},
		nextID:  1,
	}
}

// filter adds an equality predicate on a field name or dotted path.
func (s *selector) filter(field, value string) error {
	alias, column, err := s.resolve(field)
	if err != nil {
		return err
	}
	s.where = append(s.where, fmt.Sprintf("%s.%s = %s", alias, ident(s.dialect, column), placeholders(s.dialect, len(s.args)+1, 1)))
	s.args = append(s.args, value)
	return nil
}

// orderBy adds an ordering key on a field name or dotted path.
func (s *selector) orderBy(field string, desc bool) error {
	alias, column, err := s.resolve(field)
	if err != nil {
		return err
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	s.order = append(s.order, fmt.Sprintf("%s.%s %s", alias, ident(s.dialect, column), dir))
	return nil
}

// resolve walks a dotted field down the relation graph, adding joins as
// needed, and returns the table alias and column carrying the value. A
// path ending on a relation name compares against the target identity.
func (s *selector) resolve(field string) (alias, column string, err error) {
	segs := schema.Segments(field)
	cur := s.root
	path := ""
	for i, seg := range segs {
		last := i == len(segs)-1
		if last {
			if _, ok := cur.Field(seg); ok || seg == "id" {
				return s.aliases[path], seg, nil
			}
		}
		rel, ok := cur.Relation(seg)
		if !ok {
			return "", "", deepview.NewSchemaError(cur.Name, seg, "filter path names an undeclared relation")
		}
		path = joinedPath(path, seg)
		if err := s.join(path, rel); err != nil {
			return "", "", err
		}
		cur = s.graph.Target(rel)
	}
	// The path ended on a relation: compare the target identity.
	return s.aliases[path], "id", nil
}

// join ensures the relation at path is joined, reusing existing joins
// for shared prefixes.
func (s *selector) join(path string, rel schema.Relation) error {
	if _, ok := s.aliases[path]; ok {
		return nil
	}
	parent := s.aliases[parentPath(path)]
	target := s.graph.Target(rel)
	alias := "t" + strconv.Itoa(s.nextID)
	s.nextID++
	d := s.dialect
	switch rel.Kind {
	case schema.ToOne:
		s.joins = append(s.joins, fmt.Sprintf("JOIN %s %s ON %s.%s = %s.%s",
			ident(d, target.Table), alias, parent, ident(d, rel.Column), alias, ident(d, "id")))
	case schema.Reverse:
		s.joins = append(s.joins, fmt.Sprintf("JOIN %s %s ON %s.%s = %s.%s",
			ident(d, target.Table), alias, alias, ident(d, rel.Column), parent, ident(d, "id")))
		s.distinct = true
	default: // ToMany
		through := "j" + strconv.Itoa(s.nextID)
		s.nextID++
		s.joins = append(s.joins,
			fmt.Sprintf("JOIN %s %s ON %s.%s = %s.%s",
				ident(d, rel.Through), through, through, ident(d, rel.ThroughColumn), parent, ident(d, "id")),
			fmt.Sprintf("JOIN %s %s ON %s.%s = %s.%s",
				ident(d, target.Table), alias, alias, ident(d, "id"), through, ident(d, rel.Column)))
		s.distinct = true
	}
	s.aliases[path] = alias
	return nil
}

// build renders the SELECT statement and its arguments.
func (s *selector) build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString("t0.* FROM ")
	b.WriteString(ident(s.dialect, s.root.Table))
	b.WriteString(" t0")
	for _, j := range s.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(s.order, ", "))
	}
	return b.String(), s.args
}

// joinedPath appends a segment to a dotted path.
func joinedPath(path, seg string) string {
	if path == "" {
		return seg
	}
	return path + schema.PathSeparator + seg
}

// parentPath strips the last segment of a dotted path.
func parentPath(path string) string {
	if i := strings.LastIndex(path, schema.PathSeparator); i >= 0 {
		return path[:i]
	}
	return ""
}
