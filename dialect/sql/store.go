package sql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/dialect"
	"github.com/syssam/deepview/schema"
	"github.com/syssam/deepview/write"
)

// Store adapts a SQL driver to the transactional write.Store contract.
type Store struct {
	drv *Driver
}

// NewStore returns a Store writing through drv.
func NewStore(drv *Driver) *Store {
	return &Store{drv: drv}
}

var _ write.Store = (*Store)(nil)

// Tx opens a database transaction for one nested write.
func (s *Store) Tx(ctx context.Context) (write.Tx, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx, dialect: s.drv.Dialect()}, nil
}

type storeTx struct {
	tx      dialect.Tx
	dialect string
}

// Save updates the row named by fields["id"] or inserts a new one. It
// returns the persisted record including the final identity.
func (t *storeTx) Save(ctx context.Context, et *schema.EntityType, fields map[string]any) (deepview.Record, error) {
	if id, ok := fields["id"]; ok {
		done, err := t.update(ctx, et, id, fields)
		if err != nil {
			return nil, err
		}
		if done {
			return record(fields), nil
		}
	}
	return t.insert(ctx, et, fields)
}

// update applies the non-identity fields to the existing row and
// reports whether a row matched. A payload carrying only an identity
// degenerates to an existence check.
func (t *storeTx) update(ctx context.Context, et *schema.EntityType, id any, fields map[string]any) (bool, error) {
	cols := sortedColumns(fields, true)
	d := t.dialect
	if len(cols) == 0 {
		stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			ident(d, "id"), ident(d, et.Table), ident(d, "id"), placeholders(d, 1, 1))
		var rows Rows
		if err := t.tx.Query(ctx, stmt, []any{id}, &rows); err != nil {
			return false, err
		}
		defer rows.Close()
		return rows.Next(), rows.Err()
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = %s", ident(d, col), placeholders(d, i+1, 1))
		args = append(args, fields[col])
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		ident(d, et.Table), strings.Join(sets, ", "), ident(d, "id"), placeholders(d, len(cols)+1, 1))
	args = append(args, id)
	var res sql.Result
	if err := t.tx.Exec(ctx, stmt, args, &res); err != nil {
		return false, constraint(et, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// insert creates the row. When the caller supplies no identity the
// storage-assigned one is read back, via RETURNING on postgres and the
// driver's last-insert id elsewhere.
func (t *storeTx) insert(ctx context.Context, et *schema.EntityType, fields map[string]any) (deepview.Record, error) {
	cols := sortedColumns(fields, false)
	d := t.dialect
	args := make([]any, len(cols))
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = ident(d, col)
		args[i] = fields[col]
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident(d, et.Table), strings.Join(quoted, ", "), placeholders(d, 1, len(cols)))
	rec := record(fields)
	_, hasID := fields["id"]
	if !hasID && d == dialect.Postgres {
		stmt += " RETURNING " + ident(d, "id")
		var rows Rows
		if err := t.tx.Query(ctx, stmt, args, &rows); err != nil {
			return nil, constraint(et, err)
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("sql: insert into %s returned no identity", et.Table)
		}
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		rec["id"] = id
		return rec, nil
	}
	var res sql.Result
	if err := t.tx.Exec(ctx, stmt, args, &res); err != nil {
		return nil, constraint(et, err)
	}
	if !hasID {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		rec["id"] = id
	}
	return rec, nil
}

// Associate links owner and target through the relation's join table.
// An already-present link is left in place.
func (t *storeTx) Associate(ctx context.Context, owner *schema.EntityType, rel schema.Relation, ownerID, targetID any) error {
	d := t.dialect
	verb := "INSERT"
	suffix := ""
	switch d {
	case dialect.Postgres, dialect.SQLite:
		suffix = " ON CONFLICT DO NOTHING"
	case dialect.MySQL:
		verb = "INSERT IGNORE"
	}
	stmt := fmt.Sprintf("%s INTO %s (%s, %s) VALUES (%s)%s",
		verb, ident(d, rel.Through), ident(d, rel.ThroughColumn), ident(d, rel.Column),
		placeholders(d, 1, 2), suffix)
	if err := t.tx.Exec(ctx, stmt, []any{ownerID, targetID}, nil); err != nil {
		return constraint(owner, err)
	}
	return nil
}

func (t *storeTx) Commit() error { return t.tx.Commit() }

func (t *storeTx) Rollback() error { return t.tx.Rollback() }

// constraint classifies a driver error, folding constraint violations
// into the engine's constraint error type.
func constraint(et *schema.EntityType, err error) error {
	if IsConstraintError(err) {
		return deepview.NewConstraintError(fmt.Sprintf("%s: %s", et.Name, err), err)
	}
	return err
}

// sortedColumns returns the field names in deterministic statement
// order, optionally excluding the identity column.
func sortedColumns(fields map[string]any, skipID bool) []string {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if skipID && col == "id" {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func record(fields map[string]any) deepview.Record {
	rec := make(deepview.Record, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	return rec
}
