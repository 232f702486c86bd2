// Package dialect provides the storage driver abstraction used by
// deepview. It defines the interfaces the query executor and the write
// store are built on, allowing multiple database backends.
package dialect

import "context"

// Supported dialects.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two basic operations of a database connection
// or transaction.
type ExecQuerier interface {
	// Exec executes a query that does not return records, e.g. INSERT
	// or UPDATE. v is an optional destination for the result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows. v is the destination
	// for the rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal interface a storage backend implements.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(ctx context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx is a database transaction.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}
