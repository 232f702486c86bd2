package sql_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/deepview/dialect/sql"
)

func TestConstraintClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		unique     bool
		foreignKey bool
		check      bool
	}{
		{
			name:   "postgres unique",
			err:    &pq.Error{Code: "23505", Message: "duplicate key value"},
			unique: true,
		},
		{
			name:       "postgres foreign key",
			err:        &pq.Error{Code: "23503", Message: "insert or update on table"},
			foreignKey: true,
		},
		{
			name:  "postgres check",
			err:   &pq.Error{Code: "23514", Message: "new row violates check"},
			check: true,
		},
		{
			name:   "mysql duplicate entry",
			err:    &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ann' for key 'users.name'"},
			unique: true,
		},
		{
			name:       "mysql child foreign key",
			err:        &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"},
			foreignKey: true,
		},
		{
			name:       "mysql parent foreign key",
			err:        &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"},
			foreignKey: true,
		},
		{
			name:  "mysql check",
			err:   &mysql.MySQLError{Number: 3819, Message: "Check constraint 'age_chk' is violated"},
			check: true,
		},
		{
			name:   "sqlite unique string",
			err:    errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)"),
			unique: true,
		},
		{
			name:       "sqlite foreign key string",
			err:        errors.New("constraint failed: FOREIGN KEY constraint failed (787)"),
			foreignKey: true,
		},
		{
			name:   "wrapped by the driver",
			err:    fmt.Errorf("dialect/sql: exec: %w", &pq.Error{Code: "23505"}),
			unique: true,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset by peer"),
		},
		{
			name: "nil",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.unique, sql.IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.foreignKey, sql.IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.check, sql.IsCheckConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.foreignKey || tt.check, sql.IsConstraintError(tt.err))
		})
	}
}
