package deepview

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("deepview: record not found")

	// ErrReadOnly is returned when a write is attempted through a
	// handler whose use case does not allow writes.
	ErrReadOnly = errors.New("deepview: handler is read-only")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("deepview: cannot start a transaction within a transaction")
)

// SchemaError reports an inconsistency in the entity graph, such as a
// relation that targets an undeclared entity type. It is fatal at
// startup and never recoverable at request time.
type SchemaError struct {
	Entity   string // entity type owning the offending relation
	Relation string // relation name, empty for entity-level problems
	msg      string
}

// Error returns the error string.
func (e *SchemaError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("deepview: schema: %s.%s: %s", e.Entity, e.Relation, e.msg)
	}
	return fmt.Sprintf("deepview: schema: %s: %s", e.Entity, e.msg)
}

// NewSchemaError returns a new SchemaError for the given entity and relation.
func NewSchemaError(entity, relation, format string, args ...any) *SchemaError {
	return &SchemaError{Entity: entity, Relation: relation, msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError returns true if the error is a SchemaError.
func IsSchemaError(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaError
	return errors.As(err, &e)
}

// InvalidParameterError reports a type-malformed request parameter,
// e.g. a non-integer depth. Semantically unknown filter and ordering
// keys are dropped silently and never produce this error.
type InvalidParameterError struct {
	Param string // parameter name
	Value string // raw value as received
	Err   error  // underlying parse error, may be nil
}

// Error returns the error string.
func (e *InvalidParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deepview: invalid parameter %q=%q: %s", e.Param, e.Value, e.Err)
	}
	return fmt.Sprintf("deepview: invalid parameter %q=%q", e.Param, e.Value)
}

// Unwrap returns the underlying error.
func (e *InvalidParameterError) Unwrap() error {
	return e.Err
}

// NewInvalidParameterError returns a new InvalidParameterError for the given parameter.
func NewInvalidParameterError(param, value string, err error) *InvalidParameterError {
	return &InvalidParameterError{Param: param, Value: value, Err: err}
}

// IsInvalidParameter returns true if the error is an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	if err == nil {
		return false
	}
	var e *InvalidParameterError
	return errors.As(err, &e)
}

// ValidationError reports a node in a nested write that failed field
// validation. Path locates the node inside the write graph ("" for the
// root, "comments.author" for nested nodes) and Fields names the
// offending fields.
type ValidationError struct {
	Entity string   // entity type of the failing node
	Path   string   // dotted path of the node within the write graph
	Fields []string // failing field names
	Err    error    // underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	loc := e.Entity
	if e.Path != "" {
		loc = fmt.Sprintf("%s (at %q)", e.Entity, e.Path)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("deepview: validation failed for %s, field(s) %s: %s", loc, strings.Join(e.Fields, ", "), e.Err)
	}
	return fmt.Sprintf("deepview: validation failed for %s: %s", loc, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given node.
func NewValidationError(entity, path string, fields []string, err error) *ValidationError {
	return &ValidationError{Entity: entity, Path: path, Fields: fields, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// ConstraintError represents a storage constraint violation surfaced by
// a write. The underlying driver error is preserved for inspection.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("deepview: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// NotFoundError represents an error when a record of a given entity
// type is not found.
type NotFoundError struct {
	entity string
	id     any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("deepview: %s not found (id=%v)", e.entity, e.id)
	}
	return fmt.Sprintf("deepview: %s not found", e.entity)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Entity returns the entity type name.
func (e *NotFoundError) Entity() string {
	return e.entity
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(entity string) *NotFoundError {
	return &NotFoundError{entity: entity}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(entity string, id any) *NotFoundError {
	return &NotFoundError{entity: entity, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("deepview: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
