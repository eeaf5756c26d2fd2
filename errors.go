package tablemap

import (
	"errors"
	"fmt"
)

// Standard sentinel errors. Every typed error below matches one of them
// through errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("tablemap: entity not found")

	// ErrNotSingular is returned when a primary key lookup matches more
	// than one row.
	ErrNotSingular = errors.New("tablemap: entity not singular")

	// ErrConfig is matched by every ConfigError.
	ErrConfig = errors.New("tablemap: configuration error")

	// ErrConversion is matched by every ConversionError.
	ErrConversion = errors.New("tablemap: conversion error")

	// ErrAutoIncrement is returned when the database reports the zero id
	// after an insert, i.e. the primary key column is not auto-increment.
	ErrAutoIncrement = errors.New("tablemap: auto-increment not enabled")

	// ErrUnsavedReference is returned when a scalar foreign key points to an
	// entity whose primary key has not been assigned yet.
	ErrUnsavedReference = errors.New("tablemap: referenced entity is not persisted")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("tablemap: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("tablemap: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError with the ID that was searched for.
func NewNotFoundError(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents a primary key lookup returning several rows.
type NotSingularError struct {
	label string
	count int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	return fmt.Sprintf("tablemap: %s not singular (got %d results, expected 1)", e.label, e.count)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// NewNotSingularError returns a new NotSingularError with the result count.
func NewNotSingularError(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// ConfigError reports an invalid mapping or registry setup. It is never
// retried.
type ConfigError struct {
	Entity string // Entity type name
	Field  string // Property name, if the problem is field specific
	Msg    string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("tablemap: %s.%s: %s", e.Entity, e.Field, e.Msg)
	}
	return fmt.Sprintf("tablemap: %s: %s", e.Entity, e.Msg)
}

// Is reports whether the target error matches ConfigError.
func (e *ConfigError) Is(err error) bool {
	return err == ErrConfig
}

func configErrorf(entity, field, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// ConversionError reports a value that cannot be coerced to the native type
// of a property.
type ConversionError struct {
	Property string
	From     any    // The offending value
	To       string // Destination type
	Err      error  // Underlying parse error, if any
}

// Error returns the error string.
func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("tablemap: cannot convert %T(%v) to %s for %q", e.From, e.From, e.To, e.Property)
	if e.From == nil {
		msg = fmt.Sprintf("tablemap: cannot assign NULL to non-nullable %s for %q", e.To, e.Property)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether the target error matches ConversionError.
func (e *ConversionError) Is(err error) bool {
	return err == ErrConversion
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsConversionError returns true if the error is a ConversionError.
func IsConversionError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConversionError
	return errors.As(err, &e)
}

// IntegrityError reports a database state that contradicts the mapping.
type IntegrityError struct {
	Entity string
	Err    error // ErrAutoIncrement or ErrUnsavedReference
}

// Error returns the error string.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Entity)
}

// Unwrap returns the underlying error.
func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError returns true if the error is an IntegrityError.
func IsIntegrityError(err error) bool {
	if err == nil {
		return false
	}
	var e *IntegrityError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("tablemap: constraint failed: %s", e.msg)
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

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "get", "all", "keys")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("tablemap: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("tablemap: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation (e.g., "create", "update", "delete")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("tablemap: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
