package schema

import (
	"errors"
	"fmt"
)

// ErrSchema matches every malformed-entity-description error.
var ErrSchema = errors.New("lattice: invalid entity schema")

// Error describes why an entity description could not be turned into a
// [Descriptor]. It matches [ErrSchema] with errors.Is.
type Error struct {
	Entity string
	Field  string
	Reason string
	// Err is the underlying cause, if any (e.g. a failed related schema).
	Err error
}

func (e *Error) Error() string {
	msg := "lattice: entity " + e.Entity
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return target == ErrSchema
}

func (e *Error) Unwrap() error {
	return e.Err
}

func schemaErr(entity, field, format string, args ...any) *Error {
	return &Error{Entity: entity, Field: field, Reason: fmt.Sprintf(format, args...)}
}
