package compiler

import (
	"errors"
	"fmt"

	"github.com/voxelhost/entitysync/internal/value"
)

var (
	ErrUnknownParent    = errors.New("unknown parent")
	ErrParentCycle      = errors.New("parent chain contains a cycle")
	ErrIndexCollision   = errors.New("field index collision")
	ErrIndexRange       = errors.New("field index out of range 0-254")
	ErrDuplicateField   = errors.New("field declared twice")
	ErrUnknownShape     = errors.New("unknown field type")
	ErrUnknownKindType  = errors.New("kind type has no identifier")
	ErrDuplicateKindID  = errors.New("kind identifier assigned twice")
	ErrUnknownAttribute = errors.New("undeclared attribute")
	ErrMirrorTarget     = errors.New("absorption mirror target missing")
	ErrUnknownEntity    = errors.New("unknown entity")

	ErrBadDefault       = value.ErrBadDefault
	ErrUnsupportedShape = value.ErrUnsupportedShape
)

// SchemaError is a build-time failure tied to one entity class and,
// optionally, one of its fields.
type SchemaError struct {
	Entity string
	Field  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("entity %s field %s: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("entity %s: %v", e.Entity, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErr(entity, field string, format string, args ...any) error {
	return &SchemaError{Entity: entity, Field: field, Err: fmt.Errorf(format, args...)}
}
