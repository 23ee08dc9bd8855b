package entity

import (
	"fmt"

	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/value"
)

// FieldRef is a typed handle on one compiled field. Generated code declares
// one per field.
type FieldRef[T value.Value] struct {
	Key string
}

// Get returns the entity's current value. It panics if the field does not
// hold a T, which means the handle was declared with the wrong shape.
func (r FieldRef[T]) Get(m *Manager, e ecs.EntityID) (T, bool) {
	var zero T
	v, ok := m.Field(e, r.Key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("entity: field %s holds %T, handle expects %T", r.Key, v, zero))
	}
	return t, true
}

// Set stores v; it is observed during the next UpdateTrackedData phase.
func (r FieldRef[T]) Set(m *Manager, e ecs.EntityID, v T) error {
	return m.SetField(e, r.Key, v)
}

// Changed reports whether the field differs from its value at the end of
// the previous tick, or was attached this tick.
func (r FieldRef[T]) Changed(m *Manager, e ecs.EntityID) bool {
	s, ok := m.fields[r.Key]
	return ok && s.Changed(e)
}
