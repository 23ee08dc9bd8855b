package ecs

import "sort"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// ChangeClearer is implemented by stores that keep per-tick change marks.
type ChangeClearer interface {
	ClearChanges()
}

// PtrComponentStore is a typed map store for components mutated in place.
// It keeps no change marks.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// TrackedStore holds immutable component values and remembers which
// entities had theirs replaced since the last ClearChanges. A value counts
// as changed only if it differs from the one held at the last clear, so
// writing A, then B, then A again within a tick is not a change.
type TrackedStore[T any] struct {
	data  map[EntityID]T
	prev  map[EntityID]T
	added map[EntityID]struct{}
	eq    func(a, b T) bool
}

func NewTrackedStore[T any](eq func(a, b T) bool) *TrackedStore[T] {
	return &TrackedStore[T]{
		data:  make(map[EntityID]T, 256),
		prev:  make(map[EntityID]T),
		added: make(map[EntityID]struct{}),
		eq:    eq,
	}
}

// Insert attaches a component. The entity counts as added until the next
// ClearChanges.
func (s *TrackedStore[T]) Insert(id EntityID, v T) {
	s.data[id] = v
	delete(s.prev, id)
	s.added[id] = struct{}{}
}

// Set replaces the value of an attached component. It reports false when
// the entity has no component in this store.
func (s *TrackedStore[T]) Set(id EntityID, v T) bool {
	old, ok := s.data[id]
	if !ok {
		return false
	}
	if _, isNew := s.added[id]; !isNew {
		if _, marked := s.prev[id]; !marked {
			s.prev[id] = old
		}
	}
	s.data[id] = v
	return true
}

func (s *TrackedStore[T]) Get(id EntityID) (T, bool) {
	v, ok := s.data[id]
	return v, ok
}

func (s *TrackedStore[T]) Remove(id EntityID) {
	delete(s.data, id)
	delete(s.prev, id)
	delete(s.added, id)
}

func (s *TrackedStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *TrackedStore[T]) Len() int { return len(s.data) }

// Added reports whether id was inserted since the last ClearChanges.
func (s *TrackedStore[T]) Added(id EntityID) bool {
	_, ok := s.added[id]
	return ok
}

// Changed reports whether id was inserted, or holds a value different from
// the one it held at the last ClearChanges.
func (s *TrackedStore[T]) Changed(id EntityID) bool {
	if _, ok := s.added[id]; ok {
		return true
	}
	old, ok := s.prev[id]
	if !ok {
		return false
	}
	return !s.eq(old, s.data[id])
}

// EachChanged visits every added or changed entity in ascending id order.
func (s *TrackedStore[T]) EachChanged(fn func(id EntityID, v T, added bool)) {
	ids := make([]EntityID, 0, len(s.added)+len(s.prev))
	for id := range s.added {
		ids = append(ids, id)
	}
	for id, old := range s.prev {
		if !s.eq(old, s.data[id]) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		_, added := s.added[id]
		fn(id, s.data[id], added)
	}
}

func (s *TrackedStore[T]) Each(fn func(EntityID, T)) {
	for id, v := range s.data {
		fn(id, v)
	}
}

// ClearChanges forgets every change mark. Values are kept.
func (s *TrackedStore[T]) ClearChanges() {
	clear(s.prev)
	clear(s.added)
}
