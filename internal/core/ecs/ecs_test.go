package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eqInt(a, b int) bool { return a == b }

func TestEntityPoolRecyclesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	b := p.Create()
	assert.Equal(t, 2, p.Live())
	assert.NotEqual(t, a, b)

	require.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "second destroy is stale")

	c := p.Create()
	assert.Equal(t, a.Index(), c.Index())
	assert.Equal(t, a.Generation()+1, c.Generation())
	assert.True(t, p.Alive(c))
	assert.False(t, p.Alive(NewEntityID(99, 0)))
	assert.Equal(t, 2, p.Live())
}

func TestTrackedStoreChanges(t *testing.T) {
	s := NewTrackedStore(eqInt)
	s.Insert(1, 10)
	s.Insert(2, 20)

	assert.True(t, s.Added(1))
	assert.True(t, s.Changed(1))

	var seen []EntityID
	s.EachChanged(func(id EntityID, v int, added bool) {
		assert.True(t, added)
		seen = append(seen, id)
	})
	assert.Equal(t, []EntityID{1, 2}, seen)

	s.ClearChanges()
	assert.False(t, s.Changed(1))
	assert.False(t, s.Added(1))

	require.True(t, s.Set(2, 21))
	assert.True(t, s.Changed(2))
	assert.False(t, s.Changed(1))

	seen = nil
	s.EachChanged(func(id EntityID, v int, added bool) {
		assert.False(t, added)
		assert.Equal(t, 21, v)
		seen = append(seen, id)
	})
	assert.Equal(t, []EntityID{2}, seen)

	assert.False(t, s.Set(3, 1), "no component to replace")
}

func TestTrackedStoreRevertIsNotAChange(t *testing.T) {
	s := NewTrackedStore(eqInt)
	s.Insert(1, 10)
	s.ClearChanges()

	s.Set(1, 11)
	s.Set(1, 10)
	assert.False(t, s.Changed(1))

	n := 0
	s.EachChanged(func(EntityID, int, bool) { n++ })
	assert.Zero(t, n)

	s.Set(1, 10)
	assert.False(t, s.Changed(1), "same value")
}

func TestWorldFlushRunsHooksBeforeRemoval(t *testing.T) {
	w := NewWorld()
	store := NewTrackedStore(eqInt)
	ptrs := NewPtrComponentStore[string]()
	w.Registry().Register(store)
	w.Registry().Register(ptrs)

	id := w.CreateEntity()
	store.Insert(id, 5)
	name := "zombie"
	ptrs.Set(id, &name)

	var hookSaw bool
	w.OnDestroy(func(e EntityID) {
		_, hookSaw = store.Get(e)
	})

	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	assert.True(t, w.Queued(id))
	assert.Equal(t, 1, w.FlushDestroyQueue())

	assert.True(t, hookSaw, "hook runs while components still exist")
	assert.False(t, store.Has(id))
	assert.False(t, ptrs.Has(id))
	assert.False(t, w.Alive(id))
	assert.False(t, w.Queued(id))
	assert.Zero(t, w.FlushDestroyQueue())
}

func TestRegistryClearChanges(t *testing.T) {
	r := NewRegistry()
	a := NewTrackedStore(eqInt)
	b := NewTrackedStore(eqInt)
	r.Register(a)
	r.Register(b)
	r.Register(NewPtrComponentStore[int]())
	a.Insert(1, 1)
	b.Insert(1, 1)

	r.ClearChanges()
	assert.False(t, a.Changed(1))
	assert.False(t, b.Changed(1))
	assert.Equal(t, 3, r.Len())
}

func TestEach2(t *testing.T) {
	a := NewPtrComponentStore[int]()
	b := NewPtrComponentStore[string]()
	one, two := 1, 2
	x := "x"
	a.Set(1, &one)
	a.Set(2, &two)
	b.Set(2, &x)

	var got []EntityID
	Each2(a, b, func(id EntityID, _ *int, _ *string) { got = append(got, id) })
	assert.Equal(t, []EntityID{2}, got)
}
