package ecs

// Registry tracks every component store so an entity can be purged from all
// of them at once and change marks can be reset together.
type Registry struct {
	stores   []Removable
	clearers []ChangeClearer
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 32),
	}
}

// Register adds a component store. Stores that keep change marks are also
// reset by ClearChanges.
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
	if c, ok := store.(ChangeClearer); ok {
		r.clearers = append(r.clearers, c)
	}
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

func (r *Registry) ClearChanges() {
	for _, c := range r.clearers {
		c.ClearChanges()
	}
}

func (r *Registry) Len() int { return len(r.stores) }
