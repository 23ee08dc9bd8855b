// Package attributes implements keyed numeric attributes with modifiers and
// the tracked mirror that feeds changed attributes to observers.
package attributes

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/voxelhost/entitysync/internal/schema"
)

var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrDuplicateID      = errors.New("duplicate attribute id")
	ErrBadRange         = errors.New("attribute range is empty")
)

// Def describes one attribute.
type Def struct {
	Name    string
	ID      int32
	Default float64
	Min     float64
	Max     float64
	Tracked bool
}

// Clamp limits v to the attribute's range.
func (d *Def) Clamp(v float64) float64 {
	if v < d.Min {
		return d.Min
	}
	if v > d.Max {
		return d.Max
	}
	return v
}

// Registry is the immutable set of known attributes.
type Registry struct {
	byName map[string]*Def
	byID   map[int32]*Def
	sorted []*Def
}

func NewRegistry(defs []Def) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Def, len(defs)),
		byID:   make(map[int32]*Def, len(defs)),
		sorted: make([]*Def, 0, len(defs)),
	}
	for i := range defs {
		d := defs[i]
		if _, ok := r.byName[d.Name]; ok {
			return nil, fmt.Errorf("attribute %q declared twice", d.Name)
		}
		if other, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("%w: %q and %q both use %d", ErrDuplicateID, other.Name, d.Name, d.ID)
		}
		if d.Min > d.Max {
			return nil, fmt.Errorf("%w: %q min %v > max %v", ErrBadRange, d.Name, d.Min, d.Max)
		}
		r.byName[d.Name] = &d
		r.byID[d.ID] = &d
		r.sorted = append(r.sorted, &d)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].ID < r.sorted[j].ID })
	return r, nil
}

// FromSchema builds a registry from the attributes document. An attribute
// with neither bound set is unbounded.
func FromSchema(m map[string]*schema.AttributeDef) (*Registry, error) {
	defs := make([]Def, 0, len(m))
	for name, a := range m {
		d := Def{
			Name:    name,
			ID:      a.ID,
			Default: a.DefaultValue,
			Min:     a.MinValue,
			Max:     a.MaxValue,
			Tracked: a.Tracked,
		}
		if a.MinValue == 0 && a.MaxValue == 0 {
			d.Min, d.Max = -math.MaxFloat64, math.MaxFloat64
		}
		defs = append(defs, d)
	}
	// NewRegistry reports duplicates by name order; keep that stable.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return NewRegistry(defs)
}

func (r *Registry) Get(name string) (*Def, bool) {
	d, ok := r.byName[name]
	return d, ok
}

func (r *Registry) ByID(id int32) (*Def, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Defs returns every attribute ordered by id.
func (r *Registry) Defs() []*Def {
	return r.sorted
}

func (r *Registry) Len() int {
	return len(r.sorted)
}
