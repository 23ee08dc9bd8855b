package attributes

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Operation says how a modifier combines with the base value.
type Operation uint8

const (
	OpAdd           Operation = 0 // base + amount
	OpMultiplyBase  Operation = 1 // + base * amount
	OpMultiplyTotal Operation = 2 // * (1 + amount)
)

// Modifier is an adjustment applied by game logic, keyed by its id.
type Modifier struct {
	ID     uuid.UUID
	Amount float64
	Op     Operation
}

// Instance is one attribute on one entity.
type Instance struct {
	def       *Def
	base      float64
	modifiers map[uuid.UUID]Modifier
	value     float64
}

func newInstance(def *Def, base float64) *Instance {
	i := &Instance{def: def, base: base}
	i.value = i.compute()
	return i
}

func (i *Instance) Def() *Def         { return i.def }
func (i *Instance) Base() float64     { return i.base }
func (i *Instance) Value() float64    { return i.value }
func (i *Instance) NumModifiers() int { return len(i.modifiers) }

// Modifiers returns the modifiers ordered by id.
func (i *Instance) Modifiers() []Modifier {
	out := make([]Modifier, 0, len(i.modifiers))
	for _, m := range i.modifiers {
		out = append(out, m)
	}
	sort.Slice(out, func(a, b int) bool { return bytes.Compare(out[a].ID[:], out[b].ID[:]) < 0 })
	return out
}

func (i *Instance) compute() float64 {
	mods := i.Modifiers()
	v := i.base
	for _, m := range mods {
		if m.Op == OpAdd {
			v += m.Amount
		}
	}
	added := v
	for _, m := range mods {
		if m.Op == OpMultiplyBase {
			v += added * m.Amount
		}
	}
	for _, m := range mods {
		if m.Op == OpMultiplyTotal {
			v *= 1 + m.Amount
		}
	}
	return i.def.Clamp(v)
}

// EntityAttributes is the attribute collection of one living entity. Every
// mutation that alters an instance records its name as recently changed
// until TakeRecentlyChanged drains the set.
type EntityAttributes struct {
	reg       *Registry
	instances map[string]*Instance
	changed   map[string]struct{}
}

func New(reg *Registry) *EntityAttributes {
	return &EntityAttributes{
		reg:       reg,
		instances: make(map[string]*Instance, 8),
		changed:   make(map[string]struct{}, 4),
	}
}

// WithBase seeds an attribute at spawn time without marking it changed.
func (a *EntityAttributes) WithBase(name string, base float64) (*EntityAttributes, error) {
	def, ok := a.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	a.instances[name] = newInstance(def, base)
	return a, nil
}

func (a *EntityAttributes) instance(name string) (*Instance, error) {
	if inst, ok := a.instances[name]; ok {
		return inst, nil
	}
	def, ok := a.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	inst := newInstance(def, def.Default)
	a.instances[name] = inst
	return inst, nil
}

func (a *EntityAttributes) touch(name string, inst *Instance) {
	inst.value = inst.compute()
	a.changed[name] = struct{}{}
}

// SetBase changes the base value. Setting the current base is a no-op.
func (a *EntityAttributes) SetBase(name string, base float64) error {
	inst, err := a.instance(name)
	if err != nil {
		return err
	}
	if inst.base == base {
		return nil
	}
	inst.base = base
	a.touch(name, inst)
	return nil
}

// AddModifier adds or replaces the modifier with m.ID.
func (a *EntityAttributes) AddModifier(name string, m Modifier) error {
	inst, err := a.instance(name)
	if err != nil {
		return err
	}
	if old, ok := inst.modifiers[m.ID]; ok && old == m {
		return nil
	}
	if inst.modifiers == nil {
		inst.modifiers = make(map[uuid.UUID]Modifier, 2)
	}
	inst.modifiers[m.ID] = m
	a.touch(name, inst)
	return nil
}

// RemoveModifier reports whether a modifier was removed.
func (a *EntityAttributes) RemoveModifier(name string, id uuid.UUID) bool {
	inst, ok := a.instances[name]
	if !ok {
		return false
	}
	if _, ok := inst.modifiers[id]; !ok {
		return false
	}
	delete(inst.modifiers, id)
	a.touch(name, inst)
	return true
}

// Value returns the effective value, falling back to the registry default.
func (a *EntityAttributes) Value(name string) (float64, bool) {
	if inst, ok := a.instances[name]; ok {
		return inst.value, true
	}
	if def, ok := a.reg.Get(name); ok {
		return def.Clamp(def.Default), true
	}
	return 0, false
}

func (a *EntityAttributes) Base(name string) (float64, bool) {
	if inst, ok := a.instances[name]; ok {
		return inst.base, true
	}
	if def, ok := a.reg.Get(name); ok {
		return def.Default, true
	}
	return 0, false
}

func (a *EntityAttributes) Instance(name string) (*Instance, bool) {
	inst, ok := a.instances[name]
	return inst, ok
}

// Names returns the names of every instantiated attribute, sorted.
func (a *EntityAttributes) Names() []string {
	out := make([]string, 0, len(a.instances))
	for name := range a.instances {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasChanges reports whether anything changed since the last drain.
func (a *EntityAttributes) HasChanges() bool {
	return len(a.changed) > 0
}

// TakeRecentlyChanged drains the recently changed set, sorted by name.
func (a *EntityAttributes) TakeRecentlyChanged() []string {
	if len(a.changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(a.changed))
	for name := range a.changed {
		out = append(out, name)
	}
	sort.Strings(out)
	clear(a.changed)
	return out
}
