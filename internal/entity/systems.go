package entity

import (
	"time"

	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

// InitSystem assigns protocol ids and seeds position shadows for entities
// spawned since the previous tick. It runs single-threaded; it is the only
// writer of the id lookup table.
type InitSystem struct {
	m *Manager
}

func (s *InitSystem) Phase() coresys.Phase { return coresys.PhaseInit }

func (s *InitSystem) Update(_ time.Duration) {
	s.m.init()
}

// EffectTickSystem counts status effect durations down once per tick and
// drops expired effects.
type EffectTickSystem struct {
	m *Manager
}

func (s *EffectTickSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *EffectTickSystem) Update(_ time.Duration) {
	s.m.Living.Each(func(_ ecs.EntityID, l *Living) {
		l.Effects.Tick()
	})
}

// AbsorptionMirrorSystem copies a changed living absorption amount into
// the player field that carries it on the wire. It runs before the field
// observers of the same phase.
type AbsorptionMirrorSystem struct {
	m      *Manager
	target *compiler.FieldSpec
}

func (s *AbsorptionMirrorSystem) Phase() coresys.Phase { return coresys.PhaseUpdateTrackedData }

func (s *AbsorptionMirrorSystem) Update(_ time.Duration) {
	store := s.m.fields[s.target.Key]
	s.m.Absorption.EachChanged(func(e ecs.EntityID, amount float32, _ bool) {
		if store.Has(e) {
			store.Set(e, value.Float(amount))
		}
	})
}

// AttributeMirrorSystem moves each living entity's recently changed
// attributes into its tracked-attribute buffer.
type AttributeMirrorSystem struct {
	m *Manager
}

func (s *AttributeMirrorSystem) Phase() coresys.Phase { return coresys.PhaseUpdateTrackedData }

func (s *AttributeMirrorSystem) Update(_ time.Duration) {
	s.m.Living.Each(func(_ ecs.EntityID, l *Living) {
		if !l.Attributes.HasChanges() {
			return
		}
		for _, name := range l.Attributes.TakeRecentlyChanged() {
			l.Tracked.MarkModified(l.Attributes, name)
		}
	})
}

// ObserverSystem is the observation routine of one field. It only touches
// its own field store and the per-entity logs, which are safe for
// concurrent writers, so observers of different fields run in parallel.
type ObserverSystem struct {
	m     *Manager
	spec  *compiler.FieldSpec
	store *ecs.TrackedStore[value.Value]
}

func (s *ObserverSystem) Phase() coresys.Phase { return coresys.PhaseUpdateTrackedData }
func (s *ObserverSystem) Concurrent() bool     { return true }

// Name is the routine's generated name, e.g. "update_zombie_baby".
func (s *ObserverSystem) Name() string { return s.spec.ObserverName() }

func (s *ObserverSystem) Update(_ time.Duration) {
	idx := s.spec.Index
	s.store.EachChanged(func(e ecs.EntityID, v value.Value, _ bool) {
		td, ok := s.m.Tracked.Get(e)
		if !ok {
			return
		}
		if s.spec.IsDefault(v) {
			td.RemoveInitValue(idx)
		} else {
			td.InsertInitValue(idx, v)
		}
		if !td.IsAdded() {
			td.AppendUpdateValue(idx, v)
		}
	})
}

// ClearChangesSystem ends the tick: it drops per-tick logs and triggers,
// advances the previous-tick shadows, resets change marks and finally
// deallocates despawned entities.
type ClearChangesSystem struct {
	m *Manager
}

func (s *ClearChangesSystem) Phase() coresys.Phase { return coresys.PhaseClearChanges }

func (s *ClearChangesSystem) Update(_ time.Duration) {
	m := s.m
	m.Statuses.Each(func(_ ecs.EntityID, st *Statuses) { st.Bits = 0 })
	m.Animations.Each(func(_ ecs.EntityID, a *Animations) { a.Bits = 0 })
	m.Tracked.Each(func(_ ecs.EntityID, td *tracked.TrackedData) { td.ClearUpdateValues() })
	m.Living.Each(func(_ ecs.EntityID, l *Living) { l.Tracked.Clear() })
	ecs.Each2(m.Positions, m.OldPositions, func(_ ecs.EntityID, p *Position, old *OldPosition) {
		old.Position = *p
	})
	ecs.Each2(m.Layers, m.OldLayers, func(_ ecs.EntityID, l *LayerID, old *OldLayerID) {
		old.Layer = l.Layer
	})
	m.world.Registry().ClearChanges()
	if n := m.world.FlushDestroyQueue(); n > 0 {
		m.log.Debug("despawned entities", zap.Int("count", n))
	}
}

// Install registers the entity phases on r: init, effect ticking, the
// mirrors followed by one observer per compiled field, and cleanup, which
// runs after everything else.
func Install(r *coresys.Runner, m *Manager) []*ObserverSystem {
	r.Register(&InitSystem{m: m})
	r.Register(&EffectTickSystem{m: m})
	if target, ok := m.cat.AbsorptionTarget(); ok {
		r.Register(&AbsorptionMirrorSystem{m: m, target: target})
	}
	r.Register(&AttributeMirrorSystem{m: m})

	observers := make([]*ObserverSystem, 0, len(m.cat.Fields()))
	for _, f := range m.cat.Fields() {
		o := &ObserverSystem{m: m, spec: f, store: m.fields[f.Key]}
		r.Register(o)
		observers = append(observers, o)
	}
	r.Register(&ClearChangesSystem{m: m})
	m.log.Debug("entity systems installed", zap.Int("observers", len(observers)))
	return observers
}
