package entity

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/kamstrup/intmap"
	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/core/event"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

var (
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrUnknownField  = errors.New("unknown field")
	ErrFieldType     = errors.New("value shape does not match field")
	ErrNoSuchEntity  = errors.New("no such entity")
	ErrUnknownStatus = errors.New("unknown entity status")
	ErrUnknownAnim   = errors.New("unknown entity animation")
)

// Manager owns every entity container and the protocol id lookup table.
// Field containers are one change-tracked store per compiled field key.
type Manager struct {
	log   *zap.Logger
	cat   *compiler.Catalog
	world *ecs.World
	bus   *event.Bus

	next atomic.Int32
	byID *intmap.Map[int32, ecs.EntityID]

	// Entities spawned since the last init pass.
	pending []ecs.EntityID

	Kinds        *ecs.PtrComponentStore[Kind]
	IDs          *ecs.PtrComponentStore[ID]
	UniqueIDs    *ecs.PtrComponentStore[UniqueID]
	Layers       *ecs.PtrComponentStore[LayerID]
	OldLayers    *ecs.PtrComponentStore[OldLayerID]
	Positions    *ecs.PtrComponentStore[Position]
	OldPositions *ecs.PtrComponentStore[OldPosition]
	Looks        *ecs.PtrComponentStore[Look]
	HeadYaws     *ecs.PtrComponentStore[HeadYaw]
	OnGround     *ecs.PtrComponentStore[OnGround]
	Velocities   *ecs.PtrComponentStore[Velocity]
	Statuses     *ecs.PtrComponentStore[Statuses]
	Animations   *ecs.PtrComponentStore[Animations]
	ObjectData   *ecs.PtrComponentStore[ObjectData]
	Tracked      *ecs.PtrComponentStore[tracked.TrackedData]
	Living       *ecs.PtrComponentStore[Living]
	Players      *ecs.PtrComponentStore[Player]
	Absorption   *ecs.TrackedStore[float32]

	fields map[string]*ecs.TrackedStore[value.Value]
}

// Options configures a Manager.
type Options struct {
	// IDFloor is the first protocol id handed out.
	IDFloor int32
	Bus     *event.Bus
}

func NewManager(cat *compiler.Catalog, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:          log,
		cat:          cat,
		world:        ecs.NewWorld(),
		bus:          opts.Bus,
		byID:         intmap.New[int32, ecs.EntityID](256),
		Kinds:        ecs.NewPtrComponentStore[Kind](),
		IDs:          ecs.NewPtrComponentStore[ID](),
		UniqueIDs:    ecs.NewPtrComponentStore[UniqueID](),
		Layers:       ecs.NewPtrComponentStore[LayerID](),
		OldLayers:    ecs.NewPtrComponentStore[OldLayerID](),
		Positions:    ecs.NewPtrComponentStore[Position](),
		OldPositions: ecs.NewPtrComponentStore[OldPosition](),
		Looks:        ecs.NewPtrComponentStore[Look](),
		HeadYaws:     ecs.NewPtrComponentStore[HeadYaw](),
		OnGround:     ecs.NewPtrComponentStore[OnGround](),
		Velocities:   ecs.NewPtrComponentStore[Velocity](),
		Statuses:     ecs.NewPtrComponentStore[Statuses](),
		Animations:   ecs.NewPtrComponentStore[Animations](),
		ObjectData:   ecs.NewPtrComponentStore[ObjectData](),
		Tracked:      ecs.NewPtrComponentStore[tracked.TrackedData](),
		Living:       ecs.NewPtrComponentStore[Living](),
		Players:      ecs.NewPtrComponentStore[Player](),
		Absorption:   ecs.NewTrackedStore(func(a, b float32) bool { return value.Float(a).Equal(value.Float(b)) }),
		fields:       make(map[string]*ecs.TrackedStore[value.Value], len(cat.Fields())),
	}
	m.next.Store(opts.IDFloor)

	reg := m.world.Registry()
	for _, s := range []ecs.Removable{
		m.Kinds, m.IDs, m.UniqueIDs, m.Layers, m.OldLayers, m.Positions, m.OldPositions,
		m.Looks, m.HeadYaws, m.OnGround, m.Velocities, m.Statuses, m.Animations,
		m.ObjectData, m.Tracked, m.Living, m.Players, m.Absorption,
	} {
		reg.Register(s)
	}
	for _, f := range cat.Fields() {
		s := ecs.NewTrackedStore(func(a, b value.Value) bool { return a.Equal(b) })
		m.fields[f.Key] = s
		reg.Register(s)
	}
	m.world.OnDestroy(m.release)
	return m
}

func (m *Manager) Catalog() *compiler.Catalog { return m.cat }
func (m *Manager) World() *ecs.World          { return m.world }

// NextID reserves the next protocol id. Store it in a bundle's ID before
// spawning to know the id ahead of time.
func (m *Manager) NextID() int32 {
	return m.next.Add(1) - 1
}

// Lookup resolves a protocol id to its entity.
func (m *Manager) Lookup(id int32) (ecs.EntityID, bool) {
	return m.byID.Get(id)
}

// Len is the number of entities holding a protocol id.
func (m *Manager) Len() int { return m.byID.Len() }

// Despawn queues e for removal at the end of the tick.
func (m *Manager) Despawn(e ecs.EntityID) {
	m.world.MarkForDestruction(e)
}

func (m *Manager) Alive(e ecs.EntityID) bool {
	return m.world.Alive(e)
}

// init assigns protocol ids to entities spawned since the last pass and
// seeds their position shadows.
func (m *Manager) init() {
	for _, e := range m.pending {
		if !m.world.Alive(e) || m.world.Queued(e) {
			continue
		}
		if pos, ok := m.Positions.Get(e); ok {
			if old, ok := m.OldPositions.Get(e); ok {
				old.Position = *pos
			}
		}
		id, ok := m.IDs.Get(e)
		if !ok {
			continue
		}
		if id.Value == UnassignedID {
			id.Value = m.NextID()
		} else {
			m.reserve(id.Value)
		}
		if prev, ok := m.byID.Get(id.Value); ok && prev != e {
			m.log.Warn("conflicting entity id",
				zap.Uint64("entity", uint64(e)),
				zap.Int32("id", id.Value),
				zap.Uint64("conflict", uint64(prev)))
			event.Emit(m.bus, event.EntityIDConflict{Entity: e, Previous: prev, ID: id.Value})
		}
		m.byID.Put(id.Value, e)

		var kind int32
		if k, ok := m.Kinds.Get(e); ok {
			kind = k.ID
		}
		event.Emit(m.bus, event.EntityInitialized{Entity: e, ID: id.Value, Kind: kind})
	}
	m.pending = m.pending[:0]
}

// reserve moves the counter past an explicitly assigned id so the counter
// never hands it out again.
func (m *Manager) reserve(id int32) {
	for {
		cur := m.next.Load()
		if id < cur || id == math.MaxInt32 || m.next.CompareAndSwap(cur, id+1) {
			return
		}
	}
}

// release drops the lookup entry of an entity about to be deallocated.
func (m *Manager) release(e ecs.EntityID) {
	id, ok := m.IDs.Get(e)
	if !ok || id.Value == UnassignedID {
		return
	}
	// A newer entity may have taken the id over.
	if cur, ok := m.byID.Get(id.Value); ok && cur == e {
		m.byID.Del(id.Value)
		event.Emit(m.bus, event.EntityRemoved{Entity: e, ID: id.Value})
	}
}

// Field returns the current value of a field container.
func (m *Manager) Field(e ecs.EntityID, key string) (value.Value, bool) {
	s, ok := m.fields[key]
	if !ok {
		return nil, false
	}
	return s.Get(e)
}

// SetField replaces a field value. The change is observed in the next
// UpdateTrackedData phase.
func (m *Manager) SetField(e ecs.EntityID, key string, v value.Value) error {
	spec, ok := m.cat.Field(key)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownField, key)
	}
	if v == nil || v.Tag() != spec.Tag {
		return fmt.Errorf("%w: %s is %s", ErrFieldType, key, spec.Tag)
	}
	if !m.fields[key].Set(e, v) {
		return fmt.Errorf("%w: entity %d has no %s", ErrNoSuchEntity, e, key)
	}
	return nil
}

// SetAbsorption sets a living entity's absorption amount.
func (m *Manager) SetAbsorption(e ecs.EntityID, v float32) bool {
	return m.Absorption.Set(e, v)
}

// TriggerStatus sets a named status bit for this tick.
func (m *Manager) TriggerStatus(e ecs.EntityID, name string) error {
	bit, ok := m.cat.Statuses[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownStatus, name)
	}
	s, ok := m.Statuses.Get(e)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchEntity, e)
	}
	s.Trigger(bit)
	return nil
}

// TriggerAnimation sets a named animation bit for this tick.
func (m *Manager) TriggerAnimation(e ecs.EntityID, name string) error {
	bit, ok := m.cat.Animations[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownAnim, name)
	}
	a, ok := m.Animations.Get(e)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchEntity, e)
	}
	a.Trigger(bit)
	return nil
}

// Outgoing is one entity's log as seen by a transport consumer.
type Outgoing struct {
	Entity     ecs.EntityID
	ID         int32
	Kind       int32
	Init       []byte
	Update     []byte
	Attributes []byte

	// First is set on the tick the entity's baseline is established; Init
	// then also goes with the spawn message, as do SpawnAttributes.
	First           bool
	SpawnAttributes []byte
}

// EachOutgoing visits every initialized entity in protocol id order.
// Intended for the output phase, between observation and cleanup.
func (m *Manager) EachOutgoing(fn func(Outgoing)) {
	ids := make([]int32, 0, m.byID.Len())
	m.IDs.Each(func(e ecs.EntityID, id *ID) {
		if cur, ok := m.byID.Get(id.Value); ok && cur == e {
			ids = append(ids, id.Value)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		e, _ := m.byID.Get(id)
		td, ok := m.Tracked.Get(e)
		if !ok {
			continue
		}
		out := Outgoing{Entity: e, ID: id, Init: td.InitData(), Update: td.UpdateData()}
		if k, ok := m.Kinds.Get(e); ok {
			out.Kind = k.ID
		}
		out.First = td.IsAdded()
		if l, ok := m.Living.Get(e); ok {
			out.Attributes = l.Tracked.UpdateData()
			if out.First {
				out.SpawnAttributes = attributes.SpawnData(l.Attributes)
			}
		}
		fn(out)
	}
}
