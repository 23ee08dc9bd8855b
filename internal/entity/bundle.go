package entity

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/effects"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

// Bundle is the spawn descriptor of one kind: every inherited field at its
// default, the kind-invariant containers, and the living and player extras
// when the kind has those classes. Callers may override anything before
// Spawn.
type Bundle struct {
	Kind   *compiler.Kind
	Fields map[string]value.Value

	ID         int32
	UniqueID   uuid.UUID
	Layer      ecs.EntityID
	Position   Position
	Look       Look
	HeadYaw    float32
	OnGround   bool
	Velocity   Velocity
	ObjectData int32

	// Living kinds only.
	Absorption float32
	Attributes *attributes.EntityAttributes
	Effects    *effects.ActiveStatusEffects

	// Player kinds only.
	Player *Player
}

// NewBundle builds the default spawn descriptor for a kind tag ("zombie").
func (m *Manager) NewBundle(kind string) (*Bundle, error) {
	k, ok := m.cat.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}
	b := &Bundle{
		Kind:     k,
		Fields:   make(map[string]value.Value, len(k.Fields)),
		ID:       UnassignedID,
		UniqueID: uuid.New(),
	}
	for _, f := range k.Fields {
		b.Fields[f.Key] = f.Default
	}
	if k.Living {
		attrs := attributes.New(m.cat.Attributes)
		for _, a := range k.Attributes {
			if _, err := attrs.WithBase(a.Name, a.Value); err != nil {
				return nil, fmt.Errorf("kind %s: %w", kind, err)
			}
		}
		b.Attributes = attrs
		b.Effects = effects.New()
	}
	if k.Player {
		b.Player = &Player{Food: compiler.DefaultFood, Saturation: compiler.DefaultSaturation}
	}
	return b, nil
}

// field resolves a full key ("zombie.baby") or a bare field name ("baby")
// that is unique within the kind.
func (b *Bundle) field(name string) (*compiler.FieldSpec, error) {
	if strings.Contains(name, ".") {
		if f, ok := b.Kind.Field(name); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownField, name, b.Kind.Name)
	}
	var found *compiler.FieldSpec
	for _, f := range b.Kind.Fields {
		if f.Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %q is ambiguous on %s (%s, %s)",
				ErrUnknownField, name, b.Kind.Name, found.Key, f.Key)
		}
		found = f
	}
	if found == nil {
		return nil, fmt.Errorf("%w %q on %s", ErrUnknownField, name, b.Kind.Name)
	}
	return found, nil
}

// Set overrides a field value.
func (b *Bundle) Set(name string, v value.Value) error {
	f, err := b.field(name)
	if err != nil {
		return err
	}
	if v == nil || v.Tag() != f.Tag {
		return fmt.Errorf("%w: %s is %s", ErrFieldType, f.Key, f.Tag)
	}
	b.Fields[f.Key] = v
	return nil
}

// Apply parses raw document values (from YAML, JSON or Lua) through the
// value domain and overrides the named fields. Keys are applied in sorted
// order so errors are reported deterministically.
func (b *Bundle) Apply(overrides map[string]any, names value.Names) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, err := b.field(k)
		if err != nil {
			return err
		}
		v, err := value.Parse(f.Tag, overrides[k], names)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Key, err)
		}
		b.Fields[f.Key] = v
	}
	return nil
}

// Spawn creates the entity from b. Its protocol id is assigned and its
// baseline established during the next tick.
func (m *Manager) Spawn(b *Bundle) (ecs.EntityID, error) {
	if b == nil || b.Kind == nil {
		return 0, fmt.Errorf("%w: empty bundle", ErrUnknownKind)
	}
	for _, f := range b.Kind.Fields {
		v, ok := b.Fields[f.Key]
		if !ok || v == nil {
			return 0, fmt.Errorf("%w: bundle misses %s", ErrUnknownField, f.Key)
		}
		if v.Tag() != f.Tag {
			return 0, fmt.Errorf("%w: %s is %s", ErrFieldType, f.Key, f.Tag)
		}
	}

	e := m.world.CreateEntity()
	m.Kinds.Set(e, &Kind{ID: b.Kind.ID, Spec: b.Kind})
	m.IDs.Set(e, &ID{Value: b.ID})
	m.UniqueIDs.Set(e, &UniqueID{UUID: b.UniqueID})
	m.Layers.Set(e, &LayerID{Layer: b.Layer})
	m.OldLayers.Set(e, &OldLayerID{Layer: b.Layer})
	pos := b.Position
	m.Positions.Set(e, &pos)
	m.OldPositions.Set(e, &OldPosition{Position: pos})
	look := b.Look
	m.Looks.Set(e, &look)
	m.HeadYaws.Set(e, &HeadYaw{Yaw: b.HeadYaw})
	m.OnGround.Set(e, &OnGround{Value: b.OnGround})
	vel := b.Velocity
	m.Velocities.Set(e, &vel)
	m.Statuses.Set(e, &Statuses{})
	m.Animations.Set(e, &Animations{})
	m.ObjectData.Set(e, &ObjectData{Value: b.ObjectData})
	m.Tracked.Set(e, tracked.New())

	for _, f := range b.Kind.Fields {
		m.fields[f.Key].Insert(e, b.Fields[f.Key])
	}

	if b.Kind.Living {
		attrs := b.Attributes
		if attrs == nil {
			attrs = attributes.New(m.cat.Attributes)
		}
		fx := b.Effects
		if fx == nil {
			fx = effects.New()
		}
		m.Living.Set(e, &Living{Attributes: attrs, Tracked: attributes.NewTracked(), Effects: fx})
		m.Absorption.Insert(e, b.Absorption)
	}
	if b.Kind.Player {
		p := Player{Food: compiler.DefaultFood, Saturation: compiler.DefaultSaturation}
		if b.Player != nil {
			p = *b.Player
		}
		m.Players.Set(e, &p)
	}

	m.pending = append(m.pending, e)
	return e, nil
}
