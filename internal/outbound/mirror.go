package outbound

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/net/packet"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

var ErrUnknownEntity = errors.New("frame for unknown entity")

// Remote is an entity as reconstructed by a consumer.
type Remote struct {
	ID         int32
	UUID       uuid.UUID
	Kind       *compiler.Kind
	Position   entity.Position
	Look       entity.Look
	HeadYaw    float32
	ObjectData int32
	Velocity   entity.Velocity

	Fields     map[uint8]value.Value
	Attributes map[int32]attributes.Property
	Statuses   []uint8
	Animations []uint8
}

// Value returns the entity's current value at a field index, falling back
// to the kind's default when no frame carried it.
func (r *Remote) Value(index uint8) (value.Value, bool) {
	if v, ok := r.Fields[index]; ok {
		return v, true
	}
	for _, f := range r.Kind.Fields {
		if f.Index == index {
			return f.Default, true
		}
	}
	return nil, false
}

// Mirror applies frames to a table of remote entities. It implements Sink,
// so it can stand in for a transport.
type Mirror struct {
	cat      *compiler.Catalog
	reg      *packet.Registry
	entities map[int32]*Remote
}

func NewMirror(cat *compiler.Catalog, log *zap.Logger) *Mirror {
	m := &Mirror{
		cat:      cat,
		reg:      packet.NewRegistry(log),
		entities: make(map[int32]*Remote),
	}
	m.reg.Register(OpSpawn, "spawn", m.handleSpawn)
	m.reg.Register(OpTrackerUpdate, "tracker_update", m.handleUpdate)
	m.reg.Register(OpAttributes, "attributes", m.handleAttributes)
	m.reg.Register(OpStatus, "status", m.trigger(func(r *Remote, bit uint8) { r.Statuses = append(r.Statuses, bit) }))
	m.reg.Register(OpAnimation, "animation", m.trigger(func(r *Remote, bit uint8) { r.Animations = append(r.Animations, bit) }))
	m.reg.Register(OpRemove, "remove", m.handleRemove)
	return m
}

func (m *Mirror) Send(frame []byte) error { return m.reg.Dispatch(frame) }

func (m *Mirror) Get(id int32) (*Remote, bool) {
	r, ok := m.entities[id]
	return r, ok
}

func (m *Mirror) Len() int { return len(m.entities) }

// ResetTriggers forgets the statuses and animations received so far.
func (m *Mirror) ResetTriggers() {
	for _, r := range m.entities {
		r.Statuses, r.Animations = nil, nil
	}
}

func (m *Mirror) lookup(id int32) (*Remote, error) {
	r, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownEntity, id)
	}
	return r, nil
}

func applyEntries(r *Remote, data []byte, terminated bool) error {
	if len(data) == 0 {
		return nil
	}
	entries, err := tracked.DecodeEntries(data, terminated)
	if err != nil {
		return err
	}
	for _, e := range entries {
		r.Fields[e.Index] = e.Value
	}
	return nil
}

func applyProperties(r *Remote, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	props, err := attributes.DecodeProperties(data)
	if err != nil {
		return err
	}
	for _, p := range props {
		r.Attributes[p.ID] = p
	}
	return nil
}

func (m *Mirror) handleSpawn(rd *packet.Reader) error {
	r := &Remote{
		ID:         rd.ReadVarInt(),
		UUID:       rd.ReadUUID(),
		Fields:     make(map[uint8]value.Value),
		Attributes: make(map[int32]attributes.Property),
	}
	kindID := rd.ReadVarInt()
	r.Position = entity.Position{X: rd.ReadDouble(), Y: rd.ReadDouble(), Z: rd.ReadDouble()}
	r.Look = entity.Look{Yaw: rd.ReadF(), Pitch: rd.ReadF()}
	r.HeadYaw = rd.ReadF()
	r.ObjectData = rd.ReadVarInt()
	r.Velocity = entity.Velocity{X: rd.ReadF(), Y: rd.ReadF(), Z: rd.ReadF()}
	init := readBlob(rd)
	attrs := readBlob(rd)
	if err := rd.Err(); err != nil {
		return err
	}

	kind, ok := m.cat.KindByID(kindID)
	if !ok {
		return fmt.Errorf("spawn %d: unknown kind id %d", r.ID, kindID)
	}
	r.Kind = kind
	if err := applyEntries(r, init, true); err != nil {
		return fmt.Errorf("spawn %d: %w", r.ID, err)
	}
	if err := applyProperties(r, attrs); err != nil {
		return fmt.Errorf("spawn %d: %w", r.ID, err)
	}
	m.entities[r.ID] = r
	return nil
}

func (m *Mirror) handleUpdate(rd *packet.Reader) error {
	id := rd.ReadVarInt()
	data := readBlob(rd)
	if err := rd.Err(); err != nil {
		return err
	}
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	return applyEntries(r, data, false)
}

func (m *Mirror) handleAttributes(rd *packet.Reader) error {
	id := rd.ReadVarInt()
	data := readBlob(rd)
	if err := rd.Err(); err != nil {
		return err
	}
	r, err := m.lookup(id)
	if err != nil {
		return err
	}
	return applyProperties(r, data)
}

func (m *Mirror) trigger(apply func(*Remote, uint8)) packet.HandlerFunc {
	return func(rd *packet.Reader) error {
		id := rd.ReadVarInt()
		bit := rd.ReadC()
		if err := rd.Err(); err != nil {
			return err
		}
		r, err := m.lookup(id)
		if err != nil {
			return err
		}
		apply(r, bit)
		return nil
	}
}

func (m *Mirror) handleRemove(rd *packet.Reader) error {
	n := rd.ReadLen()
	for i := 0; i < n && rd.Err() == nil; i++ {
		delete(m.entities, rd.ReadVarInt())
	}
	return rd.Err()
}
