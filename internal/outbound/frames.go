// Package outbound frames the per-tick entity logs for a transport and
// provides the matching consumer-side decoder.
package outbound

import (
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/net/packet"
)

// Frame opcodes. Every frame is the opcode followed by its payload.
const (
	OpSpawn         byte = 0x01
	OpTrackerUpdate byte = 0x02
	OpAttributes    byte = 0x03
	OpStatus        byte = 0x04
	OpAnimation     byte = 0x05
	OpRemove        byte = 0x06
)

// Sink receives encoded frames. Frames are only valid for the duration of
// the call.
type Sink interface {
	Send(frame []byte) error
}

type SinkFunc func(frame []byte) error

func (f SinkFunc) Send(frame []byte) error { return f(frame) }

func writeBlob(w *packet.Writer, b []byte) {
	w.WriteVarInt(int32(len(b)))
	w.WriteBytes(b)
}

func readBlob(r *packet.Reader) []byte {
	return r.ReadBytes(r.ReadLen())
}

// SpawnFrame encodes the spawn message of an entity on its first tick: its
// identity, placement, baseline log and tracked attributes.
func SpawnFrame(m *entity.Manager, o entity.Outgoing) []byte {
	w := packet.NewWriter()
	w.WriteC(OpSpawn)
	w.WriteVarInt(o.ID)
	if u, ok := m.UniqueIDs.Get(o.Entity); ok {
		w.WriteUUID(u.UUID)
	} else {
		w.WriteBytes(make([]byte, 16))
	}
	w.WriteVarInt(o.Kind)

	var pos entity.Position
	if p, ok := m.Positions.Get(o.Entity); ok {
		pos = *p
	}
	w.WriteDouble(pos.X)
	w.WriteDouble(pos.Y)
	w.WriteDouble(pos.Z)

	var look entity.Look
	if l, ok := m.Looks.Get(o.Entity); ok {
		look = *l
	}
	w.WriteF(look.Yaw)
	w.WriteF(look.Pitch)
	var head float32
	if h, ok := m.HeadYaws.Get(o.Entity); ok {
		head = h.Yaw
	}
	w.WriteF(head)

	var data int32
	if d, ok := m.ObjectData.Get(o.Entity); ok {
		data = d.Value
	}
	w.WriteVarInt(data)

	var vel entity.Velocity
	if v, ok := m.Velocities.Get(o.Entity); ok {
		vel = *v
	}
	w.WriteF(vel.X)
	w.WriteF(vel.Y)
	w.WriteF(vel.Z)

	writeBlob(w, o.Init)
	writeBlob(w, o.SpawnAttributes)
	return w.Bytes()
}

// TrackerUpdateFrame carries an unterminated update log.
func TrackerUpdateFrame(id int32, update []byte) []byte {
	w := packet.NewWriter()
	w.WriteC(OpTrackerUpdate)
	w.WriteVarInt(id)
	writeBlob(w, update)
	return w.Bytes()
}

func AttributesFrame(id int32, props []byte) []byte {
	w := packet.NewWriter()
	w.WriteC(OpAttributes)
	w.WriteVarInt(id)
	writeBlob(w, props)
	return w.Bytes()
}

// TriggerFrame carries one status (OpStatus) or animation (OpAnimation).
func TriggerFrame(op byte, id int32, bit uint8) []byte {
	w := packet.NewWriter()
	w.WriteC(op)
	w.WriteVarInt(id)
	w.WriteC(bit)
	return w.Bytes()
}

func RemoveFrame(ids []int32) []byte {
	w := packet.NewWriter()
	w.WriteC(OpRemove)
	w.WriteVarInt(int32(len(ids)))
	for _, id := range ids {
		w.WriteVarInt(id)
	}
	return w.Bytes()
}
