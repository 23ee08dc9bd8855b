package attributes

import (
	"sort"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

// Property is a snapshot of one attribute as sent to observers.
type Property struct {
	ID        int32
	Base      float64
	Modifiers []Modifier
}

func snapshot(inst *Instance) Property {
	return Property{ID: inst.def.ID, Base: inst.base, Modifiers: inst.Modifiers()}
}

// Tracked mirrors changed tracked attributes for the current tick. It is
// cleared once per tick after consumers have read it.
type Tracked struct {
	modified map[int32]Property
}

func NewTracked() *Tracked {
	return &Tracked{modified: make(map[int32]Property, 4)}
}

// MarkModified records the current state of the named attribute. Untracked
// or unknown attributes are ignored.
func (t *Tracked) MarkModified(attrs *EntityAttributes, name string) {
	inst, ok := attrs.instances[name]
	if !ok || !inst.def.Tracked {
		return
	}
	t.modified[inst.def.ID] = snapshot(inst)
}

func (t *Tracked) Len() int { return len(t.modified) }

// Modified returns this tick's entries ordered by attribute id.
func (t *Tracked) Modified() []Property {
	out := make([]Property, 0, len(t.modified))
	for _, p := range t.modified {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracked) Clear() {
	clear(t.modified)
}

// UpdateData encodes this tick's entries, or nil when nothing changed.
func (t *Tracked) UpdateData() []byte {
	if len(t.modified) == 0 {
		return nil
	}
	return EncodeProperties(t.Modified())
}

// SpawnData encodes every tracked attribute of attrs for a spawn message.
func SpawnData(attrs *EntityAttributes) []byte {
	props := make([]Property, 0, len(attrs.instances))
	for _, name := range attrs.Names() {
		inst := attrs.instances[name]
		if inst.def.Tracked {
			props = append(props, snapshot(inst))
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].ID < props[j].ID })
	return EncodeProperties(props)
}

// EncodeProperties writes a VarInt count followed by, per property, the
// VarInt id, the f64 base and the modifiers as (uuid, f64, u8 op).
func EncodeProperties(props []Property) []byte {
	w := packet.NewWriter()
	w.WriteVarInt(int32(len(props)))
	for _, p := range props {
		w.WriteVarInt(p.ID)
		w.WriteDouble(p.Base)
		w.WriteVarInt(int32(len(p.Modifiers)))
		for _, m := range p.Modifiers {
			w.WriteUUID(m.ID)
			w.WriteDouble(m.Amount)
			w.WriteC(byte(m.Op))
		}
	}
	return w.Bytes()
}

func DecodeProperties(data []byte) ([]Property, error) {
	r := packet.NewReader(data)
	n := r.ReadLen()
	props := make([]Property, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p := Property{ID: r.ReadVarInt(), Base: r.ReadDouble()}
		m := r.ReadLen()
		for j := 0; j < m && r.Err() == nil; j++ {
			p.Modifiers = append(p.Modifiers, Modifier{
				ID:     r.ReadUUID(),
				Amount: r.ReadDouble(),
				Op:     Operation(r.ReadC()),
			})
		}
		props = append(props, p)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return props, nil
}
