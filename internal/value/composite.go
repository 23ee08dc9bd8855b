package value

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

// ItemStack is a slot value. A stack with no item or a non-positive count is
// empty, and every empty stack is equal to the zero ItemStack.
type ItemStack struct {
	Item  int32
	Count int8
}

func (s ItemStack) Empty() bool { return s.Item == 0 || s.Count <= 0 }

func (ItemStack) Tag() Tag { return TagItemStack }

func (s ItemStack) Encode(w *packet.Writer) {
	if s.Empty() {
		w.WriteVarInt(0)
		return
	}
	w.WriteVarInt(int32(s.Count))
	w.WriteVarInt(s.Item)
	w.WriteVarInt(0) // components added
	w.WriteVarInt(0) // components removed
}

func (s ItemStack) Equal(o Value) bool {
	x, ok := o.(ItemStack)
	if !ok {
		return false
	}
	if s.Empty() || x.Empty() {
		return s.Empty() && x.Empty()
	}
	return x == s
}

func (ItemStack) isValue() {}

func decodeItemStack(r *packet.Reader) (ItemStack, error) {
	count := r.ReadVarInt()
	if count <= 0 {
		return ItemStack{}, r.Err()
	}
	s := ItemStack{Count: int8(count), Item: r.ReadVarInt()}
	added, removed := r.ReadVarInt(), r.ReadVarInt()
	if r.Err() == nil && (added != 0 || removed != 0) {
		return ItemStack{}, fmt.Errorf("item stack components: %w", ErrUnsupportedShape)
	}
	return s, r.Err()
}

// Particle is a particle type id followed by its type-specific payload,
// carried verbatim.
type Particle struct {
	ID   int32
	Data []byte
}

func (Particle) Tag() Tag { return TagParticle }

func (p Particle) Encode(w *packet.Writer) {
	w.WriteVarInt(p.ID)
	w.WriteVarInt(int32(len(p.Data)))
	w.WriteBytes(p.Data)
}

func (p Particle) Equal(o Value) bool {
	x, ok := o.(Particle)
	return ok && x.ID == p.ID && bytes.Equal(x.Data, p.Data)
}

func (Particle) isValue() {}

func decodeParticle(r *packet.Reader) Particle {
	p := Particle{ID: r.ReadVarInt()}
	if n := r.ReadLen(); n > 0 {
		p.Data = r.ReadBytes(n)
	}
	return p
}

type ParticleList []Particle

func (ParticleList) Tag() Tag { return TagParticleList }

func (l ParticleList) Encode(w *packet.Writer) {
	w.WriteVarInt(int32(len(l)))
	for _, p := range l {
		p.Encode(w)
	}
}

func (l ParticleList) Equal(o Value) bool {
	x, ok := o.(ParticleList)
	return ok && slices.EqualFunc(l, x, func(a, b Particle) bool { return a.Equal(b) })
}

func (ParticleList) isValue() {}

type VillagerData struct {
	Kind       VillagerKind
	Profession VillagerProfession
	Level      int32
}

func (VillagerData) Tag() Tag { return TagVillagerData }

func (v VillagerData) Encode(w *packet.Writer) {
	w.WriteVarInt(int32(v.Kind))
	w.WriteVarInt(int32(v.Profession))
	w.WriteVarInt(v.Level)
}

func (v VillagerData) Equal(o Value) bool { x, ok := o.(VillagerData); return ok && x == v }
func (VillagerData) isValue()             {}

// WolfVariant carries three texture identifiers and the biomes the variant
// spawns in.
type WolfVariant struct {
	WildTexture  string
	TameTexture  string
	AngryTexture string
	Biomes       []string
}

func (WolfVariant) Tag() Tag { return TagWolfVariant }

func (v WolfVariant) Encode(w *packet.Writer) {
	w.WriteS(v.WildTexture)
	w.WriteS(v.TameTexture)
	w.WriteS(v.AngryTexture)
	w.WriteVarInt(int32(len(v.Biomes)))
	for _, b := range v.Biomes {
		w.WriteS(b)
	}
}

func (v WolfVariant) Equal(o Value) bool {
	x, ok := o.(WolfVariant)
	return ok &&
		x.WildTexture == v.WildTexture &&
		x.TameTexture == v.TameTexture &&
		x.AngryTexture == v.AngryTexture &&
		slices.Equal(x.Biomes, v.Biomes)
}

func (WolfVariant) isValue() {}
