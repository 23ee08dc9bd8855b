// Package value implements the closed set of tracked-data value shapes.
//
// Each shape is a Go type implementing Value. A shape knows its stable Tag,
// how to encode itself and how to compare itself with another value; Decode
// is the inverse of Encode for every supported shape. Values are immutable
// once handed to a store: to change a field, store a new value.
package value

import (
	"errors"
	"fmt"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

var (
	// ErrUnknownTag is returned when decoding a tag outside the value domain.
	ErrUnknownTag = errors.New("unknown value tag")
	// ErrUnsupportedShape is returned for shapes with no settled encoding.
	ErrUnsupportedShape = errors.New("unsupported value shape")
	// ErrBadDefault is returned when a schema default does not fit its shape.
	ErrBadDefault = errors.New("default value inconsistent with shape")
)

// Value is one tracked-data value.
type Value interface {
	Tag() Tag
	Encode(w *packet.Writer)
	Equal(other Value) bool
	isValue()
}

// Marshal encodes v on its own.
func Marshal(v Value) []byte {
	w := packet.NewWriter()
	v.Encode(w)
	return w.Bytes()
}

// Unmarshal decodes exactly one value of the given shape from data.
func Unmarshal(tag Tag, data []byte) (Value, error) {
	r := packet.NewReader(data)
	v, err := Decode(tag, r)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("decode %s: %d trailing bytes", tag, r.Remaining())
	}
	return v, nil
}

// Decode reads one value of the given shape.
func Decode(tag Tag, r *packet.Reader) (Value, error) {
	var v Value
	switch tag {
	case TagByte:
		v = Byte(int8(r.ReadC()))
	case TagInt:
		v = Int(r.ReadVarInt())
	case TagLong:
		v = Long(r.ReadL())
	case TagFloat:
		v = Float(r.ReadF())
	case TagString:
		v = String(r.ReadS())
	case TagText:
		t, err := decodeText(r)
		if err != nil {
			return nil, err
		}
		v = t
	case TagOptionalText:
		var o OptionalText
		if r.ReadBool() {
			t, err := decodeText(r)
			if err != nil {
				return nil, err
			}
			o = SomeText(t)
		}
		v = o
	case TagItemStack:
		s, err := decodeItemStack(r)
		if err != nil {
			return nil, err
		}
		v = s
	case TagBool:
		v = Bool(r.ReadBool())
	case TagRotation:
		v = EulerAngle{Pitch: r.ReadF(), Yaw: r.ReadF(), Roll: r.ReadF()}
	case TagBlockPos:
		v = unpackBlockPos(r.ReadL())
	case TagOptionalBlockPos:
		var o OptionalBlockPos
		if r.ReadBool() {
			o = SomeBlockPos(unpackBlockPos(r.ReadL()))
		}
		v = o
	case TagFacing:
		v = Direction(r.ReadVarInt())
	case TagOptionalUUID:
		var o OptionalUUID
		if r.ReadBool() {
			o = SomeUUID(r.ReadUUID())
		}
		v = o
	case TagBlockState:
		v = BlockState(r.ReadVarInt())
	case TagOptionalBlockState:
		v = OptionalBlockState(r.ReadVarInt())
	case TagNBT:
		c, err := decodeRootCompound(r)
		if err != nil {
			return nil, err
		}
		v = c
	case TagParticle:
		v = decodeParticle(r)
	case TagParticleList:
		n := r.ReadLen()
		list := make(ParticleList, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			list = append(list, decodeParticle(r))
		}
		v = list
	case TagVillagerData:
		v = VillagerData{
			Kind:       VillagerKind(r.ReadVarInt()),
			Profession: VillagerProfession(r.ReadVarInt()),
			Level:      r.ReadVarInt(),
		}
	case TagOptionalInt:
		n := r.ReadVarInt()
		if n == 0 {
			v = OptionalInt{}
		} else {
			v = SomeInt(n - 1)
		}
	case TagCatVariant:
		v = CatKind(r.ReadVarInt())
	case TagPose:
		v = Pose(r.ReadVarInt())
	case TagWolfVariant:
		w := WolfVariant{
			WildTexture:  r.ReadS(),
			TameTexture:  r.ReadS(),
			AngryTexture: r.ReadS(),
		}
		n := r.ReadLen()
		for i := 0; i < n && r.Err() == nil; i++ {
			w.Biomes = append(w.Biomes, r.ReadS())
		}
		v = w
	case TagFrogVariant:
		v = FrogKind(r.ReadVarInt())
	case TagOptionalGlobalPos:
		return nil, fmt.Errorf("decode %s: %w", tag, ErrUnsupportedShape)
	case TagPaintingVariant:
		v = PaintingKind(r.ReadVarInt())
	case TagSnifferState:
		v = SnifferState(r.ReadVarInt())
	case TagArmadilloState:
		v = ArmadilloState(r.ReadVarInt())
	case TagVector3f:
		v = Vec3{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
	case TagQuaternionf:
		v = Quat{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF(), W: r.ReadF()}
	default:
		return nil, fmt.Errorf("decode tag %d: %w", uint8(tag), ErrUnknownTag)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return v, nil
}
