package value

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

// EulerAngle is an armor-stand style rotation in degrees.
type EulerAngle struct {
	Pitch, Yaw, Roll float32
}

func (EulerAngle) Tag() Tag { return TagRotation }

func (v EulerAngle) Encode(w *packet.Writer) {
	w.WriteF(v.Pitch)
	w.WriteF(v.Yaw)
	w.WriteF(v.Roll)
}

func (v EulerAngle) Equal(o Value) bool {
	x, ok := o.(EulerAngle)
	return ok && sameFloat(x.Pitch, v.Pitch) && sameFloat(x.Yaw, v.Yaw) && sameFloat(x.Roll, v.Roll)
}

func (EulerAngle) isValue() {}

// BlockPos is an integer block coordinate. X and Z use 26 bits and Y 12 bits
// on the wire.
type BlockPos struct {
	X, Y, Z int32
}

func (BlockPos) Tag() Tag { return TagBlockPos }

func (v BlockPos) Packed() int64 {
	return (int64(v.X)&0x3FFFFFF)<<38 | (int64(v.Z)&0x3FFFFFF)<<12 | int64(v.Y)&0xFFF
}

func (v BlockPos) Encode(w *packet.Writer) { w.WriteL(v.Packed()) }
func (v BlockPos) Equal(o Value) bool      { x, ok := o.(BlockPos); return ok && x == v }
func (BlockPos) isValue()                  {}

func (v BlockPos) String() string { return fmt.Sprintf("(%d, %d, %d)", v.X, v.Y, v.Z) }

func unpackBlockPos(p int64) BlockPos {
	return BlockPos{
		X: int32(p >> 38),
		Y: int32(p << 52 >> 52),
		Z: int32(p << 26 >> 38),
	}
}

type OptionalBlockPos struct {
	Pos   BlockPos
	Valid bool
}

func SomeBlockPos(p BlockPos) OptionalBlockPos { return OptionalBlockPos{Pos: p, Valid: true} }

func (OptionalBlockPos) Tag() Tag { return TagOptionalBlockPos }

func (v OptionalBlockPos) Encode(w *packet.Writer) {
	w.WriteBool(v.Valid)
	if v.Valid {
		v.Pos.Encode(w)
	}
}

func (v OptionalBlockPos) Equal(o Value) bool {
	x, ok := o.(OptionalBlockPos)
	return ok && x.Valid == v.Valid && (!v.Valid || x.Pos == v.Pos)
}

func (OptionalBlockPos) isValue() {}

type OptionalUUID struct {
	UUID  uuid.UUID
	Valid bool
}

func SomeUUID(id uuid.UUID) OptionalUUID { return OptionalUUID{UUID: id, Valid: true} }

func (OptionalUUID) Tag() Tag { return TagOptionalUUID }

func (v OptionalUUID) Encode(w *packet.Writer) {
	w.WriteBool(v.Valid)
	if v.Valid {
		w.WriteUUID(v.UUID)
	}
}

func (v OptionalUUID) Equal(o Value) bool {
	x, ok := o.(OptionalUUID)
	return ok && x.Valid == v.Valid && (!v.Valid || x.UUID == v.UUID)
}

func (OptionalUUID) isValue() {}

// BlockState is a raw block-state id; 0 is air.
type BlockState int32

func (BlockState) Tag() Tag                  { return TagBlockState }
func (v BlockState) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v BlockState) Equal(o Value) bool      { x, ok := o.(BlockState); return ok && x == v }
func (BlockState) isValue()                  {}

// OptionalBlockState shares the block-state id space; 0 (air) means absent.
type OptionalBlockState int32

func (OptionalBlockState) Tag() Tag                  { return TagOptionalBlockState }
func (v OptionalBlockState) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v OptionalBlockState) Equal(o Value) bool      { x, ok := o.(OptionalBlockState); return ok && x == v }
func (OptionalBlockState) isValue()                  {}

func (v OptionalBlockState) Valid() bool { return v != 0 }

type Vec3 struct {
	X, Y, Z float32
}

func (Vec3) Tag() Tag { return TagVector3f }

func (v Vec3) Encode(w *packet.Writer) {
	w.WriteF(v.X)
	w.WriteF(v.Y)
	w.WriteF(v.Z)
}

func (v Vec3) Equal(o Value) bool {
	x, ok := o.(Vec3)
	return ok && sameFloat(x.X, v.X) && sameFloat(x.Y, v.Y) && sameFloat(x.Z, v.Z)
}

func (Vec3) isValue() {}

// Quat is a rotation quaternion. The identity is {0, 0, 0, 1}.
type Quat struct {
	X, Y, Z, W float32
}

func (Quat) Tag() Tag { return TagQuaternionf }

func (v Quat) Encode(w *packet.Writer) {
	w.WriteF(v.X)
	w.WriteF(v.Y)
	w.WriteF(v.Z)
	w.WriteF(v.W)
}

func (v Quat) Equal(o Value) bool {
	x, ok := o.(Quat)
	return ok && sameFloat(x.X, v.X) && sameFloat(x.Y, v.Y) && sameFloat(x.Z, v.Z) && sameFloat(x.W, v.W)
}

func (Quat) isValue() {}
