package entity

import (
	"math"

	"github.com/google/uuid"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
)

// UnassignedID is the protocol id of an entity that has not been through
// the init phase yet.
const UnassignedID int32 = -1

// Kind marks the compiled kind of an entity.
type Kind struct {
	ID   int32
	Spec *compiler.Kind
}

// ID is the protocol entity id. It is constant for the entity's lifetime.
type ID struct {
	Value int32
}

type UniqueID struct {
	UUID uuid.UUID
}

// LayerID is the layer an entity is on; OldLayerID holds its value from the
// end of the previous tick.
type LayerID struct {
	Layer ecs.EntityID
}

type OldLayerID struct {
	Layer ecs.EntityID
}

type Position struct {
	X, Y, Z float64
}

// OldPosition is Position as of the end of the previous tick.
type OldPosition struct {
	Position
}

// Look holds yaw and pitch in degrees. Yaw 0 faces south (+z), -90 east;
// pitch -90 looks straight up.
type Look struct {
	Yaw   float32
	Pitch float32
}

// Vec returns the unit direction vector for the look angles.
func (l Look) Vec() (x, y, z float32) {
	yaw := float64(l.Yaw+90) * math.Pi / 180
	pitch := float64(-l.Pitch) * math.Pi / 180
	ys, yc := math.Sincos(yaw)
	ps, pc := math.Sincos(pitch)
	return float32(yc * pc), float32(ps), float32(ys * pc)
}

// SetVec sets the angles from a unit direction vector. Yaw is kept when the
// vector points straight up or down.
func (l *Look) SetVec(x, y, z float32) {
	if x != 0 || z != 0 {
		l.Yaw = float32(math.Atan2(float64(z), float64(x))*180/math.Pi) - 90
	}
	l.Pitch = -float32(math.Asin(float64(y)) * 180 / math.Pi)
}

type HeadYaw struct {
	Yaw float32
}

type OnGround struct {
	Value bool
}

// Velocity is in metres per second.
type Velocity struct {
	X, Y, Z float32
}

// Statuses holds entity status triggers for the current tick, one bit per
// status.
type Statuses struct {
	Bits uint64
}

func (s *Statuses) Trigger(bit uint8)  { s.Bits |= 1 << (bit & 63) }
func (s Statuses) Has(bit uint8) bool { return s.Bits>>(bit&63)&1 == 1 }

// Animations holds animation triggers for the current tick.
type Animations struct {
	Bits uint8
}

func (a *Animations) Trigger(bit uint8)  { a.Bits |= 1 << (bit & 7) }
func (a Animations) Has(bit uint8) bool { return a.Bits>>(bit&7)&1 == 1 }

// ObjectData is the extra integer carried by the spawn message; its meaning
// depends on the kind.
type ObjectData struct {
	Value int32
}
