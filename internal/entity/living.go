package entity

import (
	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/effects"
)

// Living holds the containers every living kind carries besides its fields.
// Absorption lives in its own change-tracked store on the Manager.
type Living struct {
	Attributes *attributes.EntityAttributes
	Tracked    *attributes.Tracked
	Effects    *effects.ActiveStatusEffects
}

// Player holds hunger state. It is not synchronized as a field.
type Player struct {
	Food       int32
	Saturation float32
}
