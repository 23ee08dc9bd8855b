package event

import "github.com/voxelhost/entitysync/internal/core/ecs"

// EntityInitialized is emitted when an entity receives its protocol id.
type EntityInitialized struct {
	Entity ecs.EntityID
	ID     int32
	Kind   int32
}

// EntityIDConflict is emitted when an initialized entity takes over an id
// already held by another live entity.
type EntityIDConflict struct {
	Entity   ecs.EntityID
	Previous ecs.EntityID
	ID       int32
}

// EntityRemoved is emitted when an entity's id is released.
type EntityRemoved struct {
	Entity ecs.EntityID
	ID     int32
}
