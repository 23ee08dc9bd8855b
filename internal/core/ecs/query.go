package ecs

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.data {
		if a, ok := sa.data[id]; ok {
			fn(id, a, b)
		}
	}
}

// EachChangedWith visits the changed entries of a tracked store that also
// carry component B.
func EachChangedWith[A, B any](sa *TrackedStore[A], sb *PtrComponentStore[B], fn func(id EntityID, a A, b *B, added bool)) {
	sa.EachChanged(func(id EntityID, a A, added bool) {
		if b, ok := sb.data[id]; ok {
			fn(id, a, b, added)
		}
	})
}
