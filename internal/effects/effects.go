// Package effects holds the active status effects of a living entity.
package effects

import "sort"

// Infinite marks an effect that never expires.
const Infinite int32 = -1

// Effect is one active status effect. Duration is in ticks.
type Effect struct {
	ID            int32
	Amplifier     uint8
	Duration      int32
	Ambient       bool
	ShowParticles bool
	ShowIcon      bool
}

func (e Effect) expired() bool { return e.Duration == 0 }

// ActiveStatusEffects is the status-effect collection spawned with every
// living kind.
type ActiveStatusEffects struct {
	effects map[int32]Effect
	changed map[int32]struct{}
}

func New() *ActiveStatusEffects {
	return &ActiveStatusEffects{
		effects: make(map[int32]Effect, 2),
		changed: make(map[int32]struct{}, 2),
	}
}

// Add applies e. An existing effect with the same id is replaced only by a
// stronger one, or by an equally strong one that lasts longer. It reports
// whether e was applied.
func (s *ActiveStatusEffects) Add(e Effect) bool {
	if cur, ok := s.effects[e.ID]; ok {
		switch {
		case e.Amplifier > cur.Amplifier:
		case e.Amplifier == cur.Amplifier && outlasts(e.Duration, cur.Duration):
		default:
			return false
		}
	}
	s.effects[e.ID] = e
	s.changed[e.ID] = struct{}{}
	return true
}

func outlasts(a, b int32) bool {
	if b == Infinite {
		return false
	}
	return a == Infinite || a > b
}

func (s *ActiveStatusEffects) Remove(id int32) bool {
	if _, ok := s.effects[id]; !ok {
		return false
	}
	delete(s.effects, id)
	s.changed[id] = struct{}{}
	return true
}

func (s *ActiveStatusEffects) Get(id int32) (Effect, bool) {
	e, ok := s.effects[id]
	return e, ok
}

func (s *ActiveStatusEffects) Has(id int32) bool {
	_, ok := s.effects[id]
	return ok
}

func (s *ActiveStatusEffects) Len() int { return len(s.effects) }

// Effects returns the active effects ordered by id.
func (s *ActiveStatusEffects) Effects() []Effect {
	out := make([]Effect, 0, len(s.effects))
	for _, e := range s.effects {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick counts every finite effect down by one tick and removes the ones that
// run out. It returns the ids removed, ordered.
func (s *ActiveStatusEffects) Tick() []int32 {
	var expired []int32
	for id, e := range s.effects {
		if e.Duration == Infinite {
			continue
		}
		e.Duration--
		if e.expired() || e.Duration < 0 {
			delete(s.effects, id)
			s.changed[id] = struct{}{}
			expired = append(expired, id)
			continue
		}
		s.effects[id] = e
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	return expired
}

// TakeChanged drains the ids added, replaced or removed since the last call.
func (s *ActiveStatusEffects) TakeChanged() []int32 {
	if len(s.changed) == 0 {
		return nil
	}
	out := make([]int32, 0, len(s.changed))
	for id := range s.changed {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	clear(s.changed)
	return out
}
