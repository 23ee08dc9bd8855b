package system

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner executes systems in phase order each tick. Within a phase,
// sequential systems run in registration order; concurrent systems then run
// together on at most Parallelism goroutines and the phase ends when all of
// them have returned.
type Runner struct {
	systems     []System
	sorted      bool
	parallelism int
}

func NewRunner() *Runner {
	return &Runner{
		systems:     make([]System, 0, 16),
		parallelism: 1,
	}
}

// SetParallelism bounds the goroutines used for concurrent systems. Values
// below 2 run everything on the calling goroutine.
func (r *Runner) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	r.parallelism = n
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for i := 0; i < len(r.systems); {
		j := i
		for j < len(r.systems) && r.systems[j].Phase() == r.systems[i].Phase() {
			j++
		}
		r.runPhase(r.systems[i:j], dt)
		i = j
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	lo := sort.Search(len(r.systems), func(i int) bool { return r.systems[i].Phase() >= phase })
	hi := lo
	for hi < len(r.systems) && r.systems[hi].Phase() == phase {
		hi++
	}
	r.runPhase(r.systems[lo:hi], dt)
}

func (r *Runner) runPhase(systems []System, dt time.Duration) {
	var group []System
	for _, s := range systems {
		if c, ok := s.(Concurrent); ok && c.Concurrent() && r.parallelism > 1 {
			group = append(group, s)
			continue
		}
		s.Update(dt)
	}
	if len(group) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, s := range group {
		s := s
		g.Go(func() error {
			s.Update(dt)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
