package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput             Phase = iota // 0: host input, external mutations
	PhaseUpdate                         // 1: game logic mutating fields, spawning
	PhaseInit                           // 2: assign identity, seed shadows
	PhaseUpdateTrackedData              // 3: observation routines and mirrors
	PhaseOutput                         // 4: transport reads baselines and updates
	PhaseClearChanges                   // 5: drop per-tick logs, advance shadows, destroy
)

var phaseNames = [...]string{"input", "update", "init", "update_tracked_data", "output", "clear_changes"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase?"
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Concurrent marks a system that may run alongside the other concurrent
// systems of its phase. Such systems must only touch state they own.
type Concurrent interface {
	System
	Concurrent() bool
}

// Func adapts a function to System.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase            { return f.P }
func (f Func) Update(dt time.Duration) { f.Fn(dt) }
