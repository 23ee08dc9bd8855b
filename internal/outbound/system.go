package outbound

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/core/event"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/entity"
)

// Stats counts frames handed to the sink.
type Stats struct {
	Spawns     int
	Updates    int
	Attributes int
	Triggers   int
	Removals   int
	Rejected   int
}

// OutputSystem reads every entity log during the output phase, after
// observation and before cleanup, and sends the resulting frames.
type OutputSystem struct {
	m    *entity.Manager
	sink Sink
	log  *zap.Logger

	removed []int32
	stats   Stats
}

// NewOutputSystem subscribes to entity removals on bus; their ids go out
// in the next output phase after the bus is dispatched.
func NewOutputSystem(m *entity.Manager, bus *event.Bus, sink Sink, log *zap.Logger) *OutputSystem {
	if log == nil {
		log = zap.NewNop()
	}
	s := &OutputSystem{m: m, sink: sink, log: log}
	event.Subscribe(bus, func(ev event.EntityRemoved) {
		s.removed = append(s.removed, ev.ID)
	})
	return s
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Stats() Stats { return s.stats }

func (s *OutputSystem) send(frame []byte, counter *int) {
	if err := s.sink.Send(frame); err != nil {
		s.stats.Rejected++
		s.log.Warn("sink rejected frame", zap.Uint8("opcode", frame[0]), zap.Error(err))
		return
	}
	*counter++
}

func (s *OutputSystem) Update(_ time.Duration) {
	if len(s.removed) > 0 {
		sort.Slice(s.removed, func(i, j int) bool { return s.removed[i] < s.removed[j] })
		s.send(RemoveFrame(s.removed), &s.stats.Removals)
		s.removed = s.removed[:0]
	}

	s.m.EachOutgoing(func(o entity.Outgoing) {
		if o.First {
			s.send(SpawnFrame(s.m, o), &s.stats.Spawns)
		} else {
			if o.Update != nil {
				s.send(TrackerUpdateFrame(o.ID, o.Update), &s.stats.Updates)
			}
			if o.Attributes != nil {
				s.send(AttributesFrame(o.ID, o.Attributes), &s.stats.Attributes)
			}
		}
		if st, ok := s.m.Statuses.Get(o.Entity); ok && st.Bits != 0 {
			for bit := uint8(0); bit < 64; bit++ {
				if st.Has(bit) {
					s.send(TriggerFrame(OpStatus, o.ID, bit), &s.stats.Triggers)
				}
			}
		}
		if a, ok := s.m.Animations.Get(o.Entity); ok && a.Bits != 0 {
			for bit := uint8(0); bit < 8; bit++ {
				if a.Has(bit) {
					s.send(TriggerFrame(OpAnimation, o.ID, bit), &s.stats.Triggers)
				}
			}
		}
	})
}
