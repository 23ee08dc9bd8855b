package outbound

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/core/event"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/value"
)

type host struct {
	m      *entity.Manager
	r      *coresys.Runner
	out    *OutputSystem
	mirror *Mirror
}

func newHost(t *testing.T, parallelism int) *host {
	t.Helper()
	dir := filepath.Join("..", "entity", "testdata")
	s, err := schema.Load(
		filepath.Join(dir, "entities.yaml"),
		filepath.Join(dir, "misc.yaml"),
		filepath.Join(dir, "attributes.yaml"),
	)
	require.NoError(t, err)
	cat, err := compiler.Compile(s, nil)
	require.NoError(t, err)

	bus := event.NewBus()
	h := &host{
		m:      entity.NewManager(cat, entity.Options{IDFloor: 1, Bus: bus}, nil),
		r:      coresys.NewRunner(),
		mirror: NewMirror(cat, nil),
	}
	h.r.SetParallelism(parallelism)
	h.r.Register(coresys.Func{P: coresys.PhaseInput, Fn: func(time.Duration) {
		bus.SwapBuffers()
		bus.DispatchAll()
	}})
	entity.Install(h.r, h.m)
	h.out = NewOutputSystem(h.m, bus, h.mirror, nil)
	h.r.Register(h.out)
	return h
}

func (h *host) tick() { h.r.Tick(50 * time.Millisecond) }

func (h *host) remote(t *testing.T, e ecs.EntityID) *Remote {
	t.Helper()
	id, ok := h.m.IDs.Get(e)
	require.True(t, ok)
	r, ok := h.mirror.Get(id.Value)
	require.True(t, ok, "entity %d not mirrored", id.Value)
	return r
}

func randomValue(rng *rand.Rand, tag value.Tag) (value.Value, bool) {
	switch tag {
	case value.TagByte:
		return value.Byte(rng.Intn(4)), true
	case value.TagInt:
		return value.Int(rng.Intn(3)), true
	case value.TagFloat:
		return value.Float(rng.Intn(3)), true
	case value.TagBool:
		return value.Bool(rng.Intn(2) == 1), true
	case value.TagPose:
		return value.Pose(rng.Intn(3)), true
	case value.TagOptionalText:
		if rng.Intn(2) == 0 {
			return value.OptionalText{}, true
		}
		return value.SomeText("name"), true
	}
	return nil, false
}

// assertMirrored checks that the consumer holds the server's current value
// of every field of every live entity.
func assertMirrored(t *testing.T, h *host, live []ecs.EntityID) {
	t.Helper()
	for _, e := range live {
		r := h.remote(t, e)
		kind, _ := h.m.Kinds.Get(e)
		for _, f := range kind.Spec.Fields {
			want, _ := h.m.Field(e, f.Key)
			got, ok := r.Value(f.Index)
			require.True(t, ok)
			assert.True(t, want.Equal(got), "%s of %d: want %v, got %v", f.Key, r.ID, want, got)
		}
	}
}

func TestMirrorReconstructsCurrentValues(t *testing.T) {
	for _, parallelism := range []int{1, 4} {
		h := newHost(t, parallelism)
		rng := rand.New(rand.NewSource(42))

		var live []ecs.EntityID
		for i := 0; i < 12; i++ {
			kind := []string{"zombie", "player", "item"}[i%3]
			b, err := h.m.NewBundle(kind)
			require.NoError(t, err)
			e, err := h.m.Spawn(b)
			require.NoError(t, err)
			live = append(live, e)
		}
		h.tick()
		assert.Equal(t, 12, h.mirror.Len())
		assertMirrored(t, h, live)

		for tick := 0; tick < 40; tick++ {
			for _, e := range live {
				kind, _ := h.m.Kinds.Get(e)
				for _, f := range kind.Spec.Fields {
					if rng.Intn(3) != 0 {
						continue
					}
					if v, ok := randomValue(rng, f.Tag); ok {
						require.NoError(t, h.m.SetField(e, f.Key, v))
					}
				}
				if rng.Intn(4) == 0 {
					h.m.SetAbsorption(e, float32(rng.Intn(3)))
				}
			}
			h.tick()
			assertMirrored(t, h, live)
		}
		assert.Zero(t, h.out.Stats().Rejected)
		assert.Equal(t, 12, h.out.Stats().Spawns)
		assert.NotZero(t, h.out.Stats().Updates)
	}
}

func TestSpawnFrameCarriesPlacementAndAttributes(t *testing.T) {
	h := newHost(t, 1)
	b, err := h.m.NewBundle("zombie")
	require.NoError(t, err)
	b.Position = entity.Position{X: 1, Y: 2, Z: 3}
	b.Look = entity.Look{Yaw: 90, Pitch: 10}
	b.ObjectData = 7
	require.NoError(t, b.Set("baby", value.Bool(true)))
	e, err := h.m.Spawn(b)
	require.NoError(t, err)
	h.tick()

	r := h.remote(t, e)
	assert.Equal(t, b.UniqueID, r.UUID)
	assert.Equal(t, "zombie", r.Kind.Name)
	assert.Equal(t, entity.Position{X: 1, Y: 2, Z: 3}, r.Position)
	assert.Equal(t, float32(90), r.Look.Yaw)
	assert.Equal(t, int32(7), r.ObjectData)
	assert.Equal(t, map[uint8]value.Value{16: value.Bool(true)}, r.Fields)
	require.Contains(t, r.Attributes, int32(16))
	assert.Equal(t, 20.0, r.Attributes[16].Base)

	l, _ := h.m.Living.Get(e)
	require.NoError(t, l.Attributes.SetBase("generic.max_health", 26))
	h.tick()
	assert.Equal(t, 26.0, r.Attributes[16].Base)
	assert.Equal(t, 1, h.out.Stats().Attributes)
}

func TestSpawnFromGameLogicReachesConsumer(t *testing.T) {
	h := newHost(t, 1)
	var spawned ecs.EntityID
	done := false
	h.r.Register(coresys.Func{P: coresys.PhaseUpdate, Fn: func(time.Duration) {
		if done {
			return
		}
		done = true
		b, err := h.m.NewBundle("zombie")
		require.NoError(t, err)
		require.NoError(t, b.Set("baby", value.Bool(true)))
		spawned, err = h.m.Spawn(b)
		require.NoError(t, err)
	}})

	h.tick()
	require.True(t, done)
	r := h.remote(t, spawned)
	assert.Equal(t, map[uint8]value.Value{16: value.Bool(true)}, r.Fields)
	assert.Equal(t, 1, h.out.Stats().Spawns)

	h.tick()
	h.tick()
	assert.Equal(t, 1, h.out.Stats().Spawns)
	assert.Zero(t, h.out.Stats().Rejected)
}

func TestTriggersAndRemoval(t *testing.T) {
	h := newHost(t, 1)
	b, err := h.m.NewBundle("zombie")
	require.NoError(t, err)
	e, err := h.m.Spawn(b)
	require.NoError(t, err)
	h.tick()
	id, _ := h.m.IDs.Get(e)

	require.NoError(t, h.m.TriggerStatus(e, "play_attack_sound"))
	require.NoError(t, h.m.TriggerAnimation(e, "swing_main_hand"))
	h.tick()
	r := h.remote(t, e)
	assert.Equal(t, []uint8{4}, r.Statuses)
	assert.Equal(t, []uint8{0}, r.Animations)

	h.mirror.ResetTriggers()
	h.tick()
	assert.Empty(t, r.Statuses, "triggers last one tick")

	h.m.Despawn(e)
	h.tick()
	_, ok := h.mirror.Get(id.Value)
	assert.True(t, ok, "removal goes out after the bus is dispatched")
	h.tick()
	_, ok = h.mirror.Get(id.Value)
	assert.False(t, ok)
	assert.Equal(t, 1, h.out.Stats().Removals)
}

func TestMirrorRejectsBadFrames(t *testing.T) {
	h := newHost(t, 1)
	assert.ErrorIs(t, h.mirror.Send(TrackerUpdateFrame(9, []byte{16, 8, 1})), ErrUnknownEntity)
	assert.Error(t, h.mirror.Send([]byte{0x7f}))
	assert.Error(t, h.mirror.Send([]byte{OpSpawn, 1}))
}

func TestRejectedFramesAreCounted(t *testing.T) {
	h := newHost(t, 1)
	bus := event.NewBus()
	out := NewOutputSystem(h.m, bus, SinkFunc(func([]byte) error { return errors.New("closed") }), nil)
	h.r.Register(out)

	b, err := h.m.NewBundle("item")
	require.NoError(t, err)
	_, err = h.m.Spawn(b)
	require.NoError(t, err)
	h.tick()
	assert.Equal(t, 1, out.Stats().Rejected)
	assert.Zero(t, out.Stats().Spawns)
}
