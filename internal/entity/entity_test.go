package entity

import (
	"math"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/core/event"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/effects"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

const tickRate = 50 * time.Millisecond

func testCatalog(t *testing.T) *compiler.Catalog {
	t.Helper()
	s, err := schema.Load(
		filepath.Join("testdata", "entities.yaml"),
		filepath.Join("testdata", "misc.yaml"),
		filepath.Join("testdata", "attributes.yaml"),
	)
	require.NoError(t, err)
	cat, err := compiler.Compile(s, nil)
	require.NoError(t, err)
	return cat
}

type harness struct {
	t        *testing.T
	m        *Manager
	r        *coresys.Runner
	bus      *event.Bus
	logs     *observer.ObservedLogs
	out      map[int32]Outgoing
	onOutput func()
}

func newHarness(t *testing.T, parallelism int) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	bus := event.NewBus()
	h := &harness{
		t:    t,
		bus:  bus,
		logs: logs,
		r:    coresys.NewRunner(),
	}
	h.m = NewManager(testCatalog(t), Options{IDFloor: 100, Bus: bus}, zap.New(core))
	h.r.SetParallelism(parallelism)
	Install(h.r, h.m)
	h.r.Register(coresys.Func{P: coresys.PhaseOutput, Fn: func(time.Duration) {
		h.m.EachOutgoing(func(o Outgoing) { h.out[o.ID] = o })
		if h.onOutput != nil {
			h.onOutput()
		}
	}})
	return h
}

func (h *harness) tick() {
	h.out = make(map[int32]Outgoing)
	h.r.Tick(tickRate)
}

func (h *harness) spawn(kind string, edit func(*Bundle)) ecs.EntityID {
	h.t.Helper()
	b, err := h.m.NewBundle(kind)
	require.NoError(h.t, err)
	if edit != nil {
		edit(b)
	}
	e, err := h.m.Spawn(b)
	require.NoError(h.t, err)
	return e
}

func (h *harness) id(e ecs.EntityID) int32 {
	h.t.Helper()
	id, ok := h.m.IDs.Get(e)
	require.True(h.t, ok)
	return id.Value
}

func decode(t *testing.T, data []byte, terminated bool) map[uint8]value.Value {
	t.Helper()
	if data == nil {
		return nil
	}
	entries, err := tracked.DecodeEntries(data, terminated)
	require.NoError(t, err)
	out := make(map[uint8]value.Value, len(entries))
	for _, e := range entries {
		out[e.Index] = e.Value
	}
	return out
}

func TestZombieBundleIsUnionOfAncestors(t *testing.T) {
	h := newHarness(t, 1)
	b, err := h.m.NewBundle("zombie")
	require.NoError(t, err)

	keys := make([]string, 0, len(b.Fields))
	for k := range b.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"living.arrow_count", "living.health",
		"mob.custom_name", "mob.flags", "mob.pose",
		"zombie.baby", "zombie.converting",
	}, keys)
	assert.Equal(t, int32(127), b.Kind.ID)
	assert.Equal(t, UnassignedID, b.ID)

	require.NotNil(t, b.Attributes)
	require.NotNil(t, b.Effects)
	assert.Zero(t, b.Absorption)
	assert.Nil(t, b.Player)
	hp, ok := b.Attributes.Base("generic.max_health")
	require.True(t, ok)
	assert.Equal(t, 20.0, hp)
	speed, _ := b.Attributes.Base("generic.movement_speed")
	assert.Equal(t, 0.23, speed)
	assert.False(t, b.Attributes.HasChanges(), "seeding is not a change")

	item, err := h.m.NewBundle("item")
	require.NoError(t, err)
	assert.Nil(t, item.Attributes)
	assert.Len(t, item.Fields, 4)

	_, err = h.m.NewBundle("creeper")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestPlayerDefaults(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("player", nil)
	p, ok := h.m.Players.Get(e)
	require.True(t, ok)
	assert.Equal(t, int32(20), p.Food)
	assert.Equal(t, float32(5), p.Saturation)
	assert.True(t, h.m.Living.Has(e))
}

func TestFirstTickBaselineOnlyNonDefault(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", func(b *Bundle) {
		require.NoError(t, b.Set("baby", value.Bool(true)))
		require.NoError(t, b.Set("living.health", value.Float(1)))
	})
	h.tick()

	o, ok := h.out[h.id(e)]
	require.True(t, ok)
	assert.True(t, o.First)
	assert.Equal(t, int32(127), o.Kind)
	assert.Equal(t, map[uint8]value.Value{16: value.Bool(true)}, decode(t, o.Init, true))
	assert.Nil(t, o.Update, "no incremental updates on the first tick")
	assert.Nil(t, o.Attributes)

	props, err := attributes.DecodeProperties(o.SpawnAttributes)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, int32(16), props[0].ID)
	assert.Equal(t, 20.0, props[0].Base)
	assert.Equal(t, int32(21), props[1].ID)
}

func TestChangeBackToDefaultDropsBaseline(t *testing.T) {
	h := newHarness(t, 1)
	baby := FieldRef[value.Bool]{Key: "zombie.baby"}
	e := h.spawn("zombie", func(b *Bundle) { require.NoError(t, b.Set("baby", value.Bool(true))) })
	h.tick()
	id := h.id(e)

	require.NoError(t, baby.Set(h.m, e, false))
	assert.True(t, baby.Changed(h.m, e))
	h.tick()
	o := h.out[id]
	assert.False(t, o.First)
	assert.Nil(t, o.Init, "baseline entry removed")
	assert.Equal(t, map[uint8]value.Value{16: value.Bool(false)}, decode(t, o.Update, false))

	td, _ := h.m.Tracked.Get(e)
	assert.Zero(t, td.UpdateLen(), "cleanup empties the update list")

	h.tick()
	o = h.out[id]
	assert.Nil(t, o.Init)
	assert.Nil(t, o.Update)
}

func TestCleanupKeepsBaseline(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.tick()

	require.NoError(t, h.m.SetField(e, "mob.flags", value.Byte(3)))
	require.NoError(t, h.m.SetField(e, "mob.pose", value.PoseSleeping))
	h.tick()

	o := h.out[h.id(e)]
	want := map[uint8]value.Value{0: value.Byte(3), 6: value.PoseSleeping}
	assert.Equal(t, want, decode(t, o.Init, true))
	assert.Equal(t, want, decode(t, o.Update, false))

	td, _ := h.m.Tracked.Get(e)
	assert.Zero(t, td.UpdateLen())
	assert.Equal(t, 2, td.BaselineLen())

	h.tick()
	o = h.out[h.id(e)]
	assert.Equal(t, want, decode(t, o.Init, true))
	assert.Nil(t, o.Update)
}

func TestRevertWithinTickIsNotObserved(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.tick()

	require.NoError(t, h.m.SetField(e, "living.arrow_count", value.Int(3)))
	require.NoError(t, h.m.SetField(e, "living.arrow_count", value.Int(0)))
	h.tick()
	assert.Nil(t, h.out[h.id(e)].Update)
}

func TestNaNIsObservedOnce(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.tick()
	id := h.id(e)

	nan := value.Float(math.NaN())
	require.NoError(t, h.m.SetField(e, "living.health", nan))
	h.tick()
	got := decode(t, h.out[id].Update, false)
	require.Contains(t, got, uint8(9))
	assert.True(t, math.IsNaN(float64(got[9].(value.Float))))

	require.NoError(t, h.m.SetField(e, "living.health", value.Float(math.NaN())))
	h.tick()
	assert.Nil(t, h.out[id].Update)
}

func TestMaxIndexRoundTrips(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.tick()

	require.NoError(t, h.m.SetField(e, "zombie.converting", value.Bool(true)))
	h.tick()
	o := h.out[h.id(e)]
	assert.Equal(t, map[uint8]value.Value{254: value.Bool(true)}, decode(t, o.Init, true))
	assert.Equal(t, map[uint8]value.Value{254: value.Bool(true)}, decode(t, o.Update, false))
}

func TestAttributeMirrorOneEntryThenNone(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.tick()
	id := h.id(e)

	l, ok := h.m.Living.Get(e)
	require.True(t, ok)
	require.NoError(t, l.Attributes.SetBase("generic.max_health", 30))
	h.tick()

	props, err := attributes.DecodeProperties(h.out[id].Attributes)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int32(16), props[0].ID)
	assert.Equal(t, 30.0, props[0].Base)
	assert.Zero(t, l.Tracked.Len(), "mirror cleared after the tick")

	h.tick()
	assert.Nil(t, h.out[id].Attributes)

	require.NoError(t, l.Attributes.SetBase("generic.attack_damage", 5))
	h.tick()
	assert.Nil(t, h.out[id].Attributes, "untracked attributes are not mirrored")
}

func TestAbsorptionMirrorsIntoPlayerField(t *testing.T) {
	h := newHarness(t, 1)
	p := h.spawn("player", nil)
	z := h.spawn("zombie", nil)
	h.tick()

	require.True(t, h.m.SetAbsorption(p, 4))
	require.True(t, h.m.SetAbsorption(z, 4))
	h.tick()

	o := h.out[h.id(p)]
	assert.Equal(t, map[uint8]value.Value{15: value.Float(4)}, decode(t, o.Init, true))
	assert.Equal(t, map[uint8]value.Value{15: value.Float(4)}, decode(t, o.Update, false))
	assert.Nil(t, h.out[h.id(z)].Update, "zombies have no mirror target")

	v, ok := FieldRef[value.Float]{Key: "player.absorption_amount"}.Get(h.m, p)
	require.True(t, ok)
	assert.Equal(t, value.Float(4), v)
}

func TestIDAssignmentAndConflict(t *testing.T) {
	h := newHarness(t, 1)
	var conflicts []event.EntityIDConflict
	event.Subscribe(h.bus, func(ev event.EntityIDConflict) { conflicts = append(conflicts, ev) })

	a := h.spawn("zombie", nil)
	reserved := h.m.NextID()
	b := h.spawn("zombie", func(bd *Bundle) { bd.ID = reserved })
	h.tick()

	assert.Equal(t, int32(100), h.id(a))
	assert.Equal(t, int32(101), h.id(b))
	got, ok := h.m.Lookup(100)
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, 2, h.m.Len())

	c := h.spawn("zombie", func(bd *Bundle) { bd.ID = 100 })
	h.tick()
	got, _ = h.m.Lookup(100)
	assert.Equal(t, c, got, "newer assignment wins")
	assert.Equal(t, 1, h.logs.FilterMessage("conflicting entity id").Len())

	h.bus.SwapBuffers()
	h.bus.DispatchAll()
	require.Len(t, conflicts, 1)
	assert.Equal(t, a, conflicts[0].Previous)
	assert.Equal(t, c, conflicts[0].Entity)

	h.m.Despawn(a)
	h.tick()
	got, ok = h.m.Lookup(100)
	require.True(t, ok, "releasing the loser keeps the winner's entry")
	assert.Equal(t, c, got)
	assert.False(t, h.m.Alive(a))

	h.m.Despawn(c)
	h.tick()
	_, ok = h.m.Lookup(100)
	assert.False(t, ok)
	assert.False(t, h.m.Kinds.Has(c))
	_, ok = h.m.Field(c, "zombie.baby")
	assert.False(t, ok)
}

func TestExplicitIDMovesCounterPast(t *testing.T) {
	h := newHarness(t, 1)
	high := h.spawn("zombie", func(bd *Bundle) { bd.ID = 500 })
	low := h.spawn("zombie", func(bd *Bundle) { bd.ID = 7 })
	h.tick()
	assert.Equal(t, int32(500), h.id(high))
	assert.Equal(t, int32(7), h.id(low))

	next := h.spawn("zombie", nil)
	h.tick()
	assert.Equal(t, int32(501), h.id(next))
	assert.Equal(t, int32(502), h.m.NextID())
	assert.Zero(t, h.logs.FilterMessage("conflicting entity id").Len())
}

func TestDespawnBeforeInitNeverGetsAnID(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	h.m.Despawn(e)
	h.tick()
	assert.Zero(t, h.m.Len())
	assert.False(t, h.m.Alive(e))
}

func TestPositionShadows(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", func(b *Bundle) { b.Position = Position{X: 1, Y: 2, Z: 3} })
	h.tick()

	old, _ := h.m.OldPositions.Get(e)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 3}, old.Position)

	pos, _ := h.m.Positions.Get(e)
	pos.X = 10
	layer, _ := h.m.Layers.Get(e)
	layer.Layer = ecs.NewEntityID(7, 0)

	var seenOld Position
	var seenOldLayer ecs.EntityID
	h.onOutput = func() {
		o, _ := h.m.OldPositions.Get(e)
		seenOld = o.Position
		l, _ := h.m.OldLayers.Get(e)
		seenOldLayer = l.Layer
	}
	h.tick()
	assert.Equal(t, 1.0, seenOld.X, "shadow holds the previous tick during the tick")
	assert.Equal(t, ecs.EntityID(0), seenOldLayer)

	old, _ = h.m.OldPositions.Get(e)
	assert.Equal(t, 10.0, old.X)
	oldLayer, _ := h.m.OldLayers.Get(e)
	assert.Equal(t, ecs.NewEntityID(7, 0), oldLayer.Layer)
}

func TestTriggersClearedAtEndOfTick(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", nil)
	require.NoError(t, h.m.TriggerStatus(e, "play_attack_sound"))
	require.NoError(t, h.m.TriggerAnimation(e, "take_damage"))
	assert.ErrorIs(t, h.m.TriggerStatus(e, "explode"), ErrUnknownStatus)
	assert.ErrorIs(t, h.m.TriggerAnimation(e, "wave"), ErrUnknownAnim)

	var status, anim bool
	h.onOutput = func() {
		s, _ := h.m.Statuses.Get(e)
		a, _ := h.m.Animations.Get(e)
		status, anim = s.Has(4), a.Has(1)
	}
	h.tick()
	assert.True(t, status)
	assert.True(t, anim)

	s, _ := h.m.Statuses.Get(e)
	a, _ := h.m.Animations.Get(e)
	assert.Zero(t, s.Bits)
	assert.Zero(t, a.Bits)
}

func TestEffectsTickDown(t *testing.T) {
	h := newHarness(t, 1)
	e := h.spawn("zombie", func(b *Bundle) {
		b.Effects.Add(effects.Effect{ID: 1, Amplifier: 0, Duration: 2})
		b.Effects.Add(effects.Effect{ID: 2, Duration: effects.Infinite})
	})
	l, _ := h.m.Living.Get(e)

	h.tick()
	assert.True(t, l.Effects.Has(1))
	h.tick()
	assert.False(t, l.Effects.Has(1))
	assert.True(t, l.Effects.Has(2))
}

func TestSetFieldErrors(t *testing.T) {
	h := newHarness(t, 1)
	z := h.spawn("zombie", nil)
	item := h.spawn("item", nil)

	assert.ErrorIs(t, h.m.SetField(z, "zombie.wings", value.Bool(true)), ErrUnknownField)
	assert.ErrorIs(t, h.m.SetField(z, "zombie.baby", value.Int(1)), ErrFieldType)
	assert.ErrorIs(t, h.m.SetField(item, "zombie.baby", value.Bool(true)), ErrNoSuchEntity)

	bad := FieldRef[value.Int]{Key: "zombie.baby"}
	assert.Panics(t, func() { bad.Get(h.m, z) })
	_, ok := FieldRef[value.Bool]{Key: "zombie.baby"}.Get(h.m, item)
	assert.False(t, ok)
}

func TestBundleApplyOverrides(t *testing.T) {
	h := newHarness(t, 1)
	b, err := h.m.NewBundle("zombie")
	require.NoError(t, err)

	require.NoError(t, b.Apply(map[string]any{
		"baby":          true,
		"custom_name":   "Bob",
		"living.health": 12.5,
	}, value.Names{}))
	assert.Equal(t, value.Bool(true), b.Fields["zombie.baby"])
	assert.Equal(t, value.SomeText("Bob"), b.Fields["mob.custom_name"])
	assert.Equal(t, value.Float(12.5), b.Fields["living.health"])

	assert.ErrorIs(t, b.Apply(map[string]any{"wings": true}, value.Names{}), ErrUnknownField)
	assert.Error(t, b.Apply(map[string]any{"baby": "yes"}, value.Names{}))
	assert.ErrorIs(t, b.Set("baby", value.Int(1)), ErrFieldType)

	e, err := h.m.Spawn(b)
	require.NoError(t, err)
	h.tick()
	init := decode(t, h.out[h.id(e)].Init, true)
	assert.Len(t, init, 3)
	assert.Equal(t, value.Float(12.5), init[9])
}

func TestParallelObservationMatchesSequential(t *testing.T) {
	run := func(parallelism int) map[int32][]byte {
		h := newHarness(t, parallelism)
		var zs []ecs.EntityID
		for i := 0; i < 20; i++ {
			zs = append(zs, h.spawn("zombie", func(b *Bundle) {
				require.NoError(t, b.Set("baby", value.Bool(i%2 == 0)))
				require.NoError(t, b.Set("arrow_count", value.Int(int32(i))))
			}))
		}
		p := h.spawn("player", nil)
		h.tick()
		for i, e := range zs {
			require.NoError(t, h.m.SetField(e, "mob.flags", value.Byte(int8(i))))
			require.NoError(t, h.m.SetField(e, "living.health", value.Float(float32(i)/2)))
		}
		h.m.SetAbsorption(p, 2)
		h.tick()

		out := make(map[int32][]byte, len(h.out))
		for id, o := range h.out {
			out[id] = o.Init
		}
		return out
	}
	assert.Equal(t, run(1), run(8))
}

func TestLookVec(t *testing.T) {
	l := Look{Yaw: 0, Pitch: 0}
	x, y, z := l.Vec()
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
	assert.InDelta(t, 1, z, 1e-6, "yaw 0 faces south")

	l = Look{Yaw: -90}
	x, _, z = l.Vec()
	assert.InDelta(t, 1, x, 1e-6, "yaw -90 faces east")
	assert.InDelta(t, 0, z, 1e-6)

	var back Look
	back.SetVec(0, 0, 1)
	assert.InDelta(t, 0, back.Yaw, 1e-4)
	back.SetVec(0, -1, 0)
	assert.InDelta(t, 90, back.Pitch, 1e-4)
	assert.InDelta(t, 0, back.Yaw, 1e-4, "yaw kept when looking straight down")
}
