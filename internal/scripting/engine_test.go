package scripting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/compiler"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/tracked"
	"github.com/voxelhost/entitysync/internal/value"
)

func testCatalog(t *testing.T) *compiler.Catalog {
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
	return cat
}

func testEngine(t *testing.T, cat *compiler.Catalog) *Engine {
	t.Helper()
	e, err := NewEngine(filepath.Join("testdata", "presets"), cat, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestLoadPresets(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	assert.Equal(t, []string{"baby_zombie", "plain_player", "tough_zombie"}, e.Names())

	p, ok := e.Preset("baby_zombie")
	require.True(t, ok)
	assert.Equal(t, "zombie", p.Kind)
	assert.Equal(t, map[string]any{"baby": true, "custom_name": "Junior"}, p.Overrides)
	assert.Nil(t, p.Position)

	p, ok = e.Preset("tough_zombie")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"living.health": 40.0}, p.Overrides)
	require.NotNil(t, p.Position)
	assert.Equal(t, entity.Position{X: 1.5, Y: 64, Z: -3}, *p.Position)
	require.NotNil(t, p.Absorption)
	assert.Equal(t, float32(2), *p.Absorption)
	assert.Equal(t, map[string]float64{"generic.max_health": 40}, p.Attributes)

	_, ok = e.Preset("creeper")
	assert.False(t, ok)
}

func TestMissingDirectoryHasNoPresets(t *testing.T) {
	e, err := NewEngine(filepath.Join("testdata", "nope"), nil, nil)
	require.NoError(t, err)
	defer e.Close()
	assert.Empty(t, e.Names())
}

func TestPresetErrors(t *testing.T) {
	e := testEngine(t, testCatalog(t))

	err := e.LoadString(`preset("boom", "creeper", {})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity kind")

	err = e.LoadString(`preset("baby_zombie", "zombie", {})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate preset")

	err = e.LoadString(`preset("x", "zombie", { [1] = true })`)
	require.Error(t, err)

	err = e.LoadString(`preset("y", "zombie", {}, { attributes = { ["generic.max_health"] = "lots" } })`)
	require.Error(t, err)
}

func TestBundleErrors(t *testing.T) {
	cat := testCatalog(t)
	e := testEngine(t, cat)
	m := entity.NewManager(cat, entity.Options{}, nil)

	_, err := e.Bundle(m, "missing")
	assert.ErrorIs(t, err, ErrUnknownPreset)

	require.NoError(t, e.LoadString(`preset("winged", "zombie", { wings = true })`))
	_, err = e.Bundle(m, "winged")
	assert.ErrorIs(t, err, entity.ErrUnknownField)

	require.NoError(t, e.LoadString(`preset("bad_baby", "zombie", { baby = "yes" })`))
	_, err = e.Bundle(m, "bad_baby")
	assert.Error(t, err)

	require.NoError(t, e.LoadString(`preset("heavy_item", "item", {}, { attributes = { ["generic.max_health"] = 5 } })`))
	_, err = e.Bundle(m, "heavy_item")
	assert.Error(t, err)
}

func TestPresetOverridesReachFirstBaseline(t *testing.T) {
	cat := testCatalog(t)
	e := testEngine(t, cat)
	m := entity.NewManager(cat, entity.Options{IDFloor: 1}, nil)

	r := coresys.NewRunner()
	entity.Install(r, m)
	out := make(map[int32]entity.Outgoing)
	r.Register(coresys.Func{P: coresys.PhaseOutput, Fn: func(time.Duration) {
		m.EachOutgoing(func(o entity.Outgoing) { out[o.ID] = o })
	}})

	baby, err := e.Spawn(m, "baby_zombie")
	require.NoError(t, err)
	tough, err := e.Spawn(m, "tough_zombie")
	require.NoError(t, err)
	r.Tick(50 * time.Millisecond)

	babyID, _ := m.IDs.Get(baby)
	o := out[babyID.Value]
	require.True(t, o.First)
	entries, err := tracked.DecodeEntries(o.Init, true)
	require.NoError(t, err)
	assert.Equal(t, []tracked.Decoded{
		{Index: 2, Value: value.SomeText("Junior")},
		{Index: 16, Value: value.Bool(true)},
	}, entries)

	toughID, _ := m.IDs.Get(tough)
	entries, err = tracked.DecodeEntries(out[toughID.Value].Init, true)
	require.NoError(t, err)
	assert.Equal(t, []tracked.Decoded{{Index: 9, Value: value.Float(40)}}, entries)

	pos, _ := m.Positions.Get(tough)
	assert.Equal(t, 64.0, pos.Y)
	l, _ := m.Living.Get(tough)
	hp, _ := l.Attributes.Base("generic.max_health")
	assert.Equal(t, 40.0, hp)
	assert.True(t, m.Absorption.Has(tough))
	a, _ := m.Absorption.Get(tough)
	assert.Equal(t, float32(2), a)
}

func TestShippedPresetsLoad(t *testing.T) {
	root := filepath.Join("..", "..", "data")
	s, err := schema.Load(
		filepath.Join(root, "yaml", "entities.yaml"),
		filepath.Join(root, "yaml", "misc.yaml"),
		filepath.Join(root, "yaml", "attributes.yaml"),
	)
	require.NoError(t, err)
	cat, err := compiler.Compile(s, nil)
	require.NoError(t, err)

	e, err := NewEngine(filepath.Join(root, "lua"), cat, nil)
	require.NoError(t, err)
	defer e.Close()

	m := entity.NewManager(cat, entity.Options{}, nil)
	for _, name := range e.Names() {
		_, err := e.Bundle(m, name)
		assert.NoError(t, err, name)
	}
	assert.Len(t, e.Names(), 6)
}
