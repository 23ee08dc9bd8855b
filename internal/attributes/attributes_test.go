package attributes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Def{
		{Name: "generic.max_health", ID: 16, Default: 20, Min: 1, Max: 1024, Tracked: true},
		{Name: "generic.movement_speed", ID: 21, Default: 0.7, Min: 0, Max: 1024, Tracked: true},
		{Name: "generic.attack_damage", ID: 2, Default: 2, Min: 0, Max: 2048},
	})
	require.NoError(t, err)
	return reg
}

func TestRegistry(t *testing.T) {
	reg := testRegistry(t)
	assert.Equal(t, 3, reg.Len())
	ids := []int32{}
	for _, d := range reg.Defs() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []int32{2, 16, 21}, ids)

	d, ok := reg.ByID(16)
	require.True(t, ok)
	assert.Equal(t, "generic.max_health", d.Name)

	_, err := NewRegistry([]Def{{Name: "a", ID: 1}, {Name: "b", ID: 1}})
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = NewRegistry([]Def{{Name: "a", ID: 1, Min: 2, Max: 1}})
	assert.ErrorIs(t, err, ErrBadRange)
}

func TestModifiersAndClamp(t *testing.T) {
	reg := testRegistry(t)
	a, err := New(reg).WithBase("generic.max_health", 20)
	require.NoError(t, err)

	id1, id2, id3 := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, a.AddModifier("generic.max_health", Modifier{ID: id1, Amount: 4, Op: OpAdd}))
	require.NoError(t, a.AddModifier("generic.max_health", Modifier{ID: id2, Amount: 0.5, Op: OpMultiplyBase}))
	require.NoError(t, a.AddModifier("generic.max_health", Modifier{ID: id3, Amount: 1, Op: OpMultiplyTotal}))
	v, ok := a.Value("generic.max_health")
	require.True(t, ok)
	assert.Equal(t, (24.0+12.0)*2, v)

	require.True(t, a.RemoveModifier("generic.max_health", id3))
	assert.False(t, a.RemoveModifier("generic.max_health", id3))
	v, _ = a.Value("generic.max_health")
	assert.Equal(t, 36.0, v)

	require.NoError(t, a.SetBase("generic.max_health", -100))
	require.True(t, a.RemoveModifier("generic.max_health", id1))
	require.True(t, a.RemoveModifier("generic.max_health", id2))
	v, _ = a.Value("generic.max_health")
	assert.Equal(t, 1.0, v, "clamped to min")
}

func TestRecentlyChanged(t *testing.T) {
	a, err := New(testRegistry(t)).WithBase("generic.max_health", 20)
	require.NoError(t, err)
	assert.False(t, a.HasChanges(), "seeding is not a change")

	require.NoError(t, a.SetBase("generic.max_health", 20))
	assert.False(t, a.HasChanges(), "same base is not a change")

	require.NoError(t, a.SetBase("generic.max_health", 30))
	require.NoError(t, a.SetBase("generic.attack_damage", 5))
	assert.Equal(t, []string{"generic.attack_damage", "generic.max_health"}, a.TakeRecentlyChanged())
	assert.Nil(t, a.TakeRecentlyChanged())

	assert.ErrorIs(t, a.SetBase("no.such", 1), ErrUnknownAttribute)
}

func TestTrackedMirror(t *testing.T) {
	a, err := New(testRegistry(t)).WithBase("generic.max_health", 20)
	require.NoError(t, err)
	tr := NewTracked()

	require.NoError(t, a.SetBase("generic.max_health", 40))
	require.NoError(t, a.SetBase("generic.attack_damage", 9))
	for _, name := range a.TakeRecentlyChanged() {
		tr.MarkModified(a, name)
	}
	require.Equal(t, 1, tr.Len(), "untracked attributes are not mirrored")
	assert.Equal(t, []Property{{ID: 16, Base: 40, Modifiers: []Modifier{}}}, tr.Modified())

	props, err := DecodeProperties(tr.UpdateData())
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int32(16), props[0].ID)
	assert.Equal(t, 40.0, props[0].Base)

	tr.Clear()
	assert.Zero(t, tr.Len())
	assert.Nil(t, tr.UpdateData())
}

func TestPropertiesRoundTrip(t *testing.T) {
	in := []Property{
		{ID: 16, Base: 20},
		{ID: 21, Base: 0.1, Modifiers: []Modifier{
			{ID: uuid.MustParse("662a6b8d-da3e-4c1c-8813-96ea6097278d"), Amount: 0.3, Op: OpMultiplyTotal},
		}},
	}
	out, err := DecodeProperties(EncodeProperties(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSpawnDataOnlyTracked(t *testing.T) {
	a := New(testRegistry(t))
	_, err := a.WithBase("generic.attack_damage", 3)
	require.NoError(t, err)
	_, err = a.WithBase("generic.movement_speed", 0.23)
	require.NoError(t, err)

	props, err := DecodeProperties(SpawnData(a))
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, int32(21), props[0].ID)
}
