package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/config"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/value"
)

// catalogWith compiles the entity fixtures with the given kind ids.
func catalogWith(t *testing.T, ids map[string]int32) *compiler.Catalog {
	t.Helper()
	dir := filepath.Join("..", "entity", "testdata")
	s, err := schema.Load(
		filepath.Join(dir, "entities.yaml"),
		filepath.Join(dir, "misc.yaml"),
		filepath.Join(dir, "attributes.yaml"),
	)
	require.NoError(t, err)
	for k, id := range ids {
		s.Misc.EntityType[k] = id
	}
	cat, err := compiler.Compile(s, nil)
	require.NoError(t, err)
	return cat
}

func openTestDB(t *testing.T, dsn string) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewDB(ctx, config.RegistryConfig{Driver: DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db))
	return db
}

func TestRecordThenCheck(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	defer db.Close()
	reg := NewRegistry(db, nil)

	cat := catalogWith(t, nil)
	require.NoError(t, reg.Check(ctx, cat), "empty registry accepts anything")
	require.NoError(t, reg.Record(ctx, cat))
	require.NoError(t, reg.Record(ctx, cat), "recording twice is a no-op")
	require.NoError(t, reg.Check(ctx, cat))

	kinds, tags, err := reg.Recorded(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int32{"item": 58, "zombie": 127, "player": 128}, kinds)
	assert.Len(t, tags, int(value.MaxTag)+1)
	assert.Equal(t, int32(value.TagBool), tags[value.TagBool.String()])

	ok, err := reg.KnownDigest(ctx, cat.Digest())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = reg.KnownDigest(ctx, "feed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRejectsRenumberedKind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	defer db.Close()
	reg := NewRegistry(db, nil)
	require.NoError(t, reg.Record(ctx, catalogWith(t, nil)))

	err := reg.Check(ctx, catalogWith(t, map[string]int32{"zombie": 130}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenumbered)
	assert.NotErrorIs(t, err, ErrIDReused)

	var drift *DriftError
	require.True(t, errors.As(err, &drift))
	require.Len(t, drift.Drifts, 1)
	assert.Equal(t, Drift{Table: "kind_ids", Name: "zombie", Recorded: 127, Current: 130}, drift.Drifts[0])
}

func TestCheckRejectsReusedKindID(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	defer db.Close()
	reg := NewRegistry(db, nil)
	require.NoError(t, reg.Record(ctx, catalogWith(t, map[string]int32{"item": 58})))

	// item moves away and player takes its old number.
	err := reg.Check(ctx, catalogWith(t, map[string]int32{"item": 59, "player": 58}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenumbered)
	assert.ErrorIs(t, err, ErrIDReused)
}

func TestCheckAcceptsNewKinds(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	defer db.Close()
	reg := NewRegistry(db, nil)
	require.NoError(t, reg.Record(ctx, catalogWith(t, nil)))

	_, err := db.SQL.ExecContext(ctx, `DELETE FROM kind_ids WHERE kind = 'player'`)
	require.NoError(t, err)
	assert.NoError(t, reg.Check(ctx, catalogWith(t, nil)))
}

func TestCheckRejectsRenumberedTypeTag(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, ":memory:")
	defer db.Close()
	reg := NewRegistry(db, nil)
	cat := catalogWith(t, nil)
	require.NoError(t, reg.Record(ctx, cat))

	_, err := db.SQL.ExecContext(ctx, `UPDATE type_tags SET tag = 99 WHERE shape = ?`, value.TagBool.String())
	require.NoError(t, err)

	err = reg.Check(ctx, cat)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenumbered)
	assert.Contains(t, err.Error(), "type_tags "+value.TagBool.String()+": recorded 99, now 8")
}

func TestRegistrySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reg", "registry.db")

	db := openTestDB(t, path)
	require.NoError(t, NewRegistry(db, nil).Record(ctx, catalogWith(t, nil)))
	db.Close()

	db = openTestDB(t, path)
	defer db.Close()
	err := NewRegistry(db, nil).Check(ctx, catalogWith(t, map[string]int32{"player": 200}))
	assert.ErrorIs(t, err, ErrRenumbered)
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewDB(context.Background(), config.RegistryConfig{Driver: "mysql", DSN: "x"}, nil)
	assert.Error(t, err)
}
