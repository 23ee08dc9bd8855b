package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/value"
)

var (
	ErrRenumbered = errors.New("identifier renumbered")
	ErrIDReused   = errors.New("identifier reused")
)

// Drift is one identifier that no longer matches its recorded assignment.
type Drift struct {
	Table    string // "kind_ids" or "type_tags"
	Name     string
	Recorded int32
	Current  int32
	// Owner is set when Current was recorded for another name.
	Owner string
}

func (d Drift) String() string {
	if d.Owner != "" {
		return fmt.Sprintf("%s %s: id %d was recorded for %s", d.Table, d.Name, d.Current, d.Owner)
	}
	return fmt.Sprintf("%s %s: recorded %d, now %d", d.Table, d.Name, d.Recorded, d.Current)
}

// DriftError lists every drift found by Check.
type DriftError struct {
	Drifts []Drift
}

func (e *DriftError) Error() string {
	parts := make([]string, len(e.Drifts))
	for i, d := range e.Drifts {
		parts[i] = d.String()
	}
	return "identifier drift: " + strings.Join(parts, "; ")
}

func (e *DriftError) Is(target error) bool {
	for _, d := range e.Drifts {
		if (target == ErrIDReused && d.Owner != "") || (target == ErrRenumbered && d.Owner == "") {
			return true
		}
	}
	return false
}

// Registry records the wire identifiers of each compiled catalog so that a
// later compilation cannot silently renumber a kind or a value shape.
type Registry struct {
	db  *DB
	log *zap.Logger
	now func() time.Time
}

func NewRegistry(db *DB, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{db: db, log: log, now: time.Now}
}

// shapeTags lists every value shape by name.
func shapeTags() map[string]int32 {
	out := make(map[string]int32, int(value.MaxTag)+1)
	for t := value.Tag(0); t <= value.MaxTag; t++ {
		out[t.String()] = int32(t)
	}
	return out
}

func catalogKinds(cat *compiler.Catalog) map[string]int32 {
	out := make(map[string]int32, len(cat.Kinds()))
	for _, k := range cat.Kinds() {
		out[k.Name] = k.ID
	}
	return out
}

func (r *Registry) load(ctx context.Context, table, nameCol, idCol string) (map[string]int32, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, %s FROM %s`, nameCol, idCol, table))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]int32)
	for rows.Next() {
		var name string
		var id int32
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

// Recorded returns the recorded kind ids and shape tags.
func (r *Registry) Recorded(ctx context.Context) (kinds, tags map[string]int32, err error) {
	if kinds, err = r.load(ctx, "kind_ids", "kind", "id"); err != nil {
		return nil, nil, err
	}
	if tags, err = r.load(ctx, "type_tags", "shape", "tag"); err != nil {
		return nil, nil, err
	}
	return kinds, tags, nil
}

func diff(table string, recorded, current map[string]int32) []Drift {
	owners := make(map[int32]string, len(recorded))
	for name, id := range recorded {
		owners[id] = name
	}
	var out []Drift
	for name, id := range current {
		if prev, ok := recorded[name]; ok && prev != id {
			out = append(out, Drift{Table: table, Name: name, Recorded: prev, Current: id})
		}
		if owner, ok := owners[id]; ok && owner != name {
			out = append(out, Drift{Table: table, Name: name, Recorded: recorded[name], Current: id, Owner: owner})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

// Check compares cat against the recorded assignments. It returns a
// *DriftError if a recorded kind or shape changed its number, or if a number
// recorded for one name is now used by another. New names are not drift.
func (r *Registry) Check(ctx context.Context, cat *compiler.Catalog) error {
	kinds, tags, err := r.Recorded(ctx)
	if err != nil {
		return err
	}
	drifts := append(diff("kind_ids", kinds, catalogKinds(cat)), diff("type_tags", tags, shapeTags())...)
	if len(drifts) > 0 {
		return &DriftError{Drifts: drifts}
	}
	r.log.Debug("identifier registry check passed",
		zap.Int("recorded_kinds", len(kinds)),
		zap.Int("recorded_tags", len(tags)))
	return nil
}

// Record stores every assignment of cat that is not recorded yet, together
// with the catalog digest. Existing rows are never rewritten; call Check
// first.
func (r *Registry) Record(ctx context.Context, cat *compiler.Catalog) (err error) {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	at := r.now().UTC().Format(time.RFC3339)
	added := 0
	insert := func(q string, name string, id int32) error {
		res, err := tx.ExecContext(ctx, r.db.rebind(q), name, id, at)
		if err != nil {
			return fmt.Errorf("record %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
		return nil
	}
	for _, k := range cat.Kinds() {
		if err := insert(`INSERT INTO kind_ids (kind, id, recorded_at) VALUES (?, ?, ?)
			ON CONFLICT (kind) DO NOTHING`, k.Name, k.ID); err != nil {
			return err
		}
	}
	tags := shapeTags()
	names := make([]string, 0, len(tags))
	for n := range tags {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := insert(`INSERT INTO type_tags (shape, tag, recorded_at) VALUES (?, ?, ?)
			ON CONFLICT (shape) DO NOTHING`, n, tags[n]); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO catalogs (digest, kinds, fields, recorded_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (digest) DO NOTHING`),
		cat.Digest(), len(cat.Kinds()), len(cat.Fields()), at); err != nil {
		return fmt.Errorf("record catalog: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Info("identifier registry updated",
		zap.String("digest", cat.Digest()), zap.Int("new_rows", added))
	return nil
}

// KnownDigest reports whether a catalog with this digest was recorded.
func (r *Registry) KnownDigest(ctx context.Context, digest string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx,
		r.db.rebind(`SELECT COUNT(*) FROM catalogs WHERE digest = ?`), digest).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
