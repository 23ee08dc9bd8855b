package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/value"
)

// Classes and fields that receive special handling.
const (
	LivingEntityClass = "LivingEntity"
	PlayerEntityClass = "PlayerEntity"
	AbsorptionField   = "absorption_amount"

	// Player hunger state is not a tracked field; a fresh player starts fed.
	DefaultFood       int32   = 20
	DefaultSaturation float32 = 5.0
)

// FieldSpec is one compiled field: its state container's shape, its default
// and the identity its observer writes to the wire.
type FieldSpec struct {
	Key     string
	Owner   string
	Name    string
	Index   uint8
	Tag     value.Tag
	Default value.Value
}

// IsDefault reports whether v equals the field's canonical default.
func (f *FieldSpec) IsDefault(v value.Value) bool {
	return f.Default.Equal(v)
}

// ObserverName is the name of the field's observation routine.
func (f *FieldSpec) ObserverName() string {
	return "update_" + strings.ReplaceAll(f.Key, ".", "_")
}

// AttributeBase is a schema-declared attribute base value for a kind.
type AttributeBase struct {
	Name  string
	Value float64
}

// Kind is a concrete, spawnable entity kind.
type Kind struct {
	ID             int32
	Name           string
	Entity         string
	TranslationKey string
	// Markers lists the classes of the kind from the root down.
	Markers []string
	// Fields holds every inherited field, root class first.
	Fields     []*FieldSpec
	Living     bool
	Player     bool
	Attributes []AttributeBase
}

func (k *Kind) HasMarker(entity string) bool {
	for _, m := range k.Markers {
		if m == entity {
			return true
		}
	}
	return false
}

func (k *Kind) Field(key string) (*FieldSpec, bool) {
	for _, f := range k.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return nil, false
}

// Catalog is the immutable output of compilation.
type Catalog struct {
	kinds      []*Kind
	byName     map[string]*Kind
	byID       map[int32]*Kind
	fields     []*FieldSpec
	fieldByKey map[string]*FieldSpec

	Statuses   map[string]uint8
	Animations map[string]uint8
	Particles  map[string]int32
	Attributes *attributes.Registry

	digest string
}

func newCatalog(kinds []*Kind, fields []*FieldSpec, statuses, animations map[string]uint8,
	particles map[string]int32, reg *attributes.Registry) (*Catalog, error) {
	c := &Catalog{
		kinds:      kinds,
		byName:     make(map[string]*Kind, len(kinds)),
		byID:       make(map[int32]*Kind, len(kinds)),
		fields:     fields,
		fieldByKey: make(map[string]*FieldSpec, len(fields)),
		Statuses:   orEmpty(statuses),
		Animations: orEmpty(animations),
		Particles:  orEmpty(particles),
		Attributes: reg,
	}
	sort.Slice(c.kinds, func(i, j int) bool { return c.kinds[i].ID < c.kinds[j].ID })
	sort.Slice(c.fields, func(i, j int) bool {
		if c.fields[i].Owner != c.fields[j].Owner {
			return c.fields[i].Owner < c.fields[j].Owner
		}
		return c.fields[i].Index < c.fields[j].Index
	})
	for _, k := range c.kinds {
		c.byName[k.Name] = k
		c.byID[k.ID] = k
	}
	for _, f := range c.fields {
		if prev, ok := c.fieldByKey[f.Key]; ok {
			return nil, fmt.Errorf("%w: key %s used by %s and %s", ErrDuplicateField, f.Key, prev.Owner, f.Owner)
		}
		c.fieldByKey[f.Key] = f
	}
	d, err := digestOf(c)
	if err != nil {
		return nil, err
	}
	c.digest = d
	return c, nil
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}

// Kinds returns every kind ordered by id.
func (c *Catalog) Kinds() []*Kind { return c.kinds }

// Kind looks a kind up by its type name ("zombie").
func (c *Catalog) Kind(name string) (*Kind, bool) {
	k, ok := c.byName[name]
	return k, ok
}

func (c *Catalog) KindByID(id int32) (*Kind, bool) {
	k, ok := c.byID[id]
	return k, ok
}

// Fields returns every declared field, ordered by owner class then index.
func (c *Catalog) Fields() []*FieldSpec { return c.fields }

func (c *Catalog) Field(key string) (*FieldSpec, bool) {
	f, ok := c.fieldByKey[key]
	return f, ok
}

// AbsorptionTarget is the player field the living absorption value is
// mirrored into.
func (c *Catalog) AbsorptionTarget() (*FieldSpec, bool) {
	return c.Field(FieldKey(PlayerEntityClass, AbsorptionField))
}

// Digest is a hex BLAKE2b-256 of the catalog's canonical encoding.
func (c *Catalog) Digest() string { return c.digest }
