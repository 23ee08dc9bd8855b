package compiler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/value"
)

// maxFieldIndex is the highest usable index; 0xFF terminates a baseline.
const maxFieldIndex = 254

// Compile resolves every class in s and synthesizes the catalog. It is
// all-or-nothing: the first schema error aborts with no partial output.
// Output depends only on s.
func Compile(s *schema.Schema, log *zap.Logger) (*Catalog, error) {
	if log == nil {
		log = zap.NewNop()
	}
	misc := s.Misc
	if misc == nil {
		misc = &schema.Misc{}
	}
	reg, err := attributes.FromSchema(s.Attributes)
	if err != nil {
		return nil, fmt.Errorf("attribute registry: %w", err)
	}
	names := value.Names{Particles: misc.ParticleType}

	// Pass 1: compile each class's own fields.
	specs := make(map[*schema.Field]*FieldSpec)
	keyOwner := make(map[string]string)
	var fields []*FieldSpec
	for _, name := range s.EntityNames() {
		e := s.Entities[name]
		declared := make(map[string]bool, len(e.Fields))
		for i := range e.Fields {
			f := &e.Fields[i]
			spec, err := compileField(e, f, names)
			if err != nil {
				return nil, err
			}
			if declared[f.Name] {
				return nil, schemaErr(name, f.Name, "%w", ErrDuplicateField)
			}
			declared[f.Name] = true
			// Class names differing only in an "Entity" suffix share a key prefix.
			if other, ok := keyOwner[spec.Key]; ok {
				return nil, schemaErr(name, f.Name, "%w: key %s also produced by %s",
					ErrDuplicateField, spec.Key, other)
			}
			keyOwner[spec.Key] = name
			specs[f] = spec
			fields = append(fields, spec)
		}
	}

	// Pass 2: resolve every class, check the inherited index set and build
	// the concrete kinds.
	var kinds []*Kind
	kindOwner := make(map[int32]string)
	typeOwner := make(map[string]string)
	for _, name := range s.EntityNames() {
		entries, err := Resolve(s, name)
		if err != nil {
			return nil, err
		}
		used := make(map[uint8]*FieldSpec)
		var markers []string
		var inherited []*FieldSpec
		for _, en := range entries {
			if en.Marker() {
				markers = append(markers, en.Entity)
				continue
			}
			spec := specs[en.Field]
			if prev, ok := used[spec.Index]; ok {
				return nil, schemaErr(name, spec.Name, "%w: index %d used by %s and %s",
					ErrIndexCollision, spec.Index, prev.Key, spec.Key)
			}
			used[spec.Index] = spec
			inherited = append(inherited, spec)
		}

		e := s.Entities[name]
		if !e.Concrete() {
			continue
		}
		id, ok := misc.EntityType[e.Type]
		if !ok {
			return nil, schemaErr(name, "", "%w: %q", ErrUnknownKindType, e.Type)
		}
		if other, ok := typeOwner[e.Type]; ok {
			return nil, schemaErr(name, "", "%w: type %q also declared by %s", ErrDuplicateKindID, e.Type, other)
		}
		if other, ok := kindOwner[id]; ok {
			return nil, schemaErr(name, "", "%w: id %d also used by %s", ErrDuplicateKindID, id, other)
		}
		typeOwner[e.Type] = name
		kindOwner[id] = name

		k := &Kind{
			ID:             id,
			Name:           e.Type,
			Entity:         name,
			TranslationKey: e.TranslationKey,
			Markers:        markers,
			Fields:         inherited,
		}
		k.Living = k.HasMarker(LivingEntityClass)
		k.Player = k.HasMarker(PlayerEntityClass)
		if err := kindAttributes(k, e, reg, log); err != nil {
			return nil, err
		}
		if k.Player {
			target, ok := k.Field(FieldKey(PlayerEntityClass, AbsorptionField))
			if !ok || target.Tag != value.TagFloat {
				return nil, schemaErr(name, AbsorptionField, "%w: want a float field on %s",
					ErrMirrorTarget, PlayerEntityClass)
			}
		}
		kinds = append(kinds, k)
		log.Debug("resolved kind",
			zap.String("kind", k.Name),
			zap.Int32("id", k.ID),
			zap.Int("fields", len(k.Fields)),
			zap.Bool("living", k.Living))
	}

	// Identifiers without a class are allowed; extraction covers more kinds
	// than a schema may declare.
	var orphans []string
	for t := range misc.EntityType {
		if _, ok := typeOwner[t]; !ok {
			orphans = append(orphans, t)
		}
	}
	if len(orphans) > 0 {
		sort.Strings(orphans)
		log.Debug("kind ids without a class", zap.Strings("types", orphans))
	}

	return newCatalog(kinds, fields, misc.EntityStatus, misc.EntityAnimation, misc.ParticleType, reg)
}

func compileField(e *schema.Entity, f *schema.Field, names value.Names) (*FieldSpec, error) {
	if f.Index < 0 || f.Index > maxFieldIndex {
		return nil, schemaErr(e.Name, f.Name, "%w: %d", ErrIndexRange, f.Index)
	}
	tag, ok := value.TagByName(f.Type)
	if !ok {
		return nil, schemaErr(e.Name, f.Name, "%w %q", ErrUnknownShape, f.Type)
	}
	if !tag.Supported() {
		return nil, schemaErr(e.Name, f.Name, "%s: %w", tag, ErrUnsupportedShape)
	}
	def, err := value.ParseDefault(tag, f.DefaultValue, names)
	if err != nil {
		return nil, &SchemaError{Entity: e.Name, Field: f.Name, Err: err}
	}
	return &FieldSpec{
		Key:     FieldKey(e.Name, f.Name),
		Owner:   e.Name,
		Name:    f.Name,
		Index:   uint8(f.Index),
		Tag:     tag,
		Default: def,
	}, nil
}

// kindAttributes validates the concrete class's attribute list and, for
// living kinds, keeps it as the spawn-time base values.
func kindAttributes(k *Kind, e *schema.Entity, reg *attributes.Registry, log *zap.Logger) error {
	for _, a := range e.Attributes {
		if _, ok := reg.Get(a.Name); !ok {
			return schemaErr(e.Name, "", "%w %q", ErrUnknownAttribute, a.Name)
		}
		if k.Living {
			k.Attributes = append(k.Attributes, AttributeBase{Name: a.Name, Value: a.BaseValue})
		}
	}
	if !k.Living && len(e.Attributes) > 0 {
		log.Debug("attributes ignored on non-living kind", zap.String("kind", k.Name))
	}
	return nil
}
