// Package schema holds the declarative entity hierarchy as read from the
// build-time documents. It has no behavior beyond loading and structural
// validation; the compiler gives it meaning.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Field is one tracked field declared directly on an entity class.
type Field struct {
	Name         string `yaml:"name"`
	Index        int    `yaml:"index"`
	Type         string `yaml:"type"`
	DefaultValue any    `yaml:"default_value"`
}

// Attribute is a per-kind attribute base value.
type Attribute struct {
	Name      string  `yaml:"name"`
	BaseValue float64 `yaml:"base_value"`
}

// Entity is one class in the hierarchy. Type is set only on concrete,
// spawnable classes.
type Entity struct {
	Name           string      `yaml:"-"`
	Parent         string      `yaml:"parent"`
	Type           string      `yaml:"type"`
	TranslationKey string      `yaml:"translation_key"`
	Fields         []Field     `yaml:"fields"`
	Attributes     []Attribute `yaml:"attributes"`
}

// Concrete reports whether the class is a spawnable kind.
func (e *Entity) Concrete() bool { return e.Type != "" }

// ShortName strips the conventional "Entity" suffix: "ZombieEntity" -> "Zombie".
// The root "Entity" class keeps its name.
func (e *Entity) ShortName() string {
	return StripEntitySuffix(e.Name)
}

func StripEntitySuffix(name string) string {
	if s := strings.TrimSuffix(name, "Entity"); s != "" {
		return s
	}
	return name
}

// Misc carries the identifier tables extracted alongside the hierarchy.
type Misc struct {
	EntityType      map[string]int32 `yaml:"entity_type"`
	EntityStatus    map[string]uint8 `yaml:"entity_status"`
	EntityAnimation map[string]uint8 `yaml:"entity_animation"`
	ParticleType    map[string]int32 `yaml:"particle_type"`
}

// AttributeDef describes one attribute in the attribute registry.
type AttributeDef struct {
	Name         string  `yaml:"-"`
	ID           int32   `yaml:"id"`
	DefaultValue float64 `yaml:"default_value"`
	MinValue     float64 `yaml:"min_value"`
	MaxValue     float64 `yaml:"max_value"`
	Tracked      bool    `yaml:"tracked"`
}

// Schema is the full set of build-time inputs.
type Schema struct {
	Entities   map[string]*Entity
	Misc       *Misc
	Attributes map[string]*AttributeDef
}

// EntityNames returns the entity class names in sorted order.
func (s *Schema) EntityNames() []string {
	names := make([]string, 0, len(s.Entities))
	for name := range s.Entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entity returns the named class or nil.
func (s *Schema) Entity(name string) *Entity {
	return s.Entities[name]
}

func (s *Schema) String() string {
	kinds := 0
	if s.Misc != nil {
		kinds = len(s.Misc.EntityType)
	}
	return fmt.Sprintf("schema(%d entities, %d kind ids, %d attributes)",
		len(s.Entities), kinds, len(s.Attributes))
}
