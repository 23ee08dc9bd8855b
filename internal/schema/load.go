package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func documentSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema, 3)
		c := jsonschema.NewCompiler()
		for _, doc := range []string{"entities", "misc", "attributes"} {
			raw, err := schemaFS.ReadFile("schemas/" + doc + ".schema.json")
			if err != nil {
				compileErr = err
				return
			}
			url := "mem://" + doc + ".schema.json"
			if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add %s schema: %w", doc, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", doc, err)
				return
			}
			compiled[doc] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return compiled[name], nil
}

// decode parses a YAML or JSON document, checks it against the named
// embedded JSON Schema and then decodes it into out.
func decode(doc string, raw []byte, out any) error {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", doc, err)
	}
	// The validator wants the encoding/json data model.
	js, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("parse %s: %w", doc, err)
	}
	var generic any
	if err := json.Unmarshal(js, &generic); err != nil {
		return fmt.Errorf("parse %s: %w", doc, err)
	}
	s, err := documentSchema(doc)
	if err != nil {
		return err
	}
	if err := s.Validate(generic); err != nil {
		return fmt.Errorf("validate %s: %w", doc, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", doc, err)
	}
	return nil
}

// ParseEntities decodes an entities document.
func ParseEntities(raw []byte) (map[string]*Entity, error) {
	entities := map[string]*Entity{}
	if err := decode("entities", raw, &entities); err != nil {
		return nil, err
	}
	for name, e := range entities {
		if e == nil {
			e = &Entity{}
			entities[name] = e
		}
		e.Name = name
	}
	return entities, nil
}

// ParseMisc decodes a misc identifier document.
func ParseMisc(raw []byte) (*Misc, error) {
	m := &Misc{}
	if err := decode("misc", raw, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseAttributes decodes an attribute registry document.
func ParseAttributes(raw []byte) (map[string]*AttributeDef, error) {
	attrs := map[string]*AttributeDef{}
	if err := decode("attributes", raw, &attrs); err != nil {
		return nil, err
	}
	for name, a := range attrs {
		a.Name = name
	}
	return attrs, nil
}

// LoadEntities loads entities.yaml (or .json).
func LoadEntities(path string) (map[string]*Entity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entities: %w", err)
	}
	return ParseEntities(raw)
}

// LoadMisc loads misc.yaml (or .json).
func LoadMisc(path string) (*Misc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read misc: %w", err)
	}
	return ParseMisc(raw)
}

// LoadAttributes loads attributes.yaml (or .json). An empty path yields an
// empty registry.
func LoadAttributes(path string) (map[string]*AttributeDef, error) {
	if path == "" {
		return map[string]*AttributeDef{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attributes: %w", err)
	}
	return ParseAttributes(raw)
}

// Load reads all three documents.
func Load(entitiesPath, miscPath, attributesPath string) (*Schema, error) {
	entities, err := LoadEntities(entitiesPath)
	if err != nil {
		return nil, err
	}
	misc, err := LoadMisc(miscPath)
	if err != nil {
		return nil, err
	}
	attrs, err := LoadAttributes(attributesPath)
	if err != nil {
		return nil, err
	}
	return &Schema{Entities: entities, Misc: misc, Attributes: attrs}, nil
}
