package compiler

import (
	"slices"

	"github.com/voxelhost/entitysync/internal/schema"
)

// Entry is one step of a resolved class: the class marker itself, or one of
// the fields the class declares.
type Entry struct {
	Entity string
	Field  *schema.Field
}

// Marker reports whether the entry names a class rather than a field.
func (e Entry) Marker() bool { return e.Field == nil }

// ancestry returns the class chain of name from the root down to name.
func ancestry(s *schema.Schema, name string) ([]*schema.Entity, error) {
	e := s.Entity(name)
	if e == nil {
		return nil, schemaErr(name, "", "%w", ErrUnknownEntity)
	}
	var chain []*schema.Entity
	seen := make(map[string]bool, 8)
	for e != nil {
		if seen[e.Name] {
			return nil, schemaErr(name, "", "%w: %s appears twice", ErrParentCycle, e.Name)
		}
		seen[e.Name] = true
		chain = append(chain, e)
		if e.Parent == "" {
			break
		}
		parent := s.Entity(e.Parent)
		if parent == nil {
			return nil, schemaErr(e.Name, "", "%w %q", ErrUnknownParent, e.Parent)
		}
		e = parent
	}
	slices.Reverse(chain)
	return chain, nil
}

// Resolve flattens the parent chain of the named class into root-to-leaf
// order: a marker for each class followed by the fields it declares.
func Resolve(s *schema.Schema, name string) ([]Entry, error) {
	chain, err := ancestry(s, name)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range chain {
		out = append(out, Entry{Entity: e.Name})
		for i := range e.Fields {
			out = append(out, Entry{Entity: e.Name, Field: &e.Fields[i]})
		}
	}
	return out, nil
}
