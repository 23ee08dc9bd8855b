package compiler

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/voxelhost/entitysync/internal/schema"
)

// snake converts a PascalCase class name to snake_case:
// "AreaEffectCloud" -> "area_effect_cloud".
func snake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1]) ||
				(i+1 < len(rs) && unicode.IsLower(rs[i+1]) && unicode.IsUpper(rs[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pascal converts snake_case or dotted names to a Go identifier:
// "generic.max_health" -> "GenericMaxHealth".
func pascal(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '.' || r == '-' || r == ':' || r == '/'
	})
	// Casers carry state, so each call gets its own.
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(title.String(p))
	}
	out := b.String()
	if out == "" || unicode.IsDigit(rune(out[0])) {
		out = "X" + out
	}
	return out
}

// OwnerKey is the snake-case owner prefix used in field keys.
func OwnerKey(entity string) string {
	return snake(schema.StripEntitySuffix(entity))
}

// FieldKey names a field across the whole hierarchy: "zombie.baby".
func FieldKey(entity, field string) string {
	return OwnerKey(entity) + "." + field
}
