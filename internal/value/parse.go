package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Names resolves registry names that appear in schema documents.
type Names struct {
	// Particles maps a particle type name (without namespace) to its id.
	Particles map[string]int32
}

func (n Names) particle(name string) (int32, bool) {
	id, ok := n.Particles[strings.TrimPrefix(strings.ToLower(name), "minecraft:")]
	return id, ok
}

// Parse converts a decoded document value (YAML, JSON or Lua) into a value of
// the given shape.
func Parse(tag Tag, raw any, names Names) (Value, error) {
	if !tag.Supported() {
		if tag > MaxTag {
			return nil, fmt.Errorf("parse tag %d: %w", uint8(tag), ErrUnknownTag)
		}
		return nil, fmt.Errorf("parse %s: %w", tag, ErrUnsupportedShape)
	}
	v, err := parse(tag, raw, names)
	if err != nil {
		return nil, fmt.Errorf("parse %s from %v: %w", tag, raw, err)
	}
	return v, nil
}

// ParseDefault is Parse plus the canonical-default rules: text, optional,
// item-stack, compound and particle-list shapes only admit their empty value
// as a default.
func ParseDefault(tag Tag, raw any, names Names) (Value, error) {
	switch tag {
	case TagText:
		if s, ok := raw.(string); !ok || s != "" {
			return nil, fmt.Errorf("%w: %s default must be empty, got %v", ErrBadDefault, tag, raw)
		}
	case TagOptionalText, TagOptionalBlockPos, TagOptionalUUID, TagOptionalBlockState, TagOptionalInt:
		if raw != nil {
			return nil, fmt.Errorf("%w: %s default must be null, got %v", ErrBadDefault, tag, raw)
		}
	case TagItemStack:
		if s, ok := raw.(string); !ok || strings.TrimSpace(s) != "0 air" {
			return nil, fmt.Errorf("%w: %s default must be \"0 air\", got %v", ErrBadDefault, tag, raw)
		}
	case TagNBT:
		if s, ok := raw.(string); !ok || strings.TrimSpace(s) != "{}" {
			return nil, fmt.Errorf("%w: %s default must be \"{}\", got %v", ErrBadDefault, tag, raw)
		}
	case TagParticleList:
		if l, ok := raw.([]any); raw != nil && (!ok || len(l) != 0) {
			return nil, fmt.Errorf("%w: %s default must be empty, got %v", ErrBadDefault, tag, raw)
		}
	case TagBlockState:
		// Block names cannot be resolved without a block registry; every
		// block-state default is air.
		if _, ok := raw.(string); ok {
			return BlockState(0), nil
		}
	}
	return Parse(tag, raw, names)
}

func parse(tag Tag, raw any, names Names) (Value, error) {
	switch tag {
	case TagByte:
		n, err := intIn(raw, math.MinInt8, math.MaxInt8)
		return Byte(n), err
	case TagInt:
		n, err := intIn(raw, math.MinInt32, math.MaxInt32)
		return Int(n), err
	case TagLong:
		n, ok := asInt64(raw)
		if !ok {
			return nil, notA("integer", raw)
		}
		return Long(n), nil
	case TagFloat:
		f, ok := asFloat64(raw)
		if !ok {
			return nil, notA("number", raw)
		}
		return Float(f), nil
	case TagString:
		s, ok := raw.(string)
		if !ok {
			return nil, notA("string", raw)
		}
		return String(s), nil
	case TagText:
		s, ok := raw.(string)
		if !ok {
			return nil, notA("string", raw)
		}
		return Text(s), nil
	case TagOptionalText:
		if raw == nil {
			return OptionalText{}, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, notA("string or null", raw)
		}
		return SomeText(Text(s)), nil
	case TagItemStack:
		return parseItemStack(raw)
	case TagBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, notA("boolean", raw)
		}
		return Bool(b), nil
	case TagRotation:
		f, err := floatFields(raw, "pitch", "yaw", "roll")
		if err != nil {
			return nil, err
		}
		return EulerAngle{Pitch: f[0], Yaw: f[1], Roll: f[2]}, nil
	case TagBlockPos:
		return parseBlockPos(raw)
	case TagOptionalBlockPos:
		if raw == nil {
			return OptionalBlockPos{}, nil
		}
		p, err := parseBlockPos(raw)
		if err != nil {
			return nil, err
		}
		return SomeBlockPos(p), nil
	case TagFacing:
		n, err := enumFrom(directionNames, raw)
		return Direction(n), err
	case TagOptionalUUID:
		if raw == nil {
			return OptionalUUID{}, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, notA("uuid string or null", raw)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDefault, err)
		}
		return SomeUUID(id), nil
	case TagBlockState:
		if s, ok := raw.(string); ok && normalizeName(s) == "air" {
			return BlockState(0), nil
		}
		n, err := intIn(raw, 0, math.MaxInt32)
		return BlockState(n), err
	case TagOptionalBlockState:
		if raw == nil {
			return OptionalBlockState(0), nil
		}
		n, err := intIn(raw, 0, math.MaxInt32)
		return OptionalBlockState(n), err
	case TagNBT:
		switch x := raw.(type) {
		case string:
			if strings.TrimSpace(x) == "{}" {
				return Compound{}, nil
			}
			return nil, notA("compound", raw)
		case map[string]any:
			return compoundFrom(x)
		case nil:
			return Compound{}, nil
		}
		return nil, notA("compound", raw)
	case TagParticle:
		return parseParticle(raw, names)
	case TagParticleList:
		if raw == nil {
			return ParticleList{}, nil
		}
		items, ok := raw.([]any)
		if !ok {
			return nil, notA("list", raw)
		}
		list := make(ParticleList, 0, len(items))
		for _, it := range items {
			p, err := parseParticle(it, names)
			if err != nil {
				return nil, err
			}
			list = append(list, p)
		}
		return list, nil
	case TagVillagerData:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, notA("villager data mapping", raw)
		}
		kind, err := enumFrom(villagerKindNames, m["type"])
		if err != nil {
			return nil, err
		}
		prof, err := enumFrom(villagerProfessionNames, m["profession"])
		if err != nil {
			return nil, err
		}
		level, err := intIn(m["level"], math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return VillagerData{Kind: VillagerKind(kind), Profession: VillagerProfession(prof), Level: int32(level)}, nil
	case TagOptionalInt:
		if raw == nil {
			return OptionalInt{}, nil
		}
		n, err := intIn(raw, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return SomeInt(int32(n)), nil
	case TagCatVariant:
		n, err := enumFrom(catKindNames, raw)
		return CatKind(n), err
	case TagPose:
		n, err := enumFrom(poseNames, raw)
		return Pose(n), err
	case TagWolfVariant:
		return parseWolfVariant(raw)
	case TagFrogVariant:
		n, err := enumFrom(frogKindNames, raw)
		return FrogKind(n), err
	case TagPaintingVariant:
		n, err := enumFrom(paintingKindNames, raw)
		return PaintingKind(n), err
	case TagSnifferState:
		n, err := enumFrom(snifferStateNames, raw)
		return SnifferState(n), err
	case TagArmadilloState:
		n, err := enumFrom(armadilloStateNames, raw)
		return ArmadilloState(n), err
	case TagVector3f:
		f, err := floatFields(raw, "x", "y", "z")
		if err != nil {
			return nil, err
		}
		return Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
	case TagQuaternionf:
		f, err := floatFields(raw, "x", "y", "z", "w")
		if err != nil {
			return nil, err
		}
		return Quat{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	}
	return nil, ErrUnsupportedShape
}

func notA(want string, raw any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrBadDefault, want, raw)
}

func asInt64(raw any) (int64, bool) {
	switch x := raw.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return asInt64(float64(x))
	}
	return 0, false
}

func asFloat64(raw any) (float64, bool) {
	switch x := raw.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case string:
		// Some extractors emit non-finite floats as strings.
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	if n, ok := asInt64(raw); ok {
		return float64(n), true
	}
	return 0, false
}

func intIn(raw any, lo, hi int64) (int64, error) {
	n, ok := asInt64(raw)
	if !ok {
		return 0, notA("integer", raw)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d out of range [%d, %d]", ErrBadDefault, n, lo, hi)
	}
	return n, nil
}

func enumFrom(e *enumNames, raw any) (int32, error) {
	switch x := raw.(type) {
	case string:
		return e.parse(x)
	case nil:
		return 0, notA(e.kind, raw)
	}
	n, err := intIn(raw, 0, int64(len(e.names)-1))
	return int32(n), err
}

func floatFields(raw any, keys ...string) ([]float32, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, notA("mapping with "+strings.Join(keys, ", "), raw)
	}
	out := make([]float32, len(keys))
	for i, k := range keys {
		f, ok := asFloat64(m[k])
		if !ok {
			return nil, fmt.Errorf("%w: field %q: want number, got %T", ErrBadDefault, k, m[k])
		}
		out[i] = float32(f)
	}
	return out, nil
}

func parseBlockPos(raw any) (BlockPos, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return BlockPos{}, notA("mapping with x, y, z", raw)
	}
	var xyz [3]int32
	for i, k := range []string{"x", "y", "z"} {
		n, err := intIn(m[k], math.MinInt32, math.MaxInt32)
		if err != nil {
			return BlockPos{}, fmt.Errorf("field %q: %w", k, err)
		}
		xyz[i] = int32(n)
	}
	return BlockPos{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// parseItemStack accepts "<count> <item>" where item is "air" or a numeric
// item id, or a mapping {item, count}.
func parseItemStack(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		parts := strings.Fields(x)
		if len(parts) != 2 {
			return nil, notA("\"<count> <item>\"", raw)
		}
		count, err := strconv.ParseInt(parts[0], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: item count %q", ErrBadDefault, parts[0])
		}
		if normalizeName(parts[1]) == "air" {
			return ItemStack{}, nil
		}
		item, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q is not a numeric id", ErrBadDefault, parts[1])
		}
		return ItemStack{Item: int32(item), Count: int8(count)}, nil
	case map[string]any:
		item, err := intIn(x["item"], 0, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		count, err := intIn(x["count"], 0, math.MaxInt8)
		if err != nil {
			return nil, err
		}
		return ItemStack{Item: int32(item), Count: int8(count)}, nil
	case nil:
		return ItemStack{}, nil
	}
	return nil, notA("item stack", raw)
}

func parseParticle(raw any, names Names) (Particle, error) {
	switch x := raw.(type) {
	case string:
		id, ok := names.particle(x)
		if !ok {
			return Particle{}, fmt.Errorf("%w: unknown particle %q", ErrBadDefault, x)
		}
		return Particle{ID: id}, nil
	case map[string]any:
		id, err := intIn(x["id"], 0, math.MaxInt32)
		if err != nil {
			if name, ok := x["type"].(string); ok {
				return parseParticle(name, names)
			}
			return Particle{}, err
		}
		return Particle{ID: int32(id)}, nil
	}
	n, err := intIn(raw, 0, math.MaxInt32)
	return Particle{ID: int32(n)}, err
}

func parseWolfVariant(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, notA("wolf variant mapping", raw)
	}
	var v WolfVariant
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"wild_texture", &v.WildTexture},
		{"tame_texture", &v.TameTexture},
		{"angry_texture", &v.AngryTexture},
	} {
		s, ok := m[f.key].(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %q: want identifier, got %T", ErrBadDefault, f.key, m[f.key])
		}
		*f.dst = s
	}
	if biomes, ok := m["biomes"].([]any); ok {
		for _, b := range biomes {
			s, ok := b.(string)
			if !ok {
				return nil, fmt.Errorf("%w: biome: want identifier, got %T", ErrBadDefault, b)
			}
			v.Biomes = append(v.Biomes, s)
		}
	} else if m["biomes"] != nil {
		return nil, notA("biome list", m["biomes"])
	}
	return v, nil
}
