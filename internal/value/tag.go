package value

import "fmt"

// Tag is the stable numeric identifier of a value shape. Tags are part of the
// wire contract and must never be renumbered.
type Tag uint8

const (
	TagByte               Tag = 0
	TagInt                Tag = 1
	TagLong               Tag = 2
	TagFloat              Tag = 3
	TagString             Tag = 4
	TagText               Tag = 5
	TagOptionalText       Tag = 6
	TagItemStack          Tag = 7
	TagBool               Tag = 8
	TagRotation           Tag = 9
	TagBlockPos           Tag = 10
	TagOptionalBlockPos   Tag = 11
	TagFacing             Tag = 12
	TagOptionalUUID       Tag = 13
	TagBlockState         Tag = 14
	TagOptionalBlockState Tag = 15
	TagNBT                Tag = 16
	TagParticle           Tag = 17
	TagParticleList       Tag = 18
	TagVillagerData       Tag = 19
	TagOptionalInt        Tag = 20
	TagCatVariant         Tag = 21
	TagPose               Tag = 22
	TagWolfVariant        Tag = 23
	TagFrogVariant        Tag = 24
	TagOptionalGlobalPos  Tag = 25
	TagPaintingVariant    Tag = 26
	TagSnifferState       Tag = 27
	TagArmadilloState     Tag = 28
	TagVector3f           Tag = 29
	TagQuaternionf        Tag = 30
)

// MaxTag is the highest tag in use.
const MaxTag = TagQuaternionf

// shapeNames maps each tag to the shape name used in schema documents.
var shapeNames = [...]string{
	TagByte:               "byte",
	TagInt:                "integer",
	TagLong:               "long",
	TagFloat:              "float",
	TagString:             "string",
	TagText:               "text_component",
	TagOptionalText:       "optional_text_component",
	TagItemStack:          "item_stack",
	TagBool:               "boolean",
	TagRotation:           "rotation",
	TagBlockPos:           "block_pos",
	TagOptionalBlockPos:   "optional_block_pos",
	TagFacing:             "facing",
	TagOptionalUUID:       "optional_uuid",
	TagBlockState:         "block_state",
	TagOptionalBlockState: "optional_block_state",
	TagNBT:                "nbt_compound",
	TagParticle:           "particle",
	TagParticleList:       "particle_list",
	TagVillagerData:       "villager_data",
	TagOptionalInt:        "optional_int",
	TagCatVariant:         "cat_variant",
	TagPose:               "entity_pose",
	TagWolfVariant:        "wolf_variant",
	TagFrogVariant:        "frog_variant",
	TagOptionalGlobalPos:  "optional_global_pos",
	TagPaintingVariant:    "painting_variant",
	TagSnifferState:       "sniffer_state",
	TagArmadilloState:     "armadillo_state",
	TagVector3f:           "vector3f",
	TagQuaternionf:        "quaternionf",
}

var tagsByName = func() map[string]Tag {
	m := make(map[string]Tag, len(shapeNames))
	for i, name := range shapeNames {
		m[name] = Tag(i)
	}
	return m
}()

// TagByName looks up the tag for a schema shape name.
func TagByName(name string) (Tag, bool) {
	t, ok := tagsByName[name]
	return t, ok
}

// Tags returns every tag in numeric order.
func Tags() []Tag {
	out := make([]Tag, 0, len(shapeNames))
	for i := range shapeNames {
		out = append(out, Tag(i))
	}
	return out
}

// Supported reports whether the shape has a settled wire representation.
func (t Tag) Supported() bool {
	return t <= MaxTag && t != TagOptionalGlobalPos
}

func (t Tag) String() string {
	if int(t) < len(shapeNames) {
		return shapeNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}
