package value

import (
	"fmt"
	"strings"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

// enumNames holds the snake_case names of an enumerated shape in wire order.
type enumNames struct {
	kind  string
	names []string
	index map[string]int32
}

func newEnumNames(kind string, names ...string) *enumNames {
	e := &enumNames{kind: kind, names: names, index: make(map[string]int32, len(names))}
	for i, n := range names {
		e.index[normalizeName(n)] = int32(i)
	}
	return e
}

// normalizeName folds "minecraft:fall_flying", "FALL_FLYING" and "FallFlying"
// to the same key.
func normalizeName(s string) string {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "minecraft:")
	return strings.ReplaceAll(s, "_", "")
}

func (e *enumNames) parse(s string) (int32, error) {
	if n, ok := e.index[normalizeName(s)]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrBadDefault, e.kind, s)
}

func (e *enumNames) name(n int32) string {
	if n >= 0 && int(n) < len(e.names) {
		return e.names[n]
	}
	return fmt.Sprintf("%s(%d)", e.kind, n)
}

var (
	directionNames = newEnumNames("direction",
		"down", "up", "north", "south", "west", "east")
	villagerKindNames = newEnumNames("villager type",
		"desert", "jungle", "plains", "savanna", "snow", "swamp", "taiga")
	villagerProfessionNames = newEnumNames("villager profession",
		"none", "armorer", "butcher", "cartographer", "cleric", "farmer",
		"fisherman", "fletcher", "leatherworker", "librarian", "mason",
		"nitwit", "shepherd", "toolsmith", "weaponsmith")
	poseNames = newEnumNames("pose",
		"standing", "fall_flying", "sleeping", "swimming", "spin_attack",
		"sneaking", "long_jumping", "dying", "croaking", "using_tongue",
		"roaring", "sniffing", "emerging", "digging")
	catKindNames = newEnumNames("cat variant",
		"tabby", "black", "red", "siamese", "british_shorthair", "calico",
		"persian", "ragdoll", "white", "jellie", "all_black")
	frogKindNames = newEnumNames("frog variant",
		"temperate", "warm", "cold")
	paintingKindNames = newEnumNames("painting variant",
		"kebab", "aztec", "alban", "aztec2", "bomb", "plant", "wasteland",
		"pool", "courbet", "sea", "sunset", "creebet", "wanderer", "graham",
		"match", "bust", "stage", "void", "skull_and_roses", "wither",
		"fighters", "pointer", "pigscene", "burning_skull", "skeleton",
		"earth", "wind", "water", "fire", "donkey_kong")
	snifferStateNames = newEnumNames("sniffer state",
		"idling", "feeling_happy", "scenting", "sniffing", "searching",
		"digging", "rising")
	armadilloStateNames = newEnumNames("armadillo state",
		"idle", "rolling", "scared")
)

type Direction int32

const (
	DirectionDown Direction = iota
	DirectionUp
	DirectionNorth
	DirectionSouth
	DirectionWest
	DirectionEast
)

func (Direction) Tag() Tag                  { return TagFacing }
func (v Direction) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v Direction) Equal(o Value) bool      { x, ok := o.(Direction); return ok && x == v }
func (Direction) isValue()                  {}
func (v Direction) String() string          { return directionNames.name(int32(v)) }

type VillagerKind int32

const (
	VillagerDesert VillagerKind = iota
	VillagerJungle
	VillagerPlains
	VillagerSavanna
	VillagerSnow
	VillagerSwamp
	VillagerTaiga
)

func (v VillagerKind) String() string { return villagerKindNames.name(int32(v)) }

type VillagerProfession int32

const (
	ProfessionNone VillagerProfession = iota
	ProfessionArmorer
	ProfessionButcher
	ProfessionCartographer
	ProfessionCleric
	ProfessionFarmer
	ProfessionFisherman
	ProfessionFletcher
	ProfessionLeatherworker
	ProfessionLibrarian
	ProfessionMason
	ProfessionNitwit
	ProfessionShepherd
	ProfessionToolsmith
	ProfessionWeaponsmith
)

func (v VillagerProfession) String() string { return villagerProfessionNames.name(int32(v)) }

type Pose int32

const (
	PoseStanding Pose = iota
	PoseFallFlying
	PoseSleeping
	PoseSwimming
	PoseSpinAttack
	PoseSneaking
	PoseLongJumping
	PoseDying
	PoseCroaking
	PoseUsingTongue
	PoseRoaring
	PoseSniffing
	PoseEmerging
	PoseDigging
)

func (Pose) Tag() Tag                  { return TagPose }
func (v Pose) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v Pose) Equal(o Value) bool      { x, ok := o.(Pose); return ok && x == v }
func (Pose) isValue()                  {}
func (v Pose) String() string          { return poseNames.name(int32(v)) }

type CatKind int32

const (
	CatTabby CatKind = iota
	CatBlack
	CatRed
	CatSiamese
	CatBritishShorthair
	CatCalico
	CatPersian
	CatRagdoll
	CatWhite
	CatJellie
	CatAllBlack
)

func (CatKind) Tag() Tag                  { return TagCatVariant }
func (v CatKind) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v CatKind) Equal(o Value) bool      { x, ok := o.(CatKind); return ok && x == v }
func (CatKind) isValue()                  {}
func (v CatKind) String() string          { return catKindNames.name(int32(v)) }

type FrogKind int32

const (
	FrogTemperate FrogKind = iota
	FrogWarm
	FrogCold
)

func (FrogKind) Tag() Tag                  { return TagFrogVariant }
func (v FrogKind) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v FrogKind) Equal(o Value) bool      { x, ok := o.(FrogKind); return ok && x == v }
func (FrogKind) isValue()                  {}
func (v FrogKind) String() string          { return frogKindNames.name(int32(v)) }

type PaintingKind int32

func (PaintingKind) Tag() Tag                  { return TagPaintingVariant }
func (v PaintingKind) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v PaintingKind) Equal(o Value) bool      { x, ok := o.(PaintingKind); return ok && x == v }
func (PaintingKind) isValue()                  {}
func (v PaintingKind) String() string          { return paintingKindNames.name(int32(v)) }

type SnifferState int32

const (
	SnifferIdling SnifferState = iota
	SnifferFeelingHappy
	SnifferScenting
	SnifferSniffing
	SnifferSearching
	SnifferDigging
	SnifferRising
)

func (SnifferState) Tag() Tag                  { return TagSnifferState }
func (v SnifferState) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v SnifferState) Equal(o Value) bool      { x, ok := o.(SnifferState); return ok && x == v }
func (SnifferState) isValue()                  {}
func (v SnifferState) String() string          { return snifferStateNames.name(int32(v)) }

type ArmadilloState int32

const (
	ArmadilloIdle ArmadilloState = iota
	ArmadilloRolling
	ArmadilloScared
)

func (ArmadilloState) Tag() Tag                  { return TagArmadilloState }
func (v ArmadilloState) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v ArmadilloState) Equal(o Value) bool      { x, ok := o.(ArmadilloState); return ok && x == v }
func (ArmadilloState) isValue()                  {}
func (v ArmadilloState) String() string          { return armadilloStateNames.name(int32(v)) }
