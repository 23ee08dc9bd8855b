package compiler

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"golang.org/x/tools/imports"

	"github.com/voxelhost/entitysync/internal/value"
)

const (
	entityImport = "github.com/voxelhost/entitysync/internal/entity"
	valueImport  = "github.com/voxelhost/entitysync/internal/value"
)

// GenerateOptions controls the emitted Go file.
type GenerateOptions struct {
	Package string
	// Filename is only used in formatter diagnostics.
	Filename string
}

// goTypes maps each supported shape to its value package type.
var goTypes = map[value.Tag]string{
	value.TagByte:               "Byte",
	value.TagInt:                "Int",
	value.TagLong:               "Long",
	value.TagFloat:              "Float",
	value.TagString:             "String",
	value.TagText:               "Text",
	value.TagOptionalText:       "OptionalText",
	value.TagItemStack:          "ItemStack",
	value.TagBool:               "Bool",
	value.TagRotation:           "EulerAngle",
	value.TagBlockPos:           "BlockPos",
	value.TagOptionalBlockPos:   "OptionalBlockPos",
	value.TagFacing:             "Direction",
	value.TagOptionalUUID:       "OptionalUUID",
	value.TagBlockState:         "BlockState",
	value.TagOptionalBlockState: "OptionalBlockState",
	value.TagNBT:                "Compound",
	value.TagParticle:           "Particle",
	value.TagParticleList:       "ParticleList",
	value.TagVillagerData:       "VillagerData",
	value.TagOptionalInt:        "OptionalInt",
	value.TagCatVariant:         "CatKind",
	value.TagPose:               "Pose",
	value.TagWolfVariant:        "WolfVariant",
	value.TagFrogVariant:        "FrogKind",
	value.TagPaintingVariant:    "PaintingKind",
	value.TagSnifferState:       "SnifferState",
	value.TagArmadilloState:     "ArmadilloState",
	value.TagVector3f:           "Vec3",
	value.TagQuaternionf:        "Quat",
}

// Generate writes Go source declaring kind ids, translation keys, status and
// animation bits, and one typed handle plus observer name per field. The
// output depends only on cat and opts.
func Generate(w io.Writer, cat *Catalog, opts GenerateOptions) error {
	if opts.Package == "" {
		opts.Package = "entities"
	}
	if opts.Filename == "" {
		opts.Filename = "entities_gen.go"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by entitygen. DO NOT EDIT.\n// catalog %s\n\n", cat.Digest())
	fmt.Fprintf(&b, "package %s\n\n", opts.Package)
	fmt.Fprintf(&b, "import (\n\t%q\n\t%q\n)\n\n", entityImport, valueImport)

	if err := genKinds(&b, cat); err != nil {
		return err
	}
	if err := genBits(&b, "Status", "entity status bits", cat.Statuses); err != nil {
		return err
	}
	if err := genBits(&b, "Animation", "entity animation bits", cat.Animations); err != nil {
		return err
	}
	if err := genFields(&b, cat); err != nil {
		return err
	}

	src, err := imports.Process(opts.Filename, b.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return fmt.Errorf("format generated source: %w", err)
	}
	_, err = w.Write(src)
	return err
}

func genKinds(b *bytes.Buffer, cat *Catalog) error {
	idents := make(map[string]string)
	b.WriteString("// Kind identifiers.\nconst (\n")
	for _, k := range cat.Kinds() {
		id := "Kind" + pascal(k.Name)
		if prev, ok := idents[id]; ok {
			return fmt.Errorf("generate: kinds %s and %s both map to %s", prev, k.Name, id)
		}
		idents[id] = k.Name
		fmt.Fprintf(b, "\t%s int32 = %d\n", id, k.ID)
	}
	b.WriteString(")\n\n")

	b.WriteString("// TranslationKeys maps kind ids to their translation keys.\n")
	b.WriteString("var TranslationKeys = map[int32]string{\n")
	for _, k := range cat.Kinds() {
		if k.TranslationKey == "" {
			continue
		}
		fmt.Fprintf(b, "\tKind%s: %q,\n", pascal(k.Name), k.TranslationKey)
	}
	b.WriteString("}\n\n")
	return nil
}

func genBits(b *bytes.Buffer, prefix, doc string, bits map[string]uint8) error {
	if len(bits) == 0 {
		return nil
	}
	names := make([]string, 0, len(bits))
	for n := range bits {
		names = append(names, n)
	}
	sort.Strings(names)

	idents := make(map[string]string, len(names))
	fmt.Fprintf(b, "// Bit positions for %s.\nconst (\n", doc)
	for _, n := range names {
		id := prefix + pascal(n)
		if prev, ok := idents[id]; ok {
			return fmt.Errorf("generate: %s and %s both map to %s", prev, n, id)
		}
		idents[id] = n
		fmt.Fprintf(b, "\t%s uint8 = %d\n", id, bits[n])
	}
	b.WriteString(")\n\n")
	return nil
}

func genFields(b *bytes.Buffer, cat *Catalog) error {
	fields := cat.Fields()
	if len(fields) == 0 {
		return nil
	}
	idents := make(map[string]string, len(fields))
	b.WriteString("// Field handles.\nvar (\n")
	for _, f := range fields {
		typ, ok := goTypes[f.Tag]
		if !ok {
			return fmt.Errorf("generate: field %s: %s: %w", f.Key, f.Tag, ErrUnsupportedShape)
		}
		id := pascal(f.Key)
		if prev, ok := idents[id]; ok {
			return fmt.Errorf("generate: fields %s and %s both map to %s", prev, f.Key, id)
		}
		idents[id] = f.Key
		fmt.Fprintf(b, "\t%s = entity.FieldRef[value.%s]{Key: %q}\n", id, typ, f.Key)
	}
	b.WriteString(")\n\n")

	b.WriteString("// Observers maps field keys to their observation routine names.\n")
	b.WriteString("var Observers = map[string]string{\n")
	for _, f := range fields {
		fmt.Fprintf(b, "\t%q: %q,\n", f.Key, f.ObserverName())
	}
	b.WriteString("}\n")
	return nil
}
