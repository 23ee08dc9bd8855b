package compiler

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/voxelhost/entitysync/internal/attributes"
	"github.com/voxelhost/entitysync/internal/value"
)

const catalogVersion = 1

var ErrCatalogDigest = errors.New("catalog digest mismatch")

type catalogHeader struct {
	Version int    `json:"version"`
	Digest  string `json:"digest"`
	Kinds   int    `json:"kinds"`
	Fields  int    `json:"fields"`
}

type catalogDoc struct {
	Kinds      []kindDoc        `json:"kinds"`
	Fields     []fieldDoc       `json:"fields"`
	Statuses   map[string]uint8 `json:"statuses"`
	Animations map[string]uint8 `json:"animations"`
	Particles  map[string]int32 `json:"particles"`
	Attributes []attributeDoc   `json:"attributes"`
}

type kindDoc struct {
	ID             int32           `json:"id"`
	Name           string          `json:"name"`
	Entity         string          `json:"entity"`
	TranslationKey string          `json:"translation_key,omitempty"`
	Markers        []string        `json:"markers"`
	Fields         []string        `json:"fields"`
	Living         bool            `json:"living,omitempty"`
	Player         bool            `json:"player,omitempty"`
	Attributes     []AttributeBase `json:"attributes,omitempty"`
}

type fieldDoc struct {
	Key     string `json:"key"`
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Index   uint8  `json:"index"`
	Tag     uint8  `json:"tag"`
	Default []byte `json:"default"`
}

type attributeDoc struct {
	Name    string  `json:"name"`
	ID      int32   `json:"id"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Tracked bool    `json:"tracked,omitempty"`
}

func toDoc(c *Catalog) catalogDoc {
	doc := catalogDoc{
		Statuses:   c.Statuses,
		Animations: c.Animations,
		Particles:  c.Particles,
	}
	for _, k := range c.kinds {
		kd := kindDoc{
			ID:             k.ID,
			Name:           k.Name,
			Entity:         k.Entity,
			TranslationKey: k.TranslationKey,
			Markers:        k.Markers,
			Living:         k.Living,
			Player:         k.Player,
			Attributes:     k.Attributes,
		}
		for _, f := range k.Fields {
			kd.Fields = append(kd.Fields, f.Key)
		}
		doc.Kinds = append(doc.Kinds, kd)
	}
	for _, f := range c.fields {
		doc.Fields = append(doc.Fields, fieldDoc{
			Key:     f.Key,
			Owner:   f.Owner,
			Name:    f.Name,
			Index:   f.Index,
			Tag:     uint8(f.Tag),
			Default: value.Marshal(f.Default),
		})
	}
	if c.Attributes != nil {
		for _, d := range c.Attributes.Defs() {
			doc.Attributes = append(doc.Attributes, attributeDoc{
				Name: d.Name, ID: d.ID, Default: d.Default, Min: d.Min, Max: d.Max, Tracked: d.Tracked,
			})
		}
	}
	return doc
}

func fromDoc(doc catalogDoc) (*Catalog, error) {
	defs := make([]attributes.Def, 0, len(doc.Attributes))
	for _, a := range doc.Attributes {
		defs = append(defs, attributes.Def{
			Name: a.Name, ID: a.ID, Default: a.Default, Min: a.Min, Max: a.Max, Tracked: a.Tracked,
		})
	}
	reg, err := attributes.NewRegistry(defs)
	if err != nil {
		return nil, err
	}

	fields := make([]*FieldSpec, 0, len(doc.Fields))
	byKey := make(map[string]*FieldSpec, len(doc.Fields))
	for _, fd := range doc.Fields {
		tag := value.Tag(fd.Tag)
		def, err := value.Unmarshal(tag, fd.Default)
		if err != nil {
			return nil, fmt.Errorf("field %s default: %w", fd.Key, err)
		}
		f := &FieldSpec{Key: fd.Key, Owner: fd.Owner, Name: fd.Name, Index: fd.Index, Tag: tag, Default: def}
		fields = append(fields, f)
		byKey[f.Key] = f
	}

	kinds := make([]*Kind, 0, len(doc.Kinds))
	for _, kd := range doc.Kinds {
		k := &Kind{
			ID:             kd.ID,
			Name:           kd.Name,
			Entity:         kd.Entity,
			TranslationKey: kd.TranslationKey,
			Markers:        kd.Markers,
			Living:         kd.Living,
			Player:         kd.Player,
			Attributes:     kd.Attributes,
		}
		for _, key := range kd.Fields {
			f, ok := byKey[key]
			if !ok {
				return nil, fmt.Errorf("kind %s references unknown field %s", kd.Name, key)
			}
			k.Fields = append(k.Fields, f)
		}
		kinds = append(kinds, k)
	}
	return newCatalog(kinds, fields, doc.Statuses, doc.Animations, doc.Particles, reg)
}

func digestOf(c *Catalog) (string, error) {
	body, err := json.Marshal(toDoc(c))
	if err != nil {
		return "", fmt.Errorf("encode catalog: %w", err)
	}
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// WriteCatalog stores c as a zstd-compressed header line plus JSON body.
func WriteCatalog(path string, c *Catalog) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return EncodeCatalog(f, c)
}

// EncodeCatalog writes the compressed artifact to w.
func EncodeCatalog(w io.Writer, c *Catalog) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hdr := catalogHeader{Version: catalogVersion, Digest: c.digest, Kinds: len(c.kinds), Fields: len(c.fields)}
	hb, err := json.Marshal(hdr)
	if err != nil {
		enc.Close()
		return err
	}
	bw.Write(hb)
	bw.WriteByte('\n')
	if err := json.NewEncoder(bw).Encode(toDoc(c)); err != nil {
		enc.Close()
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadCatalog loads an artifact written by WriteCatalog and verifies its
// digest.
func ReadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCatalog(f)
}

func DecodeCatalog(r io.Reader) (*Catalog, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	var hdr catalogHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, fmt.Errorf("parse catalog header: %w", err)
	}
	if hdr.Version != catalogVersion {
		return nil, fmt.Errorf("catalog version %d, want %d", hdr.Version, catalogVersion)
	}
	var doc catalogDoc
	if err := json.NewDecoder(br).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c, err := fromDoc(doc)
	if err != nil {
		return nil, err
	}
	if c.digest != hdr.Digest {
		return nil, fmt.Errorf("%w: header %s, content %s", ErrCatalogDigest, hdr.Digest, c.digest)
	}
	return c, nil
}
