package value

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

type Byte int8

func (Byte) Tag() Tag                  { return TagByte }
func (v Byte) Encode(w *packet.Writer) { w.WriteC(byte(v)) }
func (v Byte) Equal(o Value) bool      { x, ok := o.(Byte); return ok && x == v }
func (Byte) isValue()                  {}

// Int is encoded as a VarInt.
type Int int32

func (Int) Tag() Tag                  { return TagInt }
func (v Int) Encode(w *packet.Writer) { w.WriteVarInt(int32(v)) }
func (v Int) Equal(o Value) bool      { x, ok := o.(Int); return ok && x == v }
func (Int) isValue()                  {}

type Long int64

func (Long) Tag() Tag                  { return TagLong }
func (v Long) Encode(w *packet.Writer) { w.WriteL(int64(v)) }
func (v Long) Equal(o Value) bool      { x, ok := o.(Long); return ok && x == v }
func (Long) isValue()                  {}

type Float float32

// sameFloat compares bit patterns, so NaN equals itself and 0 differs from
// -0, matching what goes on the wire.
func sameFloat(a, b float32) bool { return math.Float32bits(a) == math.Float32bits(b) }

func (Float) Tag() Tag                  { return TagFloat }
func (v Float) Encode(w *packet.Writer) { w.WriteF(float32(v)) }

func (v Float) Equal(o Value) bool {
	x, ok := o.(Float)
	return ok && sameFloat(float32(x), float32(v))
}

func (Float) isValue() {}

type String string

func (String) Tag() Tag                  { return TagString }
func (v String) Encode(w *packet.Writer) { w.WriteS(string(v)) }
func (v String) Equal(o Value) bool      { x, ok := o.(String); return ok && x == v }
func (String) isValue()                  {}

type Bool bool

func (Bool) Tag() Tag                  { return TagBool }
func (v Bool) Encode(w *packet.Writer) { w.WriteBool(bool(v)) }
func (v Bool) Equal(o Value) bool      { x, ok := o.(Bool); return ok && x == v }
func (Bool) isValue()                  {}

// Text is a plain text component. On the wire it is the JSON form
// {"text":"..."} written as a string.
type Text string

type textComponent struct {
	Text string `json:"text"`
}

func (Text) Tag() Tag { return TagText }

func (v Text) Encode(w *packet.Writer) {
	// Marshalling a struct with one string field cannot fail.
	b, _ := json.Marshal(textComponent{Text: string(v)})
	w.WriteS(string(b))
}

func (v Text) Equal(o Value) bool { x, ok := o.(Text); return ok && x == v }
func (Text) isValue()             {}

func decodeText(r *packet.Reader) (Text, error) {
	raw := r.ReadS()
	if r.Err() != nil {
		return "", r.Err()
	}
	var tc textComponent
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		// A bare JSON string is also a valid text component.
		var s string
		if err2 := json.Unmarshal([]byte(raw), &s); err2 != nil {
			return "", fmt.Errorf("text component: %w", err)
		}
		return Text(s), nil
	}
	return Text(tc.Text), nil
}

// OptionalText is a text component that may be absent.
type OptionalText struct {
	Text  Text
	Valid bool
}

func SomeText(t Text) OptionalText { return OptionalText{Text: t, Valid: true} }

func (OptionalText) Tag() Tag { return TagOptionalText }

func (v OptionalText) Encode(w *packet.Writer) {
	w.WriteBool(v.Valid)
	if v.Valid {
		v.Text.Encode(w)
	}
}

func (v OptionalText) Equal(o Value) bool {
	x, ok := o.(OptionalText)
	return ok && x.Valid == v.Valid && (!v.Valid || x.Text == v.Text)
}

func (OptionalText) isValue() {}

// OptionalInt is written as VarInt 0 when absent and n+1 otherwise.
type OptionalInt struct {
	Value int32
	Valid bool
}

func SomeInt(n int32) OptionalInt { return OptionalInt{Value: n, Valid: true} }

func (OptionalInt) Tag() Tag { return TagOptionalInt }

func (v OptionalInt) Encode(w *packet.Writer) {
	if !v.Valid {
		w.WriteVarInt(0)
		return
	}
	w.WriteVarInt(v.Value + 1) // wraps like the reference encoding
}

func (v OptionalInt) Equal(o Value) bool {
	x, ok := o.(OptionalInt)
	return ok && x.Valid == v.Valid && (!v.Valid || x.Value == v.Value)
}

func (OptionalInt) isValue() {}
