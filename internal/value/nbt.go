package value

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/voxelhost/entitysync/internal/net/packet"
)

// NBT tag ids.
const (
	nbtEnd byte = iota
	nbtByte
	nbtShort
	nbtInt
	nbtLong
	nbtFloat
	nbtDouble
	nbtByteArray
	nbtString
	nbtList
	nbtCompound
	nbtIntArray
	nbtLongArray
)

const maxNBTDepth = 512

var errNBT = errors.New("malformed nbt")

// Compound is an NBT compound. Values must be one of int8, int16, int32,
// int64, float32, float64, string, []int8, []int32, []int64, []any (a list
// whose elements share one type) or Compound. Entries of any other type are
// skipped when encoding.
type Compound map[string]any

func (Compound) Tag() Tag { return TagNBT }

// Encode writes the network form: a compound tag id with no root name.
func (c Compound) Encode(w *packet.Writer) {
	w.WriteC(nbtCompound)
	writeCompound(w, c)
}

func (c Compound) Equal(o Value) bool {
	x, ok := o.(Compound)
	if !ok {
		return false
	}
	if len(c) == 0 && len(x) == 0 {
		return true
	}
	return reflect.DeepEqual(c, x)
}

func (Compound) isValue() {}

func nbtTagOf(v any) (byte, bool) {
	switch v.(type) {
	case int8:
		return nbtByte, true
	case int16:
		return nbtShort, true
	case int32:
		return nbtInt, true
	case int64:
		return nbtLong, true
	case float32:
		return nbtFloat, true
	case float64:
		return nbtDouble, true
	case []int8:
		return nbtByteArray, true
	case string:
		return nbtString, true
	case []any:
		return nbtList, true
	case Compound:
		return nbtCompound, true
	case []int32:
		return nbtIntArray, true
	case []int64:
		return nbtLongArray, true
	}
	return nbtEnd, false
}

func writeNBTString(w *packet.Writer, s string) {
	w.WriteH(uint16(len(s)))
	w.WriteBytes([]byte(s))
}

func writeCompound(w *packet.Writer, c Compound) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := c[k]
		tag, ok := nbtTagOf(v)
		if !ok {
			continue
		}
		w.WriteC(tag)
		writeNBTString(w, k)
		writeNBTPayload(w, v)
	}
	w.WriteC(nbtEnd)
}

func writeNBTPayload(w *packet.Writer, v any) {
	switch x := v.(type) {
	case int8:
		w.WriteC(byte(x))
	case int16:
		w.WriteH(uint16(x))
	case int32:
		w.WriteD(x)
	case int64:
		w.WriteL(x)
	case float32:
		w.WriteF(x)
	case float64:
		w.WriteDouble(x)
	case []int8:
		w.WriteD(int32(len(x)))
		for _, b := range x {
			w.WriteC(byte(b))
		}
	case string:
		writeNBTString(w, x)
	case []any:
		elem := nbtEnd
		if len(x) > 0 {
			elem, _ = nbtTagOf(x[0])
		}
		// Lists are homogeneous; elements of another type are dropped.
		items := make([]any, 0, len(x))
		for _, it := range x {
			if t, ok := nbtTagOf(it); ok && t == elem {
				items = append(items, it)
			}
		}
		w.WriteC(elem)
		w.WriteD(int32(len(items)))
		for _, it := range items {
			writeNBTPayload(w, it)
		}
	case Compound:
		writeCompound(w, x)
	case []int32:
		w.WriteD(int32(len(x)))
		for _, n := range x {
			w.WriteD(n)
		}
	case []int64:
		w.WriteD(int32(len(x)))
		for _, n := range x {
			w.WriteL(n)
		}
	}
}

func decodeRootCompound(r *packet.Reader) (Compound, error) {
	tag := r.ReadC()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if tag != nbtCompound {
		return nil, fmt.Errorf("%w: root tag %d is not a compound", errNBT, tag)
	}
	return readCompound(r, 0)
}

func readCompound(r *packet.Reader, depth int) (Compound, error) {
	if depth > maxNBTDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", errNBT, maxNBTDepth)
	}
	c := Compound{}
	for {
		tag := r.ReadC()
		if err := r.Err(); err != nil {
			return nil, err
		}
		if tag == nbtEnd {
			return c, nil
		}
		name := readNBTString(r)
		v, err := readNBTPayload(r, tag, depth+1)
		if err != nil {
			return nil, err
		}
		c[name] = v
	}
}

func readNBTString(r *packet.Reader) string {
	n := int(r.ReadH())
	return string(r.ReadBytes(n))
}

func readNBTLen(r *packet.Reader) (int, error) {
	n := r.ReadD()
	if err := r.Err(); err != nil {
		return 0, err
	}
	if n < 0 || int(n) > r.Remaining() {
		return 0, fmt.Errorf("%w: bad length %d", errNBT, n)
	}
	return int(n), nil
}

func readNBTPayload(r *packet.Reader, tag byte, depth int) (any, error) {
	var v any
	switch tag {
	case nbtByte:
		v = int8(r.ReadC())
	case nbtShort:
		v = int16(r.ReadH())
	case nbtInt:
		v = r.ReadD()
	case nbtLong:
		v = r.ReadL()
	case nbtFloat:
		v = r.ReadF()
	case nbtDouble:
		v = r.ReadDouble()
	case nbtByteArray:
		n, err := readNBTLen(r)
		if err != nil {
			return nil, err
		}
		arr := make([]int8, n)
		for i := range arr {
			arr[i] = int8(r.ReadC())
		}
		v = arr
	case nbtString:
		v = readNBTString(r)
	case nbtList:
		elem := r.ReadC()
		n, err := readNBTLen(r)
		if err != nil {
			return nil, err
		}
		if elem == nbtEnd && n > 0 {
			return nil, fmt.Errorf("%w: non-empty list of end tags", errNBT)
		}
		list := make([]any, 0, n)
		for i := 0; i < n; i++ {
			it, err := readNBTPayload(r, elem, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, it)
		}
		v = list
	case nbtCompound:
		c, err := readCompound(r, depth)
		if err != nil {
			return nil, err
		}
		v = c
	case nbtIntArray:
		n, err := readNBTLen(r)
		if err != nil {
			return nil, err
		}
		arr := make([]int32, n)
		for i := range arr {
			arr[i] = r.ReadD()
		}
		v = arr
	case nbtLongArray:
		n, err := readNBTLen(r)
		if err != nil {
			return nil, err
		}
		arr := make([]int64, n)
		for i := range arr {
			arr[i] = r.ReadL()
		}
		v = arr
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", errNBT, tag)
	}
	return v, r.Err()
}

// compoundFrom converts a decoded YAML/JSON/Lua document into a Compound.
// Integral numbers become int32 when they fit and int64 otherwise; other
// numbers become float64 and booleans become int8.
func compoundFrom(m map[string]any) (Compound, error) {
	c := make(Compound, len(m))
	for k, raw := range m {
		v, err := nbtFrom(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		c[k] = v
	}
	return c, nil
}

func nbtFrom(raw any) (any, error) {
	switch x := raw.(type) {
	case bool:
		if x {
			return int8(1), nil
		}
		return int8(0), nil
	case string:
		return x, nil
	case map[string]any:
		return compoundFrom(x)
	case []any:
		list := make([]any, 0, len(x))
		for _, it := range x {
			v, err := nbtFrom(it)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	}
	if n, ok := asInt64(raw); ok {
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			return int32(n), nil
		}
		return n, nil
	}
	if f, ok := asFloat64(raw); ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: cannot express %T as nbt", ErrBadDefault, raw)
}
