package packet

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Writer builds a tracked-data payload. Fixed-width numbers are big-endian;
// integers that the protocol marks as variable-length use the 7-bit VarInt
// scheme (two's complement bits, so negative values take five bytes).
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteBool writes 0x01 for true, 0x00 for false.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

// WriteH writes 2 bytes big-endian.
func (w *Writer) WriteH(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

// WriteD writes 4 bytes big-endian (signed or unsigned via cast).
func (w *Writer) WriteD(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// WriteL writes 8 bytes big-endian.
func (w *Writer) WriteL(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

// WriteF writes an IEEE-754 single.
func (w *Writer) WriteF(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

// WriteDouble writes an IEEE-754 double.
func (w *Writer) WriteDouble(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteVarInt writes a 32-bit VarInt (at most 5 bytes).
func (w *Writer) WriteVarInt(v int32) {
	u := uint32(v)
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u)|0x80)
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

// WriteVarLong writes a 64-bit VarLong (at most 10 bytes).
func (w *Writer) WriteVarLong(v int64) {
	u := uint64(v)
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u)|0x80)
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

// WriteS writes a VarInt byte length followed by the UTF-8 bytes.
func (w *Writer) WriteS(s string) {
	w.WriteVarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteUUID writes the 16 raw bytes of id.
func (w *Writer) WriteUUID(id uuid.UUID) {
	w.buf = append(w.buf, id[:]...)
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated payload. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset empties the writer, keeping its capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}
