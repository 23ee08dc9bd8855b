package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var (
	// ErrShortRead is returned when a field runs past the end of the payload.
	ErrShortRead = errors.New("packet: short read")
	// ErrVarIntTooLong is returned for VarInts longer than 5 bytes (10 for VarLong).
	ErrVarIntTooLong = errors.New("packet: varint too long")
)

// maxStringLen bounds string and collection lengths read from untrusted input.
const maxStringLen = 1 << 20

// Reader reads tracked-data fields from a payload. The first error sticks:
// later reads return zero values and Err reports the original failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRead, n, r.off, len(r.data)-r.off))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Err returns the first error encountered.
func (r *Reader) Err() error {
	return r.err
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadBool reads one byte; any non-zero value is true.
func (r *Reader) ReadBool() bool {
	return r.ReadC() != 0
}

// ReadH reads 2 bytes as big-endian uint16.
func (r *Reader) ReadH() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// ReadD reads 4 bytes as big-endian int32.
func (r *Reader) ReadD() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

// ReadL reads 8 bytes as big-endian int64.
func (r *Reader) ReadL() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// ReadF reads an IEEE-754 single.
func (r *Reader) ReadF() float32 {
	return math.Float32frombits(uint32(r.ReadD()))
}

// ReadDouble reads an IEEE-754 double.
func (r *Reader) ReadDouble() float64 {
	return math.Float64frombits(uint64(r.ReadL()))
}

// ReadVarInt reads a 32-bit VarInt.
func (r *Reader) ReadVarInt() int32 {
	var u uint32
	for i := 0; i < 5; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}
		u |= uint32(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int32(u)
		}
	}
	r.fail(ErrVarIntTooLong)
	return 0
}

// ReadVarLong reads a 64-bit VarLong.
func (r *Reader) ReadVarLong() int64 {
	var u uint64
	for i := 0; i < 10; i++ {
		b := r.take(1)
		if b == nil {
			return 0
		}
		u |= uint64(b[0]&0x7F) << (7 * i)
		if b[0]&0x80 == 0 {
			return int64(u)
		}
	}
	r.fail(ErrVarIntTooLong)
	return 0
}

// ReadLen reads a VarInt length and rejects negative or oversized values.
func (r *Reader) ReadLen() int {
	n := r.ReadVarInt()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > maxStringLen {
		r.fail(fmt.Errorf("packet: invalid length %d", n))
		return 0
	}
	return int(n)
}

// ReadS reads a VarInt-length-prefixed UTF-8 string.
func (r *Reader) ReadS() string {
	n := r.ReadLen()
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

// ReadUUID reads 16 raw bytes.
func (r *Reader) ReadUUID() uuid.UUID {
	var id uuid.UUID
	b := r.take(16)
	if b != nil {
		copy(id[:], b)
	}
	return id
}

// ReadBytes reads n raw bytes into a fresh slice.
func (r *Reader) ReadBytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}
