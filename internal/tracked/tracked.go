// Package tracked holds the per-entity outgoing log: a baseline of every
// non-default field and the list of updates recorded this tick.
package tracked

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/voxelhost/entitysync/internal/net/packet"
	"github.com/voxelhost/entitysync/internal/value"
)

// Terminator ends a baseline message. It is never a valid field index.
const Terminator = 0xFF

var ErrBadIndex = errors.New("field index 255 is reserved")

// Entry is one (index, tag, encoded value) triple.
type Entry struct {
	Index uint8
	Tag   value.Tag
	Data  []byte
}

func encodeEntry(index uint8, v value.Value) Entry {
	return Entry{Index: index, Tag: v.Tag(), Data: value.Marshal(v)}
}

func (e Entry) write(w *packet.Writer) {
	w.WriteC(e.Index)
	w.WriteC(byte(e.Tag))
	w.WriteBytes(e.Data)
}

// TrackedData is safe for concurrent use; observers of different fields
// write to the same entity's log in parallel.
type TrackedData struct {
	mu       sync.Mutex
	baseline map[uint8]Entry
	updates  []Entry
	observed bool
}

func New() *TrackedData {
	return &TrackedData{baseline: make(map[uint8]Entry, 8)}
}

// InsertInitValue records v as the baseline entry for index, replacing any
// previous entry.
func (t *TrackedData) InsertInitValue(index uint8, v value.Value) {
	if index == Terminator {
		panic(ErrBadIndex)
	}
	e := encodeEntry(index, v)
	t.mu.Lock()
	t.baseline[index] = e
	t.mu.Unlock()
}

// RemoveInitValue drops the baseline entry for index. It reports whether an
// entry existed.
func (t *TrackedData) RemoveInitValue(index uint8) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.baseline[index]
	delete(t.baseline, index)
	return ok
}

// AppendUpdateValue records v in this tick's update list.
func (t *TrackedData) AppendUpdateValue(index uint8, v value.Value) {
	if index == Terminator {
		panic(ErrBadIndex)
	}
	e := encodeEntry(index, v)
	t.mu.Lock()
	t.updates = append(t.updates, e)
	t.mu.Unlock()
}

// IsAdded reports whether the entity has not yet been through a
// ClearChanges pass, i.e. this is the tick its baseline is established.
func (t *TrackedData) IsAdded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.observed
}

// InitValue returns the baseline entry for index.
func (t *TrackedData) InitValue(index uint8) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.baseline[index]
	return e, ok
}

// BaselineLen is the number of baseline entries.
func (t *TrackedData) BaselineLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.baseline)
}

// UpdateLen is the number of update entries recorded this tick.
func (t *TrackedData) UpdateLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.updates)
}

// InitData encodes the baseline ordered by index and terminated by 0xFF. It
// returns nil when every field holds its default.
func (t *TrackedData) InitData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.baseline) == 0 {
		return nil
	}
	idx := make([]int, 0, len(t.baseline))
	for i := range t.baseline {
		idx = append(idx, int(i))
	}
	sort.Ints(idx)
	w := packet.NewWriter()
	for _, i := range idx {
		t.baseline[uint8(i)].write(w)
	}
	w.WriteC(Terminator)
	return w.Bytes()
}

// UpdateData encodes this tick's updates in recording order without a
// terminator. It returns nil when nothing changed.
func (t *TrackedData) UpdateData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.updates) == 0 {
		return nil
	}
	w := packet.NewWriter()
	for _, e := range t.updates {
		e.write(w)
	}
	return w.Bytes()
}

// ClearUpdateValues empties the update list and ends the entity's first
// tick. The baseline is kept.
func (t *TrackedData) ClearUpdateValues() {
	t.mu.Lock()
	t.updates = t.updates[:0]
	t.observed = true
	t.mu.Unlock()
}

// Decoded is a decoded wire entry.
type Decoded struct {
	Index uint8
	Value value.Value
}

// DecodeEntries parses a baseline (terminated) or update (unterminated)
// message.
func DecodeEntries(data []byte, terminated bool) ([]Decoded, error) {
	r := packet.NewReader(data)
	var out []Decoded
	for {
		if r.Remaining() == 0 {
			if terminated {
				return nil, fmt.Errorf("baseline: missing terminator: %w", packet.ErrShortRead)
			}
			return out, nil
		}
		index := r.ReadC()
		if index == Terminator {
			if !terminated {
				return nil, fmt.Errorf("update: %w", ErrBadIndex)
			}
			if r.Remaining() != 0 {
				return nil, fmt.Errorf("baseline: %d bytes after terminator", r.Remaining())
			}
			return out, r.Err()
		}
		tag := value.Tag(r.ReadC())
		if err := r.Err(); err != nil {
			return nil, err
		}
		v, err := value.Decode(tag, r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", index, err)
		}
		out = append(out, Decoded{Index: index, Value: v})
	}
}
