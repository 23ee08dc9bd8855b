package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrUnknownOpcode = errors.New("packet: unknown opcode")

// HandlerFunc decodes one frame payload (the bytes after the opcode).
type HandlerFunc func(r *Reader) error

type handlerEntry struct {
	name string
	fn   HandlerFunc
}

// Registry maps opcodes to frame handlers.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[byte]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler. Registering an opcode twice
// replaces the earlier handler.
func (reg *Registry) Register(opcode byte, name string, fn HandlerFunc) {
	reg.handlers[opcode] = &handlerEntry{name: name, fn: fn}
}

// Name returns the registered name of an opcode.
func (reg *Registry) Name(opcode byte) string {
	if e, ok := reg.handlers[opcode]; ok {
		return e.name
	}
	return fmt.Sprintf("0x%02x", opcode)
}

// Dispatch finds the handler for the opcode in data[0] and calls it with a
// reader over the rest of the frame. Short reads the handler did not check
// are reported too, as are trailing bytes it left unread.
func (reg *Registry) Dispatch(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	opcode := data[0]
	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("opcode", opcode), zap.Int("size", len(data)))
		return fmt.Errorf("%w 0x%02x", ErrUnknownOpcode, opcode)
	}

	r := NewReader(data[1:])
	if err := reg.safeCall(entry, r, opcode); err != nil {
		return err
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%s: %w", entry.name, err)
	}
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("%s: %d trailing bytes", entry.name, n)
	}
	return nil
}

// safeCall executes a handler with panic recovery so one malformed frame
// cannot take the consumer down.
func (reg *Registry) safeCall(entry *handlerEntry, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint8("opcode", opcode),
				zap.String("handler", entry.name),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %d: %v", opcode, rec)
		}
	}()
	if err := entry.fn(r); err != nil {
		return fmt.Errorf("%s: %w", entry.name, err)
	}
	return nil
}
