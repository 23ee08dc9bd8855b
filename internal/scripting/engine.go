package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/core/ecs"
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/value"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrDuplicate     = errors.New("duplicate preset")
)

// Preset is a named spawn descriptor declared by a script.
type Preset struct {
	Name      string
	Kind      string
	Overrides map[string]any

	// Optional extras from the fourth argument of preset().
	Position   *entity.Position
	Absorption *float32
	Attributes map[string]float64
}

// Engine loads preset scripts into a gopher-lua VM. Scripts run once at
// load time; the VM is not used afterwards except by Reload.
type Engine struct {
	vm      *lua.LState
	log     *zap.Logger
	cat     *compiler.Catalog
	dir     string
	presets map[string]*Preset
}

// NewEngine creates a Lua engine and loads every .lua file in dir, in name
// order. A missing directory yields an engine with no presets.
func NewEngine(dir string, cat *compiler.Catalog, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log, cat: cat, dir: dir}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload discards every preset and runs the scripts again.
func (e *Engine) Reload() error {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	prev, prevVM := e.presets, e.vm
	e.vm = vm
	e.presets = make(map[string]*Preset)
	vm.SetGlobal("preset", vm.NewFunction(e.luaPreset))

	if err := e.loadDir(e.dir); err != nil {
		vm.Close()
		e.vm, e.presets = prevVM, prev
		return fmt.Errorf("load presets: %w", err)
	}
	if prevVM != nil {
		prevVM.Close()
	}
	e.log.Info("presets loaded", zap.String("dir", e.dir), zap.Int("count", len(e.presets)))
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString runs one chunk of preset declarations. Used for inline
// scripts and tests.
func (e *Engine) LoadString(src string) error {
	return e.vm.DoString(src)
}

func (e *Engine) Close() {
	if e.vm != nil {
		e.vm.Close()
	}
}

// luaPreset implements preset(name, kind, overrides [, extras]).
func (e *Engine) luaPreset(L *lua.LState) int {
	name := L.CheckString(1)
	kind := L.CheckString(2)
	if _, dup := e.presets[name]; dup {
		L.RaiseError("%s: %q", ErrDuplicate, name)
		return 0
	}
	if e.cat != nil {
		if _, ok := e.cat.Kind(kind); !ok {
			L.RaiseError("preset %q: %s %q", name, entity.ErrUnknownKind, kind)
			return 0
		}
	}

	p := &Preset{Name: name, Kind: kind, Overrides: map[string]any{}}
	if t := L.OptTable(3, nil); t != nil {
		var bad string
		t.ForEach(func(k, v lua.LValue) {
			ks, ok := k.(lua.LString)
			if !ok {
				bad = k.String()
				return
			}
			p.Overrides[string(ks)] = toGo(v)
		})
		if bad != "" {
			L.ArgError(3, "override keys must be field names, got "+bad)
			return 0
		}
	}
	if t := L.OptTable(4, nil); t != nil {
		if err := p.extras(t); err != nil {
			L.ArgError(4, err.Error())
			return 0
		}
	}
	e.presets[name] = p
	return 0
}

func (p *Preset) extras(t *lua.LTable) error {
	if pos, ok := t.RawGetString("position").(*lua.LTable); ok {
		p.Position = &entity.Position{
			X: float64(lua.LVAsNumber(pos.RawGetString("x"))),
			Y: float64(lua.LVAsNumber(pos.RawGetString("y"))),
			Z: float64(lua.LVAsNumber(pos.RawGetString("z"))),
		}
	}
	if n, ok := t.RawGetString("absorption").(lua.LNumber); ok {
		a := float32(n)
		p.Absorption = &a
	}
	if attrs, ok := t.RawGetString("attributes").(*lua.LTable); ok {
		p.Attributes = make(map[string]float64)
		var err error
		attrs.ForEach(func(k, v lua.LValue) {
			n, ok := v.(lua.LNumber)
			if !ok && err == nil {
				err = fmt.Errorf("attribute %s: base must be a number", k)
				return
			}
			p.Attributes[k.String()] = float64(n)
		})
		return err
	}
	return nil
}

// toGo converts a Lua value to the plain document form value.Parse expects.
// Tables with a sequence part become slices, others maps.
func toGo(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case *lua.LTable:
		if n := x.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, toGo(x.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		x.ForEach(func(k, v lua.LValue) { out[k.String()] = toGo(v) })
		return out
	}
	return nil
}

func (e *Engine) Preset(name string) (*Preset, bool) {
	p, ok := e.presets[name]
	return p, ok
}

// Names returns every preset name, sorted.
func (e *Engine) Names() []string {
	out := make([]string, 0, len(e.presets))
	for n := range e.presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Bundle builds the spawn descriptor of a preset: the kind's defaults with
// the preset's overrides applied through the value domain.
func (e *Engine) Bundle(m *entity.Manager, name string) (*entity.Bundle, error) {
	p, ok := e.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	b, err := m.NewBundle(p.Kind)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	names := value.Names{Particles: m.Catalog().Particles}
	if err := b.Apply(p.Overrides, names); err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	if p.Position != nil {
		b.Position = *p.Position
	}
	if p.Absorption != nil {
		b.Absorption = *p.Absorption
	}
	if len(p.Attributes) > 0 {
		if b.Attributes == nil {
			return nil, fmt.Errorf("preset %s: kind %s has no attributes", name, p.Kind)
		}
		keys := make([]string, 0, len(p.Attributes))
		for k := range p.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := b.Attributes.WithBase(k, p.Attributes[k]); err != nil {
				return nil, fmt.Errorf("preset %s: %w", name, err)
			}
		}
	}
	return b, nil
}

// Spawn builds and spawns a preset.
func (e *Engine) Spawn(m *entity.Manager, name string) (ecs.EntityID, error) {
	b, err := e.Bundle(m, name)
	if err != nil {
		return 0, err
	}
	return m.Spawn(b)
}
