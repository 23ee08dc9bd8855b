package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath overrides the config file location.
const EnvPath = "ENTITYSYNC_CONFIG"

type Config struct {
	Schema   SchemaConfig   `toml:"schema"`
	Sync     SyncConfig     `toml:"sync"`
	Registry RegistryConfig `toml:"registry"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SchemaConfig struct {
	Entities   string `toml:"entities"`
	Misc       string `toml:"misc"`
	Attributes string `toml:"attributes"`
	Catalog    string `toml:"catalog"` // compiled artifact written by entitygen
	Presets    string `toml:"presets"` // directory of Lua preset scripts
}

type SyncConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`
	Parallelism   int           `toml:"parallelism"` // 1 = sequential observation
	EntityIDFloor int32         `toml:"entity_id_floor"`
}

type RegistryConfig struct {
	Driver          string        `toml:"driver"` // "postgres", "sqlite" or empty to disable
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// Enabled reports whether an identifier registry is configured.
func (r RegistryConfig) Enabled() bool { return r.Driver != "" }

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config path from the environment, or def.
func Path(def string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return def
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML over the defaults. name is only used in errors.
func Parse(data []byte, name string) (*Config, error) {
	cfg := Defaults()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("parse config %s: unknown key %s", name, undec[0])
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Sync.TickRate <= 0 {
		return fmt.Errorf("sync.tick_rate must be positive, got %s", c.Sync.TickRate)
	}
	if c.Sync.Parallelism < 1 {
		return fmt.Errorf("sync.parallelism must be at least 1, got %d", c.Sync.Parallelism)
	}
	if c.Sync.EntityIDFloor < 0 {
		return fmt.Errorf("sync.entity_id_floor must not be negative, got %d", c.Sync.EntityIDFloor)
	}
	switch c.Registry.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("registry.driver %q: want postgres, sqlite or empty", c.Registry.Driver)
	}
	if c.Registry.Enabled() && c.Registry.DSN == "" {
		return fmt.Errorf("registry.dsn is required for driver %s", c.Registry.Driver)
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Schema: SchemaConfig{
			Entities:   "data/yaml/entities.yaml",
			Misc:       "data/yaml/misc.yaml",
			Attributes: "data/yaml/attributes.yaml",
			Catalog:    "build/catalog.zst",
			Presets:    "data/lua",
		},
		Sync: SyncConfig{
			TickRate:      50 * time.Millisecond,
			Parallelism:   1,
			EntityIDFloor: 1,
		},
		Registry: RegistryConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
