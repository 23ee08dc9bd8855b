// entitygen compiles the entity schema documents.
//
// Usage:
//
//	go run ./cmd/entitygen <command> [-config path] [-out path] [-pkg name]
//
// Commands:
//
//	validate  load and compile the schema, report kinds and fields
//	catalog   write the compiled catalog artifact
//	generate  write Go source with kind ids, status bits and field handles
//	check     compare kind ids and type tags with the identifier registry
//	record    check, then store new assignments in the registry
//	all       validate, check, catalog, generate, record
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/config"
	"github.com/voxelhost/entitysync/internal/persist"
	"github.com/voxelhost/entitysync/internal/schema"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: entitygen <validate|catalog|generate|check|record|all> [-config path] [-out path] [-pkg name]")
}

type env struct {
	cfg *config.Config
	log *zap.Logger
	cat *compiler.Catalog
	out string
	pkg string
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		printUsage()
		return
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", config.Path("config/entityd.toml"), "config file")
	out := fs.String("out", filepath.Join("internal", "entities", "entities_gen.go"), "generated source path")
	pkg := fs.String("pkg", "entities", "generated package name")
	_ = fs.Parse(os.Args[2:])

	steps := map[string][]func(*env) error{
		"validate": {validate},
		"catalog":  {writeCatalog},
		"generate": {generate},
		"check":    {check},
		"record":   {check, record},
		"all":      {validate, check, writeCatalog, generate, record},
	}
	run, ok := steps[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	e, err := setup(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	defer e.log.Sync()
	e.out, e.pkg = *out, *pkg

	for _, step := range run {
		if err := step(e); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR [%s]: %v\n", cmd, err)
			os.Exit(1)
		}
	}
}

func setup(cfgPath string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	s, err := schema.Load(cfg.Schema.Entities, cfg.Schema.Misc, cfg.Schema.Attributes)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	cat, err := compiler.Compile(s, log)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return &env{cfg: cfg, log: log, cat: cat}, nil
}

func validate(e *env) error {
	living := 0
	for _, k := range e.cat.Kinds() {
		if k.Living {
			living++
		}
		fmt.Printf("  %-20s id=%-4d fields=%d\n", k.Name, k.ID, len(k.Fields))
	}
	fmt.Printf("%d kinds (%d living), %d fields, digest %s\n",
		len(e.cat.Kinds()), living, len(e.cat.Fields()), e.cat.Digest())
	return nil
}

func writeCatalog(e *env) error {
	if err := compiler.WriteCatalog(e.cfg.Schema.Catalog, e.cat); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", e.cfg.Schema.Catalog)
	return nil
}

func generate(e *env) error {
	var buf bytes.Buffer
	opts := compiler.GenerateOptions{Package: e.pkg, Filename: filepath.Base(e.out)}
	if err := compiler.Generate(&buf, e.cat, opts); err != nil {
		return err
	}
	if old, err := os.ReadFile(e.out); err == nil && bytes.Equal(old, buf.Bytes()) {
		fmt.Printf("%s is up to date\n", e.out)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(e.out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", e.out)
	return nil
}

func withRegistry(e *env, fn func(context.Context, *persist.Registry) error) error {
	if !e.cfg.Registry.Enabled() {
		fmt.Println("identifier registry disabled, skipping")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, e.cfg.Registry, e.log)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer db.Close()
	if err := persist.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return fn(ctx, persist.NewRegistry(db, e.log))
}

func check(e *env) error {
	return withRegistry(e, func(ctx context.Context, reg *persist.Registry) error {
		if err := reg.Check(ctx, e.cat); err != nil {
			return err
		}
		fmt.Println("identifier registry: no drift")
		return nil
	})
}

func record(e *env) error {
	return withRegistry(e, func(ctx context.Context, reg *persist.Registry) error {
		return reg.Record(ctx, e.cat)
	})
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
