package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/voxelhost/entitysync/internal/compiler"
	"github.com/voxelhost/entitysync/internal/config"
	"github.com/voxelhost/entitysync/internal/core/event"
	coresys "github.com/voxelhost/entitysync/internal/core/system"
	"github.com/voxelhost/entitysync/internal/entity"
	"github.com/voxelhost/entitysync/internal/outbound"
	"github.com/voxelhost/entitysync/internal/persist"
	"github.com/voxelhost/entitysync/internal/schema"
	"github.com/voxelhost/entitysync/internal/scripting"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             entityd  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      entity state sync reference host     \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := strconv.Itoa(count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main host logic ───────────────────────────────────────────────

// spawnList parses "preset=count,preset=count".
func spawnList(s string) (map[string]int, error) {
	out := make(map[string]int)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		name, count, found := strings.Cut(strings.TrimSpace(part), "=")
		n := 1
		if found {
			var err error
			if n, err = strconv.Atoi(count); err != nil || n < 0 {
				return nil, fmt.Errorf("spawn %q: bad count", part)
			}
		}
		out[name] += n
	}
	return out, nil
}

func loadCatalog(cfg *config.Config, log *zap.Logger) (*compiler.Catalog, error) {
	cat, err := compiler.ReadCatalog(cfg.Schema.Catalog)
	if err == nil {
		printOK("catalog artifact " + cfg.Schema.Catalog)
		return cat, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	log.Warn("catalog artifact missing, compiling schema", zap.String("path", cfg.Schema.Catalog))
	s, err := schema.Load(cfg.Schema.Entities, cfg.Schema.Misc, cfg.Schema.Attributes)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	cat, err = compiler.Compile(s, log)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	printOK("schema compiled")
	return cat, nil
}

func checkRegistry(ctx context.Context, cfg config.RegistryConfig, cat *compiler.Catalog, log *zap.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	db, err := persist.NewDB(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	defer db.Close()
	if err := persist.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := persist.NewRegistry(db, log).Check(ctx, cat); err != nil {
		return err
	}
	printOK("identifier registry (" + cfg.Driver + ")")
	return nil
}

func run() error {
	spawnFlag := flag.String("spawn", "", "presets to spawn at startup, e.g. baby_zombie=10,puppy=2")
	dumpFlag := flag.String("dump", "", "write every outgoing frame to this zstd file")
	ticksFlag := flag.Int("ticks", 0, "stop after this many ticks (0 = run until signalled)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Path("config/entityd.toml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Catalog and identifier registry
	printSection("catalog")
	cat, err := loadCatalog(cfg, log)
	if err != nil {
		return err
	}
	printStat("kinds", len(cat.Kinds()))
	printStat("fields", len(cat.Fields()))
	printStat("attributes", cat.Attributes.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := checkRegistry(ctx, cfg.Registry, cat, log); err != nil {
		return err
	}
	fmt.Println()

	// 4. Entity manager, presets and phases
	printSection("entities")
	bus := event.NewBus()
	manager := entity.NewManager(cat, entity.Options{IDFloor: cfg.Sync.EntityIDFloor, Bus: bus}, log)

	presets, err := scripting.NewEngine(cfg.Schema.Presets, cat, log)
	if err != nil {
		return fmt.Errorf("presets: %w", err)
	}
	defer presets.Close()
	printStat("presets", len(presets.Names()))

	event.Subscribe(bus, func(ev event.EntityIDConflict) {
		log.Warn("entity id taken over", zap.Int32("id", ev.ID))
	})

	sink := outbound.Sink(outbound.SinkFunc(func([]byte) error { return nil }))
	if *dumpFlag != "" {
		dump, err := newDumpSink(*dumpFlag)
		if err != nil {
			return fmt.Errorf("dump: %w", err)
		}
		defer func() {
			if err := dump.Close(); err != nil {
				log.Error("close dump", zap.Error(err))
			}
		}()
		sink = dump
	}

	runner := coresys.NewRunner()
	runner.SetParallelism(cfg.Sync.Parallelism)
	runner.Register(coresys.Func{P: coresys.PhaseInput, Fn: func(time.Duration) {
		bus.SwapBuffers()
		bus.DispatchAll()
	}})
	observers := entity.Install(runner, manager)
	output := outbound.NewOutputSystem(manager, bus, sink, log)
	runner.Register(output)
	printStat("observers", len(observers))

	spawns, err := spawnList(*spawnFlag)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(spawns))
	for n := range spawns {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, name := range names {
		for i := 0; i < spawns[name]; i++ {
			if _, err := presets.Spawn(manager, name); err != nil {
				return fmt.Errorf("spawn: %w", err)
			}
		}
		printStat("spawn "+name, spawns[name])
	}
	fmt.Println()

	// 5. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Sync.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("ticking every %s, parallelism %d", cfg.Sync.TickRate, cfg.Sync.Parallelism))
	fmt.Println()

	tick := 0
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			runner.Tick(cfg.Sync.TickRate)
			tick++
			if elapsed := time.Since(start); elapsed > cfg.Sync.TickRate {
				log.Warn("tick overran", zap.Int("tick", tick), zap.Duration("elapsed", elapsed))
			}
			if tick%200 == 0 {
				st := output.Stats()
				log.Info("sync stats",
					zap.Int("tick", tick),
					zap.Int("entities", manager.Len()),
					zap.Int("spawns", st.Spawns),
					zap.Int("updates", st.Updates),
					zap.Int("attributes", st.Attributes),
					zap.Int("rejected", st.Rejected))
			}
			if *ticksFlag > 0 && tick >= *ticksFlag {
				log.Info("tick limit reached", zap.Int("ticks", tick))
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			return nil
		}
	}
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
