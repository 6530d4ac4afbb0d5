package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/systemshift/memex-workspace/internal/bus"
	"github.com/systemshift/memex-workspace/internal/config"
	"github.com/systemshift/memex-workspace/internal/kv"
	"github.com/systemshift/memex-workspace/internal/overlay"
	"github.com/systemshift/memex-workspace/internal/workspace"
)

// app is everything a command needs.
type app struct {
	cfg     *config.Config
	store   kv.Store
	bus     *bus.Bus
	overlay *overlay.Store
	engine  *workspace.Engine
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"status":   {"status", runStatus},
	"log":      {"log [n]", runLog},
	"branches": {"branches", runBranches},
	"set":      {"set <decisions|evaluations> <key> <json>", runSet},
	"unset":    {"unset <decisions|evaluations> <key>", runUnset},
	"commit":   {"commit [-m message]", runCommit},
	"fork":     {"fork <name> [-m message]", runFork},
	"checkout": {"checkout <branch>", runCheckout},
	"delete":   {"delete <branch>", runDelete},
	"gc":       {"gc", runGC},
	"graph":    {"graph [--raw] [--show label] [--switch branch]", runGraph},
	"mount":    {"mount <dir>", runMount},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mxws [--config file] [--data dir] [--backend files|sqlite|memory] [--tab name] <command>")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
}

func main() {
	var (
		configPath string
		dataDir    string
		backend    string
		tab        string
	)

	flags := pflag.NewFlagSet("mxws", pflag.ExitOnError)
	flags.SetInterspersed(false)
	flags.Usage = usage
	flags.StringVar(&configPath, "config", "mxws.yaml", "Config file (missing file means defaults)")
	flags.StringVar(&dataDir, "data", "", "Data directory (contains .mxws/)")
	flags.StringVar(&backend, "backend", "", "Storage backend: files, sqlite or memory")
	flags.StringVar(&tab, "tab", "", "Workspace tab")
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[flags.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "mxws: unknown command %q\n", flags.Arg(0))
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("mxws: %v", err)
	}
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("tab") {
		cfg.Tab = tab
	}
	if err := cfg.Finish(); err != nil {
		log.Fatalf("mxws: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		log.Fatalf("mxws: %v", err)
	}

	runErr := cmd.run(ctx, a, flags.Args()[1:])
	if err := a.store.Close(); err != nil {
		log.Printf("mxws: close store warning: %v", err)
	}
	if runErr != nil {
		log.Fatalf("mxws: %s: %v", flags.Arg(0), runErr)
	}
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := kv.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	b := bus.New()
	ov := overlay.New(store, cfg.Tab, b)
	engine, err := workspace.Open(ctx, workspace.Options{
		Tab:     cfg.Tab,
		Storage: store,
		Overlay: ov,
		Bus:     b,
		Logger:  slog.Default(),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	engine.Attach(b)
	return &app{cfg: cfg, store: store, bus: b, overlay: ov, engine: engine}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
