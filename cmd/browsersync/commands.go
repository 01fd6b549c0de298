package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/browsersync/pkg/broadcast"
	"github.com/0xmhha/browsersync/pkg/config"
	"github.com/0xmhha/browsersync/pkg/display"
	"github.com/0xmhha/browsersync/pkg/logger"
	"github.com/0xmhha/browsersync/pkg/reload"
	"github.com/0xmhha/browsersync/pkg/runlog"
	"github.com/0xmhha/browsersync/pkg/server"
	"github.com/0xmhha/browsersync/pkg/watcher"
)

// errNoHistory is returned by runs when persistence is disabled.
var errNoHistory = errors.New("run history is disabled (storage.db_path is empty)")

// watchFlags are the watcher overrides shared by serve and watch.
type watchFlags struct {
	dirs   []string
	follow bool
	detach bool
}

// apply overrides cfg with flags that were set.
func (f watchFlags) apply(cfg *config.Config) {
	if len(f.dirs) > 0 {
		cfg.Watch.Directories = f.dirs
	}
	if f.follow {
		cfg.Watch.FollowNewDirs = true
	}
	if f.detach {
		cfg.Watch.DetachInvalidated = true
	}
}

// serveCommand streams changes to browsers.
type serveCommand struct {
	configPath string
	addr       string
	topic      string
	quiet      bool
	watch      watchFlags

	stdout io.Writer
	stderr io.Writer
}

func parseServeCommand(configPath string, args []string, stderr io.Writer) (*serveCommand, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address")
	topic := fs.String("topic", "", "publish topic and WebSocket path")
	dirs := fs.String("dirs", "", "comma-separated directories to watch")
	follow := fs.Bool("follow", false, "watch directories created after startup")
	detach := fs.Bool("detach", false, "keep running when a watched directory disappears")
	quiet := fs.Bool("quiet", false, "do not print events")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	return &serveCommand{
		configPath: configPath,
		addr:       *addr,
		topic:      *topic,
		quiet:      *quiet,
		watch: watchFlags{
			dirs:   watcher.ParseRoots(*dirs),
			follow: *follow,
			detach: *detach,
		},
	}, nil
}

// Execute runs the HTTP server and the watcher until ctx is cancelled.
func (c *serveCommand) Execute(ctx context.Context) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.watch.apply(cfg)
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}
	if c.topic != "" {
		cfg.Watch.Topic = c.topic
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	hub := broadcast.New(broadcast.Options{BufferSize: cfg.Server.BufferSize}, log)
	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		Topic:          cfg.Watch.Topic,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PingInterval:   cfg.Server.PingInterval,
	}, hub, log)

	sink := reload.MultiSink{hub}
	if !c.quiet {
		sink = append(sink, consoleSink(cfg, c.stdout, log))
	}
	svc := reload.New(cfg, sink, store, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		out, runErr := svc.Run(gctx)
		if runErr != nil {
			return runErr
		}
		return reportOutcome(c.stderr, out)
	})

	return g.Wait()
}

// watchCommand prints changes to the console.
type watchCommand struct {
	configPath string
	format     string
	timestamps bool
	watch      watchFlags

	stdout io.Writer
	stderr io.Writer
}

func parseWatchCommand(configPath string, args []string, stderr io.Writer) (*watchCommand, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "", "output format (auto, table, json, simple)")
	timestamps := fs.Bool("timestamps", false, "prefix events with the time they were seen")
	follow := fs.Bool("follow", false, "watch directories created after startup")
	detach := fs.Bool("detach", false, "keep running when a watched directory disappears")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	if *format != "" {
		if _, err := display.ParseFormat(*format); err != nil {
			return nil, err
		}
	}

	return &watchCommand{
		configPath: configPath,
		format:     *format,
		timestamps: *timestamps,
		watch: watchFlags{
			dirs:   watcher.ParseRoots(strings.Join(fs.Args(), ",")),
			follow: *follow,
			detach: *detach,
		},
	}, nil
}

// Execute watches until ctx is cancelled or the watcher stops.
func (c *watchCommand) Execute(ctx context.Context) error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	c.watch.apply(cfg)
	if c.format != "" {
		cfg.Display.Format = c.format
	}
	if c.timestamps {
		cfg.Display.ShowTimestamps = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg)

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	svc := reload.New(cfg, consoleSink(cfg, c.stdout, log), store, log)

	out, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	return reportOutcome(c.stderr, out)
}

// runsCommand shows the run history.
type runsCommand struct {
	configPath string
	limit      int
	format     string
	prune      int

	stdout io.Writer
}

func parseRunsCommand(configPath string, args []string, stderr io.Writer) (*runsCommand, error) {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "number of runs to show (0 for all)")
	format := fs.String("format", "table", "output format (table, json, simple)")
	prune := fs.Int("prune", -1, "keep only the newest N runs")

	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}

	if _, err := display.ParseFormat(*format); err != nil {
		return nil, err
	}

	return &runsCommand{
		configPath: configPath,
		limit:      *limit,
		format:     *format,
		prune:      *prune,
	}, nil
}

// Execute prints stored runs.
func (c *runsCommand) Execute() error {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.DBPath == "" {
		return errNoHistory
	}

	log := newLogger(cfg)

	store, err := runlog.Open(runlog.Config{DBPath: cfg.Storage.DBPath}, log)
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	if c.prune >= 0 {
		deleted, pruneErr := store.Prune(c.prune)
		if pruneErr != nil {
			return fmt.Errorf("failed to prune runs: %w", pruneErr)
		}
		fmt.Fprintf(c.stdout, "Pruned %d runs.\n", deleted)
	}

	runs, err := store.List(c.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	formatter := display.New(display.Config{
		Format: display.Auto(display.Format(c.format), fileOf(c.stdout)),
	})
	return formatter.FormatRuns(c.stdout, runs)
}

// parseFlags parses args, mapping parse failures to errUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return flag.ErrHelp
		}
		return errUsage
	}
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	})
}

// openStore opens the run log, in memory when persistence is disabled.
func openStore(cfg *config.Config, log logger.Logger) (runlog.Store, error) {
	if cfg.Storage.DBPath == "" {
		return runlog.NewMemoryStore(), nil
	}

	store, err := runlog.Open(runlog.Config{DBPath: cfg.Storage.DBPath}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}

func closeStore(store runlog.Store, log logger.Logger) {
	if err := store.Close(); err != nil {
		log.Error("failed to close run history", "error", err)
	}
}

func consoleSink(cfg *config.Config, w io.Writer, log logger.Logger) *reload.ConsoleSink {
	formatter := display.New(display.Config{
		Format:         display.Auto(display.Format(cfg.Display.Format), fileOf(w)),
		ShowTimestamps: cfg.Display.ShowTimestamps,
		Compact:        true,
	})
	return reload.NewConsoleSink(w, formatter, log)
}

// reportOutcome prints the run summary. An init failure is returned as an
// error so the process exits non-zero.
func reportOutcome(w io.Writer, out watcher.Outcome) error {
	formatter := display.New(display.Config{Format: display.FormatSimple})
	if err := formatter.FormatOutcome(w, out); err != nil {
		return err
	}
	if out.Reason == watcher.ReasonInitFailure {
		return fmt.Errorf("watcher failed to start: %w", out.Err)
	}
	return nil
}

// fileOf returns w as a file when it is one, for terminal detection.
func fileOf(w io.Writer) *os.File {
	f, _ := w.(*os.File)
	return f
}
