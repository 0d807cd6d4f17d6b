package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wikigen/internal/build"
	"git.home.luguber.info/inful/wikigen/internal/config"
	"git.home.luguber.info/inful/wikigen/internal/history"
	"git.home.luguber.info/inful/wikigen/internal/metrics"
	"git.home.luguber.info/inful/wikigen/internal/notify"
	"git.home.luguber.info/inful/wikigen/internal/version"
	"git.home.luguber.info/inful/wikigen/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"wikigen.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Full bool `short:"f" help:"Ignore the build cache and rebuild every page"`
	} `cmd:"" help:"Build the site once and exit"`

	Watch struct {
		Full bool `help:"Start with a full rebuild instead of an incremental one"`
	} `cmd:"" help:"Build the site, then watch content and rebuild on changes"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"10"`
	} `cmd:"" help:"Show recent builds from the history database"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Bootstrap logging; refined from config once it is loaded.
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	switch ctx.Command() {
	case "build":
		os.Exit(runBuild())
	case "watch":
		if err := runWatch(); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "history":
		if err := runHistory(); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("wikigen %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

// loadConfig loads the configured file, falling back to defaults when it does
// not exist so `wikigen build` works in a bare content/ directory.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(CLI.Config); os.IsNotExist(err) {
		slog.Debug("No configuration file found, using defaults", "path", CLI.Config)
		return config.Default(), nil
	}
	return config.Load(CLI.Config)
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func runBuild() int {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := build.New(cfg)
	report, err := builder.Build(ctx, build.BuildOptions{Full: CLI.Build.Full})
	if err != nil {
		slog.Error("Build failed", "error", err)
	}
	if report == nil {
		return 1
	}

	if cfg.History.Path != "" {
		recordHistory(cfg.History.Path, report)
	}

	slog.Info(report.Summary())
	return report.ExitCode()
}

// recordHistory appends the report to the history database; best effort.
func recordHistory(path string, report *build.BuildReport) {
	store, err := history.NewStore(path)
	if err != nil {
		slog.Warn("Failed to open build history", "error", err)
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.Record(context.Background(), report); err != nil {
		slog.Warn("Failed to record build history", "error", err)
	}
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	builder := build.New(cfg)
	opts := watch.Options{InitialFull: CLI.Watch.Full}

	if cfg.Watch.MetricsListen != "" {
		registry := prometheus.NewRegistry()
		recorder := metrics.NewPrometheusRecorder(registry)
		builder.SetRecorder(recorder)
		opts.Recorder = recorder
		opts.Registry = registry
	}

	if cfg.History.Path != "" {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open build history: %w", err)
		}
		defer func() { _ = store.Close() }()
		opts.History = store
	}

	if cfg.Watch.NATSURL != "" {
		notifier, err := notify.NewPublisher(cfg.Watch.NATSURL, cfg.Watch.NATSSubject)
		if err != nil {
			return err
		}
		defer notifier.Close()
		opts.Notifier = notifier
	}

	svc := watch.NewService(cfg, builder, opts)

	errChan := make(chan error, 1)
	go func() { errChan <- svc.Run(ctx) }()

	slog.Info("Watch mode started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("watch service error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping...")
		select {
		case <-errChan:
		case <-time.After(30 * time.Second):
			slog.Warn("Timed out waiting for watch service to stop")
		}
	}

	slog.Info("Watch mode stopped")
	return nil
}

func runHistory() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if cfg.History.Path == "" {
		return fmt.Errorf("history is not configured: set history.path in %s", CLI.Config)
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(context.Background(), CLI.History.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no builds recorded")
		return nil
	}

	for _, e := range entries {
		mode := "incremental"
		if e.Full {
			mode = "full"
		}
		fmt.Printf("%s  %-8s %-11s pages=%d rendered=%d reused=%d evicted=%d dangling=%d warnings=%d duration=%s\n",
			e.Finished.Format(time.RFC3339), e.Outcome, mode,
			e.Pages, e.Rendered, e.Reused, e.Evicted, e.DanglingLinks, e.Warnings, e.Duration)
	}
	return nil
}
