package watch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wikigen/internal/build"
	"git.home.luguber.info/inful/wikigen/internal/config"
	"git.home.luguber.info/inful/wikigen/internal/events"
	"git.home.luguber.info/inful/wikigen/internal/history"
	"git.home.luguber.info/inful/wikigen/internal/metrics"
	"git.home.luguber.info/inful/wikigen/internal/notify"
)

// Options carries the optional wiring for a watch service. Any field may be
// zero; the corresponding feature is then disabled.
type Options struct {
	Recorder metrics.Recorder
	Registry *prometheus.Registry
	History  *history.Store
	Notifier *notify.Publisher

	// InitialFull makes the first build ignore the cache.
	InitialFull bool
}

// Service runs the continuous rebuild loop: watch, debounce, build, record.
// Builds run serially; change events arriving during a build coalesce into
// the next one.
type Service struct {
	cfg     *config.Config
	builder *build.Builder
	bus     *events.Bus
	opts    Options
}

func NewService(cfg *config.Config, builder *build.Builder, opts Options) *Service {
	return &Service{
		cfg:     cfg,
		builder: builder,
		bus:     events.NewBus(),
		opts:    opts,
	}
}

// Bus exposes the service event bus so callers can observe build lifecycle
// events.
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Run blocks until ctx is canceled. The first build starts immediately;
// afterwards builds are triggered by content changes and the optional full
// rebuild schedule.
func (s *Service) Run(ctx context.Context) error {
	defer s.bus.Close()

	if s.cfg.Watch.MetricsListen != "" && s.opts.Registry != nil {
		stop := s.startMetricsServer(s.cfg.Watch.MetricsListen)
		defer stop()
	}

	deb, err := NewDebouncer(s.bus, DebouncerConfig{
		QuietWindow: s.cfg.DebounceDuration(),
		MaxDelay:    s.cfg.MaxDelayDuration(),
	})
	if err != nil {
		return err
	}

	// Subscribe before the debouncer starts so no trigger can be lost.
	buildCh, unsubscribe := events.Subscribe[events.BuildNow](s.bus, 1)
	defer unsubscribe()

	go func() {
		if err := deb.Run(ctx); err != nil {
			slog.Error("Debouncer stopped", "error", err)
		}
	}()
	<-deb.Ready()

	watcher, err := NewWatcher(s.cfg.Content.SourceDir, s.bus)
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Close()

	if interval := s.cfg.FullRebuildIntervalDuration(); interval > 0 {
		sched, err := NewScheduler(s.bus)
		if err != nil {
			return err
		}
		if err := sched.ScheduleFullRebuild(ctx, interval); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Scheduler shutdown failed", "error", err)
			}
		}()
	}

	s.runBuild(ctx, build.BuildOptions{Full: s.opts.InitialFull})

	slog.Info("Watch mode running", "source", s.cfg.Content.SourceDir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-buildCh:
			if !ok {
				return nil
			}
			slog.Info("Triggering build",
				"cause", evt.Cause,
				"requests", evt.RequestCount,
				"last_reason", evt.LastReason,
				"full", evt.Full)
			s.runBuild(ctx, build.BuildOptions{Full: evt.Full})
		}
	}
}

func (s *Service) runBuild(ctx context.Context, opts build.BuildOptions) {
	report, err := s.builder.Build(ctx, opts)
	if err != nil {
		slog.Error("Build failed", "error", err)
	}
	if report == nil {
		return
	}
	s.afterBuild(ctx, report)
}

// afterBuild fans the finished report out to the history store, the NATS
// notifier, and finally bus subscribers. Failures here are logged, never
// fatal. The bus event goes last so its observers see a fully recorded
// build.
func (s *Service) afterBuild(ctx context.Context, report *build.BuildReport) {
	if s.opts.History != nil {
		if err := s.opts.History.Record(ctx, report); err != nil {
			slog.Warn("Failed to record build history", "error", err)
		}
	}

	if s.opts.Notifier != nil {
		if err := s.opts.Notifier.PublishBuildCompleted(report); err != nil {
			slog.Warn("Failed to publish build notification", "error", err)
		}
	}

	_ = s.bus.Publish(ctx, events.BuildCompleted{
		BuildID:    report.BuildID,
		Outcome:    report.Outcome,
		Full:       report.Full,
		Pages:      report.Pages,
		Rendered:   report.RenderedPages,
		Reused:     report.ReusedPages,
		Evicted:    report.EvictedPages,
		Dangling:   report.DanglingLinks,
		Ambiguous:  report.AmbiguousLinks,
		Warnings:   len(report.Warnings),
		Errors:     len(report.Errors),
		Duration:   report.End.Sub(report.Start),
		FinishedAt: report.End,
	})
}

func (s *Service) startMetricsServer(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("Metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics listener failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics listener shutdown failed", "error", err)
		}
	}
}
