// Package build orchestrates the site build: loading content, resolving the
// wiki link graph, planning the incremental rebuild, rendering through a
// worker pool into an isolated staging directory, and atomically publishing
// the result. A build never mutates the live output tree in place.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/wikigen/internal/config"
	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/gitinfo"
	"git.home.luguber.info/inful/wikigen/internal/logfields"
	"git.home.luguber.info/inful/wikigen/internal/metrics"
	"git.home.luguber.info/inful/wikigen/internal/render"
	"git.home.luguber.info/inful/wikigen/internal/rewrite"
	"git.home.luguber.info/inful/wikigen/internal/wiki"
)

// Builder runs site builds for one configuration.
type Builder struct {
	cfg      *config.Config
	registry *render.Registry
	renderer *render.Renderer
	recorder metrics.Recorder
}

// New creates a Builder. Highlighters beyond the defaults can be added via
// Registry before the first build.
func New(cfg *config.Config) *Builder {
	registry := render.NewRegistry()
	return &Builder{
		cfg:      cfg,
		registry: registry,
		renderer: render.New(render.Options{SiteTitle: cfg.Site.Title, Registry: registry}),
		recorder: metrics.NoopRecorder{},
	}
}

// SetRecorder injects a metrics recorder (optional). Returns the builder for
// chaining.
func (b *Builder) SetRecorder(r metrics.Recorder) *Builder {
	if r == nil {
		b.recorder = metrics.NoopRecorder{}
		return b
	}
	b.recorder = r
	return b
}

// Registry exposes the highlighter registry for custom language handlers.
func (b *Builder) Registry() *render.Registry { return b.registry }

func (b *Builder) cachePath() string { return b.cfg.Build.CacheFile }

// BuildOptions selects per-build behavior.
type BuildOptions struct {
	// Full ignores the previous cache and re-renders everything.
	Full bool
}

// BuildState carries mutable state across stages.
type BuildState struct {
	Builder   *Builder
	Full      bool
	Pages     []*content.Page
	Graph     *wiki.Graph
	PrevCache *Cache
	NewCache  *Cache
	Plan      *RebuildPlan
	Tracker   *StatusTracker
	StageDir  string
	Report    *BuildReport
}

func newBuildState(b *Builder, report *BuildReport, full bool) *BuildState {
	return &BuildState{
		Builder: b,
		Full:    full,
		Tracker: NewStatusTracker(),
		Report:  report,
	}
}

// setStatus applies a page state transition, logging rather than failing on
// an illegal move since that indicates a planner bug, not a build problem.
func (bs *BuildState) setStatus(path string, next PageStatus) {
	if err := bs.Tracker.Transition(path, next); err != nil {
		slog.Warn("Invalid page state transition", logfields.Page(path), logfields.Error(err))
	}
}

// Build runs the full stage pipeline and returns the report. The returned
// error is the first fatal stage error, if any; the report is always
// populated with the derived outcome.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*BuildReport, error) {
	slog.Info("Starting site build",
		logfields.Source(b.cfg.Content.SourceDir),
		logfields.Output(b.cfg.Content.OutputDir),
		slog.Bool("full", opts.Full))

	report := newBuildReport()
	report.Full = opts.Full
	bs := newBuildState(b, report, opts.Full)

	stages := NewPipeline().
		Add(StageLoadContent, stageLoadContent).
		AddIf(!b.cfg.Build.DisableGitDates, StageGitDates, stageGitDates).
		Add(StageResolveLinks, stageResolveLinks).
		Add(StagePlanRebuild, stagePlanRebuild).
		Add(StagePrepareStaging, stagePrepareStaging).
		Add(StageRenderPages, stageRenderPages).
		Add(StageWriteIndexes, stageWriteIndexes).
		Add(StageRewriteLinks, stageRewriteLinks).
		Build()

	if err := runStages(ctx, bs, stages); err != nil {
		b.abortStaging(bs.StageDir)
		report.deriveOutcome()
		report.finish()
		b.observeBuild(report)
		return report, err
	}

	report.deriveOutcome()
	report.finish()

	if err := b.finalizeStaging(bs.StageDir); err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%w: %v", ErrPublish, err))
		report.deriveOutcome()
		b.observeBuild(report)
		return report, fmt.Errorf("finalize staging: %w", err)
	}

	// The cache is written only after the new tree is live, so a crash
	// between render and publish can never leave the cache ahead of the
	// published output.
	if err := bs.NewCache.Persist(b.cachePath()); err != nil {
		slog.Warn("Failed to persist build cache", logfields.Path(b.cachePath()), logfields.Error(err))
	}
	if err := report.Persist(b.cfg.Content.OutputDir); err != nil {
		slog.Warn("Failed to persist build report", logfields.Error(err))
	}
	b.observeBuild(report)

	slog.Info("Site build completed",
		logfields.BuildID(report.BuildID),
		logfields.Pages(report.Pages),
		logfields.Rendered(report.RenderedPages),
		logfields.Copied(report.ReusedPages),
		logfields.Evicted(report.EvictedPages),
		logfields.Warnings(len(report.Warnings)),
		logfields.Outcome(report.Outcome))
	return report, nil
}

func (b *Builder) observeBuild(report *BuildReport) {
	b.recorder.ObserveBuildDuration(report.End.Sub(report.Start))
	b.recorder.IncBuildOutcome(report.Outcome)
}

// stageLoadContent discovers and parses the content tree.
func stageLoadContent(ctx context.Context, bs *BuildState) error {
	loader := content.NewLoader(bs.Builder.cfg.Content.SourceDir)
	pages, issues, err := loader.Load()
	if err != nil {
		return NewFatalStageError(StageLoadContent, fmt.Errorf("%w: %v", ErrLoad, err))
	}
	bs.Pages = pages
	bs.Report.Pages = len(pages)
	bs.Report.MalformedPages = len(issues)
	for _, p := range pages {
		bs.Tracker.Register(p.SourcePath)
	}
	if len(issues) > 0 {
		return NewWarnStageError(StageLoadContent, fmt.Errorf("%w: %w", ErrLoad, errors.Join(issues...)))
	}
	if len(pages) == 0 {
		return NewWarnStageError(StageLoadContent, fmt.Errorf("%w: no pages found under %s", ErrLoad, bs.Builder.cfg.Content.SourceDir))
	}
	return nil
}

// stageGitDates backfills missing page dates from the git history of the
// content tree. Absence of a repository is normal and silently skipped.
func stageGitDates(ctx context.Context, bs *BuildState) error {
	var missing []string
	for _, p := range bs.Pages {
		if p.Date.IsZero() {
			missing = append(missing, p.SourcePath)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	dates, err := gitinfo.LastModified(bs.Builder.cfg.Content.SourceDir, missing)
	if err != nil {
		if errors.Is(err, gitinfo.ErrNoRepository) {
			slog.Debug("Content tree is not in a git repository, skipping date backfill")
			return nil
		}
		return NewWarnStageError(StageGitDates, fmt.Errorf("git date backfill: %w", err))
	}
	filled := 0
	for _, p := range bs.Pages {
		if d, ok := dates[p.SourcePath]; ok && p.Date.IsZero() {
			p.Date = d
			filled++
		}
	}
	slog.Debug("Backfilled page dates from git history", logfields.Pages(filled))
	return nil
}

// stageResolveLinks builds the link graph and surfaces dangling and
// ambiguous references as warnings.
func stageResolveLinks(ctx context.Context, bs *BuildState) error {
	bs.Graph = wiki.Resolve(bs.Pages)
	bs.Report.DanglingLinks = len(bs.Graph.Dangling)
	bs.Report.AmbiguousLinks = len(bs.Graph.Ambiguous)
	total := bs.Report.DanglingLinks + bs.Report.AmbiguousLinks
	bs.Builder.recorder.SetLinkWarnings(total)
	if total == 0 {
		return nil
	}
	warns := make([]error, 0, total)
	for _, d := range bs.Graph.Dangling {
		warns = append(warns, fmt.Errorf("dangling link: %s", d))
	}
	for _, a := range bs.Graph.Ambiguous {
		warns = append(warns, a)
	}
	return NewWarnStageError(StageResolveLinks, fmt.Errorf("%w: %w", ErrResolve, errors.Join(warns...)))
}

// stagePlanRebuild loads the previous cache and decides which pages render.
func stagePlanRebuild(ctx context.Context, bs *BuildState) error {
	b := bs.Builder
	hash, err := ConfigHash(b.cfg)
	if err != nil {
		return NewFatalStageError(StagePlanRebuild, err)
	}
	prev, err := LoadCache(b.cachePath())
	if err != nil {
		slog.Warn("Ignoring unreadable build cache", logfields.Path(b.cachePath()), logfields.Error(err))
		prev = NewCache("")
	}
	bs.PrevCache = prev
	bs.NewCache = NewCache(hash)

	outputExists := func(outputPath string) bool {
		_, err := os.Stat(filepath.Join(b.cfg.Content.OutputDir, filepath.FromSlash(outputPath)))
		return err == nil
	}
	bs.Plan = PlanRebuild(bs.Pages, bs.Graph, prev, PlanOptions{
		Full:         bs.Full,
		ConfigHash:   hash,
		OutputExists: outputExists,
	})

	for _, p := range bs.Plan.Render {
		bs.setStatus(p.SourcePath, StatusStale)
	}
	for _, path := range bs.Plan.Evicted {
		bs.Tracker.RegisterBuilt(path)
		bs.setStatus(path, StatusEvicted)
	}
	bs.Report.EvictedPages = len(bs.Plan.Evicted)

	slog.Info("Planned rebuild",
		slog.Int("stale", len(bs.Plan.Render)),
		slog.Int("reusable", len(bs.Plan.Reuse)),
		logfields.Evicted(len(bs.Plan.Evicted)))
	return nil
}

// stagePrepareStaging creates the staging directory and copies reusable
// outputs forward from the previous build.
func stagePrepareStaging(ctx context.Context, bs *BuildState) error {
	b := bs.Builder
	stage, err := b.beginStaging()
	if err != nil {
		return NewFatalStageError(StagePrepareStaging, fmt.Errorf("%w: %v", ErrPublish, err))
	}
	bs.StageDir = stage

	for _, page := range bs.Plan.Reuse {
		select {
		case <-ctx.Done():
			return NewCanceledStageError(StagePrepareStaging, ctx.Err())
		default:
		}
		entry := bs.PrevCache.Entries[page.SourcePath]
		src := filepath.Join(b.cfg.Content.OutputDir, filepath.FromSlash(entry.OutputPath))
		dst := filepath.Join(stage, filepath.FromSlash(entry.OutputPath))
		if err := copyFile(src, dst); err != nil {
			return NewFatalStageError(StagePrepareStaging, fmt.Errorf("%w: reuse %s: %v", ErrPublish, page.SourcePath, err))
		}
		bs.NewCache.Entries[page.SourcePath] = entry
		bs.setStatus(page.SourcePath, StatusBuilt)
		bs.Report.ReusedPages++
	}
	if bs.Report.ReusedPages > 0 {
		slog.Debug("Copied unchanged outputs into staging", logfields.Copied(bs.Report.ReusedPages))
	}
	return nil
}

// stageRewriteLinks makes every emitted URL relative to its referencing
// file, so the published tree works under any base path.
func stageRewriteLinks(ctx context.Context, bs *BuildState) error {
	n, err := rewrite.Tree(bs.StageDir)
	if err != nil {
		return NewFatalStageError(StageRewriteLinks, fmt.Errorf("%w: %v", ErrPublish, err))
	}
	slog.Debug("Relativized links in emitted tree", logfields.Pages(n))
	return nil
}
