package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/logfields"
)

// renderResult is one page's outcome, merged by the collector goroutine so
// cache and report writes stay single-threaded.
type renderResult struct {
	page     *content.Page
	entry    *CacheEntry
	err      error
	duration time.Duration
}

// stageRenderPages renders every stale page through a bounded worker pool.
// Pages are independent once the link graph is resolved, so render order
// does not affect output bytes.
func stageRenderPages(ctx context.Context, bs *BuildState) error {
	b := bs.Builder
	workers := b.workerCount()
	bs.Report.RenderWorkers = workers
	b.recorder.SetRenderWorkers(workers)

	jobs := bs.Plan.Render
	if len(jobs) == 0 {
		slog.Info("No pages need rendering", logfields.Pages(len(bs.Pages)))
		return nil
	}

	jobCh := make(chan *content.Page)
	resCh := make(chan renderResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			renderWorker(ctx, bs, jobCh, resCh)
		}()
	}
	go func() {
		defer close(jobCh)
		for _, p := range jobs {
			select {
			case <-ctx.Done():
				return
			case jobCh <- p:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(resCh)
	}()

	var errs []error
	for res := range resCh {
		if res.err != nil {
			if !errors.Is(res.err, context.Canceled) {
				errs = append(errs, fmt.Errorf("render %s: %w", res.page.SourcePath, res.err))
			}
			if bs.Tracker.Status(res.page.SourcePath) == StatusRendering {
				bs.setStatus(res.page.SourcePath, StatusStale)
			}
			continue
		}
		bs.NewCache.Entries[res.page.SourcePath] = res.entry
		bs.setStatus(res.page.SourcePath, StatusBuilt)
		bs.Report.RenderedPages++
		b.recorder.ObservePageRenderDuration(res.duration)
	}
	b.recorder.AddPagesRendered(bs.Report.RenderedPages)

	if err := ctx.Err(); err != nil {
		return NewCanceledStageError(StageRenderPages, err)
	}
	if len(errs) > 0 {
		return NewFatalStageError(StageRenderPages, fmt.Errorf("%w: %w", ErrRender, errors.Join(errs...)))
	}
	slog.Info("Rendered pages", logfields.Rendered(bs.Report.RenderedPages), logfields.Workers(workers))
	return nil
}

func renderWorker(ctx context.Context, bs *BuildState, jobs <-chan *content.Page, results chan<- renderResult) {
	for page := range jobs {
		if err := ctx.Err(); err != nil {
			results <- renderResult{page: page, err: err}
			continue
		}
		bs.setStatus(page.SourcePath, StatusRendering)
		t0 := time.Now()
		entry, err := renderOne(bs, page)
		results <- renderResult{page: page, entry: entry, err: err, duration: time.Since(t0)}
	}
}

// renderOne renders a single page into the staging tree and produces its
// cache entry.
func renderOne(bs *BuildState, page *content.Page) (*CacheEntry, error) {
	html, err := bs.Builder.renderer.RenderPage(page, bs.Graph)
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(bs.StageDir, filepath.FromSlash(page.OutputPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", page.OutputPath, err)
	}
	if err := os.WriteFile(dst, html, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", page.OutputPath, err)
	}
	return &CacheEntry{
		Fingerprint: page.Fingerprint,
		OutputPath:  page.OutputPath,
		Date:        page.Date,
		Deps:        sortedDeps(bs.Graph, page.SourcePath),
		RenderedAt:  time.Now().UTC(),
	}, nil
}

// workerCount resolves the configured pool size; zero means one worker per
// CPU.
func (b *Builder) workerCount() int {
	if n := b.cfg.Build.Workers; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
