package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/wikigen/internal/config"
	"git.home.luguber.info/inful/wikigen/internal/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Site.Title = "Test Wiki"
	cfg.Content.SourceDir = filepath.Join(root, "content")
	cfg.Content.OutputDir = filepath.Join(root, "public")
	cfg.Build.CacheFile = filepath.Join(root, "cache.json")
	cfg.Build.DisableGitDates = true
	if err := os.MkdirAll(cfg.Content.SourceDir, 0o750); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeSource(t *testing.T, cfg *config.Config, rel, data string) {
	t.Helper()
	p := filepath.Join(cfg.Content.SourceDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Content.OutputDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read output %s: %v", rel, err)
	}
	return string(data)
}

func outputExists(cfg *config.Config, rel string) bool {
	_, err := os.Stat(filepath.Join(cfg.Content.OutputDir, filepath.FromSlash(rel)))
	return err == nil
}

func seedSite(t *testing.T, cfg *config.Config) {
	t.Helper()
	writeSource(t, cfg, "alpha.md", "---\ntitle: Alpha\ntags: [guide]\n---\n# Alpha\n\nStarting point.\n")
	writeSource(t, cfg, "beta.md", "---\ntitle: Beta\n---\nSee [[Alpha]] for the basics.\n")
	writeSource(t, cfg, "notes/gamma.md", "---\ntitle: Gamma\n---\nBuilds on [[Beta]].\n")
	writeSource(t, cfg, "delta.md", "---\ntitle: Delta\n---\nStands alone.\n")
}

func TestBuildProducesPublishedSite(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)

	report, err := New(cfg).Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.OutcomeT != OutcomeSuccess {
		t.Fatalf("outcome %s, want success (errors=%v warnings=%v)", report.OutcomeT, report.Errors, report.Warnings)
	}
	if report.ExitCode() != 0 {
		t.Errorf("exit code %d, want 0", report.ExitCode())
	}
	if report.Pages != 4 || report.RenderedPages != 4 || report.ReusedPages != 0 {
		t.Errorf("counts pages=%d rendered=%d reused=%d", report.Pages, report.RenderedPages, report.ReusedPages)
	}
	if report.RenderWorkers < 1 {
		t.Errorf("render workers %d, want >= 1", report.RenderWorkers)
	}

	for _, rel := range []string{
		"alpha.html", "beta.html", "notes/gamma.html", "delta.html",
		"index.html", "tags/index.html", "assets/site.css",
		"build-report.json", "build-report.txt",
	} {
		if !outputExists(cfg, rel) {
			t.Errorf("missing output file %s", rel)
		}
	}
	if _, err := os.Stat(cfg.Content.OutputDir + "_stage"); err == nil {
		t.Error("staging directory should be gone after publish")
	}
	if _, err := os.Stat(cfg.Build.CacheFile); err != nil {
		t.Errorf("cache file not persisted: %v", err)
	}

	beta := readOutput(t, cfg, "beta.html")
	if !strings.Contains(beta, `<a href="alpha.html" class="wiki-link">Alpha</a>`) {
		t.Errorf("beta.html missing relative wiki link:\n%s", beta)
	}
	gamma := readOutput(t, cfg, "notes/gamma.html")
	if !strings.Contains(gamma, `<a href="../beta.html" class="wiki-link">Beta</a>`) {
		t.Errorf("gamma.html should climb out of notes/:\n%s", gamma)
	}
	if !strings.Contains(gamma, `href="../assets/site.css"`) {
		t.Errorf("gamma.html stylesheet link not relativized:\n%s", gamma)
	}
	if strings.Contains(beta, `href="/`) {
		t.Errorf("beta.html still carries root-relative links:\n%s", beta)
	}

	index := readOutput(t, cfg, "index.html")
	for _, title := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		if !strings.Contains(index, title) {
			t.Errorf("index.html missing page %s", title)
		}
	}
	tags := readOutput(t, cfg, "tags/index.html")
	if !strings.Contains(tags, `id="guide"`) || !strings.Contains(tags, "Alpha") {
		t.Errorf("tags/index.html missing guide group:\n%s", tags)
	}
}

func TestBuildSecondRunReusesEverything(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)
	b := New(cfg)

	if _, err := b.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	report, err := b.Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if report.RenderedPages != 0 || report.ReusedPages != 4 {
		t.Fatalf("second build rendered=%d reused=%d, want 0/4", report.RenderedPages, report.ReusedPages)
	}
	if report.OutcomeT != OutcomeSuccess {
		t.Errorf("outcome %s, want success", report.OutcomeT)
	}
	if !outputExists(cfg, "beta.html") || !outputExists(cfg, "index.html") {
		t.Error("published tree incomplete after reuse build")
	}
}

func TestBuildEditRerendersBacklinkChain(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)
	b := New(cfg)

	if _, err := b.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}

	// gamma links beta links alpha, so an alpha edit ripples through both
	// while delta stays untouched.
	writeSource(t, cfg, "alpha.md", "---\ntitle: Alpha\ntags: [guide]\n---\n# Alpha\n\nRevised starting point.\n")
	report, err := b.Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if report.RenderedPages != 3 || report.ReusedPages != 1 {
		t.Fatalf("rebuild rendered=%d reused=%d, want 3/1", report.RenderedPages, report.ReusedPages)
	}
	if !strings.Contains(readOutput(t, cfg, "alpha.html"), "Revised starting point") {
		t.Error("alpha.html not re-rendered with new content")
	}
}

func TestBuildFullIgnoresCache(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)
	b := New(cfg)

	if _, err := b.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	report, err := b.Build(context.Background(), BuildOptions{Full: true})
	if err != nil {
		t.Fatalf("full rebuild: %v", err)
	}
	if report.RenderedPages != 4 || report.ReusedPages != 0 {
		t.Fatalf("full rebuild rendered=%d reused=%d, want 4/0", report.RenderedPages, report.ReusedPages)
	}
	if !report.Full {
		t.Error("report should record full rebuild")
	}
}

func TestBuildOutputIsDeterministic(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)
	b := New(cfg)

	if _, err := b.Build(context.Background(), BuildOptions{Full: true}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	first := map[string][]byte{}
	for _, rel := range []string{"alpha.html", "beta.html", "notes/gamma.html", "index.html"} {
		first[rel] = []byte(readOutput(t, cfg, rel))
	}

	if _, err := b.Build(context.Background(), BuildOptions{Full: true}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	for rel, want := range first {
		if got := []byte(readOutput(t, cfg, rel)); !bytes.Equal(got, want) {
			t.Errorf("%s differs between identical full builds", rel)
		}
	}
}

func TestBuildDanglingLinkSucceedsWithWarnings(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "home.md", "---\ntitle: Home\n---\nSee [[Ghost Page]].\n")

	report, err := New(cfg).Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("warnings must not fail the build: %v", err)
	}
	if report.OutcomeT != OutcomeWarning {
		t.Fatalf("outcome %s, want warning", report.OutcomeT)
	}
	if report.ExitCode() != 2 {
		t.Errorf("exit code %d, want 2", report.ExitCode())
	}
	if report.DanglingLinks != 1 {
		t.Errorf("dangling links %d, want 1", report.DanglingLinks)
	}
	home := readOutput(t, cfg, "home.html")
	if !strings.Contains(home, `<span class="wiki-link-broken">Ghost Page</span>`) {
		t.Errorf("broken link span missing:\n%s", home)
	}
}

func TestBuildMalformedPageIsReportedAndExcluded(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "good.md", "---\ntitle: Good\n---\nFine.\n")
	writeSource(t, cfg, "bad.md", "---\ntitle: Broken\nNo closing delimiter.\n")

	report, err := New(cfg).Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("malformed page must not fail the build: %v", err)
	}
	if report.OutcomeT != OutcomeWarning {
		t.Fatalf("outcome %s, want warning", report.OutcomeT)
	}
	if report.MalformedPages != 1 || report.Pages != 1 {
		t.Errorf("malformed=%d pages=%d, want 1/1", report.MalformedPages, report.Pages)
	}
	if !outputExists(cfg, "good.html") {
		t.Error("good.html should be published")
	}
	if outputExists(cfg, "bad.html") {
		t.Error("bad.html must be excluded from the output set")
	}
}

func TestBuildRemovedPageIsEvicted(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "keep.md", "---\ntitle: Keep\n---\nStays.\n")
	writeSource(t, cfg, "drop.md", "---\ntitle: Drop\n---\nGoes away.\n")
	b := New(cfg)

	if _, err := b.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if err := os.Remove(filepath.Join(cfg.Content.SourceDir, "drop.md")); err != nil {
		t.Fatal(err)
	}

	report, err := b.Build(context.Background(), BuildOptions{})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if report.EvictedPages != 1 {
		t.Errorf("evicted %d, want 1", report.EvictedPages)
	}
	if report.RenderedPages != 0 || report.ReusedPages != 1 {
		t.Errorf("rendered=%d reused=%d, want 0/1", report.RenderedPages, report.ReusedPages)
	}
	if !outputExists(cfg, "keep.html") {
		t.Error("keep.html should survive")
	}
	if outputExists(cfg, "drop.html") {
		t.Error("drop.html should be gone from the published tree")
	}
}

func TestBuildCanceledContext(t *testing.T) {
	cfg := testConfig(t)
	writeSource(t, cfg, "a.md", "---\ntitle: A\n---\nBody.\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := New(cfg).Build(ctx, BuildOptions{})
	if err == nil {
		t.Fatal("expected error from canceled build")
	}
	if report.OutcomeT != OutcomeCanceled {
		t.Errorf("outcome %s, want canceled", report.OutcomeT)
	}
	if report.ExitCode() != 1 {
		t.Errorf("exit code %d, want 1", report.ExitCode())
	}
}

func TestBuildRecordsPrometheusMetrics(t *testing.T) {
	cfg := testConfig(t)
	seedSite(t, cfg)

	reg := prometheus.NewRegistry()
	b := New(cfg).SetRecorder(metrics.NewPrometheusRecorder(reg))
	if _, err := b.Build(context.Background(), BuildOptions{}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	got := make(map[string]bool, len(families))
	for _, f := range families {
		got[f.GetName()] = true
	}
	for _, want := range []string{
		"wikigen_build_duration_seconds",
		"wikigen_stage_duration_seconds",
		"wikigen_pages_rendered_total",
		"wikigen_build_outcomes_total",
	} {
		if !got[want] {
			t.Errorf("metric family %s not recorded", want)
		}
	}
}
