package history

import (
	"path/filepath"
	"testing"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/build"
)

func sampleReport(buildID string, pages, rendered int, outcome string) *build.BuildReport {
	end := time.Now().Truncate(time.Second)
	return &build.BuildReport{
		BuildID:       buildID,
		Pages:         pages,
		RenderedPages: rendered,
		ReusedPages:   pages - rendered,
		Start:         end.Add(-2 * time.Second),
		End:           end,
		Outcome:       outcome,
	}
}

func TestHistoryRecordAndRecent(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()

	report := sampleReport("build-1", 12, 3, "success")
	report.Full = true
	report.DanglingLinks = 2
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("failed to record build: %v", err)
	}

	entries, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("failed to query recent builds: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.BuildID != "build-1" {
		t.Errorf("expected build_id build-1, got %s", e.BuildID)
	}
	if !e.Full {
		t.Error("expected full flag to roundtrip")
	}
	if e.Pages != 12 || e.Rendered != 3 || e.Reused != 9 {
		t.Errorf("unexpected page counts: pages=%d rendered=%d reused=%d", e.Pages, e.Rendered, e.Reused)
	}
	if e.DanglingLinks != 2 {
		t.Errorf("expected 2 dangling links, got %d", e.DanglingLinks)
	}
	if e.Outcome != "success" {
		t.Errorf("expected outcome success, got %s", e.Outcome)
	}
	if e.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %s", e.Duration)
	}
	if !e.Finished.Equal(report.End) {
		t.Errorf("expected finished %s, got %s", report.End, e.Finished)
	}
}

func TestHistoryRecentNewestFirstWithLimit(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for _, id := range []string{"build-a", "build-b", "build-c"} {
		if err := store.Record(ctx, sampleReport(id, 1, 1, "success")); err != nil {
			t.Fatalf("failed to record %s: %v", id, err)
		}
	}

	entries, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("failed to query recent builds: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].BuildID != "build-c" || entries[1].BuildID != "build-b" {
		t.Errorf("expected newest first [build-c build-b], got [%s %s]", entries[0].BuildID, entries[1].BuildID)
	}
}

func TestHistoryEmptyStore(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(t.Context(), 10)
	if err != nil {
		t.Fatalf("failed to query empty store: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestHistoryNilReportRejected(t *testing.T) {
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Record(t.Context(), nil); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Record(t.Context(), sampleReport("build-1", 4, 4, "warning")); err != nil {
		t.Fatalf("failed to record build: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	entries, err := reopened.Recent(t.Context(), 5)
	if err != nil {
		t.Fatalf("failed to query reopened store: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", len(entries))
	}
	if entries[0].Outcome != "warning" {
		t.Errorf("expected outcome warning, got %s", entries[0].Outcome)
	}
}
