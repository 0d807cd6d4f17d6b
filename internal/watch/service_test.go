package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wikigen/internal/build"
	"git.home.luguber.info/inful/wikigen/internal/config"
	"git.home.luguber.info/inful/wikigen/internal/events"
	"git.home.luguber.info/inful/wikigen/internal/history"
)

func serviceConfig(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Content.SourceDir = filepath.Join(root, "content")
	cfg.Content.OutputDir = filepath.Join(root, "public")
	cfg.Build.CacheFile = filepath.Join(root, "cache.json")
	cfg.Build.DisableGitDates = true
	cfg.Watch.Debounce = "50ms"
	cfg.Watch.MaxDelay = "2s"
	require.NoError(t, os.MkdirAll(cfg.Content.SourceDir, 0o755))
	return cfg
}

func writePage(t *testing.T, cfg *config.Config, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Content.SourceDir, name), []byte(body), 0o644))
}

func TestService_BuildsOnStartAndOnChange(t *testing.T) {
	cfg := serviceConfig(t)
	writePage(t, cfg, "home.md", "---\ntitle: Home\n---\n\n# Home\n")

	svc := NewService(cfg, build.New(cfg), Options{})

	doneCh, unsub := events.Subscribe[events.BuildCompleted](svc.Bus(), 4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	var first events.BuildCompleted
	select {
	case first = <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial build")
	}
	require.Equal(t, "success", first.Outcome)
	require.Equal(t, 1, first.Pages)
	require.NotEmpty(t, first.BuildID)

	_, err := os.Stat(filepath.Join(cfg.Content.OutputDir, "home.html"))
	require.NoError(t, err)

	writePage(t, cfg, "about.md", "---\ntitle: About\n---\n\nLinks to [[Home]].\n")

	var second events.BuildCompleted
	select {
	case second = <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild after change")
	}
	require.Equal(t, 2, second.Pages)
	require.NotEqual(t, first.BuildID, second.BuildID)

	_, err = os.Stat(filepath.Join(cfg.Content.OutputDir, "about.html"))
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop after context cancel")
	}
}

func TestService_RecordsHistory(t *testing.T) {
	cfg := serviceConfig(t)
	writePage(t, cfg, "home.md", "---\ntitle: Home\n---\n\n# Home\n")

	store, err := history.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := NewService(cfg, build.New(cfg), Options{History: store})

	doneCh, unsub := events.Subscribe[events.BuildCompleted](svc.Bus(), 4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.Run(ctx) }()

	select {
	case <-doneCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial build")
	}

	entries, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "success", entries[0].Outcome)
	require.Equal(t, 1, entries[0].Pages)
	require.Equal(t, 1, entries[0].Rendered)
}
