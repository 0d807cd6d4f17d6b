package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wikigen/internal/events"
)

func startWatcher(t *testing.T, root string, bus *events.Bus) *Watcher {
	t.Helper()

	w, err := NewWatcher(root, bus)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(func() { _ = w.Close() })
	return w
}

// expectRequest waits for at least one BuildRequested and drains any
// duplicates a single save may produce (create + write).
func expectRequest(t *testing.T, ch <-chan events.BuildRequested, timeout time.Duration) events.BuildRequested {
	t.Helper()

	var req events.BuildRequested
	select {
	case req = <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for change event")
	}

	for {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			return req
		}
	}
}

func expectNoRequest(t *testing.T, ch <-chan events.BuildRequested, wait time.Duration) {
	t.Helper()

	select {
	case req := <-ch:
		t.Fatalf("unexpected change event for %s", req.Path)
	case <-time.After(wait):
		// ok
	}
}

func TestWatcher_PublishesOnMarkdownChange(t *testing.T) {
	root := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 16)
	defer unsub()

	startWatcher(t, root, bus)

	require.NoError(t, os.WriteFile(filepath.Join(root, "page.md"), []byte("# Page\n"), 0o644))

	req := expectRequest(t, reqCh, 2*time.Second)
	require.Equal(t, "content_changed", req.Reason)
	require.Contains(t, req.Path, "page.md")
	require.False(t, req.Full)
}

func TestWatcher_IgnoresNonMarkdownFiles(t *testing.T) {
	root := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 16)
	defer unsub()

	startWatcher(t, root, bus)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("scratch\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), []byte("body{}\n"), 0o644))

	expectNoRequest(t, reqCh, 400*time.Millisecond)
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 16)
	defer unsub()

	startWatcher(t, root, bus)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".draft.md"), []byte("# WIP\n"), 0o644))

	expectNoRequest(t, reqCh, 400*time.Millisecond)
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 16)
	defer unsub()

	startWatcher(t, root, bus)

	sub := filepath.Join(root, "guides")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Give the watcher a moment to register the new directory.
	time.Sleep(250 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "intro.md"), []byte("# Intro\n"), 0o644))

	req := expectRequest(t, reqCh, 2*time.Second)
	require.Contains(t, req.Path, "intro.md")
}

func TestWatcher_RemovePublishesRequest(t *testing.T) {
	root := t.TempDir()
	page := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(page, []byte("# Old\n"), 0o644))

	bus := events.NewBus()
	defer bus.Close()

	reqCh, unsub := events.Subscribe[events.BuildRequested](bus, 16)
	defer unsub()

	startWatcher(t, root, bus)

	require.NoError(t, os.Remove(page))

	req := expectRequest(t, reqCh, 2*time.Second)
	require.Contains(t, req.Path, "old.md")
}
