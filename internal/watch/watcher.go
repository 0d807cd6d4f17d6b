package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/wikigen/internal/events"
)

// Watcher publishes a BuildRequested event for every relevant change under
// the content root. It applies the same filter as the content loader: hidden
// files and directories are ignored, and only markdown files count.
type Watcher struct {
	root string
	bus  *events.Bus
	fsw  *fsnotify.Watcher
}

func NewWatcher(root string, bus *events.Bus) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{root: abs, bus: bus, fsw: fsw}, nil
}

// Start registers watches for the whole tree and begins event processing.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		w.fsw.Close()
		return err
	}
	go w.loop(ctx)
	slog.Info("Watching content tree", "root", w.root)
	return nil
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("Content watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories need their own watches; fsnotify is not recursive.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !isMarkdownName(name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	slog.Debug("Content change detected", "path", event.Name, "op", event.Op.String())
	_ = w.bus.Publish(ctx, events.BuildRequested{
		Reason:      "content_changed",
		Path:        event.Name,
		RequestedAt: time.Now(),
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func isMarkdownName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
