package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/wikigen/internal/logfields"
)

// Loader discovers and loads all pages beneath a content root. It reads
// files and nothing else; callers own every downstream decision.
type Loader struct {
	root string
}

// NewLoader creates a loader for the given content root directory.
func NewLoader(root string) *Loader {
	return &Loader{root: root}
}

// Load walks the content tree and produces the complete page set in stable
// discovery order. Documents with unparseable front matter are excluded and
// reported through issues; I/O failures abort the whole load.
func (l *Loader) Load() (pages []*Page, issues []error, err error) {
	seenOutputs := make(map[string]string)

	walkErr := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != l.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !isMarkdownFile(name) {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}

		page, err := newPage(rel, raw, len(pages))
		if err != nil {
			slog.Warn("Excluding page with malformed front matter", logfields.Page(rel), logfields.Error(err))
			issues = append(issues, err)
			return nil
		}

		if prior, dup := seenOutputs[page.OutputPath]; dup {
			issues = append(issues, fmt.Errorf("output path collision: %s and %s both map to %s; keeping %s", prior, rel, page.OutputPath, prior))
			return nil
		}
		seenOutputs[page.OutputPath] = rel

		pages = append(pages, page)
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk content root %s: %w", l.root, walkErr)
	}

	slog.Info("Content loaded", logfields.Source(l.root), logfields.Pages(len(pages)), logfields.Warnings(len(issues)))
	return pages, issues, nil
}

func isMarkdownFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
