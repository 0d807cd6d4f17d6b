package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/logfields"
	"git.home.luguber.info/inful/wikigen/internal/render"
)

// stageWriteIndexes emits the navigation surfaces: the site index, the tag
// index, and the stylesheet. These are cheap and depend on the whole page
// set, so they are regenerated on every build.
func stageWriteIndexes(ctx context.Context, bs *BuildState) error {
	b := bs.Builder

	entries := indexEntries(content.SortForIndex(bs.Pages))
	html, err := b.renderer.RenderIndexPage(entries)
	if err != nil {
		return NewFatalStageError(StageWriteIndexes, fmt.Errorf("%w: index page: %v", ErrRender, err))
	}
	if err := writeStaged(bs.StageDir, "index.html", html); err != nil {
		return NewFatalStageError(StageWriteIndexes, fmt.Errorf("%w: %v", ErrPublish, err))
	}

	html, err = b.renderer.RenderTagsPage(tagGroups(bs.Pages))
	if err != nil {
		return NewFatalStageError(StageWriteIndexes, fmt.Errorf("%w: tag index: %v", ErrRender, err))
	}
	if err := writeStaged(bs.StageDir, "tags/index.html", html); err != nil {
		return NewFatalStageError(StageWriteIndexes, fmt.Errorf("%w: %v", ErrPublish, err))
	}

	if err := writeStaged(bs.StageDir, "assets/site.css", []byte(render.SiteCSS)); err != nil {
		return NewFatalStageError(StageWriteIndexes, fmt.Errorf("%w: %v", ErrPublish, err))
	}

	slog.Debug("Wrote index pages", logfields.Pages(len(entries)))
	return nil
}

func indexEntries(pages []*content.Page) []render.IndexEntry {
	entries := make([]render.IndexEntry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, render.IndexEntry{
			Title:      p.Title,
			OutputPath: p.OutputPath,
			Date:       render.FormatDate(p.Date),
			Tags:       p.Tags,
		})
	}
	return entries
}

// tagGroups buckets pages per tag, tags alphabetical, entries in index order.
func tagGroups(pages []*content.Page) []render.TagGroup {
	byTag := make(map[string][]*content.Page)
	for _, p := range pages {
		for _, tag := range p.Tags {
			byTag[tag] = append(byTag[tag], p)
		}
	}
	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	groups := make([]render.TagGroup, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, render.TagGroup{
			Tag:     tag,
			Entries: indexEntries(content.SortForIndex(byTag[tag])),
		})
	}
	return groups
}

func writeStaged(stageDir, rel string, data []byte) error {
	dst := filepath.Join(stageDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
