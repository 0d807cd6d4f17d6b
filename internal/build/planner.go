package build

import (
	"sort"

	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/wiki"
)

// RebuildReason explains why a page is scheduled for rendering.
type RebuildReason string

const (
	ReasonFullRebuild    RebuildReason = "full_rebuild"
	ReasonSchemaChanged  RebuildReason = "cache_schema_changed"
	ReasonConfigChanged  RebuildReason = "config_changed"
	ReasonNoEntry        RebuildReason = "no_cache_entry"
	ReasonContentChanged RebuildReason = "content_changed"
	ReasonDateChanged    RebuildReason = "date_changed"
	ReasonLinksChanged   RebuildReason = "links_changed"
	ReasonOutputMoved    RebuildReason = "output_moved"
	ReasonOutputMissing  RebuildReason = "output_missing"
	ReasonDependency     RebuildReason = "dependency_rerendered"
)

// PlanOptions parameterizes rebuild planning.
type PlanOptions struct {
	// Full ignores the previous cache entirely.
	Full bool
	// ConfigHash is the current configuration fingerprint.
	ConfigHash string
	// OutputExists reports whether a previously rendered output file is
	// still present and therefore reusable. Nil skips the check.
	OutputExists func(outputPath string) bool
}

// RebuildPlan partitions the current page set into pages to render and pages
// whose previous output can be copied forward. Evicted lists source paths
// present in the previous cache but gone from the current set.
type RebuildPlan struct {
	Render  []*content.Page
	Reuse   []*content.Page
	Evicted []string
	Reasons map[string]RebuildReason
}

// PlanRebuild decides which pages need rendering. A page is stale when its
// content changed, it has no usable cache entry, or its resolved link set
// differs from the cached one. Staleness then propagates to every page that
// links to a stale page, iterated to a fixpoint; the visited set makes link
// cycles terminate.
func PlanRebuild(pages []*content.Page, graph *wiki.Graph, prev *Cache, opts PlanOptions) *RebuildPlan {
	plan := &RebuildPlan{Reasons: make(map[string]RebuildReason)}

	current := make(map[string]*content.Page, len(pages))
	for _, p := range pages {
		current[p.SourcePath] = p
	}
	if prev != nil {
		for path := range prev.Entries {
			if _, ok := current[path]; !ok {
				plan.Evicted = append(plan.Evicted, path)
			}
		}
		sort.Strings(plan.Evicted)
	}

	if reason := wholesaleReason(prev, opts); reason != "" {
		for _, p := range pages {
			plan.Reasons[p.SourcePath] = reason
		}
		plan.Render = append(plan.Render, pages...)
		return plan
	}

	// Seed the stale set from per-page changes.
	var queue []string
	for _, p := range pages {
		if reason := staleReason(p, graph, prev.Entries[p.SourcePath], opts); reason != "" {
			plan.Reasons[p.SourcePath] = reason
			queue = append(queue, p.SourcePath)
		}
	}

	// Propagate along the backlink index: whoever links to a stale page is
	// stale too. Reasons doubles as the visited set.
	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]
		for _, linker := range graph.Backlinks[target] {
			if _, seen := plan.Reasons[linker]; seen {
				continue
			}
			if _, ok := current[linker]; !ok {
				continue
			}
			plan.Reasons[linker] = ReasonDependency
			queue = append(queue, linker)
		}
	}

	for _, p := range pages {
		if _, stale := plan.Reasons[p.SourcePath]; stale {
			plan.Render = append(plan.Render, p)
		} else {
			plan.Reuse = append(plan.Reuse, p)
		}
	}
	return plan
}

// wholesaleReason returns a non-empty reason when no cache entry can be
// trusted at all.
func wholesaleReason(prev *Cache, opts PlanOptions) RebuildReason {
	switch {
	case opts.Full:
		return ReasonFullRebuild
	case prev == nil:
		return ReasonNoEntry
	case len(prev.Entries) > 0 && prev.SchemaVersion != CacheSchemaVersion:
		return ReasonSchemaChanged
	case len(prev.Entries) > 0 && prev.ConfigHash != opts.ConfigHash:
		return ReasonConfigChanged
	}
	return ""
}

// staleReason returns a non-empty reason when the page itself must re-render.
func staleReason(p *content.Page, graph *wiki.Graph, entry *CacheEntry, opts PlanOptions) RebuildReason {
	switch {
	case entry == nil:
		return ReasonNoEntry
	case entry.Fingerprint != p.Fingerprint:
		return ReasonContentChanged
	case !entry.Date.Equal(p.Date):
		return ReasonDateChanged
	case depsChanged(entry.Deps, sortedDeps(graph, p.SourcePath)):
		return ReasonLinksChanged
	case entry.OutputPath != p.OutputPath:
		return ReasonOutputMoved
	case opts.OutputExists != nil && !opts.OutputExists(entry.OutputPath):
		return ReasonOutputMissing
	}
	return ""
}

// sortedDeps returns the page's resolved link targets in canonical order for
// cache comparison and storage.
func sortedDeps(graph *wiki.Graph, sourcePath string) []string {
	fwd := graph.Forward[sourcePath]
	if len(fwd) == 0 {
		return nil
	}
	deps := make([]string, len(fwd))
	copy(deps, fwd)
	sort.Strings(deps)
	return deps
}

func depsChanged(prev, cur []string) bool {
	if len(prev) != len(cur) {
		return true
	}
	for i := range prev {
		if prev[i] != cur[i] {
			return true
		}
	}
	return false
}
