package wiki

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/slug"
)

// ResolvedLink is one reference occurrence bound to its target page.
type ResolvedLink struct {
	SourcePath string
	Token      string
	TargetPath string
}

// Graph is the corpus-wide link graph: per-occurrence resolution outcomes
// plus forward edges and the backlink index. A Graph is immutable once
// built; every build recomputes it from the full page set, because a single
// new page can change which tokens are ambiguous everywhere.
type Graph struct {
	Resolved  []ResolvedLink
	Dangling  []DanglingLink
	Ambiguous []*AmbiguousLinkError

	// Forward maps a page to the distinct pages it links to, in first
	// reference order. Backlinks is the inversion: target page to the
	// sorted distinct pages referencing it.
	Forward   map[string][]string
	Backlinks map[string][]string

	outcomes map[string]tokenOutcome
}

type tokenOutcome struct {
	target     *content.Page // nil when dangling
	candidates []string      // source paths, more than one when ambiguous
}

// Resolve builds the link graph for the full page set. Tokens resolve by
// exact case-insensitive title first, then by slugified path (full path or
// final segment); the earliest-discovered page wins ties under either rule.
func Resolve(pages []*content.Page) *Graph {
	ix := newIndex(pages)
	g := &Graph{
		Forward:   make(map[string][]string),
		Backlinks: make(map[string][]string),
		outcomes:  make(map[string]tokenOutcome),
	}

	for _, page := range pages {
		refs := ExtractReferences(page.Body)
		seenTargets := make(map[string]struct{})
		reported := make(map[string]struct{})

		for _, ref := range refs {
			key := normalizeToken(ref.Token)
			out, cached := g.outcomes[key]
			if !cached {
				out = resolveOne(ix, ref.Token)
				g.outcomes[key] = out
			}

			_, already := reported[key]
			reported[key] = struct{}{}

			if out.target == nil {
				if !already {
					g.Dangling = append(g.Dangling, DanglingLink{SourcePath: page.SourcePath, Token: ref.Token})
				}
				continue
			}
			if len(out.candidates) > 1 && !already {
				g.Ambiguous = append(g.Ambiguous, &AmbiguousLinkError{
					SourcePath: page.SourcePath,
					Token:      ref.Token,
					Chosen:     out.target.SourcePath,
					Candidates: out.candidates,
				})
			}

			g.Resolved = append(g.Resolved, ResolvedLink{
				SourcePath: page.SourcePath,
				Token:      ref.Token,
				TargetPath: out.target.SourcePath,
			})
			if _, dup := seenTargets[out.target.SourcePath]; !dup {
				seenTargets[out.target.SourcePath] = struct{}{}
				g.Forward[page.SourcePath] = append(g.Forward[page.SourcePath], out.target.SourcePath)
			}
		}
	}

	g.rebuildBacklinks()
	return g
}

// ResolveToken implements Resolver for render-time lookups.
func (g *Graph) ResolveToken(token string) (string, bool) {
	out, ok := g.outcomes[normalizeToken(token)]
	if !ok || out.target == nil {
		return "", false
	}
	return out.target.OutputPath, true
}

// rebuildBacklinks recomputes the backlink index from the forward edges.
// It always starts from scratch; the index is never patched in place.
func (g *Graph) rebuildBacklinks() {
	g.Backlinks = make(map[string][]string)
	for source, targets := range g.Forward {
		for _, target := range targets {
			g.Backlinks[target] = append(g.Backlinks[target], source)
		}
	}
	for target, sources := range g.Backlinks {
		sort.Strings(sources)
		g.Backlinks[target] = dedupeSorted(sources)
	}
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

func resolveOne(ix *index, token string) tokenOutcome {
	cands := ix.lookup(token)
	if len(cands) == 0 {
		return tokenOutcome{}
	}
	paths := make([]string, len(cands))
	for i, c := range cands {
		paths[i] = c.SourcePath
	}
	return tokenOutcome{target: cands[0], candidates: paths}
}

// index holds the resolution lookup tables. Candidate slices stay sorted by
// discovery index so the first element is always the deterministic winner.
type index struct {
	byTitle    map[string][]*content.Page
	byPathSlug map[string][]*content.Page
	byBaseSlug map[string][]*content.Page
}

func newIndex(pages []*content.Page) *index {
	ix := &index{
		byTitle:    make(map[string][]*content.Page),
		byPathSlug: make(map[string][]*content.Page),
		byBaseSlug: make(map[string][]*content.Page),
	}
	for _, p := range pages {
		title := strings.ToLower(strings.TrimSpace(p.Title))
		ix.byTitle[title] = append(ix.byTitle[title], p)
		ix.byPathSlug[p.PathSlug] = append(ix.byPathSlug[p.PathSlug], p)
		ix.byBaseSlug[p.BaseSlug] = append(ix.byBaseSlug[p.BaseSlug], p)
	}
	for _, m := range []map[string][]*content.Page{ix.byTitle, ix.byPathSlug, ix.byBaseSlug} {
		for _, cands := range m {
			sort.Slice(cands, func(i, j int) bool { return cands[i].DiscoveryIndex < cands[j].DiscoveryIndex })
		}
	}
	return ix
}

// lookup returns the candidate set under the winning rule: title match if
// any page titles match, otherwise the slugified-path match. A token with
// path separators must match a full path slug; a bare token matches either
// a root-level path slug or any final segment slug.
func (ix *index) lookup(token string) []*content.Page {
	if cands := ix.byTitle[normalizeToken(token)]; len(cands) > 0 {
		return cands
	}

	s := tokenSlug(token)
	if s == "" {
		return nil
	}
	if strings.Contains(s, "/") {
		return ix.byPathSlug[s]
	}

	merged := make([]*content.Page, 0, 2)
	seen := make(map[string]struct{}, 2)
	for _, cands := range [][]*content.Page{ix.byPathSlug[s], ix.byBaseSlug[s]} {
		for _, c := range cands {
			if _, dup := seen[c.SourcePath]; dup {
				continue
			}
			seen[c.SourcePath] = struct{}{}
			merged = append(merged, c)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].DiscoveryIndex < merged[j].DiscoveryIndex })
	return merged
}

// tokenSlug slugifies a token per path segment, preserving separators so
// pathy tokens can address nested pages.
func tokenSlug(token string) string {
	segs := strings.Split(token, "/")
	out := segs[:0]
	for _, seg := range segs {
		if s := slug.Make(seg); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "/")
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i > 0 && sorted[i-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
