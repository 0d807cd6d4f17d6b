package content

import (
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/wikigen/internal/slug"
)

// Page is one content unit derived from one source document. Identity is the
// source path, slash-separated and relative to the content root.
type Page struct {
	SourcePath string
	Title      string
	Tags       []string // sorted, deduplicated
	Order      *int     // nil when front matter omits it
	Date       time.Time

	Body        []byte // markdown body without front matter
	Fingerprint string // content hash over front matter + body

	// Derived identity used by link resolution and output layout.
	PathSlug   string // source path minus extension, slugified per segment
	BaseSlug   string // final segment of PathSlug
	OutputPath string // emitted file path, relative to the output root

	// DiscoveryIndex is the stable position in walk order; resolution
	// tie-breaks depend on it.
	DiscoveryIndex int
}

// pageMeta is the typed shape of the supported front matter fields. Unknown
// keys are ignored here but still participate in the fingerprint.
type pageMeta struct {
	Title string    `yaml:"title"`
	Date  time.Time `yaml:"date"`
	Tags  []string  `yaml:"tags"`
	Order *int      `yaml:"order"`
}

// newPage builds a Page from a source document. raw is the full file
// content; the front matter is split off, parsed, and hashed together with
// the body.
func newPage(sourcePath string, raw []byte, discoveryIndex int) (*Page, error) {
	fm, body, _, err := splitFrontMatter(raw)
	if err != nil {
		return nil, &MalformedFrontMatterError{Path: sourcePath, Err: err}
	}

	var meta pageMeta
	if len(fm) > 0 {
		if err := yaml.Unmarshal(fm, &meta); err != nil {
			return nil, &MalformedFrontMatterError{Path: sourcePath, Err: err}
		}
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = slug.Title(sourcePath)
	}

	pathSlug := slug.ForPath(sourcePath)
	base := pathSlug
	if i := strings.LastIndex(pathSlug, "/"); i >= 0 {
		base = pathSlug[i+1:]
	}

	return &Page{
		SourcePath:     sourcePath,
		Title:          title,
		Tags:           normalizeTags(meta.Tags),
		Order:          meta.Order,
		Date:           meta.Date,
		Body:           body,
		Fingerprint:    Fingerprint(fm, body),
		PathSlug:       pathSlug,
		BaseSlug:       base,
		OutputPath:     slug.OutputPath(sourcePath),
		DiscoveryIndex: discoveryIndex,
	}, nil
}

// normalizeTags sorts and deduplicates; tags are a set, their order in the
// source is irrelevant.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortForIndex orders pages for navigation: explicit order first (ascending,
// ties by source path), then the remainder by discovery path.
func SortForIndex(pages []*Page) []*Page {
	out := make([]*Page, len(pages))
	copy(out, pages)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Order != nil && b.Order != nil:
			if *a.Order != *b.Order {
				return *a.Order < *b.Order
			}
			return a.SourcePath < b.SourcePath
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		default:
			return a.SourcePath < b.SourcePath
		}
	})
	return out
}
