// Package slug derives URL-safe slugs and output paths from titles and
// source paths. Slugs are the shared currency between link resolution and
// output layout, so every caller must go through this package.
package slug

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFKD and removes combining marks, so "café"
// slugs the same as "cafe".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Make converts a title, token, or path segment to a URL-safe slug:
// lowercase, ASCII-folded, non-alphanumerics collapsed to single hyphens.
func Make(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ForPath slugifies each segment of a slash-separated relative path and
// drops the file extension. "Guides/Getting Started.md" -> "guides/getting-started".
func ForPath(p string) string {
	p = strings.TrimSuffix(p, path.Ext(p))
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i] = Make(seg)
	}
	return strings.Join(segs, "/")
}

// OutputPath maps a source path to its emitted file path. The mapping is a
// pure function of the source path so repeated builds agree on locations.
func OutputPath(sourcePath string) string {
	return ForPath(sourcePath) + ".html"
}

// Title derives a human-readable title from a source path when front matter
// does not provide one: base name, separators to spaces, words capitalized.
func Title(sourcePath string) string {
	base := path.Base(sourcePath)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	words := strings.Fields(base)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
