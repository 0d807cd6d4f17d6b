// Package rewrite makes an emitted HTML tree relocatable. Every
// root-relative URL is rewritten relative to the file that references it,
// so the tree works under any base path or straight from disk. External
// URLs are never touched and the pass is idempotent.
package rewrite

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/wikigen/internal/logfields"
)

// rewritableAttrs names the attribute carrying a URL per element type.
var rewritableAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

// Tree rewrites every .html file under root in place and reports how many
// files changed. Files whose links are already relative are left
// byte-identical, which keeps the pass idempotent.
func Tree(root string) (int, error) {
	rewritten := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", p, err)
		}
		docPath := filepath.ToSlash(rel)

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", docPath, err)
		}

		out, changed, err := Document(data, docPath)
		if err != nil {
			return fmt.Errorf("rewrite %s: %w", docPath, err)
		}
		if !changed {
			return nil
		}

		tmp := p + ".tmp"
		if err := os.WriteFile(tmp, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", docPath, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			return fmt.Errorf("replace %s: %w", docPath, err)
		}
		rewritten++
		return nil
	})
	if err != nil {
		return rewritten, err
	}
	slog.Debug("Rewrote root-relative links", logfields.Path(root), logfields.Pages(rewritten))
	return rewritten, nil
}

// Document rewrites one HTML document. docPath is the file's location
// relative to the tree root, slash-separated; root-relative URLs are made
// relative to its directory. changed is false when no URL needed
// rewriting, in which case out is nil.
func Document(data []byte, docPath string) (out []byte, changed bool, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("parse HTML: %w", err)
	}

	fromDir := path.Dir(docPath)
	if fromDir == "." {
		fromDir = ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if attrName, ok := rewritableAttrs[n.Data]; ok {
				for i, attr := range n.Attr {
					if attr.Key != attrName {
						continue
					}
					if rel, ok := relativize(attr.Val, fromDir); ok {
						n.Attr[i].Val = rel
						changed = true
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !changed {
		return nil, false, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, false, fmt.Errorf("render HTML: %w", err)
	}
	return buf.Bytes(), true, nil
}

// relativize converts a root-relative URL into one relative to fromDir.
// ok is false for URLs that must not be rewritten: external, special
// scheme, fragment-only, protocol-relative, or already relative.
func relativize(raw, fromDir string) (string, bool) {
	if raw == "" || raw[0] != '/' {
		return "", false
	}
	if strings.HasPrefix(raw, "//") {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}

	escaped := u.EscapedPath()
	target := path.Clean(escaped)
	hadTrailingSlash := strings.HasSuffix(escaped, "/") && target != "/"

	rel := relativePath(target, fromDir)
	if hadTrailingSlash {
		rel += "/"
	}
	if u.RawQuery != "" {
		rel += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		rel += "#" + u.Fragment
	}
	return rel, true
}

// relativePath computes the path from fromDir (slash-separated, "" for the
// root) to an absolute target like "/guides/setup.html".
func relativePath(target, fromDir string) string {
	targetSegs := splitPath(strings.TrimPrefix(target, "/"))
	fromSegs := splitPath(fromDir)

	common := 0
	for common < len(targetSegs)-1 && common < len(fromSegs) && targetSegs[common] == fromSegs[common] {
		common++
	}

	var b strings.Builder
	for i := common; i < len(fromSegs); i++ {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(targetSegs[common:], "/"))

	rel := b.String()
	if rel == "" {
		rel = "."
	}
	return rel
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
