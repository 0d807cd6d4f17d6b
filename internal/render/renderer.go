package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"git.home.luguber.info/inful/wikigen/internal/content"
	"git.home.luguber.info/inful/wikigen/internal/wiki"
)

// Options configures a Renderer.
type Options struct {
	SiteTitle string
	// Registry overrides the default chroma-backed highlighter registry.
	Registry *Registry
}

// Renderer converts pages to complete HTML documents. Rendering is pure:
// identical page content and identical link resolution yield byte-identical
// output. The goldmark instance is stateless across conversions; per-page
// state travels in the parser context.
type Renderer struct {
	md        goldmark.Markdown
	siteTitle string
}

// New creates a Renderer with GFM extensions, wikilink support, and
// registry-backed fenced-code highlighting.
func New(opts Options) *Renderer {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			wiki.Extension,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{registry: registry}, 200),
			),
		),
	)

	return &Renderer{md: md, siteTitle: opts.SiteTitle}
}

// RenderBody converts a page body to an HTML fragment, binding wiki links
// through the resolver.
func (r *Renderer) RenderBody(page *content.Page, resolver wiki.Resolver) ([]byte, error) {
	var buf bytes.Buffer
	pc := wiki.ContextWithResolver(resolver)
	if err := r.md.Convert(page.Body, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("render %s: %w", page.SourcePath, err)
	}
	return buf.Bytes(), nil
}

// RenderPage converts a page into its complete HTML document.
func (r *Renderer) RenderPage(page *content.Page, resolver wiki.Resolver) ([]byte, error) {
	body, err := r.RenderBody(page, resolver)
	if err != nil {
		return nil, err
	}
	return renderLayout(pageTmpl, pageData{
		SiteTitle: r.siteTitle,
		Title:     page.Title,
		Date:      FormatDate(page.Date),
		Tags:      page.Tags,
		Body:      template.HTML(body),
	})
}
