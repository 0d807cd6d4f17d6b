package wiki

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	gmast "github.com/yuin/goldmark/ast"
)

// resolverKey carries the active Resolver through a parse so the inline
// parser can bind targets while the page is converted.
var resolverKey = parser.NewContextKey()

// Resolver resolves a reference token to a target page output path.
// ok=false marks the token dangling.
type Resolver interface {
	ResolveToken(token string) (outputPath string, ok bool)
}

// ContextWithResolver returns a parser context that makes the given
// resolver visible to the wikilink parser for one conversion.
func ContextWithResolver(r Resolver) parser.Context {
	pc := parser.NewContext()
	pc.Set(resolverKey, r)
	return pc
}

type wikiLinkParser struct{}

var defaultWikiLinkParser = &wikiLinkParser{}

// Trigger implements parser.InlineParser.
func (p *wikiLinkParser) Trigger() []byte { return []byte{'['} }

// Parse implements parser.InlineParser. Wiki links do not span lines and do
// not nest; anything else falls through to the standard link parser.
func (p *wikiLinkParser) Parse(parent gmast.Node, block text.Reader, pc parser.Context) gmast.Node {
	line, _ := block.PeekLine()
	if len(line) < 4 || line[0] != '[' || line[1] != '[' {
		return nil
	}
	end := bytes.Index(line, []byte("]]"))
	if end < 0 {
		return nil
	}
	inner := line[2:end]
	if len(inner) == 0 || bytes.ContainsAny(inner, "[]") {
		return nil
	}

	token := string(inner)
	label := ""
	if i := strings.Index(token, "|"); i >= 0 {
		token, label = token[:i], strings.TrimSpace(token[i+1:])
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	block.Advance(end + 2)

	node := &WikiLinkNode{Token: token, Label: label}
	if r, _ := pc.Get(resolverKey).(Resolver); r != nil {
		if target, ok := r.ResolveToken(token); ok {
			node.TargetOutput = target
		} else {
			node.Broken = true
		}
	}
	return node
}

type wikiLinkHTMLRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *wikiLinkHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindWikiLink, r.renderWikiLink)
}

func (r *wikiLinkHTMLRenderer) renderWikiLink(w util.BufWriter, source []byte, node gmast.Node, entering bool) (gmast.WalkStatus, error) {
	if !entering {
		return gmast.WalkContinue, nil
	}
	n := node.(*WikiLinkNode)
	display := util.EscapeHTML([]byte(n.DisplayText()))

	switch {
	case n.Broken:
		_, _ = w.WriteString(`<span class="wiki-link-broken">`)
		_, _ = w.Write(display)
		_, _ = w.WriteString(`</span>`)
	case n.TargetOutput != "":
		_, _ = w.WriteString(`<a href="/`)
		_, _ = w.Write(util.EscapeHTML(util.URLEscape([]byte(n.TargetOutput), true)))
		_, _ = w.WriteString(`" class="wiki-link">`)
		_, _ = w.Write(display)
		_, _ = w.WriteString(`</a>`)
	default:
		// Extraction pass or missing resolver: emit the text as written.
		_, _ = w.Write(display)
	}
	return gmast.WalkContinue, nil
}

type wikiLink struct{}

// Extension wires the wikilink parser and renderer into goldmark. The
// parser priority sits just ahead of the standard link parser so [[..]]
// wins the '[' trigger.
var Extension goldmark.Extender = &wikiLink{}

// Extend implements goldmark.Extender.
func (e *wikiLink) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(defaultWikiLinkParser, 199),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&wikiLinkHTMLRenderer{}, 500),
	))
}
