// Package wiki implements [[Token]] cross-reference links: the goldmark
// extension that parses and renders them, reference extraction for analysis,
// and corpus-wide resolution into a bidirectional link graph.
package wiki

import (
	gmast "github.com/yuin/goldmark/ast"
)

// KindWikiLink is the AST node kind for wiki cross-reference links.
var KindWikiLink = gmast.NewNodeKind("WikiLink")

// WikiLinkNode is one inline [[Token]] or [[Token|Label]] occurrence.
// Target fields are populated during parsing when the parser context
// carries a Resolver; extraction passes leave them empty.
type WikiLinkNode struct {
	gmast.BaseInline

	Token string
	Label string

	// Resolved state, set only when rendering.
	TargetOutput string // output path of the target page, relative to the site root
	Broken       bool
}

// Kind implements ast.Node.
func (n *WikiLinkNode) Kind() gmast.NodeKind { return KindWikiLink }

// Dump implements ast.Node.
func (n *WikiLinkNode) Dump(source []byte, level int) {
	gmast.DumpHelper(n, source, level, map[string]string{
		"Token": n.Token,
		"Label": n.Label,
	}, nil)
}

// DisplayText is the anchor text: the explicit label when present,
// otherwise the token as written.
func (n *WikiLinkNode) DisplayText() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Token
}
