package wiki

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	gmast "github.com/yuin/goldmark/ast"
)

// Reference is one [[Token]] occurrence in a page body, in document order.
type Reference struct {
	Token string
	Label string
}

// ExtractReferences parses a Markdown body and collects wiki references in
// document order. The same inline parser drives rendering, so fenced code
// and inline code never yield references here either.
//
// This is an analysis API; it does not render Markdown.
func ExtractReferences(body []byte) []Reference {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, Extension),
	)
	root := md.Parser().Parse(text.NewReader(body))

	refs := make([]Reference, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if link, ok := n.(*WikiLinkNode); ok {
			refs = append(refs, Reference{Token: link.Token, Label: link.Label})
		}
		return gmast.WalkContinue, nil
	})
	return refs
}
