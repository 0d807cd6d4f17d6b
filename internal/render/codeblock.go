package render

import (
	"strings"

	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	gmast "github.com/yuin/goldmark/ast"
)

// codeBlockRenderer routes fenced code blocks through the highlighter
// registry. A missing or failing highlighter degrades to a plain escaped
// code block; highlighting never fails a build.
type codeBlockRenderer struct {
	registry *Registry
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(gmast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node gmast.Node, entering bool) (gmast.WalkStatus, error) {
	if !entering {
		return gmast.WalkContinue, nil
	}
	n := node.(*gmast.FencedCodeBlock)
	language := string(n.Language(source))

	var sb strings.Builder
	for i := 0; i < n.Lines().Len(); i++ {
		line := n.Lines().At(i)
		sb.Write(source[line.Start:line.Stop])
	}
	code := sb.String()

	if h, ok := r.registry.Lookup(language); ok {
		if fragment, err := h(code, language); err == nil {
			_, _ = w.WriteString(fragment)
			return gmast.WalkContinue, nil
		}
	}

	_, _ = w.WriteString("<pre><code")
	if language != "" {
		_, _ = w.WriteString(` class="language-`)
		_, _ = w.Write(util.EscapeHTML([]byte(language)))
		_, _ = w.WriteString(`"`)
	}
	_, _ = w.WriteString(">")
	_, _ = w.Write(util.EscapeHTML([]byte(code)))
	_, _ = w.WriteString("</code></pre>\n")
	return gmast.WalkContinue, nil
}
