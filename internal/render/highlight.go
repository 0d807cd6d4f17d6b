// Package render converts pages to deterministic HTML: goldmark for the
// markdown body, a pluggable highlighter registry for fenced code, and
// html/template layouts for the final documents.
package render

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter renders source code in one language to an HTML fragment.
// Implementations must be pure: identical input yields identical bytes.
type Highlighter func(code, language string) (string, error)

// Registry maps language tags to highlighters. Explicit registrations win;
// languages chroma's catalog knows get a class-based chroma highlighter,
// everything else reports absence so callers fall back to plain code
// blocks. Absence is never an error.
type Registry struct {
	mu         sync.RWMutex
	byLanguage map[string]Highlighter
}

// NewRegistry returns a registry backed by chroma's lexer catalog.
func NewRegistry() *Registry {
	return &Registry{byLanguage: make(map[string]Highlighter)}
}

// Register binds a highlighter to a language tag, overriding the default.
func (r *Registry) Register(language string, h Highlighter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLanguage[language] = h
}

// Lookup returns the highlighter for a language, if any.
func (r *Registry) Lookup(language string) (Highlighter, bool) {
	if language == "" {
		return nil, false
	}
	r.mu.RLock()
	h, ok := r.byLanguage[language]
	r.mu.RUnlock()
	if ok {
		return h, true
	}
	if lexers.Get(language) == nil {
		return nil, false
	}
	return chromaHighlight, true
}

// chromaHighlight formats code with chroma using CSS classes, keeping the
// markup independent of any color style.
func chromaHighlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		return "", fmt.Errorf("no lexer for language %q", language)
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", language, err)
	}

	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.Format(&buf, styles.Fallback, iterator); err != nil {
		return "", fmt.Errorf("format %s: %w", language, err)
	}
	return buf.String(), nil
}
