package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Layout templates emit root-relative hrefs; the rewrite pass makes them
// relative to each file before publish.
const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - {{.SiteTitle}}</title>
<link rel="stylesheet" href="/assets/site.css">
</head>
<body>
<header>
<nav><a href="/index.html">{{.SiteTitle}}</a> · <a href="/tags/index.html">Tags</a></nav>
</header>
<main>
<article>
<h1>{{.Title}}</h1>
{{if .Date}}<p class="meta"><time datetime="{{.Date}}">{{.Date}}</time></p>{{end}}
{{if .Tags}}<ul class="tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{.Body}}
</article>
</main>
</body>
</html>
`

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.SiteTitle}}</title>
<link rel="stylesheet" href="/assets/site.css">
</head>
<body>
<header>
<nav><a href="/index.html">{{.SiteTitle}}</a> · <a href="/tags/index.html">Tags</a></nav>
</header>
<main>
<h1>{{.SiteTitle}}</h1>
<ul class="pages">
{{range .Entries}}<li><a href="/{{.OutputPath}}">{{.Title}}</a>{{if .Date}} <time datetime="{{.Date}}">{{.Date}}</time>{{end}}</li>
{{end}}</ul>
</main>
</body>
</html>
`

const tagsTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Tags - {{.SiteTitle}}</title>
<link rel="stylesheet" href="/assets/site.css">
</head>
<body>
<header>
<nav><a href="/index.html">{{.SiteTitle}}</a> · <a href="/tags/index.html">Tags</a></nav>
</header>
<main>
<h1>Tags</h1>
{{range .Groups}}<section>
<h2 id="{{.Tag}}">{{.Tag}}</h2>
<ul class="pages">
{{range .Entries}}<li><a href="/{{.OutputPath}}">{{.Title}}</a></li>
{{end}}</ul>
</section>
{{end}}</main>
</body>
</html>
`

// SiteCSS is the stylesheet emitted into every build; chroma's class-based
// highlighting and broken-link markup depend on it.
const SiteCSS = `body { max-width: 46rem; margin: 0 auto; padding: 1rem; font-family: system-ui, sans-serif; }
nav { margin-bottom: 2rem; }
.meta { color: #555; }
ul.tags { list-style: none; padding: 0; }
ul.tags li { display: inline-block; background: #eee; border-radius: 3px; padding: 0 0.4rem; margin-right: 0.3rem; }
.wiki-link-broken { color: #a00; border-bottom: 1px dashed #a00; cursor: not-allowed; }
.chroma { background: #f6f6f6; padding: 0.6rem; overflow-x: auto; }
pre { background: #f6f6f6; padding: 0.6rem; overflow-x: auto; }
`

var (
	pageTmpl  = template.Must(template.New("page").Parse(pageTemplate))
	indexTmpl = template.Must(template.New("index").Parse(indexTemplate))
	tagsTmpl  = template.Must(template.New("tags").Parse(tagsTemplate))
)

// IndexEntry is one navigation row on the index and tag pages.
type IndexEntry struct {
	Title      string
	OutputPath string
	Date       string
	Tags       []string
}

// TagGroup is one tag section on the tag index page.
type TagGroup struct {
	Tag     string
	Entries []IndexEntry
}

// FormatDate renders a page date for layouts; zero dates render empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

type pageData struct {
	SiteTitle string
	Title     string
	Date      string
	Tags      []string
	Body      template.HTML
}

func renderLayout(tmpl *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}

// RenderIndexPage produces the site index over the given entries.
func (r *Renderer) RenderIndexPage(entries []IndexEntry) ([]byte, error) {
	return renderLayout(indexTmpl, struct {
		SiteTitle string
		Entries   []IndexEntry
	}{SiteTitle: r.siteTitle, Entries: entries})
}

// RenderTagsPage produces the tag index over the given groups.
func (r *Renderer) RenderTagsPage(groups []TagGroup) ([]byte, error) {
	return renderLayout(tagsTmpl, struct {
		SiteTitle string
		Groups    []TagGroup
	}{SiteTitle: r.siteTitle, Groups: groups})
}
