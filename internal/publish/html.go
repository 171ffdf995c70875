package publish

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is not passed through.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// MarkdownToHTML renders a markdown fragment.
func MarkdownToHTML(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 72rem; margin: 2rem auto; padding: 0 1rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: .35rem .5rem; text-align: left; vertical-align: top; }
th { background: #f5f5f5; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTMLPage wraps rendered markdown in a standalone HTML document.
func RenderHTMLPage(title, markdown string) (string, error) {
	body, err := MarkdownToHTML(markdown)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	err = pageTemplate.Execute(&b, struct {
		Title string
		// goldmark output is trusted only because raw HTML is disabled above.
		Body template.HTML
	}{Title: title, Body: template.HTML(body)})
	return b.String(), err
}
