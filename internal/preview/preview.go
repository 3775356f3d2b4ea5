// Package preview renders markdown documents to HTML for the preview pane
// and for standalone export.
//
// The preview pane is a trusted local surface, so raw HTML in the source
// passes through unsanitized; sanitization belongs to any untrusted web
// surface embedding the output.
package preview

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

// DefaultHighlightStyle is the chroma style for fenced code blocks.
const DefaultHighlightStyle = "monokai"

// Renderer converts markdown to HTML.
type Renderer struct {
	style     string
	minifyOut bool

	md goldmark.Markdown
	mf *minify.M
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithHighlightStyle sets the syntax highlighting style for fenced code
// blocks. Empty keeps the default.
func WithHighlightStyle(name string) Option {
	return func(r *Renderer) {
		if name != "" {
			r.style = name
		}
	}
}

// WithMinify minifies exported HTML documents.
func WithMinify() Option {
	return func(r *Renderer) {
		r.minifyOut = true
	}
}

// New creates a renderer with GFM tables, strikethrough, task lists, and
// highlighted fenced code blocks.
func New(opts ...Option) *Renderer {
	r := &Renderer{style: DefaultHighlightStyle}
	for _, opt := range opts {
		opt(r)
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Linkify,
			highlighting.NewHighlighting(
				highlighting.WithStyle(r.style),
			),
		),
		goldmark.WithRendererOptions(ghtml.WithUnsafe()),
	)

	if r.minifyOut {
		r.mf = minify.New()
		r.mf.AddFunc("text/html", mhtml.Minify)
	}
	return r
}

// Render converts markdown to an HTML fragment.
func (r *Renderer) Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// exportStyle is the minimal stylesheet embedded in exported documents.
const exportStyle = `body{max-width:48rem;margin:2rem auto;padding:0 1rem;` +
	`font-family:system-ui,sans-serif;line-height:1.6;color:#222}` +
	`pre{overflow-x:auto;padding:.75rem;border-radius:4px}` +
	`code{font-family:ui-monospace,monospace;font-size:.92em}` +
	`table{border-collapse:collapse}th,td{border:1px solid #ccc;padding:.3rem .6rem}` +
	`blockquote{border-left:3px solid #ccc;margin-left:0;padding-left:1rem;color:#555}`

// ExportHTML writes a complete standalone HTML document, minified when the
// renderer was configured with WithMinify.
func (r *Renderer) ExportHTML(w io.Writer, title, markdown string) error {
	body, err := r.Render(markdown)
	if err != nil {
		return err
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	doc.WriteString("<title>")
	doc.WriteString(html.EscapeString(title))
	doc.WriteString("</title>\n<style>")
	doc.WriteString(exportStyle)
	doc.WriteString("</style>\n</head>\n<body>\n")
	doc.WriteString(body)
	doc.WriteString("</body>\n</html>\n")

	out := doc.String()
	if r.mf != nil {
		minified, err := r.mf.String("text/html", out)
		if err != nil {
			return fmt.Errorf("minify export: %w", err)
		}
		out = minified
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
