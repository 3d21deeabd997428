// Package markdown renders accumulated idea text into HTML.
package markdown

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown into HTML with GitHub flavored extensions and line-break-sensitive
// paragraphs. Because the text grows one fragment at a time, Render is called on incomplete documents
// all the time; CommonMark accepts any input, so half-written tables or unterminated code fences render
// as whatever they currently parse to.
type Renderer struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

const errLoggerKey = "err"

// NewRenderer creates a Renderer. Raw HTML found in the source is omitted from the output.
func NewRenderer(logger *slog.Logger) Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return Renderer{
		md:     md,
		logger: logger.With(slog.String("module", "markdown")),
	}
}

// Render returns the HTML for text. It never fails: if conversion errors, the text is returned escaped
// inside a pre element.
func (r Renderer) Render(text string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		r.logger.Warn("Failed to convert markdown", slog.String(errLoggerKey, err.Error()))
		return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}
	return template.HTML(buf.String())
}
