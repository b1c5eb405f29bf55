package handlers

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

// RenderMode selects how assistant text is turned into HTML. User text is always escaped.
type RenderMode string

const (
	// RenderText escapes the text; line breaks are kept by the stylesheet.
	RenderText RenderMode = "text"
	// RenderMarkdown converts the text from markdown and sanitizes the result.
	RenderMarkdown RenderMode = "markdown"
	// RenderRaw inserts the text as HTML without any sanitization.
	RenderRaw RenderMode = "raw"
)

// Renderer turns assistant text into HTML according to its mode.
type Renderer struct {
	mode   RenderMode
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer returns a Renderer for mode. An empty mode means RenderText.
func NewRenderer(mode RenderMode) (Renderer, error) {
	switch mode {
	case "":
		mode = RenderText
	case RenderText, RenderMarkdown, RenderRaw:
	default:
		return Renderer{}, fmt.Errorf("unknown render mode: %s", mode)
	}

	policy := bluemonday.UGCPolicy()
	// Highlighted code blocks carry inline colors
	policy.AllowStyles("color", "background-color", "font-weight", "font-style").OnElements("span", "pre")

	return Renderer{
		mode: mode,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle("monokai")),
			),
		),
		policy: policy,
	}, nil
}

// Mode returns the renderer's mode.
func (r Renderer) Mode() RenderMode {
	return r.mode
}

// Render converts assistant text into HTML.
func (r Renderer) Render(text string) (template.HTML, error) {
	switch r.mode {
	case RenderMarkdown:
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(text), &buf); err != nil {
			return "", fmt.Errorf("failed to convert markdown: %w", err)
		}
		return template.HTML(r.policy.SanitizeBytes(buf.Bytes())), nil
	case RenderRaw:
		return template.HTML(text), nil
	default:
		return template.HTML(template.HTMLEscapeString(text)), nil
	}
}
