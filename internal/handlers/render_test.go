package handlers_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/chatscreen/internal/handlers"
)

func TestRenderer(t *testing.T) {
	tests := []struct {
		name        string
		mode        handlers.RenderMode
		text        string
		wantContain []string
		wantAbsent  []string
	}{
		{
			name:        "Text escapes markup",
			mode:        handlers.RenderText,
			text:        "<b>bold</b> & more",
			wantContain: []string{"&lt;b&gt;bold&lt;/b&gt; &amp; more"},
			wantAbsent:  []string{"<b>"},
		},
		{
			name:        "Default mode is text",
			mode:        "",
			text:        "<i>x</i>",
			wantContain: []string{"&lt;i&gt;x&lt;/i&gt;"},
		},
		{
			name:        "Markdown is converted and sanitized",
			mode:        handlers.RenderMarkdown,
			text:        "**Revenue** grew\n\n<script>alert(1)</script>\n\n[link](javascript:alert(1))",
			wantContain: []string{"<strong>Revenue</strong>"},
			wantAbsent:  []string{"<script>", "javascript:"},
		},
		{
			name:        "Raw keeps markup verbatim",
			mode:        handlers.RenderRaw,
			text:        `<table><tr><td onclick="x()">1</td></tr></table>`,
			wantContain: []string{`<td onclick="x()">1</td>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := handlers.NewRenderer(tt.mode)
			if err != nil {
				t.Fatalf("NewRenderer() error = %v", err)
			}

			got, err := r.Render(tt.text)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.wantContain {
				if !strings.Contains(string(got), want) {
					t.Errorf("Render() = %v, want to contain %v", got, want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(string(got), absent) {
					t.Errorf("Render() = %v, want not to contain %v", got, absent)
				}
			}
		})
	}
}

func TestNewRendererUnknownMode(t *testing.T) {
	if _, err := handlers.NewRenderer("html"); err == nil {
		t.Error("NewRenderer() should reject unknown modes")
	}
}
