package extract

import (
	"strings"
	"testing"
)

func TestFirstContent_Heading(t *testing.T) {
	html := `<html><body><h1>Encyclopaedia Metallum</h1><p>welcome</p></body></html>`
	got := FirstContent(html)
	if got != "Encyclopaedia Metallum" {
		t.Errorf("FirstContent = %q, want heading text", got)
	}
}

func TestFirstContent_SelectorOrder(t *testing.T) {
	// h1 comes before .logo in the selector list even when .logo appears
	// first in the document.
	html := `<html><body><div class="logo">LOGO</div><h1>Main Heading</h1></body></html>`
	got := FirstContent(html)
	if got != "Main Heading" {
		t.Errorf("FirstContent = %q, want %q", got, "Main Heading")
	}
}

func TestFirstContent_FallbackSelectors(t *testing.T) {
	html := `<html><body><div class="site-title">The Archives</div><p>text</p></body></html>`
	got := FirstContent(html)
	if got != "The Archives" {
		t.Errorf("FirstContent = %q, want %q", got, "The Archives")
	}
}

func TestFirstContent_SkipsShortMatches(t *testing.T) {
	// A two-character heading is decoration, not content.
	html := `<html><body><h1>ok</h1><div class="content">Real content here</div></body></html>`
	got := FirstContent(html)
	if got != "Real content here" {
		t.Errorf("FirstContent = %q, want the content div text", got)
	}
}

func TestFirstContent_NoMatch(t *testing.T) {
	html := `<html><body><p>just a paragraph</p></body></html>`
	if got := FirstContent(html); got != "" {
		t.Errorf("FirstContent = %q, want empty", got)
	}
}

func TestFirstContent_CollapsesWhitespace(t *testing.T) {
	html := "<html><body><h1>  Iron\n\tMaiden  </h1></body></html>"
	got := FirstContent(html)
	if got != "Iron Maiden" {
		t.Errorf("FirstContent = %q, want %q", got, "Iron Maiden")
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"short text unchanged", "hello world", 200, "hello world"},
		{"whitespace collapsed", "one\n\ttwo   three", 200, "one two three"},
		{"truncated", "abcdefghij", 4, "abcd"},
		{"zero length", "anything", 0, ""},
		{"empty input", "", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.text, tt.n); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}

func TestExcerpt_RuneSafe(t *testing.T) {
	text := strings.Repeat("ä", 10)
	got := Excerpt(text, 5)
	if got != strings.Repeat("ä", 5) {
		t.Errorf("Excerpt truncated mid-rune: %q", got)
	}
}
