// Package extract pulls loggable page information out of fetched HTML:
// the first recognizable content element and a bounded text excerpt.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// contentSelectors is the ordered list of places a page usually keeps its
// identity: headings, title/logo containers, then structural fallbacks.
var contentSelectors = []string{
	"h1", "h2",
	".title", ".site-title", ".logo",
	".main-content", ".content", ".header",
	"nav", ".navigation", ".menu",
}

// minContentLength filters out decorative one- and two-character matches.
const minContentLength = 3

// compiled once at package load; the selector list is static.
var compiledSelectors = func() []cascadia.Selector {
	sels := make([]cascadia.Selector, 0, len(contentSelectors))
	for _, s := range contentSelectors {
		sel, err := cascadia.Compile(s)
		if err != nil {
			continue
		}
		sels = append(sels, sel)
	}
	return sels
}()

// FirstContent walks the selector list in order and returns the trimmed text
// of the first element with meaningful content. Returns "" when the HTML is
// unparsable or nothing matches — the caller falls back to the page title.
func FirstContent(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	for _, sel := range compiledSelectors {
		text := strings.TrimSpace(doc.FindMatcher(sel).First().Text())
		if len(text) >= minContentLength {
			return Collapse(text)
		}
	}
	return ""
}

// Excerpt collapses whitespace in text and truncates it to at most n runes.
func Excerpt(text string, n int) string {
	collapsed := Collapse(text)
	if n <= 0 {
		return ""
	}
	runes := []rune(collapsed)
	if len(runes) <= n {
		return collapsed
	}
	return string(runes[:n])
}

// Collapse folds all runs of whitespace into single spaces and trims the ends.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
