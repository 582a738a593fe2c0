// Package challenge recognizes anti-bot interstitials (Cloudflare and
// similar) from page title, visible text, and DOM structure.
package challenge

import "strings"

// titleMarkers are substrings of interstitial page titles.
var titleMarkers = []string{
	"just a moment",
	"checking your browser",
	"attention required",
	"please wait",
	"ddos-guard",
}

// bodyMarkers are phrases the interstitial renders in its visible text.
var bodyMarkers = []string{
	"checking your browser",
	"verifying you are human",
	"verify you are human",
	"enable javascript and cookies to continue",
}

// Selectors are DOM selectors present only while a challenge is running.
// The browser engine polls for these alongside the text markers.
var Selectors = []string{
	"#cf-challenge-running",
	"#cf-wrapper",
	"#challenge-running",
	"#challenge-stage",
	"#turnstile-wrapper",
	"#cf-spinner-please-wait",
}

// InTitle reports whether the page title looks like a challenge interstitial.
func InTitle(title string) bool {
	return containsAny(title, titleMarkers)
}

// InBody reports whether the visible page text carries a challenge phrase.
func InBody(text string) bool {
	return containsAny(text, bodyMarkers)
}

// Present reports whether either the title or the visible text indicates a
// challenge is still displayed.
func Present(title, bodyText string) bool {
	return InTitle(title) || InBody(bodyText)
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
