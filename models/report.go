package models

import "time"

// Report is the outcome of one probe run against one target URL.
// It is a terminal artifact: it is logged (and optionally snapshotted),
// never consumed by another component.
type Report struct {
	// URL is the target that was probed.
	URL string

	// FinalURL is the page URL after redirects.
	FinalURL string

	// Title is the page title.
	Title string

	// ContentProbe is the text of the first recognizable content element
	// (heading, logo, nav), when one was found.
	ContentProbe string

	// Excerpt is the collapsed body-text excerpt recorded in the log.
	Excerpt string

	// HTML is the full fetched page markup. Used for snapshots; never logged.
	HTML string

	// StatusCode is the HTTP status of the navigation, 0 when unknown.
	StatusCode int

	// Engine records how the page was fetched: "http" or "browser".
	Engine string

	// Challenged reports whether an anti-bot interstitial was seen at any
	// point during the run.
	Challenged bool

	// ChallengeCleared reports whether the interstitial disappeared before
	// the challenge timeout.
	ChallengeCleared bool

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// PageBytes is the size of the fetched markup.
func (r *Report) PageBytes() int {
	return len(r.HTML)
}
