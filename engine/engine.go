package engine

import (
	"context"
	"errors"
	"time"
)

// ErrChallenged is returned by an engine when the fetched page is an
// anti-bot interstitial the engine cannot clear itself. The runner reacts
// by escalating to a heavier engine.
var ErrChallenged = errors.New("page is behind an anti-bot challenge")

// Engine is the interface all fetch engines implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	BodyText   string
	StatusCode int
	FinalURL   string
	EngineName string

	// Challenged reports that an interstitial was observed during the fetch.
	Challenged bool

	// ChallengeCleared reports that the interstitial disappeared before the
	// challenge timeout. Meaningful only when Challenged is set.
	ChallengeCleared bool
}
