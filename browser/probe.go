package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/probekit/pageprobe/challenge"
	"github.com/probekit/pageprobe/engine"
	"github.com/probekit/pageprobe/models"
)

// Name identifies the session as the "browser" fetch engine.
func (s *Session) Name() string { return "browser" }

// Fetch drives one full browser probe of the target URL.
//
// Lifecycle:
//
//  1. Timeout guard      – hard deadline on the entire operation
//  2. Open page          – one fresh tab per run
//  3. DEFER: close page  – the tab never outlives the run
//  4. Stealth injection  – mask navigator.webdriver etc. (before navigation!)
//  5. UA/viewport/headers
//  6. Hijack mount       – block images/CSS/fonts/media (before navigation!)
//  7. Navigate           – bounded by the navigation timeout
//  8. Challenge wait     – fixed-interval polling until clear or timeout
//  9. Behavior           – randomized mouse/scroll, best-effort
//  10. Extract           – HTML, title, final URL, status, body text
//
// Steps 4-6 must precede step 7: stealth JS and resource blocking only take
// effect for navigations after they are installed.
//
// A challenge that never clears is not an error here: the result comes back
// with Challenged set and ChallengeCleared unset, and the runner records the
// soft failure.
func (s *Session) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.probeCfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Open page ──────────────────────────────────────────────────
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	// ── 3. Close the tab on every path. Uses the original page reference
	// (without the request context) so cleanup succeeds even after the
	// deadline expires.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "error", closeErr)
		}
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if s.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 5. User agent, viewport, extra headers ────────────────────────
	ua := req.UserAgent
	if ua == "" {
		ua = s.browserCfg.UserAgent
	}
	if ua != "" {
		if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); uaErr != nil {
			slog.Warn("failed to override user agent", "error", uaErr)
		}
	}
	if vpErr := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.browserCfg.WindowWidth,
		Height:            s.browserCfg.WindowHeight,
		DeviceScaleFactor: 1,
	}); vpErr != nil {
		slog.Warn("failed to set viewport", "error", vpErr)
	}

	// A Google-search Referer makes the visit look like an organic click.
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		headers := map[string]string{
			"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
		}
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(headers),
		}.Call(page)
	}

	// ── 6. Mount hijack router (blocks Image/Stylesheet/Font/Media) ───
	router := setupHijack(page, s.probeCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// Bind the request context to all following Rod operations.
	p := page.Context(ctx)

	// ── 7. Navigate ───────────────────────────────────────────────────
	navCtx, navCancel := context.WithTimeout(ctx, s.probeCfg.NavigationTimeout)
	if navErr := page.Context(navCtx).Navigate(req.URL); navErr != nil {
		navCancel()
		return nil, models.Categorize(navErr, "navigation to target URL failed")
	}
	if stableErr := page.Context(navCtx).WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}
	navCancel()

	// ── 8. Challenge wait loop ────────────────────────────────────────
	challenged, cleared := s.waitChallenge(ctx, p)

	// ── 9. Simulated human behavior ───────────────────────────────────
	if s.probeCfg.SimulateBehavior {
		s.simulateBehavior(ctx, p)
	}

	// ── 10. Extract ───────────────────────────────────────────────────
	result, err := collect(p, req.URL)
	if err != nil {
		return nil, err
	}
	result.EngineName = s.Name()
	result.Challenged = challenged
	result.ChallengeCleared = cleared

	// Final sweep over the rendered text: a marker that reappeared means
	// the interstitial is still up, whatever the wait loop concluded.
	if challenge.Present(result.Title, result.BodyText) {
		result.Challenged = true
		result.ChallengeCleared = false
	}

	return result, nil
}

// waitChallenge polls the page at a fixed interval until no challenge
// indicator remains, the challenge timeout elapses, or the context ends.
// Returns whether a challenge was ever seen and whether it cleared.
func (s *Session) waitChallenge(ctx context.Context, p *rod.Page) (challenged, cleared bool) {
	interval := s.probeCfg.ChallengePollInterval
	deadline := time.Now().Add(s.probeCfg.ChallengeTimeout)

	for {
		title := evalStringOrEmpty(p, `() => document.title`)
		bodyText := evalStringOrEmpty(p, `() => document.body ? document.body.innerText : ""`)

		if !challenge.Present(title, bodyText) && !hasChallengeElement(p) {
			if challenged {
				slog.Info("challenge cleared", "title", title)
			}
			return challenged, true
		}

		if !challenged {
			slog.Info("challenge detected, waiting", "title", title)
			challenged = true
		}

		if time.Now().After(deadline) {
			slog.Warn("challenge wait timeout reached")
			return challenged, false
		}
		if !sleepWithContext(ctx, interval) {
			return challenged, false
		}
	}
}

// hasChallengeElement checks the DOM for selectors that exist only while a
// challenge is running. Best-effort: an eval error counts as no element.
func hasChallengeElement(p *rod.Page) bool {
	sel := strings.Join(challenge.Selectors, ", ")
	res, err := p.Eval(`(sel) => !!document.querySelector(sel)`, sel)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

// collect reads everything the report needs off the rendered page.
func collect(p *rod.Page, requestURL string) (*engine.FetchResult, error) {
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, models.Categorize(err, "failed to extract page HTML")
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = requestURL
	}
	bodyText := evalStringOrEmpty(p, `() => document.body ? document.body.innerText : ""`)

	// Status code via the performance navigation entry: available without
	// CDP network event listeners.
	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}

	return &engine.FetchResult{
		HTML:       rawHTML,
		Title:      title,
		BodyText:   bodyText,
		StatusCode: statusCode,
		FinalURL:   finalURL,
	}, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// sleepWithContext sleeps for d, returning false if the context ended first.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
