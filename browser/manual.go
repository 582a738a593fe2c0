package browser

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/probekit/pageprobe/challenge"
	"github.com/probekit/pageprobe/engine"
	"github.com/probekit/pageprobe/models"
)

// ProbeManual opens a blank tab in a (typically visible) browser, waits for
// a human to navigate to the target's domain, then extracts the page they
// landed on. The wait polls the current URL at the configured interval and
// ends only when the domain matches or the context is canceled.
func (s *Session) ProbeManual(ctx context.Context, targetURL string) (*engine.FetchResult, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Hostname() == "" {
		return nil, models.NewProbeError(
			models.ErrCodeInvalidInput,
			"target URL is not parsable",
			err,
		)
	}
	domain := u.Hostname()

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close page", "error", closeErr)
		}
	}()

	slog.Info("browser is ready, navigate to the target manually", "domain", domain)

	for {
		info, infoErr := page.Info()
		if infoErr != nil {
			slog.Warn("failed to read current URL", "error", infoErr)
		} else if onDomain(info.URL, domain) {
			slog.Info("target domain detected", "url", info.URL)
			break
		} else {
			slog.Info("waiting for manual navigation", "currentURL", info.URL)
		}

		if !sleepWithContext(ctx, s.probeCfg.ManualPollInterval) {
			return nil, models.Categorize(ctx.Err(), "manual navigation wait canceled")
		}
	}

	p := page.Context(ctx)
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	result, err := collect(p, targetURL)
	if err != nil {
		return nil, err
	}
	result.EngineName = s.Name()
	if challenge.Present(result.Title, result.BodyText) {
		result.Challenged = true
	}
	return result, nil
}

// onDomain reports whether rawURL's host is the domain or a subdomain of it.
func onDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
