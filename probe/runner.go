// Package probe orchestrates the fetch-and-probe pipeline: engine
// escalation, pacing between targets, report assembly, and the one log
// record each run produces.
package probe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/probekit/pageprobe/browser"
	"github.com/probekit/pageprobe/config"
	"github.com/probekit/pageprobe/engine"
	"github.com/probekit/pageprobe/extract"
	"github.com/probekit/pageprobe/models"
	"github.com/probekit/pageprobe/snapshot"
)

// browserEngine is the subset of the browser session the runner drives.
type browserEngine interface {
	engine.Engine
	ProbeManual(ctx context.Context, targetURL string) (*engine.FetchResult, error)
	Close()
}

// Runner probes each configured target sequentially and logs one record
// per run. It owns the browser session, which is launched on first need
// and closed exactly once via Close.
type Runner struct {
	cfg  *config.Config
	http engine.Engine
	snap *snapshot.Writer

	limiter *rate.Limiter

	// newBrowser is swapped out in tests.
	newBrowser func() (browserEngine, error)
	browser    browserEngine
}

// NewRunner builds a Runner from config. The browser is not launched here;
// in "auto" mode a target that the HTTP engine handles never pays for one.
func NewRunner(cfg *config.Config) (*Runner, error) {
	if len(cfg.Targets) == 0 {
		return nil, models.NewProbeError(models.ErrCodeInvalidInput, "no targets configured", nil)
	}

	r := &Runner{
		cfg:     cfg,
		http:    engine.NewHTTPEngine(),
		limiter: rate.NewLimiter(rate.Limit(cfg.Probe.RequestsPerSecond), 1),
		newBrowser: func() (browserEngine, error) {
			return browser.NewSession(cfg.Browser, cfg.Probe)
		},
	}

	if cfg.Snapshot.Dir != "" {
		snap, err := snapshot.NewWriter(cfg.Snapshot.Dir)
		if err != nil {
			return nil, models.NewProbeError(models.ErrCodeInvalidInput, "snapshot directory unusable", err)
		}
		r.snap = snap
	}

	return r, nil
}

// Close releases the browser session if one was launched. Safe to call
// whether or not Run completed.
func (r *Runner) Close() {
	if r.browser != nil {
		r.browser.Close()
	}
}

// Run probes every configured target in order, pacing successive targets
// with the rate limiter. Soft failures are logged and do not stop the
// remaining targets; only fatal errors (browser cannot start) are returned.
func (r *Runner) Run(ctx context.Context) error {
	for _, target := range r.cfg.Targets {
		if err := r.limiter.Wait(ctx); err != nil {
			return models.Categorize(err, "run canceled")
		}

		start := time.Now()
		report, err := r.probeOne(ctx, target)
		if err != nil {
			if models.IsFatal(err) {
				return err
			}
			slog.Error("probe failed",
				"url", target,
				"code", models.Code(err),
				"error", err,
				"elapsedMs", time.Since(start).Milliseconds(),
			)
			continue
		}
		r.record(report)
	}
	return nil
}

// RunManual waits for a human to navigate a visible browser to the first
// configured target, then probes the page they landed on.
func (r *Runner) RunManual(ctx context.Context) error {
	target := r.cfg.Targets[0]

	eng, err := r.ensureBrowser()
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := eng.ProbeManual(ctx, target)
	if err != nil {
		if models.IsFatal(err) {
			return err
		}
		slog.Error("probe failed",
			"url", target,
			"code", models.Code(err),
			"error", err,
			"elapsedMs", time.Since(start).Milliseconds(),
		)
		return nil
	}
	r.record(r.buildReport(res, target, time.Since(start)))
	return nil
}

// probeOne runs the escalation chain for a single target.
//
// "http": HTTP engine only. "browser": browser only. "auto": HTTP first,
// escalating to the browser when the HTTP engine fails, hits a challenge,
// or gets something other than an HTML page.
func (r *Runner) probeOne(ctx context.Context, target string) (*models.Report, error) {
	start := time.Now()
	req := &engine.FetchRequest{
		URL:       target,
		UserAgent: r.cfg.Browser.UserAgent,
		Timeout:   r.cfg.Probe.Timeout,
	}

	mode := r.cfg.Probe.FetchMode
	if mode == "auto" || mode == "http" {
		res, err := r.http.Fetch(ctx, req)
		if err == nil {
			return r.buildReport(res, target, time.Since(start)), nil
		}
		if mode == "http" {
			if errors.Is(err, engine.ErrChallenged) {
				return nil, models.NewProbeError(models.ErrCodeChallenge,
					"challenge cannot be cleared without a browser", err)
			}
			return nil, models.Categorize(err, "http fetch failed")
		}
		// Canceled or out of time: launching a browser now would only fail.
		if ctx.Err() != nil {
			return nil, models.Categorize(err, "http fetch failed")
		}
		slog.Info("http engine could not complete, escalating to browser",
			"url", target, "error", err)
	}

	eng, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}
	res, err := eng.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.buildReport(res, target, time.Since(start)), nil
}

// ensureBrowser launches the browser session on first use.
func (r *Runner) ensureBrowser() (browserEngine, error) {
	if r.browser != nil {
		return r.browser, nil
	}
	b, err := r.newBrowser()
	if err != nil {
		return nil, err
	}
	r.browser = b
	return b, nil
}

// buildReport assembles the terminal Report from an engine result.
func (r *Runner) buildReport(res *engine.FetchResult, target string, elapsed time.Duration) *models.Report {
	return &models.Report{
		URL:              target,
		FinalURL:         res.FinalURL,
		Title:            res.Title,
		ContentProbe:     extract.FirstContent(res.HTML),
		Excerpt:          extract.Excerpt(res.BodyText, r.cfg.Probe.ExcerptLength),
		HTML:             res.HTML,
		StatusCode:       res.StatusCode,
		Engine:           res.EngineName,
		Challenged:       res.Challenged,
		ChallengeCleared: res.ChallengeCleared,
		Elapsed:          elapsed,
	}
}

// record writes the run's single log record: a soft-failure line when the
// challenge never cleared, a success line otherwise. Snapshots are written
// only for successful runs.
func (r *Runner) record(report *models.Report) {
	if report.Challenged && !report.ChallengeCleared {
		slog.Warn("challenge never cleared, giving up",
			"url", report.URL,
			"code", models.ErrCodeChallengeTimeout,
			"finalURL", report.FinalURL,
			"title", report.Title,
			"engine", report.Engine,
			"elapsedMs", report.Elapsed.Milliseconds(),
		)
		return
	}

	slog.Info("probe succeeded",
		"url", report.URL,
		"finalURL", report.FinalURL,
		"title", report.Title,
		"contentProbe", report.ContentProbe,
		"excerpt", report.Excerpt,
		"statusCode", report.StatusCode,
		"engine", report.Engine,
		"challenged", report.Challenged,
		"pageBytes", report.PageBytes(),
		"elapsedMs", report.Elapsed.Milliseconds(),
	)

	if r.snap != nil {
		path, err := r.snap.Write(report.HTML, report.FinalURL)
		if err != nil {
			slog.Warn("snapshot write failed", "url", report.URL, "error", err)
			return
		}
		slog.Info("snapshot written", "url", report.URL, "path", path)
	}
}
