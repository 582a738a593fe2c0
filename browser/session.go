// Package browser manages the Chromium session and the browser-based
// probe: stealth launch, navigation, challenge waiting, and extraction.
package browser

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/probekit/pageprobe/config"
	"github.com/probekit/pageprobe/models"
)

// Session owns the browser process for the lifetime of a run.
// The process is acquired at start and released exactly once via Close,
// on every exit path, so no orphaned Chromium is left behind.
type Session struct {
	browser    *rod.Browser
	browserCfg config.BrowserConfig
	probeCfg   config.ProbeConfig
	closeOnce  sync.Once
}

// NewSession launches a browser with the configured options.
// A launch or connect failure is fatal: the caller exits non-zero.
func NewSession(browserCfg config.BrowserConfig, probeCfg config.ProbeConfig) (*Session, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", browserCfg.WindowWidth, browserCfg.WindowHeight))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))

	if browserCfg.Stealth {
		// ── Stealth flags ────────────────────────────────────────────────
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
		l.Set(flags.Flag("disable-ipc-flooding-protection"))
		l.Set(flags.Flag("disable-popup-blocking"))
		l.Set(flags.Flag("disable-prompt-on-repost"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-component-update"))
		l.Set(flags.Flag("disable-default-apps"))
		l.Set(flags.Flag("disable-extensions"))
		l.Set(flags.Flag("no-first-run"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched",
		"controlURL", controlURL,
		"headless", browserCfg.Headless,
		"stealth", browserCfg.Stealth,
	)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewProbeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Session{
		browser:    browser,
		browserCfg: browserCfg,
		probeCfg:   probeCfg,
	}, nil
}

// Close kills the browser process. Safe to call more than once; only the
// first call does anything.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		slog.Info("session shutting down: closing browser")
		s.browser.MustClose()
		slog.Info("session shutdown complete")
	})
}
