package config

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Targets  []string
	Browser  BrowserConfig
	Probe    ProbeConfig
	Snapshot SnapshotConfig
	Log      LogConfig
}

// defaultTarget is the site the original probe scripts were written against.
const defaultTarget = "https://www.metal-archives.com/"

// chromeUserAgents is the pool a random user agent is drawn from when
// PROBE_USER_AGENT is unset.
var chromeUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// UserAgent overrides the navigator user agent. When empty a random
	// Chrome user agent is picked at load time.
	UserAgent string

	// WindowWidth and WindowHeight set the browser window size.
	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080

	// Stealth toggles anti-automation-detection measures (launch flags
	// plus stealth JS injected before navigation).
	Stealth bool // default: true
}

// ProbeConfig controls probe behavior.
type ProbeConfig struct {
	// Timeout is the hard deadline for one probe run (navigation +
	// challenge wait + extraction).
	Timeout time.Duration // default: 60s

	// NavigationTimeout is the max time for the navigation alone.
	NavigationTimeout time.Duration // default: 15s

	// ChallengeTimeout is the max time to wait for an anti-bot
	// interstitial to clear.
	ChallengeTimeout time.Duration // default: 30s

	// ChallengePollInterval is the fixed interval between challenge checks.
	ChallengePollInterval time.Duration // default: 2s

	// ManualPollInterval is the interval between current-URL checks while
	// waiting for manual navigation.
	ManualPollInterval time.Duration // default: 10s

	// ExcerptLength is the number of characters of body text recorded in
	// the success log line.
	ExcerptLength int // default: 200

	// FetchMode controls the fetching strategy.
	// "auto" (default): try plain HTTP first, escalate to the browser when
	// the page is challenged or unusable.
	// "browser": always use the browser.
	// "http": plain HTTP only, never launch a browser.
	FetchMode string

	// SimulateBehavior enables randomized mouse movement and scrolling
	// after the challenge clears.
	SimulateBehavior bool // default: true

	// BlockedResourceTypes lists resource types the browser refuses to load.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// RequestsPerSecond paces successive target probes.
	RequestsPerSecond float64 // default: 0.5
}

// SnapshotConfig controls the optional markdown page snapshots.
type SnapshotConfig struct {
	// Dir is the directory snapshots are written to. Empty disables them.
	Dir string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"

	// File is the append-mode log file. Log lines go to stdout and,
	// when File is non-empty, to the file as well.
	File string // default: "pageprobe.log"
}

// Load reads configuration from environment variables with sane defaults.
// The defaults reproduce the constants the probe was originally written
// with, so running with an empty environment probes the default target.
func Load() *Config {
	return &Config{
		Targets: envSliceOr("PROBE_TARGETS", []string{defaultTarget}),
		Browser: BrowserConfig{
			Headless:     envBoolOr("PROBE_HEADLESS", true),
			NoSandbox:    envBoolOr("PROBE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PROBE_BROWSER_BIN"),
			Proxy:        os.Getenv("PROBE_PROXY"),
			UserAgent:    envOr("PROBE_USER_AGENT", chromeUserAgents[rand.Intn(len(chromeUserAgents))]),
			WindowWidth:  envIntOr("PROBE_WINDOW_WIDTH", 1920),
			WindowHeight: envIntOr("PROBE_WINDOW_HEIGHT", 1080),
			Stealth:      envBoolOr("PROBE_STEALTH", true),
		},
		Probe: ProbeConfig{
			Timeout:               envDurationOr("PROBE_TIMEOUT", 60*time.Second),
			NavigationTimeout:     envDurationOr("PROBE_NAV_TIMEOUT", 15*time.Second),
			ChallengeTimeout:      envDurationOr("PROBE_CHALLENGE_TIMEOUT", 30*time.Second),
			ChallengePollInterval: envDurationOr("PROBE_CHALLENGE_POLL", 2*time.Second),
			ManualPollInterval:    envDurationOr("PROBE_MANUAL_POLL", 10*time.Second),
			ExcerptLength:         envIntOr("PROBE_EXCERPT_LENGTH", 200),
			FetchMode:             envOr("PROBE_FETCH_MODE", "auto"),
			SimulateBehavior:      envBoolOr("PROBE_SIMULATE_BEHAVIOR", true),
			BlockedResourceTypes: envSliceOr("PROBE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			RequestsPerSecond: envFloatOr("PROBE_RATE_RPS", 0.5),
		},
		Snapshot: SnapshotConfig{
			Dir: os.Getenv("PROBE_SNAPSHOT_DIR"),
		},
		Log: LogConfig{
			Level:  envOr("PROBE_LOG_LEVEL", "info"),
			Format: envOr("PROBE_LOG_FORMAT", "text"),
			File:   envOr("PROBE_LOG_FILE", "pageprobe.log"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		// A value of only separators and whitespace counts as unset.
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
