package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/probekit/pageprobe/config"
	"github.com/probekit/pageprobe/logging"
	"github.com/probekit/pageprobe/probe"
)

// Exit codes: 0 for success and soft failures (navigation timeout, challenge
// never cleared), 1 for fatal failures (browser cannot start, bad config).
func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		slog.Error("failed to initialise logging", "error", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	slog.Info("pageprobe starting",
		"targets", cfg.Targets,
		"headless", cfg.Browser.Headless,
		"fetchMode", cfg.Probe.FetchMode,
		"challengeTimeout", cfg.Probe.ChallengeTimeout,
	)

	// ── 3. Cancel the run on SIGINT/SIGTERM ─────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Run the probe ────────────────────────────────────────────
	runner, err := probe.NewRunner(cfg)
	if err != nil {
		slog.Error("failed to initialise runner", "error", err)
		return 1
	}
	// Close runs on every path so the browser process never outlives us.
	defer runner.Close()

	if err := runner.Run(ctx); err != nil {
		slog.Error("probe run failed", "error", err)
		return 1
	}

	slog.Info("pageprobe finished")
	return 0
}
