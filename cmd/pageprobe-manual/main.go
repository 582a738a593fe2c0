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

// The manual variant opens a visible browser and waits for a human to
// navigate to the target domain before probing the page. It differs from
// the automated binary only in configuration: headless off, and the
// navigation step replaced by the wait-for-human loop.
func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	cfg.Browser.Headless = false
	cfg.Probe.FetchMode = "browser"

	closeLog, err := logging.Setup(cfg.Log)
	if err != nil {
		slog.Error("failed to initialise logging", "error", err)
		return 1
	}
	defer func() { _ = closeLog() }()

	slog.Info("pageprobe starting in manual mode",
		"target", cfg.Targets[0],
		"pollInterval", cfg.Probe.ManualPollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := probe.NewRunner(cfg)
	if err != nil {
		slog.Error("failed to initialise runner", "error", err)
		return 1
	}
	defer runner.Close()

	if err := runner.RunManual(ctx); err != nil {
		slog.Error("probe run failed", "error", err)
		return 1
	}

	slog.Info("pageprobe finished")
	return 0
}
