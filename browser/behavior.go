package browser

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// simulateBehavior performs a few randomized mouse movements and a scroll
// down and back up, with human-ish pauses in between. Everything here is
// best-effort: failures are logged and swallowed, the probe carries on.
func (s *Session) simulateBehavior(ctx context.Context, p *rod.Page) {
	w, h := s.browserCfg.WindowWidth, s.browserCfg.WindowHeight
	if w < 400 {
		w = 400
	}
	if h < 400 {
		h = 400
	}

	moves := 2 + rand.Intn(4)
	for i := 0; i < moves; i++ {
		x := float64(100 + rand.Intn(w-200))
		y := float64(100 + rand.Intn(h-200))
		if err := p.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
			slog.Warn("behavior: mouse move failed", "error", err)
			return
		}
		if !sleepWithContext(ctx, randomDuration(500, 1500)) {
			return
		}
	}

	scroll := float64(100 + rand.Intn(400))
	if err := p.Mouse.Scroll(0, scroll, 1); err != nil {
		slog.Warn("behavior: scroll failed", "error", err)
		return
	}
	if !sleepWithContext(ctx, randomDuration(1000, 2000)) {
		return
	}
	if err := p.Mouse.Scroll(0, -scroll, 1); err != nil {
		slog.Warn("behavior: scroll back failed", "error", err)
		return
	}
	sleepWithContext(ctx, randomDuration(500, 1000))

	slog.Debug("simulated human behavior completed", "mouseMoves", moves)
}

// randomDuration returns a duration uniformly drawn from [lo, hi) milliseconds.
func randomDuration(lo, hi int) time.Duration {
	return time.Duration(lo+rand.Intn(hi-lo)) * time.Millisecond
}
