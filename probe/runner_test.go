package probe

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/probekit/pageprobe/config"
	"github.com/probekit/pageprobe/engine"
	"github.com/probekit/pageprobe/models"
	"github.com/probekit/pageprobe/snapshot"
)

type fakeEngine struct {
	name  string
	res   *engine.FetchResult
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.EngineName = f.name
	return &res, nil
}

type fakeBrowser struct {
	fakeEngine
	manualCalls int
	closes      int
}

func (f *fakeBrowser) ProbeManual(ctx context.Context, targetURL string) (*engine.FetchResult, error) {
	f.manualCalls++
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.EngineName = f.name
	return &res, nil
}

func (f *fakeBrowser) Close() { f.closes++ }

func testConfig() *config.Config {
	return &config.Config{
		Targets: []string{"https://example.com/"},
		Probe: config.ProbeConfig{
			Timeout:       30 * time.Second,
			ExcerptLength: 50,
			FetchMode:     "auto",
		},
	}
}

func newTestRunner(cfg *config.Config, http engine.Engine, b *fakeBrowser, launchErr error) *Runner {
	return &Runner{
		cfg:     cfg,
		http:    http,
		limiter: rate.NewLimiter(rate.Inf, 1),
		newBrowser: func() (browserEngine, error) {
			if launchErr != nil {
				return nil, launchErr
			}
			return b, nil
		},
	}
}

// captureHandler collects every emitted record so tests can assert on the
// one log line a run produces.
type captureHandler struct {
	records *[]slog.Record
}

func (h captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h captureHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r.Clone())
	return nil
}

func (h captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h captureHandler) WithGroup(string) slog.Handler      { return h }

func captureLogs(t *testing.T) *[]slog.Record {
	t.Helper()
	prev := slog.Default()
	records := &[]slog.Record{}
	slog.SetDefault(slog.New(captureHandler{records: records}))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return records
}

func recordAttr(rec slog.Record, key string) string {
	var val string
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			val = a.Value.String()
			return false
		}
		return true
	})
	return val
}

func okResult() *engine.FetchResult {
	return &engine.FetchResult{
		HTML:       "<html><body><h1>Example Domain</h1><p>hello there</p></body></html>",
		Title:      "Example Domain",
		BodyText:   "Example Domain hello there",
		StatusCode: 200,
		FinalURL:   "https://example.com/",
	}
}

func TestProbeOne_AutoHTTPSuccess(t *testing.T) {
	http := &fakeEngine{name: "http", res: okResult()}
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(testConfig(), http, b, nil)

	report, err := r.probeOne(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("probeOne: %v", err)
	}
	if report.Engine != "http" {
		t.Errorf("engine = %q, want http", report.Engine)
	}
	if b.calls != 0 {
		t.Error("browser engine used despite HTTP success")
	}
	if r.browser != nil {
		t.Error("browser launched despite HTTP success")
	}
	if report.Title != "Example Domain" {
		t.Errorf("title = %q", report.Title)
	}
	if report.ContentProbe != "Example Domain" {
		t.Errorf("contentProbe = %q, want first heading", report.ContentProbe)
	}
}

func TestProbeOne_AutoEscalatesOnChallenge(t *testing.T) {
	http := &fakeEngine{name: "http", err: engine.ErrChallenged}
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(testConfig(), http, b, nil)

	report, err := r.probeOne(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("probeOne: %v", err)
	}
	if http.calls != 1 || b.calls != 1 {
		t.Errorf("calls: http=%d browser=%d, want 1 and 1", http.calls, b.calls)
	}
	if report.Engine != "browser" {
		t.Errorf("engine = %q, want browser", report.Engine)
	}
}

func TestProbeOne_HTTPModeNeverLaunchesBrowser(t *testing.T) {
	cfg := testConfig()
	cfg.Probe.FetchMode = "http"
	http := &fakeEngine{name: "http", err: engine.ErrChallenged}
	r := newTestRunner(cfg, http, nil, errors.New("must not be called"))

	_, err := r.probeOne(context.Background(), "https://example.com/")
	if err == nil {
		t.Fatal("want error for challenged page in http mode")
	}
	if models.Code(err) != models.ErrCodeChallenge {
		t.Errorf("code = %q, want %q", models.Code(err), models.ErrCodeChallenge)
	}
	if r.browser != nil {
		t.Error("browser launched in http mode")
	}
}

func TestProbeOne_BrowserModeSkipsHTTP(t *testing.T) {
	cfg := testConfig()
	cfg.Probe.FetchMode = "browser"
	http := &fakeEngine{name: "http", res: okResult()}
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(cfg, http, b, nil)

	report, err := r.probeOne(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("probeOne: %v", err)
	}
	if http.calls != 0 {
		t.Error("http engine used in browser mode")
	}
	if report.Engine != "browser" {
		t.Errorf("engine = %q, want browser", report.Engine)
	}
}

func TestRun_FatalLaunchErrorPropagates(t *testing.T) {
	cfg := testConfig()
	cfg.Probe.FetchMode = "browser"
	launchErr := models.NewProbeError(models.ErrCodeBrowserCrash, "failed to launch browser", errors.New("no chrome"))
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, nil, launchErr)

	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("want fatal error")
	}
	if !models.IsFatal(err) {
		t.Errorf("error not fatal: %v", err)
	}
}

func TestRun_SoftFailureContinuesRemainingTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Targets = []string{"https://a.example/", "https://b.example/"}
	cfg.Probe.FetchMode = "browser"
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", err: context.DeadlineExceeded}}
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, b, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("soft failures must not abort the run: %v", err)
	}
	if b.calls != 2 {
		t.Errorf("browser calls = %d, want both targets attempted", b.calls)
	}
}

func TestRun_UnclearedChallengeLogsOneWarnRecord(t *testing.T) {
	records := captureLogs(t)

	cfg := testConfig()
	cfg.Probe.FetchMode = "browser"
	res := okResult()
	res.Challenged = true
	res.ChallengeCleared = false
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: res}}
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, b, nil)

	dir := t.TempDir()
	snap, err := snapshot.NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	r.snap = snap

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("an uncleared challenge is a soft failure, not a run error: %v", err)
	}

	var warns, successes int
	for _, rec := range *records {
		if rec.Level == slog.LevelWarn {
			warns++
			if code := recordAttr(rec, "code"); code != models.ErrCodeChallengeTimeout {
				t.Errorf("warn record code = %q, want %q", code, models.ErrCodeChallengeTimeout)
			}
		}
		if rec.Message == "probe succeeded" {
			successes++
		}
	}
	if warns != 1 {
		t.Errorf("warn records = %d, want exactly 1", warns)
	}
	if successes != 0 {
		t.Errorf("success records = %d, want none for an uncleared challenge", successes)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("snapshot written for an uncleared challenge: %v", entries)
	}
}

func TestRun_SuccessLogsOneInfoRecord(t *testing.T) {
	records := captureLogs(t)

	cfg := testConfig()
	cfg.Probe.FetchMode = "browser"
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, b, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var successes, warns int
	for _, rec := range *records {
		if rec.Level == slog.LevelWarn {
			warns++
		}
		if rec.Message == "probe succeeded" {
			successes++
			if title := recordAttr(rec, "title"); title == "" {
				t.Error("success record has an empty title")
			}
			if eng := recordAttr(rec, "engine"); eng != "browser" {
				t.Errorf("success record engine = %q, want browser", eng)
			}
		}
	}
	if successes != 1 {
		t.Errorf("success records = %d, want exactly 1", successes)
	}
	if warns != 0 {
		t.Errorf("warn records = %d, want none for a clean probe", warns)
	}
}

func TestProbeOne_NoEscalationAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	http := &fakeEngine{name: "http", err: context.Canceled}
	r := newTestRunner(testConfig(), http, nil, errors.New("must not be called"))

	_, err := r.probeOne(ctx, "https://example.com/")
	if err == nil {
		t.Fatal("want error after cancellation")
	}
	if models.Code(err) != models.ErrCodeTimeout {
		t.Errorf("code = %q, want %q", models.Code(err), models.ErrCodeTimeout)
	}
	if r.browser != nil {
		t.Error("browser launched after the run context ended")
	}
}

func TestNewRunner_NoTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Targets = nil

	_, err := NewRunner(cfg)
	if err == nil {
		t.Fatal("want error for an empty target list")
	}
	if models.Code(err) != models.ErrCodeInvalidInput {
		t.Errorf("code = %q, want %q", models.Code(err), models.ErrCodeInvalidInput)
	}
}

func TestClose_BrowserClosedOnce(t *testing.T) {
	cfg := testConfig()
	cfg.Probe.FetchMode = "browser"
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, b, nil)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	r.Close()
	if b.closes != 1 {
		t.Errorf("browser closed %d times, want 1", b.closes)
	}
}

func TestClose_WithoutBrowser(t *testing.T) {
	r := newTestRunner(testConfig(), &fakeEngine{name: "http"}, nil, errors.New("unused"))
	r.Close() // must not panic
}

func TestRunManual(t *testing.T) {
	cfg := testConfig()
	b := &fakeBrowser{fakeEngine: fakeEngine{name: "browser", res: okResult()}}
	r := newTestRunner(cfg, &fakeEngine{name: "http"}, b, nil)

	if err := r.RunManual(context.Background()); err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if b.manualCalls != 1 {
		t.Errorf("manualCalls = %d, want 1", b.manualCalls)
	}
	if b.calls != 0 {
		t.Error("manual run must not use the automated fetch path")
	}
}

func TestBuildReport_Excerpt(t *testing.T) {
	r := newTestRunner(testConfig(), &fakeEngine{name: "http"}, nil, nil)
	res := okResult()
	res.BodyText = "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	report := r.buildReport(res, "https://example.com/", time.Second)

	if len([]rune(report.Excerpt)) > 50 {
		t.Errorf("excerpt longer than configured length: %q", report.Excerpt)
	}
	if report.Elapsed != time.Second {
		t.Errorf("elapsed = %v", report.Elapsed)
	}
}
