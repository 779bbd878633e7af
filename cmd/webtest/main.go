package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/cache"
	"github.com/use-agent/webtest/config"
	"github.com/use-agent/webtest/discovery"
	"github.com/use-agent/webtest/executor"
	"github.com/use-agent/webtest/healer"
	"github.com/use-agent/webtest/healhistory"
	"github.com/use-agent/webtest/orchestrator"
	"github.com/use-agent/webtest/runspec"
	"github.com/use-agent/webtest/storage"
	"github.com/use-agent/webtest/telemetry"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	if len(os.Args) < 2 {
		slog.Error("usage: webtest <spec.json>")
		os.Exit(1)
	}

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		slog.Error("failed to read spec file", "path", os.Args[1], "error", err)
		os.Exit(1)
	}

	var w wireSpec
	if err := json.Unmarshal(raw, &w); err != nil {
		slog.Error("failed to decode spec file", "error", err)
		os.Exit(1)
	}
	if err := validateWireSpec(w); err != nil {
		slog.Error("spec failed validation", "error", err)
		os.Exit(1)
	}

	specs, err := buildTestSpecs(w, time.Now())
	if err != nil {
		slog.Error("failed to build test specs", "error", err)
		os.Exit(1)
	}
	slog.Info("webtest starting", "req_id", w.ReqID, "testcases", len(w.TestCases), "runs", len(specs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Launch browser ────────────────────────────────────────────
	// No launch-flag stealth here: stealth is page-script injection only
	// (browser.NewRodDriver's withStealth argument), applied per page below.
	bro, err := launchBrowser()
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer bro.Close()

	// ── 4. Initialise durable store (memory tier) ───────────────────
	var store *storage.Store
	if cfg.Memory.Enabled {
		dbPath := envOr("DB_PATH", "webtest.db")
		store, err = storage.Open(dbPath)
		if err != nil {
			slog.Error("failed to open durable store", "path", dbPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	// ── 5. Wire the run pipeline ─────────────────────────────────────
	recorder := telemetry.NewRecorder("webtest")

	// cfg.Memory.Enabled is the master switch for both the Selector Cache and
	// Heal History: leave both nil when it is off, rather than building a
	// Cache that merely runs with its durable tier disabled.
	var cc *cache.Cache
	var hist *healhistory.Store
	if cfg.Memory.Enabled {
		cc = cache.New(store, recorder, cache.Config{
			FastTTL:              cfg.Cache.FastTTL,
			DurableRetention:     cfg.Cache.DurableRetention,
			DriftThresholdPct:    cfg.Cache.DriftThresholdPct,
			SPADriftThresholdPct: cfg.Cache.SPADriftThresholdPct,
			SPADomains:           cfg.Cache.SPADomains,
		})
		hist = healhistory.New(store, recorder)
	}

	disc := discovery.New(discovery.Config{
		SPADomains:            cfg.Cache.SPADomains,
		SuccessTokenSelectors: cfg.Discovery.SuccessTokenSelectors,
		SettleDelay:           300 * time.Millisecond,
	})

	exec := executor.New(executor.Config{
		ActionTimeout:         10 * time.Second,
		NavigationTimeout:     4 * time.Second,
		SuccessTokenSelectors: cfg.Discovery.SuccessTokenSelectors,
		ScreenshotDir:         envOr("SCREENSHOT_DIR", ""),
	})

	h := healer.New(healer.Config{MaxRounds: cfg.Heal.MaxRounds, HistoryTopN: 3}, disc, hist)

	orch := orchestrator.New(orchestrator.Config{
		MaxHealRounds:    cfg.Heal.MaxRounds,
		DiscoveryTimeout: cfg.Discovery.PerCallTimeout,
	}, orchestrator.Deps{
		Cache:     cc,
		Discovery: disc,
		Executor:  exec,
		Healer:    h,
		Recorder:  recorder,
	})

	// ── 6. Run every expanded test spec ──────────────────────────────
	exitCode := 0
	for _, spec := range specs {
		rs, err := runOne(ctx, bro, orch, spec)
		if err != nil {
			slog.Error("run failed to start", "req_id", spec.ReqID, "error", err)
			exitCode = 1
			continue
		}

		out, _ := json.Marshal(rs)
		fmt.Println(string(out))

		if rs.Verdict != runspec.VerdictPass {
			exitCode = 1
		}
	}

	slog.Info("webtest stopped")
	os.Exit(exitCode)
}

// runOne drives a single TestSpec through the Orchestrator on a fresh page.
// AWAIT_HUMAN has no resume signal available at this entrypoint (no
// interactive channel is wired up), so a run that reaches it is reported
// as-is, paused, rather than blocking forever.
func runOne(ctx context.Context, bro *rod.Browser, orch *orchestrator.Orchestrator, spec runspec.TestSpec) (*runspec.RunState, error) {
	page, err := bro.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("webtest: create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	drv, err := browser.NewRodDriver(page, envBoolOr("STEALTH_PAGE_SCRIPT", true))
	if err != nil {
		return nil, fmt.Errorf("webtest: wrap page: %w", err)
	}

	if err := drv.Goto(ctx, spec.URL); err != nil {
		return nil, fmt.Errorf("webtest: initial navigation: %w", err)
	}

	rs := runspec.NewRunState(spec)
	state := orch.Run(ctx, drv, rs)
	if state == orchestrator.StateAwaitHuman {
		slog.Warn("run paused at a wait step with no resume channel wired", "req_id", spec.ReqID, "step_idx", rs.StepIdx)
	}
	return rs, nil
}

func launchBrowser() (*rod.Browser, error) {
	l := launcher.New().Headless(envBoolOr("BROWSER_HEADLESS", true))
	if bin := envOr("BROWSER_BIN", ""); bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("webtest: launch: %w", err)
	}

	bro := rod.New().ControlURL(controlURL)
	if err := bro.Connect(); err != nil {
		return nil, fmt.Errorf("webtest: connect: %w", err)
	}
	return bro, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true"
}
