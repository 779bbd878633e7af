package healer

import (
	"context"
	"time"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/discovery"
	"github.com/use-agent/webtest/gate"
	"github.com/use-agent/webtest/healhistory"
	"github.com/use-agent/webtest/runspec"
)

// Config bundles the Healer's budget and learning knobs.
type Config struct {
	// MaxRounds is the per-step healing budget (config.HealConfig.MaxRounds).
	MaxRounds int

	// HistoryTopN bounds how many learned strategies are requested from
	// Heal History before a reprobe.
	HistoryTopN int // default: 3
}

// DefaultConfig matches §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{MaxRounds: 3, HistoryTopN: 3}
}

// Healer runs one heal round at a time; the Orchestrator decides whether
// MaxRounds has been exhausted and loops Heal accordingly.
type Healer struct {
	cfg     Config
	disc    *discovery.Engine
	history *healhistory.Store // nil when memory is disabled (§ MemoryConfig)
}

// New builds a Healer. history may be nil: every History consultation is
// then skipped and the round falls back to the default cascade.
func New(cfg Config, disc *discovery.Engine, history *healhistory.Store) *Healer {
	return &Healer{cfg: cfg, disc: disc, history: history}
}

// Input is everything one heal round needs; the Healer never reads or
// writes RunState directly (Design Notes: only the Orchestrator mutates it).
type Input struct {
	StepIdx            int
	Step               runspec.Step
	Selector           string // the selector that just failed
	Region             string
	Round              int // the round about to run, 1-based
	Failure            runspec.Failure
	URL                string
	NavigationOccurred bool // set by the Orchestrator when the previous action navigated
}

// Result is what the Orchestrator folds back into RunState after a round.
type Result struct {
	NavigationSuccess bool
	Selector          string
	Strategy          runspec.Strategy
	Stable            bool
	DiscoverySource   runspec.DiscoverySource
	Success           bool
	Event             runspec.HealEvent
}

// Heal runs one round of the reveal/reprobe/stability/re-gate playbook.
func (h *Healer) Heal(ctx context.Context, drv browser.Driver, in Input) (Result, error) {
	start := time.Now()
	event := runspec.HealEvent{
		Round:            in.Round,
		StepIdx:          in.StepIdx,
		FailureType:      in.Failure,
		OriginalSelector: in.Selector,
	}

	// Navigation-during-healing (§4.7): the target is gone because the
	// page moved on, not because the element never existed. Treat the
	// "not found" as success without touching the page.
	if in.NavigationOccurred {
		event.Actions = append(event.Actions, "navigation_success")
		event.Success = true
		event.DurationMS = time.Since(start).Milliseconds()
		return Result{NavigationSuccess: true, Selector: in.Selector, Success: true, Event: event}, nil
	}

	params := gate.ParamsForRound(in.Round)

	event.Actions = append(event.Actions, h.reveal(ctx, drv, in.Selector)...)

	selector := in.Selector
	strategy := runspec.StrategyNone
	stable := false

	if in.Failure == runspec.FailureTimeout || in.Failure == runspec.FailureNotUnique {
		intent := runspec.IntentFromStep(in.Step)
		intent.Region = in.Region

		if h.history != nil {
			stats, err := h.history.BestStrategies(ctx, in.Step.ElementLabel, in.URL, h.cfg.HistoryTopN)
			if err == nil && len(stats) > 0 {
				names := make([]string, len(stats))
				for i, s := range stats {
					names[i] = s.Strategy
				}
				intent.PreferredStrategies = names
				event.LearnedStrategies = names
			}
		}

		disc, err := h.disc.Discover(ctx, drv, intent)
		if err != nil {
			event.Actions = append(event.Actions, "discovery_error")
		} else if disc != nil {
			if disc.Selector == selector {
				event.Actions = append(event.Actions, "no_progress_same_selector")
			}
			selector = disc.Selector
			strategy = disc.Strategy
			stable = disc.Stable
			event.Actions = append(event.Actions, "reprobe:"+strategy.String())
			event.NewSelector = selector
		} else {
			event.Actions = append(event.Actions, "discovery_none")
			selector = ""
		}
	}

	gateOK := false
	if selector != "" {
		event.Actions = append(event.Actions, "stability_wait")
		gr, err := gate.Check(ctx, drv, selector, in.Region, params)
		if err == nil {
			event.GateResult = &gr
			gateOK = gr.Passed()
		}
	}

	event.DurationMS = time.Since(start).Milliseconds()
	event.Success = gateOK

	if h.history != nil && strategy != runspec.StrategyNone {
		_ = h.history.RecordOutcome(ctx, in.Step.ElementLabel, in.URL, strategy.String(), gateOK, event.DurationMS)
	}

	return Result{
		Selector:        selector,
		Strategy:        strategy,
		Stable:          stable,
		DiscoverySource: runspec.SourceHealed,
		Success:         gateOK,
		Event:           event,
	}, nil
}

// reveal brings the target back into a actionable state: scroll it into
// view, a small incremental scroll for lazy-loading layouts, Escape plus
// the known overlay close-button ladder, then a brief settle wait. It
// returns the actions that actually ran, for the heal event log.
func (h *Healer) reveal(ctx context.Context, drv browser.Driver, selector string) []string {
	var actions []string

	if selector != "" {
		if err := drv.ScrollIntoView(ctx, selector); err == nil {
			actions = append(actions, "scroll_into_view")
		}
	}

	if _, err := drv.Evaluate(ctx, "window.scrollBy(0, 200)"); err == nil {
		actions = append(actions, "incremental_scroll")
	}

	if err := drv.Press(ctx, "", "Escape"); err == nil {
		actions = append(actions, "dismiss_escape")
	}

	dismissed := 0
	for _, sel := range overlayCloseSelectors {
		visible, err := drv.IsVisible(ctx, sel)
		if err != nil || !visible {
			continue
		}
		if err := drv.Click(ctx, sel); err == nil {
			dismissed++
		}
	}
	if dismissed > 0 {
		actions = append(actions, "dismiss_overlays")
	}

	if err := drv.WaitForLoadState(ctx, time.Second); err == nil {
		actions = append(actions, "network_idle")
	}

	return actions
}
