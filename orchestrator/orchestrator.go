// Package orchestrator implements the Orchestrator (C8): the state machine
// that drives one run from its first step to a terminal verdict, consulting
// the Cache before every discovery and routing failures to the Healer.
package orchestrator

import (
	"context"
	"time"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/cache"
	"github.com/use-agent/webtest/discovery"
	"github.com/use-agent/webtest/executor"
	"github.com/use-agent/webtest/gate"
	"github.com/use-agent/webtest/healer"
	"github.com/use-agent/webtest/runspec"
	"github.com/use-agent/webtest/simhash"
	"github.com/use-agent/webtest/telemetry"
)

// State is the tagged-variant enumeration of the run's FSM states (§4.8).
// Deliberately not a general graph/FSM library: the whole transition table
// fits in one closed switch, and the per-step context each state needs
// (gate params, heal budget, the current PlanEntry) differs enough that a
// generic graph node would just be an interface{} in disguise.
type State int

const (
	StateInit State = iota
	StateDiscover
	StateGateAndExecute
	StateHeal
	StateAwaitHuman
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDiscover:
		return "DISCOVER"
	case StateGateAndExecute:
		return "GATE_AND_EXECUTE"
	case StateHeal:
		return "HEAL"
	case StateAwaitHuman:
		return "AWAIT_HUMAN"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Config bundles the Orchestrator's own timing/budget knobs; the
// collaborators it drives (Cache, Discovery, Gate, Executor, Healer) carry
// their own Config values already applied at construction time.
type Config struct {
	MaxHealRounds    int
	DiscoveryTimeout time.Duration // default: 60s
}

// DefaultConfig matches §5's stated discovery timeout default.
func DefaultConfig() Config {
	return Config{MaxHealRounds: 3, DiscoveryTimeout: 60 * time.Second}
}

// Deps bundles the Orchestrator's collaborators. Cache and Recorder may be
// nil (memory disabled / no telemetry wanted); every other field is
// required.
type Deps struct {
	Cache     *cache.Cache
	Discovery *discovery.Engine
	Executor  *executor.Executor
	Healer    *healer.Healer
	Recorder  *telemetry.Recorder
}

// Orchestrator drives one RunState through the FSM described by §4.8.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New builds an Orchestrator from cfg and its collaborators.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Run drives rs from INIT until it reaches DONE or AWAIT_HUMAN, mutating rs
// in place as it goes — rs is the single piece of state the Orchestrator is
// permitted to touch (runspec.RunState's own doc comment). A returned state
// of AWAIT_HUMAN means a `wait` step paused the run; the caller resumes it
// with Resume once whatever out-of-band signal it is waiting for arrives.
func (o *Orchestrator) Run(ctx context.Context, drv browser.Driver, rs *runspec.RunState) State {
	if rs.StepIdx == 0 && rs.HealRound == 0 && len(rs.ExecutedSteps) == 0 {
		o.inc(ctx, telemetry.RunsCreated)
	}

	state := StateInit
	for state != StateDone && state != StateAwaitHuman {
		state = o.step(ctx, drv, state, rs)
	}

	if state == StateDone {
		if rs.Verdict == runspec.VerdictPass {
			o.inc(ctx, telemetry.RunsPassed)
		} else {
			o.inc(ctx, telemetry.RunsFailed)
		}
	}
	return state
}

// Resume continues a run paused at AWAIT_HUMAN: it records the wait step as
// executed, advances past it, and re-enters the loop from INIT.
func (o *Orchestrator) Resume(ctx context.Context, drv browser.Driver, rs *runspec.RunState) State {
	entry := rs.CurrentEntry()
	rs.ExecutedSteps = append(rs.ExecutedSteps, runspec.ExecutionRecord{
		StepIdx:         rs.StepIdx,
		Selector:        entry.Selector,
		Action:          entry.Step.Action,
		Value:           entry.Step.Value,
		HealRound:       rs.HealRound,
		DiscoverySource: entry.DiscoverySource,
	})
	o.inc(ctx, telemetry.StepsExecuted)

	rs.StepIdx++
	rs.HealRound = 0
	rs.Failure = runspec.FailureNone

	state := StateInit
	for state != StateDone && state != StateAwaitHuman {
		state = o.step(ctx, drv, state, rs)
	}
	return state
}

func (o *Orchestrator) step(ctx context.Context, drv browser.Driver, state State, rs *runspec.RunState) State {
	switch state {
	case StateInit:
		return o.stepInit(rs)
	case StateDiscover:
		return o.stepDiscover(ctx, drv, rs)
	case StateGateAndExecute:
		return o.stepGateAndExecute(ctx, drv, rs)
	case StateHeal:
		return o.stepHeal(ctx, drv, rs)
	default:
		return StateDone
	}
}

// stepInit implements INIT's two transitions: onward to DISCOVER while
// steps remain, or straight to DONE{pass} once every step has executed.
func (o *Orchestrator) stepInit(rs *runspec.RunState) State {
	if rs.Done() {
		rs.Verdict = rs.FinalVerdict(true, false)
		return StateDone
	}
	return StateDiscover
}

// stepDiscover resolves the current step's selector: the same-label reuse
// rule first, then the Cache, then a fresh Discovery call.
func (o *Orchestrator) stepDiscover(ctx context.Context, drv browser.Driver, rs *runspec.RunState) State {
	entry := rs.CurrentEntry()

	if rs.StepIdx > 0 {
		prev := rs.Plan[rs.StepIdx-1]
		if prev.Step.ElementLabel == entry.Step.ElementLabel && prev.Selector != "" {
			entry.Selector = prev.Selector
			entry.Strategy = prev.Strategy
			entry.Confidence = prev.Confidence
			entry.Stable = prev.Stable
			entry.DiscoverySource = runspec.SourceReusedPrev
			return StateGateAndExecute
		}
	}

	url, _ := drv.CurrentURL(ctx)
	rs.Context["url"] = url

	domDigest := ""
	if regionHTML, err := drv.HTML(ctx, entry.Step.Region); err == nil {
		domDigest = simhash.TagSkeletonDigest(regionHTML)
	}

	sessCtx := cache.SessionContext{URL: url}
	action := string(entry.Step.Action)

	if o.deps.Cache != nil {
		if hit, ok := o.deps.Cache.Get(ctx, url, entry.Step.ElementLabel, action, entry.Step.Region, domDigest, sessCtx); ok {
			entry.Selector = hit.Selector
			entry.Strategy = hit.Strategy
			entry.Confidence = hit.Confidence
			entry.Stable = hit.Stable
			entry.DiscoverySource = runspec.SourceSessionCache
			return StateGateAndExecute
		}
	}

	discCtx, cancel := context.WithTimeout(ctx, o.cfg.DiscoveryTimeout)
	defer cancel()

	disc, err := o.deps.Discovery.Discover(discCtx, drv, runspec.IntentFromStep(entry.Step))
	if err != nil || disc == nil {
		rs.Failure = runspec.FailureTimeout
		return StateHeal
	}

	entry.Selector = disc.Selector
	entry.Strategy = disc.Strategy.String()
	entry.Confidence = disc.Score
	entry.Stable = disc.Stable
	entry.DiscoverySource = runspec.SourceFresh

	if o.deps.Cache != nil {
		_ = o.deps.Cache.Save(ctx, url, entry.Step.ElementLabel, action, entry.Step.Region, cache.Entry{
			Selector:   disc.Selector,
			Strategy:   disc.Strategy.String(),
			Confidence: disc.Score,
			Stable:     disc.Stable,
		}, domDigest, sessCtx)
	}

	return StateGateAndExecute
}

// stepGateAndExecute implements GATE_AND_EXECUTE's three transitions: a
// `wait` step pauses for human input before ever touching the gate; a
// passing gate runs the Executor and advances the plan; anything else
// routes to HEAL.
func (o *Orchestrator) stepGateAndExecute(ctx context.Context, drv browser.Driver, rs *runspec.RunState) State {
	entry := rs.CurrentEntry()

	if entry.Step.Action == runspec.ActionWait {
		return StateAwaitHuman
	}

	if entry.Step.Action == runspec.ActionPress && entry.Selector == rs.LastSelectorOK {
		ok, err := gate.PressAfterFillFastPath(ctx, drv, entry.Selector)
		if err == nil && ok {
			return o.executeStep(ctx, drv, rs, entry)
		}
	}

	params := gate.ParamsForRound(rs.HealRound)
	gr, err := gate.Check(ctx, drv, entry.Selector, entry.Step.Region, params)
	if err != nil {
		rs.Failure = runspec.FailureTimeout
		return StateHeal
	}
	if !gr.Passed() {
		rs.Failure = gr.Reason
		return StateHeal
	}

	return o.executeStep(ctx, drv, rs, entry)
}

// executeStep dispatches the Executor against a gate-passed (or
// fast-pathed) entry, records the run log, and advances the plan.
func (o *Orchestrator) executeStep(ctx context.Context, drv browser.Driver, rs *runspec.RunState, entry *runspec.PlanEntry) State {
	out, err := o.deps.Executor.Execute(ctx, drv, entry.Step, entry.Selector)
	if err != nil {
		rs.Failure = runspec.FailureTimeout
		return StateHeal
	}

	rs.ExecutedSteps = append(rs.ExecutedSteps, runspec.ExecutionRecord{
		StepIdx:         rs.StepIdx,
		Selector:        entry.Selector,
		Action:          entry.Step.Action,
		Value:           entry.Step.Value,
		HealRound:       rs.HealRound,
		DiscoverySource: entry.DiscoverySource,
		DurationMS:      out.DurationMS,
		ScreenshotPath:  out.ScreenshotPath,
	})
	o.inc(ctx, telemetry.StepsExecuted)

	rs.LastSelectorOK = entry.Selector
	rs.Failure = runspec.FailureNone
	rs.Context["navigation_occurred"] = out.NavigationOccurred
	rs.Context["navigation_step"] = rs.StepIdx

	rs.StepIdx++
	rs.HealRound = 0
	return StateInit
}

// stepHeal implements HEAL's transitions: budget exhaustion terminates the
// run with RunState.FinalVerdict's verdict (fail on the first step, partial
// on a later one); a successful round's selector goes back through
// GATE_AND_EXECUTE; otherwise the round is simply retried (itself bounded
// by the budget check above) until one of the other two fires.
func (o *Orchestrator) stepHeal(ctx context.Context, drv browser.Driver, rs *runspec.RunState) State {
	if rs.HealRound >= o.cfg.MaxHealRounds {
		rs.Verdict = rs.FinalVerdict(false, true)
		return StateDone
	}
	rs.HealRound++

	entry := rs.CurrentEntry()
	navOccurred, _ := rs.Context["navigation_occurred"].(bool)
	navStep, _ := rs.Context["navigation_step"].(int)
	url, _ := rs.Context["url"].(string)
	if url == "" {
		url, _ = drv.CurrentURL(ctx)
	}

	res, err := o.deps.Healer.Heal(ctx, drv, healer.Input{
		StepIdx:            rs.StepIdx,
		Step:               entry.Step,
		Selector:           entry.Selector,
		Region:             entry.Step.Region,
		Round:              rs.HealRound,
		Failure:            rs.Failure,
		URL:                url,
		NavigationOccurred: navOccurred && navStep == rs.StepIdx-1,
	})
	if err != nil {
		return StateHeal
	}
	rs.HealEvents = append(rs.HealEvents, res.Event)

	if res.NavigationSuccess {
		rs.Failure = runspec.FailureNone
		rs.Context["navigation_occurred"] = false
		rs.StepIdx++
		rs.HealRound = 0
		return StateInit
	}

	entry.Selector = res.Selector
	if res.Strategy != runspec.StrategyNone {
		entry.Strategy = res.Strategy.String()
		entry.Stable = res.Stable
		entry.DiscoverySource = res.DiscoverySource
	}

	if res.Success {
		rs.Failure = runspec.FailureNone
		return StateGateAndExecute
	}

	return StateHeal
}

func (o *Orchestrator) inc(ctx context.Context, name string) {
	if o.deps.Recorder == nil {
		return
	}
	o.deps.Recorder.Inc(ctx, name)
}
