package runspec

import "time"

// Failure is the closed taxonomy observed at the Gate/Executor boundary.
type Failure string

const (
	FailureNone       Failure = ""
	FailureNotUnique  Failure = "not_unique"
	FailureNotVisible Failure = "not_visible"
	FailureDisabled   Failure = "disabled"
	FailureUnstable   Failure = "unstable"
	FailureTimeout    Failure = "timeout"
)

// Verdict is the terminal outcome recorded at DONE.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictPartial Verdict = "partial"
	VerdictBlocked Verdict = "blocked"
)

// BlockedSignal is a consumer-supplied marker that the target interposed an
// anti-automation page; its mere presence forces verdict=blocked regardless
// of step progress.
type BlockedSignal struct {
	URL       string
	Reason    string
	Timestamp time.Time
}

// HealEvent is one append-only record of a single heal round for a single
// step. Back-references to the step are by StepIdx, never by pointer, per
// the tagged-variant-plus-event-log design.
type HealEvent struct {
	Round             int         `json:"round"`
	StepIdx           int         `json:"step_idx"`
	FailureType       Failure     `json:"failure_type"`
	Actions           []string    `json:"actions,omitempty"`
	OriginalSelector  string      `json:"original_selector"`
	NewSelector       string      `json:"new_selector,omitempty"`
	LearnedStrategies []string    `json:"learned_strategies,omitempty"`
	GateResult        *GateResult `json:"gate_result,omitempty"`
	DurationMS        int64       `json:"duration_ms"`
	Success           bool        `json:"success"`
}

// ExecutionRecord is one append-only record of a completed step, shaped to
// match §6's emitted-run-log field names verbatim.
type ExecutionRecord struct {
	StepIdx         int             `json:"step_idx"`
	Selector        string          `json:"selector"`
	Action          Action          `json:"action"`
	Value           string          `json:"value,omitempty"`
	HealRound       int             `json:"heal_round"`
	DiscoverySource DiscoverySource `json:"discovery_source"`
	DurationMS      int64           `json:"duration_ms"`
	ScreenshotPath  string          `json:"screenshot_path,omitempty"`
}

// RunState is the single piece of mutable state in a run. Only the
// Orchestrator is permitted to mutate it; every other component receives a
// read view (Intent, selector, gate params) and returns a result the
// Orchestrator folds back in.
type RunState struct {
	ReqID          string            `json:"req_id"`
	StepIdx        int               `json:"step_idx"`
	HealRound      int               `json:"heal_round"`
	Failure        Failure           `json:"failure,omitempty"`
	LastSelectorOK string            `json:"last_selector_ok,omitempty"`
	Plan           Plan              `json:"-"`
	HealEvents     []HealEvent       `json:"heal_events,omitempty"`
	ExecutedSteps  []ExecutionRecord `json:"executed_steps"`
	Verdict        Verdict           `json:"verdict"`
	Context        map[string]any    `json:"-"`
	BlockedSignals []BlockedSignal   `json:"blocked_signals,omitempty"`
}

// NewRunState creates the initial RunState for a validated TestSpec.
func NewRunState(spec TestSpec) *RunState {
	return &RunState{
		ReqID:   spec.ReqID,
		Plan:    NewPlan(spec),
		Context: map[string]any{"url": spec.URL},
	}
}

// Done reports whether every step in the Plan has been passed over.
func (rs *RunState) Done() bool {
	return rs.StepIdx >= len(rs.Plan)
}

// CurrentEntry returns the PlanEntry the Orchestrator is presently working
// on. Callers must check Done() first.
func (rs *RunState) CurrentEntry() *PlanEntry {
	return &rs.Plan[rs.StepIdx]
}

// RecordBlocked appends a blocked-page signal to the run context. It is the
// only mutation an external collaborator may request; the Orchestrator
// still applies the verdict-precedence rule at DONE.
func (rs *RunState) RecordBlocked(sig BlockedSignal) {
	rs.BlockedSignals = append(rs.BlockedSignals, sig)
}

// FinalVerdict applies the precedence rule of §4.8: blocked signals win
// outright; otherwise pass if every step executed; otherwise, when the heal
// budget ran out, fail if that happened on the first step (StepIdx == 0)
// and partial if on a later step; any other early stop is fail.
func (rs *RunState) FinalVerdict(allStepsExecuted, lastStepExhaustedBudget bool) Verdict {
	if len(rs.BlockedSignals) > 0 {
		return VerdictBlocked
	}
	if allStepsExecuted {
		return VerdictPass
	}
	if lastStepExhaustedBudget && rs.StepIdx == 0 {
		return VerdictFail
	}
	if lastStepExhaustedBudget {
		return VerdictPartial
	}
	return VerdictFail
}

// GateResult is the output struct of the Actionability Gate (C5): one
// boolean per check plus the offending reason, reused verbatim by HealEvent
// so a run log reader can see exactly what the gate observed.
type GateResult struct {
	Unique     bool
	Visible    bool
	Enabled    bool
	StableBBox bool
	Scoped     bool
	Reason     Failure
}

// Passed reports whether all five checks succeeded.
func (g GateResult) Passed() bool {
	return g.Unique && g.Visible && g.Enabled && g.StableBBox && g.Scoped
}
