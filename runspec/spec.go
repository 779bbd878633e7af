// Package runspec holds the data model shared by every component of the
// run pipeline: the declarative TestSpec a caller submits, the resolved
// Plan the Orchestrator builds against it, and the RunState it mutates
// step by step.
package runspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Action is the closed set of step verbs the Executor dispatches on.
type Action string

const (
	ActionClick    Action = "click"
	ActionFill     Action = "fill"
	ActionType     Action = "type"
	ActionPress    Action = "press"
	ActionSelect   Action = "select"
	ActionCheck    Action = "check"
	ActionUncheck  Action = "uncheck"
	ActionHover    Action = "hover"
	ActionFocus    Action = "focus"
	ActionWait     Action = "wait"
	ActionNavigate Action = "navigate"
)

func (a Action) valid() bool {
	switch a {
	case ActionClick, ActionFill, ActionType, ActionPress, ActionSelect,
		ActionCheck, ActionUncheck, ActionHover, ActionFocus, ActionWait, ActionNavigate:
		return true
	}
	return false
}

// Step is one immutable instruction from the caller's TestSpec. The
// runtime-resolved selector never lives on the Step itself; it lives in the
// parallel PlanEntry so that Steps stay byte-for-byte comparable across
// healing rounds (used by the Orchestrator's same-label reuse rule).
type Step struct {
	ID              string
	ElementLabel    string
	Action          Action
	Value           string
	Region          string
	Outcome         string
	Ordinal         *int
	ElementTypeHint string
}

// TestSpec is an ordered sequence of Steps plus the identifying metadata a
// caller supplies. Variable substitution of {{var}} tokens and {timestamp}
// happens before the core ever sees a TestSpec — that substitution lives in
// the caller's adapter layer, not here.
type TestSpec struct {
	ReqID string
	URL   string
	Steps []Step
}

var reqIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// Validate checks the boundary invariants a TestSpec must satisfy before a
// run starts: a usable req_id, a non-empty step list, and a recognized
// action per step. It does not validate element_label emptiness — that is
// a Discovery-time boundary case (B1), not a malformed-spec case.
func (s TestSpec) Validate() error {
	if !reqIDPattern.MatchString(s.ReqID) {
		return fmt.Errorf("testspec: req_id %q is empty or malformed", s.ReqID)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("testspec %s: no steps", s.ReqID)
	}
	for i, st := range s.Steps {
		if !st.Action.valid() {
			return fmt.Errorf("testspec %s: step %d (%s): unrecognized action %q", s.ReqID, i, st.ID, st.Action)
		}
		if st.Ordinal != nil && *st.Ordinal < 0 {
			return fmt.Errorf("testspec %s: step %d (%s): negative ordinal %d", s.ReqID, i, st.ID, *st.Ordinal)
		}
	}
	return nil
}

// DiscoverySource records where a PlanEntry's selector came from, used both
// for the run log and for the telemetry counters in §6.
type DiscoverySource string

const (
	SourceFresh        DiscoverySource = "fresh"
	SourceSessionCache DiscoverySource = "session_cache"
	SourceDurableCache DiscoverySource = "durable_cache"
	SourceHealed       DiscoverySource = "healed"
	SourceReusedPrev   DiscoverySource = "reused_prev"
)

// PlanEntry is the runtime-resolved counterpart of one Step.
type PlanEntry struct {
	Step            Step
	Selector        string
	Strategy        string
	Confidence      float64
	Stable          bool
	DiscoverySource DiscoverySource
}

// Resolved reports whether discovery has produced a selector for this entry
// yet (invariant I3: the Gate never sees an unset selector).
func (p PlanEntry) Resolved() bool {
	return p.Selector != ""
}

// Plan is the ordered, mutable counterpart of TestSpec.Steps.
type Plan []PlanEntry

// NewPlan builds an unresolved Plan from a validated TestSpec.
func NewPlan(spec TestSpec) Plan {
	plan := make(Plan, len(spec.Steps))
	for i, st := range spec.Steps {
		plan[i] = PlanEntry{Step: st}
	}
	return plan
}

// substTimestamp replaces the literal token "{timestamp}" with the current
// seconds-since-epoch, per §6 ("{timestamp} is replaced by an integer
// seconds-since-epoch"). Substitution of {{var}} tokens from dataset rows is
// a caller-adapter concern (Non-goal); this helper only owns the one token
// the core spec names explicitly.
func substTimestamp(value string, now time.Time) string {
	if !strings.Contains(value, "{timestamp}") {
		return value
	}
	return strings.ReplaceAll(value, "{timestamp}", strconv.FormatInt(now.Unix(), 10))
}

// ResolveTimestamps returns a copy of s in which every step value has its
// {timestamp} tokens replaced; s itself is left unchanged. Intended to be called once by the caller's adapter
// before Validate/NewPlan, but exposed here since it is the one piece of
// variable substitution spec.md assigns to the core's external interface
// rather than to a dropped NL/dataset collaborator.
func (s TestSpec) ResolveTimestamps(now time.Time) TestSpec {
	out := s
	out.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		st.Value = substTimestamp(st.Value, now)
		out.Steps[i] = st
	}
	return out
}
