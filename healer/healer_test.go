package healer

import (
	"context"
	"testing"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/discovery"
	"github.com/use-agent/webtest/runspec"
)

func newEngine() *discovery.Engine {
	return discovery.New(discovery.DefaultConfig())
}

func TestHeal_NavigationOccurredSkipsPlaybook(t *testing.T) {
	drv := browser.NewFakeDriver()
	h := New(DefaultConfig(), newEngine(), nil)

	res, err := h.Heal(context.Background(), drv, Input{
		StepIdx:            0,
		Step:               runspec.Step{ElementLabel: "Login"},
		Selector:           "input.stale",
		Round:              1,
		Failure:            runspec.FailureTimeout,
		NavigationOccurred: true,
	})
	if err != nil {
		t.Fatalf("Heal error = %v", err)
	}
	if !res.NavigationSuccess {
		t.Error("expected NavigationSuccess to be true")
	}
	if !res.Success {
		t.Error("expected Success to be true")
	}
	if len(res.Event.Actions) == 0 || res.Event.Actions[0] != "navigation_success" {
		t.Errorf("Actions = %v, want first entry navigation_success", res.Event.Actions)
	}
}

func TestHeal_ReprobeFindsNewSelectorAndGatePasses(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.PageHTML = `<html><body><input aria-label="Login" id="login2"></body></html>`
	drv.Elements[`input[aria-label="Login"]`] = browser.FakeElement{Count: 1, Visible: true, Enabled: true}

	h := New(DefaultConfig(), newEngine(), nil)
	res, err := h.Heal(context.Background(), drv, Input{
		StepIdx:  0,
		Step:     runspec.Step{ElementLabel: "Login", Action: runspec.ActionFill},
		Selector: "input.stale-selector",
		Round:    1,
		Failure:  runspec.FailureNotUnique,
	})
	if err != nil {
		t.Fatalf("Heal error = %v", err)
	}
	if !res.Success {
		t.Errorf("expected the re-gated new selector to pass, got Event=%+v", res.Event)
	}
	want := `input[aria-label="Login"]`
	if res.Selector != want {
		t.Errorf("Selector = %q, want %q", res.Selector, want)
	}
	if res.Strategy != runspec.Tier1AriaLabel {
		t.Errorf("Strategy = %v, want Tier1AriaLabel", res.Strategy)
	}
}

func TestHeal_DiscoveryNoneSentinel(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.PageHTML = `<html><body></body></html>`

	h := New(DefaultConfig(), newEngine(), nil)
	res, err := h.Heal(context.Background(), drv, Input{
		StepIdx:  0,
		Step:     runspec.Step{ElementLabel: "Ghost Field", Action: runspec.ActionFill},
		Selector: "input.gone",
		Round:    1,
		Failure:  runspec.FailureTimeout,
	})
	if err != nil {
		t.Fatalf("Heal error = %v", err)
	}
	if res.Success {
		t.Error("expected failure: discovery found nothing")
	}
	if res.Selector != "" {
		t.Errorf("Selector = %q, want empty sentinel", res.Selector)
	}
	found := false
	for _, a := range res.Event.Actions {
		if a == "discovery_none" {
			found = true
		}
	}
	if !found {
		t.Errorf("Actions = %v, want discovery_none marker", res.Event.Actions)
	}
}

func TestHeal_NonReprobeFailureKeepsOriginalSelector(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["button.disabled-target"] = browser.FakeElement{Count: 1, Visible: true, Enabled: true}

	h := New(DefaultConfig(), newEngine(), nil)
	res, err := h.Heal(context.Background(), drv, Input{
		StepIdx:  0,
		Step:     runspec.Step{ElementLabel: "Submit", Action: runspec.ActionClick},
		Selector: "button.disabled-target",
		Round:    1,
		Failure:  runspec.FailureDisabled,
	})
	if err != nil {
		t.Fatalf("Heal error = %v", err)
	}
	if res.Selector != "button.disabled-target" {
		t.Errorf("Selector = %q, want the original selector unchanged (no reprobe for disabled failures)", res.Selector)
	}
	if !res.Success {
		t.Errorf("expected the gate to now pass once re-checked, got Event=%+v", res.Event)
	}
}

func TestHeal_NoProgressSameSelectorMarker(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.PageHTML = `<html><body><input aria-label="Login" id="login2"></body></html>`
	drv.Elements[`input[aria-label="Login"]`] = browser.FakeElement{Count: 1, Visible: true, Enabled: true}

	h := New(DefaultConfig(), newEngine(), nil)
	res, err := h.Heal(context.Background(), drv, Input{
		StepIdx:  0,
		Step:     runspec.Step{ElementLabel: "Login", Action: runspec.ActionFill},
		Selector: `input[aria-label="Login"]`,
		Round:    1,
		Failure:  runspec.FailureNotUnique,
	})
	if err != nil {
		t.Fatalf("Heal error = %v", err)
	}
	found := false
	for _, a := range res.Event.Actions {
		if a == "no_progress_same_selector" {
			found = true
		}
	}
	if !found {
		t.Errorf("Actions = %v, want no_progress_same_selector marker since reprobe returned the same selector", res.Event.Actions)
	}
}
