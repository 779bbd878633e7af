package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runerr"
	"github.com/use-agent/webtest/runspec"
)

func newFake() *browser.FakeDriver {
	drv := browser.NewFakeDriver()
	drv.URL = "https://example.test/app"
	return drv
}

func TestExecute_DirectClick(t *testing.T) {
	drv := newFake()
	exec := New(DefaultConfig())

	step := runspec.Step{ID: "s1", Action: runspec.ActionClick}
	out, err := exec.Execute(context.Background(), drv, step, "button.save")
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if out.Strategy != "direct_click" {
		t.Errorf("Strategy = %q, want direct_click", out.Strategy)
	}
}

func TestExecute_ClickFailureMapsToTimeout(t *testing.T) {
	drv := newFake()
	drv.ClickErr = errors.New("boom")
	exec := New(DefaultConfig())

	step := runspec.Step{ID: "s1", Action: runspec.ActionClick}
	_, err := exec.Execute(context.Background(), drv, step, "button.save")
	if err == nil {
		t.Fatal("expected an error")
	}
	var rerr *runerr.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected a *runerr.Error, got %T", err)
	}
	if rerr.Code != runerr.CodeTimeout {
		t.Errorf("Code = %v, want CodeTimeout", rerr.Code)
	}
}

func TestExecute_FillDirect(t *testing.T) {
	drv := newFake()
	drv.Elements["input.email"] = browser.FakeElement{Visible: true}
	exec := New(DefaultConfig())

	step := runspec.Step{ID: "s1", Action: runspec.ActionFill, Value: "a@b.com"}
	out, err := exec.Execute(context.Background(), drv, step, "input.email")
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if out.Strategy != "direct_fill" {
		t.Errorf("Strategy = %q, want direct_fill", out.Strategy)
	}
}

func TestFillWithActivator_RetargetsAfterDirectFailure(t *testing.T) {
	drv := newFake()
	drv.Elements["input.ghost"] = browser.FakeElement{Visible: true}
	drv.FillErrFor = map[string]error{"input.ghost": errors.New("not editable")}
	drv.Elements[`input[type="search"]`] = browser.FakeElement{Visible: true}
	exec := New(DefaultConfig())

	strategy, err := exec.fillWithActivator(context.Background(), drv, "input.ghost", "hello", runspec.ActionFill)
	if err != nil {
		t.Fatalf("fillWithActivator error = %v", err)
	}
	if strategy != "activator_fill" {
		t.Errorf("strategy = %q, want activator_fill", strategy)
	}
}

func TestFillWithActivator_HiddenWithNoActivatorFails(t *testing.T) {
	drv := newFake()
	drv.FillErr = errors.New("not editable")
	exec := New(DefaultConfig())

	_, err := exec.fillWithActivator(context.Background(), drv, "input.ghost", "hello", runspec.ActionFill)
	if err == nil {
		t.Fatal("expected an error, no activator or retarget can reveal the field")
	}
}

func TestPressWithFallbacks_DirectPress(t *testing.T) {
	drv := newFake()
	exec := New(DefaultConfig())

	strategy, err := exec.pressWithFallbacks(context.Background(), drv, "input.search", "Enter")
	if err != nil {
		t.Fatalf("pressWithFallbacks error = %v", err)
	}
	if strategy != "direct_press" {
		t.Errorf("strategy = %q, want direct_press", strategy)
	}
}

func TestPressWithFallbacks_BypassesOpenAutocomplete(t *testing.T) {
	drv := newFake()
	drv.Elements[`[role="listbox"]`] = browser.FakeElement{Count: 1, Visible: true}
	drv.Elements[`button[type="submit"]`] = browser.FakeElement{Visible: true}
	exec := New(DefaultConfig())

	strategy, err := exec.pressWithFallbacks(context.Background(), drv, "input.search", "Enter")
	if err != nil {
		t.Fatalf("pressWithFallbacks error = %v", err)
	}
	if strategy != "autocomplete_bypass" {
		t.Errorf("strategy = %q, want autocomplete_bypass", strategy)
	}
}

func TestPressWithFallbacks_FormSubmitJS(t *testing.T) {
	drv := newFake()
	drv.PressErr = errors.New("press failed")
	drv.EvaluateResult = "true"
	exec := New(DefaultConfig())

	strategy, err := exec.pressWithFallbacks(context.Background(), drv, "input.search", "Enter")
	if err != nil {
		t.Fatalf("pressWithFallbacks error = %v", err)
	}
	if strategy != "form_submit_js" {
		t.Errorf("strategy = %q, want form_submit_js", strategy)
	}
}

func TestPressWithFallbacks_AllStrategiesFail(t *testing.T) {
	drv := newFake()
	drv.PressErr = errors.New("press failed")
	exec := New(DefaultConfig())

	_, err := exec.pressWithFallbacks(context.Background(), drv, "input.search", "Enter")
	if err == nil {
		t.Fatal("expected an error when every press strategy fails")
	}
}

func TestExecute_WaitIsNotDispatchedToDriver(t *testing.T) {
	drv := newFake()
	exec := New(DefaultConfig())

	step := runspec.Step{ID: "s1", Action: runspec.ActionWait}
	out, err := exec.Execute(context.Background(), drv, step, "")
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if out.Strategy != "await_human" {
		t.Errorf("Strategy = %q, want await_human", out.Strategy)
	}
}

func TestDetectNavigation_URLChange(t *testing.T) {
	drv := newFake()
	exec := New(DefaultConfig())

	drv.URL = "https://example.test/next"
	if !exec.detectNavigation(context.Background(), drv, runspec.ActionClick, "https://example.test/app") {
		t.Error("expected navigation to be detected on URL change")
	}
}

func TestDetectNavigation_NonNavigatingAction(t *testing.T) {
	drv := newFake()
	exec := New(DefaultConfig())

	if exec.detectNavigation(context.Background(), drv, runspec.ActionFill, "https://example.test/app") {
		t.Error("fill should never be treated as a navigation trigger")
	}
}
