package gate

import (
	"context"
	"testing"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runspec"
)

func TestCheck_Passes(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["#submit"] = browser.FakeElement{
		Count:   1,
		Visible: true,
		Enabled: true,
		Box:     browser.BoundingBox{X: 10, Y: 10, Width: 50, Height: 20},
	}

	result, err := Check(context.Background(), drv, "#submit", "", ParamsForRound(0))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !result.Passed() {
		t.Errorf("expected gate to pass, got %+v", result)
	}
}

func TestCheck_NotUnique(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["#submit"] = browser.FakeElement{Count: 2}

	result, err := Check(context.Background(), drv, "#submit", "", ParamsForRound(0))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Passed() {
		t.Error("expected gate to fail on non-unique match")
	}
	if result.Reason != runspec.FailureNotUnique {
		t.Errorf("Reason = %q, want not_unique", result.Reason)
	}
}

func TestCheck_NotVisible(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["#submit"] = browser.FakeElement{Count: 1, Visible: false}

	result, err := Check(context.Background(), drv, "#submit", "", ParamsForRound(0))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Reason != runspec.FailureNotVisible {
		t.Errorf("Reason = %q, want not_visible", result.Reason)
	}
}

func TestCheck_Disabled(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["#submit"] = browser.FakeElement{Count: 1, Visible: true, Enabled: false}

	result, err := Check(context.Background(), drv, "#submit", "", ParamsForRound(0))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Reason != runspec.FailureDisabled {
		t.Errorf("Reason = %q, want disabled", result.Reason)
	}
}

func TestCheck_ScopedMismatch(t *testing.T) {
	drv := browser.NewFakeDriver()
	drv.Elements["#submit"] = browser.FakeElement{Count: 1, Visible: true, Enabled: true}
	// no entry for "dialog #submit" so Count() defaults to zero.

	result, err := Check(context.Background(), drv, "#submit", "dialog", ParamsForRound(0))
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Scoped {
		t.Error("expected scope check to fail when region+selector doesn't resolve")
	}
}

func TestParamsForRound_WidensWithRound(t *testing.T) {
	p0 := ParamsForRound(0)
	p2 := ParamsForRound(2)

	if p0.Samples != 3 || p2.Samples != 5 {
		t.Errorf("Samples = %d/%d, want 3/5", p0.Samples, p2.Samples)
	}
	if p2.Tol <= p0.Tol {
		t.Errorf("Tol should widen with round: p0=%v p2=%v", p0.Tol, p2.Tol)
	}
	if p2.Timeout <= p0.Timeout {
		t.Errorf("Timeout should widen with round: p0=%v p2=%v", p0.Timeout, p2.Timeout)
	}
}
