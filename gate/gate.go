// Package gate implements the Actionability Gate (C5): the five-point
// check a discovered selector must pass before the Executor is allowed to
// act on it.
package gate

import (
	"context"
	"time"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runerr"
	"github.com/use-agent/webtest/runspec"
)

// Params bundles the heal-round-adaptive knobs. Use ParamsForRound to
// build one from a round number.
type Params struct {
	Samples int
	Tol     float64
	Timeout time.Duration
}

// ParamsForRound computes the gate's parameters for the given heal round
// (round 0 is the initial, pre-heal attempt): sample count and tolerance
// both widen with each round so that a page still settling gets more
// patience on later attempts, and the timeout grows in step.
func ParamsForRound(round int) Params {
	return Params{
		Samples: 3 + round,
		Tol:     2.0 + 0.5*float64(round),
		Timeout: time.Duration(2000+1000*round) * time.Millisecond,
	}
}

// Check runs the five-point actionability check against selector, scoped
// to region (region == "" means the whole page).
func Check(ctx context.Context, drv browser.Driver, selector, region string, params Params) (runspec.GateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	count, err := drv.Count(ctx, selector)
	if err != nil {
		return runspec.GateResult{Reason: runspec.FailureTimeout}, runerr.Timeout("gate: count failed", err)
	}
	if count != 1 {
		return runspec.GateResult{Unique: false, Reason: runspec.FailureNotUnique}, nil
	}

	visible, err := drv.IsVisible(ctx, selector)
	if err != nil {
		return runspec.GateResult{Unique: true, Reason: runspec.FailureTimeout}, runerr.Timeout("gate: visibility check failed", err)
	}
	if !visible {
		return runspec.GateResult{Unique: true, Visible: false, Reason: runspec.FailureNotVisible}, nil
	}

	enabled, err := drv.IsEnabled(ctx, selector)
	if err != nil {
		return runspec.GateResult{Unique: true, Visible: true, Reason: runspec.FailureTimeout}, runerr.Timeout("gate: enabled check failed", err)
	}
	if !enabled {
		return runspec.GateResult{Unique: true, Visible: true, Enabled: false, Reason: runspec.FailureDisabled}, nil
	}

	stable, err := sampleStable(ctx, drv, selector, params)
	if err != nil {
		return runspec.GateResult{Unique: true, Visible: true, Enabled: true, Reason: runspec.FailureTimeout}, runerr.Timeout("gate: stability sampling failed", err)
	}
	if !stable {
		return runspec.GateResult{Unique: true, Visible: true, Enabled: true, StableBBox: false, Reason: runspec.FailureUnstable}, nil
	}

	scoped, err := isScoped(ctx, drv, selector, region)
	if err != nil {
		return runspec.GateResult{Unique: true, Visible: true, Enabled: true, StableBBox: true, Reason: runspec.FailureTimeout}, runerr.Timeout("gate: scope check failed", err)
	}
	if !scoped {
		return runspec.GateResult{Unique: true, Visible: true, Enabled: true, StableBBox: true, Scoped: false, Reason: runspec.FailureNotVisible}, nil
	}

	return runspec.GateResult{Unique: true, Visible: true, Enabled: true, StableBBox: true, Scoped: true, Reason: runspec.FailureNone}, nil
}

// sampleStable takes params.Samples bounding-box readings with a short
// inter-sample delay and reports whether every later sample stayed within
// params.Tol pixels of the first on each axis.
func sampleStable(ctx context.Context, drv browser.Driver, selector string, params Params) (bool, error) {
	first, err := drv.BoundingBox(ctx, selector)
	if err != nil {
		return false, err
	}

	for i := 1; i < params.Samples; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}

		box, err := drv.BoundingBox(ctx, selector)
		if err != nil {
			return false, err
		}
		if absDiff(box.X, first.X) > params.Tol || absDiff(box.Y, first.Y) > params.Tol ||
			absDiff(box.Width, first.Width) > params.Tol || absDiff(box.Height, first.Height) > params.Tol {
			return false, nil
		}
	}
	return true, nil
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// isScoped reports whether selector's matched element is a descendant of
// region. A page-scoped step (region == "") is trivially in scope.
func isScoped(ctx context.Context, drv browser.Driver, selector, region string) (bool, error) {
	if region == "" {
		return true, nil
	}
	count, err := drv.Count(ctx, region+" "+selector)
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// PressAfterFillFastPath runs the short settle-and-visibility-only check
// used when action is press and selector equals the run's last known-good
// selector. On failure the caller must fall back to the full Check.
func PressAfterFillFastPath(ctx context.Context, drv browser.Driver, selector string) (ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	visible, err := drv.IsVisible(ctx, selector)
	if err != nil {
		return false, err
	}
	return visible, nil
}
