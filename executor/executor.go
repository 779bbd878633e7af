package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/use-agent/webtest/browser"
	"github.com/use-agent/webtest/runerr"
	"github.com/use-agent/webtest/runspec"
)

// Config bundles the Executor's timing and screenshot settings.
type Config struct {
	// ActionTimeout bounds one dispatched action's worst case, mirroring
	// the teacher's own per-action context.WithTimeout idiom.
	ActionTimeout time.Duration // default: 10s

	// NavigationTimeout bounds how long the post-action navigation race
	// waits before concluding no navigation happened.
	NavigationTimeout time.Duration // default: 4s

	// SuccessTokenSelectors are the same SPA-readiness markers Discovery
	// uses; their appearance after a click/press counts as navigation.
	SuccessTokenSelectors []string

	// ScreenshotDir, when non-empty, receives a post-action screenshot per
	// step. Screenshot failures are always non-critical (§7): logged, not
	// propagated.
	ScreenshotDir string
}

// DefaultConfig matches §4.6/§2's stated defaults.
func DefaultConfig() Config {
	return Config{ActionTimeout: 10 * time.Second, NavigationTimeout: 4 * time.Second}
}

// Executor dispatches one step's action against a resolved selector.
type Executor struct {
	cfg Config
}

// New builds an Executor from cfg.
func New(cfg Config) *Executor {
	return &Executor{cfg: cfg}
}

// Outcome is what the Orchestrator folds into an ExecutionRecord on
// success; a non-nil error means the step failed and must route to the
// Healer with failure=timeout, per §4.6's "any driver exception" rule.
type Outcome struct {
	Strategy           string
	DurationMS         int64
	NavigationOccurred bool
	ScreenshotPath     string
}

// Execute resolves the global pre-action (focus/scroll into view), runs
// the action-specific dispatch with its fallback chain, then the
// post-action navigation race and best-effort screenshot.
func (e *Executor) Execute(ctx context.Context, drv browser.Driver, step runspec.Step, selector string) (Outcome, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	defer cancel()

	urlBefore, _ := drv.CurrentURL(ctx)

	if step.Action != runspec.ActionWait {
		_ = drv.ScrollIntoView(ctx, selector)
		_ = drv.Focus(ctx, selector)
	}

	strategy, err := e.dispatch(ctx, drv, step, selector)
	if err != nil {
		return Outcome{}, runerr.Timeout(fmt.Sprintf("executor: action %s failed", step.Action), err)
	}

	navigationOccurred := e.detectNavigation(ctx, drv, step.Action, urlBefore)

	screenshotPath := ""
	if e.cfg.ScreenshotDir != "" {
		path := filepath.Join(e.cfg.ScreenshotDir, fmt.Sprintf("%s-%s.png", step.ID, uuid.New().String()))
		if serr := drv.Screenshot(ctx, path); serr != nil {
			slog.Warn("executor: screenshot failed", "step", step.ID, "error", serr)
		} else {
			screenshotPath = path
		}
	}

	return Outcome{
		Strategy:           strategy,
		DurationMS:         time.Since(start).Milliseconds(),
		NavigationOccurred: navigationOccurred,
		ScreenshotPath:     screenshotPath,
	}, nil
}

// dispatch runs the action-specific strategy and returns which one
// succeeded, for the run log.
func (e *Executor) dispatch(ctx context.Context, drv browser.Driver, step runspec.Step, selector string) (string, error) {
	switch step.Action {
	case runspec.ActionClick:
		if err := drv.Click(ctx, selector); err != nil {
			return "", err
		}
		return "direct_click", nil

	case runspec.ActionFill, runspec.ActionType:
		return e.fillWithActivator(ctx, drv, selector, step.Value, step.Action)

	case runspec.ActionPress:
		key := step.Value
		if key == "" {
			key = "Enter"
		}
		return e.pressWithFallbacks(ctx, drv, selector, key)

	case runspec.ActionSelect:
		if err := drv.Select(ctx, selector, step.Value); err != nil {
			return "", err
		}
		return "direct_select", nil

	case runspec.ActionCheck:
		if err := drv.Check(ctx, selector); err != nil {
			return "", err
		}
		return "direct_check", nil

	case runspec.ActionUncheck:
		if err := drv.Uncheck(ctx, selector); err != nil {
			return "", err
		}
		return "direct_uncheck", nil

	case runspec.ActionHover:
		if err := drv.Hover(ctx, selector); err != nil {
			return "", err
		}
		return "direct_hover", nil

	case runspec.ActionFocus:
		return "direct_focus", nil

	case runspec.ActionWait:
		return "await_human", nil

	case runspec.ActionNavigate:
		if err := drv.Goto(ctx, step.Value); err != nil {
			return "", err
		}
		return "direct_navigate", nil

	default:
		return "", fmt.Errorf("executor: unrecognized action %q", step.Action)
	}
}

// fillWithActivator implements §4.6's fill ladder: activate a hidden
// target if needed, fill directly, and failing that, retarget an editable
// candidate the activation likely revealed.
func (e *Executor) fillWithActivator(ctx context.Context, drv browser.Driver, selector, value string, action runspec.Action) (string, error) {
	fillFunc := drv.Fill
	if action == runspec.ActionType {
		fillFunc = drv.Type
	}

	if visible, _ := drv.IsVisible(ctx, selector); !visible {
		if err := e.activateHiddenTarget(ctx, drv, selector); err != nil {
			return "", err
		}
	}

	if err := fillFunc(ctx, selector, value); err == nil {
		return "direct_fill", nil
	}

	for _, cand := range fillRetargets {
		if visible, _ := drv.IsVisible(ctx, cand); !visible {
			continue
		}
		if err := fillFunc(ctx, cand, value); err == nil {
			return "activator_fill", nil
		}
	}

	return "", fmt.Errorf("element_hidden")
}

// activateHiddenTarget walks the activator candidate ladder, clicking the
// first visible one and settling briefly before checking whether selector
// became visible, falling back to the "/" hotkey as a last resort.
func (e *Executor) activateHiddenTarget(ctx context.Context, drv browser.Driver, selector string) error {
	for _, act := range fillActivators {
		visible, err := drv.IsVisible(ctx, act)
		if err != nil || !visible {
			continue
		}
		if err := drv.Click(ctx, act); err != nil {
			continue
		}
		if e.settle(ctx, 150*time.Millisecond) != nil {
			return ctx.Err()
		}
		if ok, _ := drv.IsVisible(ctx, selector); ok {
			return nil
		}
	}

	_ = drv.Press(ctx, "", "/")
	if e.settle(ctx, 100*time.Millisecond) != nil {
		return ctx.Err()
	}
	if ok, _ := drv.IsVisible(ctx, selector); ok {
		return nil
	}

	return fmt.Errorf("element_hidden")
}

// pressWithFallbacks implements §4.6's press ladder: bypass an open
// autocomplete dropdown first, then a direct press, then a form-scoped
// submit click, then a JavaScript form.submit() as the last resort.
func (e *Executor) pressWithFallbacks(ctx context.Context, drv browser.Driver, selector, key string) (string, error) {
	if key == "Enter" && e.autocompleteVisible(ctx, drv) {
		for _, sub := range submitSelectors {
			visible, _ := drv.IsVisible(ctx, sub)
			if !visible {
				continue
			}
			if err := drv.Click(ctx, sub); err == nil {
				return "autocomplete_bypass", nil
			}
		}
	}

	if err := drv.Press(ctx, selector, key); err == nil {
		return "direct_press", nil
	}

	formSubmit := fmt.Sprintf(`form:has(%s) button[type="submit"], form:has(%s) input[type="submit"]`, selector, selector)
	if n, err := drv.Count(ctx, formSubmit); err == nil && n > 0 {
		if err := drv.Click(ctx, formSubmit); err == nil {
			return "form_submit_button", nil
		}
	}

	literal, _ := json.Marshal(selector)
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return "false"; const f = el.closest("form"); if (f) { f.submit(); return "true"; } return "false"; })()`, string(literal))
	if res, err := drv.Evaluate(ctx, js); err == nil && res == "true" {
		return "form_submit_js", nil
	}

	return "", fmt.Errorf("all_strategies_failed")
}

func (e *Executor) autocompleteVisible(ctx context.Context, drv browser.Driver) bool {
	for _, sel := range autocompleteIndicators {
		if n, err := drv.Count(ctx, sel); err != nil || n == 0 {
			continue
		}
		if visible, _ := drv.IsVisible(ctx, sel); visible {
			return true
		}
	}
	return false
}

// settle blocks for d or until ctx is done, whichever comes first.
func (e *Executor) settle(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// detectNavigation races a URL-change check against the configured
// success-token selectors for NavigationTimeout, per §4.6. Only click,
// press, and navigate actions can plausibly trigger navigation.
func (e *Executor) detectNavigation(ctx context.Context, drv browser.Driver, action runspec.Action, urlBefore string) bool {
	if action != runspec.ActionClick && action != runspec.ActionPress && action != runspec.ActionNavigate {
		return false
	}

	deadline := time.Now().Add(e.cfg.NavigationTimeout)
	for time.Now().Before(deadline) {
		if urlNow, err := drv.CurrentURL(ctx); err == nil && urlNow != urlBefore && urlBefore != "" {
			return true
		}
		for _, sel := range e.cfg.SuccessTokenSelectors {
			if n, err := drv.Count(ctx, sel); err == nil && n > 0 {
				return true
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}
