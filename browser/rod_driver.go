package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ordinalSep marks an ordinal suffix Discovery appends to an otherwise
// ambiguous CSS selector, borrowed from Playwright's own "nth=" locator
// chaining syntax: everything before the separator is a plain CSS selector,
// everything after is the 0-based index into its document-order matches.
const ordinalSep = " >> nth="

func splitOrdinal(selector string) (css string, nth int, hasNth bool) {
	idx := strings.LastIndex(selector, ordinalSep)
	if idx < 0 {
		return selector, 0, false
	}
	n, err := strconv.Atoi(selector[idx+len(ordinalSep):])
	if err != nil {
		return selector, 0, false
	}
	return selector[:idx], n, true
}

// RodDriver implements Driver over a single *rod.Page. One RodDriver per
// run: the caller opens a page and wraps it once, and the Orchestrator
// runs the whole step sequence against that wrapper.
type RodDriver struct {
	page *rod.Page
}

// NewRodDriver wraps page, injecting the stealth script before any
// navigation happens. Stealth here means page-script injection (masking
// navigator.webdriver and friends) — never launch-flag stealth, which is
// the caller's concern when it builds the *rod.Browser in the first place.
func NewRodDriver(page *rod.Page, withStealth bool) (*RodDriver, error) {
	if withStealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			return nil, fmt.Errorf("browser: stealth injection failed: %w", err)
		}
	}
	return &RodDriver{page: page}, nil
}

func (d *RodDriver) bound(ctx context.Context) *rod.Page {
	return d.page.Context(ctx)
}

// element resolves selector to a single *rod.Element, honoring an ordinal
// suffix when present. Without one it behaves exactly like p.Element.
func (d *RodDriver) element(ctx context.Context, selector string) (*rod.Element, error) {
	css, nth, hasNth := splitOrdinal(selector)
	if !hasNth {
		return d.bound(ctx).Element(css)
	}
	els, err := d.bound(ctx).Elements(css)
	if err != nil {
		return nil, fmt.Errorf("browser: elements %q: %w", css, err)
	}
	if nth < 0 || nth >= len(els) {
		return nil, fmt.Errorf("browser: nth=%d out of range (%d matches) for %q", nth, len(els), css)
	}
	return els[nth], nil
}

// elementCount reports how many elements selector resolves to: 0 or 1 for
// an ordinal-suffixed selector depending on range, or the raw match count
// for a plain CSS selector.
func (d *RodDriver) elementCount(ctx context.Context, selector string) (int, error) {
	css, nth, hasNth := splitOrdinal(selector)
	els, err := d.bound(ctx).Elements(css)
	if err != nil {
		return 0, fmt.Errorf("browser: count %q: %w", css, err)
	}
	if !hasNth {
		return len(els), nil
	}
	if nth < 0 || nth >= len(els) {
		return 0, nil
	}
	return 1, nil
}

func (d *RodDriver) Goto(ctx context.Context, url string) error {
	p := d.bound(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		return fmt.Errorf("browser: wait dom stable: %w", err)
	}
	return nil
}

func (d *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.Evaluate(ctx, `() => window.location.href`)
}

func (d *RodDriver) HTML(ctx context.Context, selector string) (string, error) {
	p := d.bound(ctx)
	if selector == "" {
		html, err := p.HTML()
		if err != nil {
			return "", fmt.Errorf("browser: page html: %w", err)
		}
		return html, nil
	}

	el, err := d.element(ctx, selector)
	if err != nil {
		return "", fmt.Errorf("browser: element %q: %w", selector, err)
	}
	html, err := el.HTML()
	if err != nil {
		return "", fmt.Errorf("browser: element %q html: %w", selector, err)
	}
	return html, nil
}

func (d *RodDriver) Count(ctx context.Context, selector string) (int, error) {
	return d.elementCount(ctx, selector)
}

func (d *RodDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	el, err := d.element(ctx, selector)
	if err != nil {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return false, fmt.Errorf("browser: visible %q: %w", selector, err)
	}
	return visible, nil
}

func (d *RodDriver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	el, err := d.element(ctx, selector)
	if err != nil {
		return false, nil
	}
	res, err := el.Eval(`() => !(this.disabled || this.getAttribute('aria-disabled') === 'true')`)
	if err != nil {
		return false, fmt.Errorf("browser: enabled check %q: %w", selector, err)
	}
	return res.Value.Bool(), nil
}

func (d *RodDriver) BoundingBox(ctx context.Context, selector string) (BoundingBox, error) {
	el, err := d.element(ctx, selector)
	if err != nil {
		return BoundingBox{}, fmt.Errorf("browser: element %q: %w", selector, err)
	}
	shape, err := el.Shape()
	if err != nil {
		return BoundingBox{}, fmt.Errorf("browser: shape %q: %w", selector, err)
	}
	box := shape.Box()
	return BoundingBox{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

func (d *RodDriver) Evaluate(ctx context.Context, js string) (string, error) {
	res, err := d.bound(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("browser: evaluate: %w", err)
	}
	return res.Value.Str(), nil
}

func (d *RodDriver) Click(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Fill(ctx context.Context, selector, value string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if _, err := el.Eval(`() => { this.value = ''; this.dispatchEvent(new Event('input', {bubbles: true})); }`); err != nil {
		return fmt.Errorf("browser: clear %q: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Type(ctx context.Context, selector, value string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("browser: type %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Press(ctx context.Context, selector, key string) error {
	p := d.bound(ctx)
	k, ok := keyByName[key]
	if !ok {
		return fmt.Errorf("browser: unrecognized key %q", key)
	}

	if selector == "" {
		return p.Keyboard.Type(k)
	}

	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("browser: focus %q: %w", selector, err)
	}
	return p.Keyboard.Type(k)
}

var keyByName = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"ArrowDown":  input.ArrowDown,
	"ArrowUp":    input.ArrowUp,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Backspace":  input.Backspace,
	"/":          input.Slash,
}

func (d *RodDriver) Select(ctx context.Context, selector, value string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("browser: select %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Check(ctx context.Context, selector string) error {
	return d.setChecked(ctx, selector, true)
}

func (d *RodDriver) Uncheck(ctx context.Context, selector string) error {
	return d.setChecked(ctx, selector, false)
}

func (d *RodDriver) setChecked(ctx context.Context, selector string, want bool) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	res, err := el.Eval(`() => this.checked`)
	if err != nil {
		return fmt.Errorf("browser: read checked %q: %w", selector, err)
	}
	if res.Value.Bool() == want {
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: toggle %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Hover(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("browser: hover %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) Focus(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.Focus(); err != nil {
		return fmt.Errorf("browser: focus %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) ScrollIntoView(ctx context.Context, selector string) error {
	el, err := d.element(ctx, selector)
	if err != nil {
		return fmt.Errorf("browser: element %q: %w", selector, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("browser: scroll into view %q: %w", selector, err)
	}
	return nil
}

func (d *RodDriver) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	p := d.bound(ctx)
	if err := p.WaitDOMStable(timeout, 0.1); err != nil {
		return fmt.Errorf("browser: wait for load state: %w", err)
	}
	return nil
}

func (d *RodDriver) Screenshot(ctx context.Context, path string) error {
	p := d.bound(ctx)
	data, err := p.Screenshot(false, nil)
	if err != nil {
		return fmt.Errorf("browser: screenshot: %w", err)
	}
	return writeFile(path, data)
}

func (d *RodDriver) Close(ctx context.Context) error {
	return d.page.Close()
}
