package browser

import (
	"context"
	"fmt"
	"time"
)

// FakeElement describes one selector's simulated state for FakeDriver.
type FakeElement struct {
	Count   int
	Visible bool
	Enabled bool
	Box     BoundingBox
	HTML    string
}

// FakeDriver is an in-memory Driver used by component tests that need a
// predictable, script-free browser. Selector state is looked up by exact
// string match against Elements; an unregistered selector behaves as if
// it matched zero elements.
type FakeDriver struct {
	Elements map[string]FakeElement
	URL      string
	PageHTML string

	Calls []string

	ClickErr, FillErr, PressErr error

	// FillErrFor overrides FillErr for one specific selector, so a test
	// can make the first fill target fail while a later retarget
	// candidate succeeds.
	FillErrFor map[string]error

	// EvaluateResult/EvaluateErr are returned verbatim by Evaluate, for
	// tests exercising a JS-fallback strategy.
	EvaluateResult string
	EvaluateErr    error
}

// NewFakeDriver builds an empty FakeDriver; tests populate Elements
// directly before exercising it.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Elements: make(map[string]FakeElement)}
}

func (f *FakeDriver) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeDriver) Goto(ctx context.Context, url string) error {
	f.record("Goto:" + url)
	f.URL = url
	return nil
}

func (f *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	return f.URL, nil
}

func (f *FakeDriver) HTML(ctx context.Context, selector string) (string, error) {
	if selector == "" {
		return f.PageHTML, nil
	}
	if el, ok := f.Elements[selector]; ok {
		return el.HTML, nil
	}
	return "", fmt.Errorf("browser/fake: no element for %q", selector)
}

func (f *FakeDriver) Count(ctx context.Context, selector string) (int, error) {
	return f.Elements[selector].Count, nil
}

func (f *FakeDriver) IsVisible(ctx context.Context, selector string) (bool, error) {
	return f.Elements[selector].Visible, nil
}

func (f *FakeDriver) IsEnabled(ctx context.Context, selector string) (bool, error) {
	return f.Elements[selector].Enabled, nil
}

func (f *FakeDriver) BoundingBox(ctx context.Context, selector string) (BoundingBox, error) {
	return f.Elements[selector].Box, nil
}

func (f *FakeDriver) Evaluate(ctx context.Context, js string) (string, error) {
	f.record("Evaluate")
	return f.EvaluateResult, f.EvaluateErr
}

func (f *FakeDriver) Click(ctx context.Context, selector string) error {
	f.record("Click:" + selector)
	return f.ClickErr
}

func (f *FakeDriver) Fill(ctx context.Context, selector, value string) error {
	f.record("Fill:" + selector)
	if err, ok := f.FillErrFor[selector]; ok {
		return err
	}
	return f.FillErr
}

func (f *FakeDriver) Type(ctx context.Context, selector, value string) error {
	f.record("Type:" + selector)
	return nil
}

func (f *FakeDriver) Press(ctx context.Context, selector, key string) error {
	f.record("Press:" + selector + ":" + key)
	return f.PressErr
}

func (f *FakeDriver) Select(ctx context.Context, selector, value string) error {
	f.record("Select:" + selector)
	return nil
}

func (f *FakeDriver) Check(ctx context.Context, selector string) error {
	f.record("Check:" + selector)
	return nil
}

func (f *FakeDriver) Uncheck(ctx context.Context, selector string) error {
	f.record("Uncheck:" + selector)
	return nil
}

func (f *FakeDriver) Hover(ctx context.Context, selector string) error {
	f.record("Hover:" + selector)
	return nil
}

func (f *FakeDriver) Focus(ctx context.Context, selector string) error {
	f.record("Focus:" + selector)
	return nil
}

func (f *FakeDriver) ScrollIntoView(ctx context.Context, selector string) error {
	f.record("ScrollIntoView:" + selector)
	return nil
}

func (f *FakeDriver) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	f.record("WaitForLoadState")
	return nil
}

func (f *FakeDriver) Screenshot(ctx context.Context, path string) error {
	f.record("Screenshot:" + path)
	return nil
}

func (f *FakeDriver) Close(ctx context.Context) error {
	f.record("Close")
	return nil
}
