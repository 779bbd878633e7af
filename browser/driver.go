// Package browser defines the Browser Driver interface (C1) the rest of
// the core programs against, plus a go-rod-backed implementation. Every
// other component — Discovery, the Gate, the Executor, the Healer —
// depends only on Driver, never on *rod.Page directly, so a fake driver
// can stand in for tests that don't need a real browser.
package browser

import (
	"context"
	"time"
)

// BoundingBox is an element's on-screen rectangle, used by the
// Actionability Gate's stability check (repeated reads, each within
// tolerance of the first).
type BoundingBox struct {
	X, Y, Width, Height float64
}

// Driver abstracts everything the core needs from a live browser page.
// Implementations must be safe to use from a single goroutine at a time;
// the Orchestrator never calls a Driver concurrently with itself.
type Driver interface {
	// Goto navigates to url and waits for the DOM to settle.
	Goto(ctx context.Context, url string) error

	// CurrentURL returns the page's current location, following redirects
	// and client-side navigations.
	CurrentURL(ctx context.Context) (string, error)

	// HTML returns the page's current rendered markup, or the markup of
	// the single element matching selector when selector is non-empty
	// (used to scope a drift digest to a region).
	HTML(ctx context.Context, selector string) (string, error)

	// Count returns how many elements currently match selector.
	Count(ctx context.Context, selector string) (int, error)

	// IsVisible reports whether the first element matching selector is
	// visible (non-zero bounding box, not display:none/visibility:hidden).
	IsVisible(ctx context.Context, selector string) (bool, error)

	// IsEnabled reports whether the first element matching selector is
	// enabled (not [disabled], not aria-disabled="true").
	IsEnabled(ctx context.Context, selector string) (bool, error)

	// BoundingBox returns the first element matching selector's rectangle.
	BoundingBox(ctx context.Context, selector string) (BoundingBox, error)

	// Evaluate runs js in the page context and returns its string result.
	Evaluate(ctx context.Context, js string) (string, error)

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// Fill clears and sets the value of the first element matching
	// selector (form inputs, textareas).
	Fill(ctx context.Context, selector, value string) error

	// Type sends value as individual keystrokes to the first element
	// matching selector, without clearing its existing content first.
	Type(ctx context.Context, selector, value string) error

	// Press sends a single named key (e.g. "Enter") to the first element
	// matching selector, or to the page if selector is empty.
	Press(ctx context.Context, selector, key string) error

	// Select chooses value from the first <select> matching selector.
	Select(ctx context.Context, selector, value string) error

	// Check sets a checkbox/radio matching selector to checked.
	Check(ctx context.Context, selector string) error

	// Uncheck sets a checkbox matching selector to unchecked.
	Uncheck(ctx context.Context, selector string) error

	// Hover moves the pointer over the first element matching selector.
	Hover(ctx context.Context, selector string) error

	// Focus focuses the first element matching selector.
	Focus(ctx context.Context, selector string) error

	// ScrollIntoView scrolls the first element matching selector into the
	// viewport.
	ScrollIntoView(ctx context.Context, selector string) error

	// WaitForLoadState blocks until the page reaches a settled DOM state
	// or timeout elapses.
	WaitForLoadState(ctx context.Context, timeout time.Duration) error

	// Screenshot captures the current viewport to path. Screenshot
	// failures are always non-critical to a run (§7); callers log and
	// continue rather than propagate.
	Screenshot(ctx context.Context, path string) error

	// Close releases any resources (tab, connection) held by the driver.
	Close(ctx context.Context) error
}

var (
	_ Driver = (*RodDriver)(nil)
	_ Driver = (*FakeDriver)(nil)
)
