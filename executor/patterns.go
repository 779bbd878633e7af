// Package executor implements the Executor (C6): action dispatch with the
// per-action fallback chains that keep a step working even when the
// discovered selector targets UI chrome (a search-revealing icon button)
// rather than the control the step actually needs.
package executor

// fillActivators are the common "click this to reveal a hidden input"
// triggers tried, in order, when a fill target is not visible: search
// icons, hamburger toggles, and data-attribute-driven reveal buttons.
var fillActivators = []string{
	`button[aria-label*="Search"]`,
	`button[aria-label="Toggle navigation"]`,
	`[data-test-id*="search"]`,
	`button.search-button`,
	`[data-action*="search"]`,
	`svg[aria-label*="Search"]`,
	`.search-icon`,
}

// fillRetargets are the editable candidates probed, in priority order,
// after an activator click — the revealed control rarely shares the
// selector the activator itself had.
var fillRetargets = []string{
	`[role="searchbox"]`,
	`input[type="search"]`,
	`input[name="q"]`,
	`input[aria-label*="Search"]`,
	`input[placeholder*="search" i]`,
	`input[placeholder*="Jump to"]`,
}

// autocompleteIndicators are checked before a press on Enter: when one is
// present and visible, the keystroke itself is unreliable (the dropdown
// eats it), so the Executor clicks a submit affordance instead.
var autocompleteIndicators = []string{
	`[role="listbox"]`,
	`[role="combobox"][aria-expanded="true"]`,
}

// submitSelectors are tried, in order, to dismiss an open autocomplete
// dropdown or otherwise submit a form without relying on the Enter key.
var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`button[aria-label*="Search"]`,
	`[role="button"][aria-label*="search"]`,
}
