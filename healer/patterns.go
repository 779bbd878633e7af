// Package healer implements the Healer (C7): the bounded reveal, reprobe,
// stability, re-gate playbook that gets a run back on track after a
// Discovery miss, a Gate failure, or an execution failure.
package healer

// overlayCloseSelectors are the known backdrop/close-button shapes tried,
// in order, during the reveal step's overlay dismissal — a modal sitting
// over the target is the single most common reason a freshly discovered
// selector fails the Gate's visibility check.
var overlayCloseSelectors = []string{
	`[data-dismiss="modal"]`,
	`button[aria-label="Close"]`,
	`.modal-backdrop`,
	`[role="dialog"] button.close`,
	`.overlay-close`,
}
