package discovery

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// overridePrefix/roleOverridePrefix let a caller bypass the entire cascade
// for one step by naming a selector directly: "css:.btn-primary" or
// "role:button=Submit". Either form is validated against the current
// snapshot before being handed to the driver, so a stale override fails
// fast as a miss rather than acting on whatever happens to match live.
const (
	cssOverridePrefix  = "css:"
	roleOverridePrefix = "role:"
)

// parseOverride reports whether label names an override and, if so, the
// CSS selector it resolves to.
func parseOverride(label string) (selector string, isOverride bool, err error) {
	switch {
	case strings.HasPrefix(label, cssOverridePrefix):
		return strings.TrimPrefix(label, cssOverridePrefix), true, nil
	case strings.HasPrefix(label, roleOverridePrefix):
		rest := strings.TrimPrefix(label, roleOverridePrefix)
		role, name, ok := strings.Cut(rest, "=")
		if !ok {
			return "", true, fmt.Errorf("discovery: malformed role override %q, want role:<role>=<name>", label)
		}
		return fmt.Sprintf(`[role="%s"][aria-label="%s"]`, cssAttrEscape(role), cssAttrEscape(name)), true, nil
	default:
		return "", false, nil
	}
}

// checkOverridePresence validates selector against a parsed snapshot using
// cascadia, falling back to nothing (the caller's live driver.Count is the
// final source of truth — this is only a fast pre-check so an override
// that can't possibly match doesn't waste a full gate round).
func checkOverridePresence(doc *html.Node, selector string) (int, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return 0, fmt.Errorf("discovery: invalid override selector %q: %w", selector, err)
	}
	return len(cascadia.QueryAll(doc, sel)), nil
}
