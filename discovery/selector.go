package discovery

import (
	"fmt"
	"strings"
)

// cssEscapeIdent escapes the characters that would otherwise break an id
// or class selector (colons and dots are common in component-library
// generated names, e.g. Angular's "mat-input-0").
func cssEscapeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ':', '.', '[', ']', '(', ')', ' ', '/', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// synthesizeSelector builds a concrete CSS selector for winner using the
// attribute that won it the tier's match, appending an ordinal suffix only
// when that attribute selector alone would also match other candidates —
// the common case is a single match, where the plain attribute selector is
// both sufficient and legible in a run log.
func synthesizeSelector(all []candidate, winner candidate, tag, attrKey, attrVal string) string {
	base := fmt.Sprintf(`%s[%s="%s"]`, tag, attrKey, cssAttrEscape(attrVal))

	matchIdx := -1
	count := 0
	for _, c := range all {
		if c.tag == tag && c.attrs[attrKey] == attrVal {
			if c.node == winner.node {
				matchIdx = count
			}
			count++
		}
	}
	if count <= 1 {
		return base
	}
	if matchIdx < 0 {
		matchIdx = 0
	}
	return base + ordinalSep(matchIdx)
}

// synthesizeByPosition is the fallback used when a tier can't name a
// discriminating attribute at all (tier 6's role-only candidates without a
// usable role, tier 5's label-for resolution when the control has neither
// an id nor a name). It targets the winner purely by its position among
// same-tag elements in document order.
func synthesizeByPosition(c candidate) string {
	return fmt.Sprintf("%s%s", c.tag, ordinalSep(c.tagIndex))
}

// ordinalSep renders the "Discover a selector, then disambiguate by
// position" suffix the browser driver parses back out (see
// browser.splitOrdinal). Named distinctly from the driver-side constant
// since this package never imports browser.
func ordinalSep(n int) string {
	return fmt.Sprintf(" >> nth=%d", n)
}

func cssAttrEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
