package discovery

import (
	"regexp"
	"strings"
)

// uiNounSuffixes are the words a caller's element_label commonly carries
// that never appear in the attribute/label text itself ("Login" vs "Login
// Button"). Stripped before matching, then allowed back in as an optional
// trailing group so either spelling matches.
var uiNounSuffixes = []string{
	" button", " icon", " link", " field", " input",
	" dropdown", " menu", " tab", " checkbox", " radio",
}

// normalizeLabel lowercases, trims a known UI-noun suffix, and folds the
// slash/hyphen punctuation a caller's label and a page's own wording
// disagree on ("Zip/Postal Code" vs "Zip Code") into plain spaces.
func normalizeLabel(label string) string {
	if label == "" {
		return ""
	}
	n := strings.ToLower(strings.TrimSpace(label))
	for _, suffix := range uiNounSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSpace(n[:len(n)-len(suffix)])
			break
		}
	}
	n = strings.ReplaceAll(n, "/", " ")
	n = strings.ReplaceAll(n, "-", " ")
	return collapseSpace(n)
}

var spaceRE = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRE.ReplaceAllString(s, " ")
}

// allowedSuffixGroup matches a trailing UI-chrome word a page adds that the
// caller's label omitted ("Login" label matching "Login Button" text).
const allowedSuffixGroup = `(?:\s+(?:button|icon|link|field|input|dropdown|menu|box|selector))?`

// fuzzyPattern builds the regexp a candidate's attribute value or visible
// text must fully match (case-insensitively) to count as the label. A
// single-word label matches verbatim plus an optional trailing UI-chrome
// word; a multi-word label also tolerates one extra word wedged between
// any two of its own words, so "Zip Code" still finds "Zip / Postal Code".
func fuzzyPattern(label string) (*regexp.Regexp, error) {
	normalized := normalizeLabel(label)
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return regexp.MustCompile(`^$`), nil
	}

	if len(words) == 1 {
		pattern := `(?i)^\s*` + regexp.QuoteMeta(words[0]) + `\s*` + allowedSuffixGroup + `\s*$`
		return regexp.Compile(pattern)
	}

	exact := make([]string, len(words))
	loose := make([]string, len(words))
	for i, w := range words {
		exact[i] = regexp.QuoteMeta(w)
		if i < len(words)-1 {
			loose[i] = regexp.QuoteMeta(w) + `(?:(?:\s+|\s*[/\-]\s*)\w+)?`
		} else {
			loose[i] = regexp.QuoteMeta(w)
		}
	}
	exactPattern := strings.Join(exact, `\s*[/\-]?\s*`)
	loosePattern := strings.Join(loose, `\s*`)
	pattern := `(?i)^\s*(?:` + exactPattern + `|` + loosePattern + `)\s*` + allowedSuffixGroup + `\s*$`
	return regexp.Compile(pattern)
}

// chromeTokens reject a fill-action candidate whose only match came from UI
// scaffolding rather than the control itself: column-width resizers,
// separators, and similar non-interactive decoration that happens to carry
// an aria-label containing the caller's words.
var chromeTokens = []string{"column width", "resize", "separator"}

// looksLikeChrome reports whether text (already lowercased) names one of
// the UI-chrome patterns a fill action must never target.
func looksLikeChrome(text string) bool {
	lower := strings.ToLower(text)
	for _, tok := range chromeTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
