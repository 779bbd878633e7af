package discovery

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/webtest/runspec"
	"github.com/use-agent/webtest/simhash"
)

// tier6SimilarityTieThreshold is the SimHash Hamming-distance bound (out of
// 64 bits) below which two ambiguous Tier 6 candidates' own text is judged
// too close to call — the winner still goes through, but with a warning.
const tier6SimilarityTieThreshold = 6

// nonFillableInputTypes (together with the select/button tag check in
// actionAllows) gates which elements an action=fill step is allowed to land
// on; a <select> or a checkbox needs its own action verb even if its label
// happens to win the fuzzy match.
var nonFillableInputTypes = map[string]bool{
	"checkbox": true, "radio": true, "button": true, "submit": true, "reset": true, "hidden": true, "file": true,
	"range": true, "color": true, "image": true,
}

func actionAllows(action runspec.Action, c candidate) bool {
	if action != runspec.ActionFill && action != runspec.ActionType {
		return true
	}
	if c.tag == "select" || c.tag == "button" {
		return false
	}
	if c.tag == "input" && nonFillableInputTypes[strings.ToLower(c.attrs["type"])] {
		return false
	}
	return true
}

// roleHints maps the handful of common label words to the ARIA role a
// Tier 6 probe should prefer, generalized from widely-used UI conventions
// rather than any one application's markup.
var roleHints = map[string]string{
	"login": "button", "submit": "button", "sign in": "button", "continue": "button",
	"next": "button", "ok": "button", "search": "searchbox", "menu": "button",
	"tab": "tab", "link": "link", "button": "button",
}

func impliedRole(c candidate) string {
	if r, ok := c.attrs["role"]; ok {
		return strings.ToLower(r)
	}
	switch c.tag {
	case "button":
		return "button"
	case "a":
		if _, ok := c.attrs["href"]; ok {
			return "link"
		}
	case "input":
		t := strings.ToLower(c.attrs["type"])
		if t == "submit" || t == "button" {
			return "button"
		}
		if t == "search" {
			return "searchbox"
		}
	}
	return ""
}

// tierResult is one cascade tier's candidate matches plus enough context to
// synthesize a concrete selector for the winner.
type tierResult struct {
	strategy runspec.Strategy
	matches  []candidate
	selFor   func(c candidate, all []candidate) string
	score    float64
}

func filterByAttrFuzzy(cands []candidate, tag, attrKey string, action runspec.Action, pattern *regexp.Regexp, rejectChrome bool) []candidate {
	var out []candidate
	for _, c := range cands {
		if tag != "" && c.tag != tag {
			continue
		}
		val, ok := c.attrs[attrKey]
		if !ok || val == "" {
			continue
		}
		if !pattern.MatchString(val) {
			continue
		}
		if isHidden(c) {
			continue
		}
		if !actionAllows(action, c) {
			continue
		}
		if rejectChrome && looksLikeChrome(val) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// runTier1Through4 covers the four exact-attribute cascade rungs that share
// the same shape: scan every element, fuzzy-match one attribute.
func runTier1Through4(cands []candidate, intent runspec.Intent, pattern *regexp.Regexp) []tierResult {
	specs := []struct {
		strategy runspec.Strategy
		attr     string
		score    float64
	}{
		{runspec.Tier1AriaLabel, "aria-label", 0.98},
		{runspec.Tier2AriaPlaceholder, "aria-placeholder", 0.95},
		{runspec.Tier3Name, "name", 0.93},
		{runspec.Tier4Placeholder, "placeholder", 0.90},
	}
	out := make([]tierResult, 0, len(specs))
	for _, s := range specs {
		matches := filterByAttrFuzzy(cands, "", s.attr, intent.Action, pattern, intent.Action == runspec.ActionFill)
		attr := s.attr
		out = append(out, tierResult{
			strategy: s.strategy,
			matches:  matches,
			score:    s.score,
			selFor: func(c candidate, all []candidate) string {
				return synthesizeSelector(all, c, c.tag, attr, c.attrs[attr])
			},
		})
	}
	return out
}

// runTier5LabelFor resolves <label> elements whose text fuzzy-matches the
// caller's label, then follows the for= attribute (or, lacking one, the
// first nested form control) to the actual control.
func runTier5LabelFor(cands []candidate, intent runspec.Intent, pattern *regexp.Regexp) tierResult {
	byID := make(map[string]candidate)
	byNode := make(map[*html.Node]candidate)
	for _, c := range cands {
		byNode[c.node] = c
		if id, ok := c.attrs["id"]; ok && id != "" {
			byID[id] = c
		}
	}

	var matches []candidate
	for _, c := range cands {
		if c.tag != "label" {
			continue
		}
		if !pattern.MatchString(c.text) {
			continue
		}
		if forID, ok := c.attrs["for"]; ok {
			if ctrl, ok := byID[forID]; ok && !isHidden(ctrl) && actionAllows(intent.Action, ctrl) {
				matches = append(matches, ctrl)
			}
			continue
		}
		if ctrl, ok := firstFormControlDescendant(c); ok && !isHidden(ctrl) && actionAllows(intent.Action, ctrl) {
			if full, ok := byNode[ctrl.node]; ok {
				ctrl = full
			}
			matches = append(matches, ctrl)
		}
	}

	return tierResult{
		strategy: runspec.Tier5LabelFor,
		matches:  matches,
		score:    0.86,
		selFor: func(c candidate, all []candidate) string {
			if id, ok := c.attrs["id"]; ok && id != "" {
				return "#" + cssEscapeIdent(id)
			}
			if name, ok := c.attrs["name"]; ok && name != "" {
				return synthesizeSelector(all, c, c.tag, "name", name)
			}
			return synthesizeByPosition(c)
		},
	}
}

func firstFormControlDescendant(label candidate) (candidate, bool) {
	formTags := map[string]bool{"input": true, "textarea": true, "select": true}

	var rec func(n *html.Node) (candidate, bool)
	rec = func(n *html.Node) (candidate, bool) {
		if n == nil {
			return candidate{}, false
		}
		if n.Type == html.ElementNode && formTags[n.Data] {
			return candidate{node: n, tag: n.Data, attrs: attrMap(n), text: elementText(n)}, true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if cand, ok := rec(c); ok {
				return cand, true
			}
		}
		return candidate{}, false
	}
	return rec(label.node)
}

// runTier6RoleName implements the role+accessible-name probe along with its
// own non-unique disambiguation ladder: a tighter exact-text retry, then a
// chrome-exclusion retry, then a SimHash ranking of the survivors (with a
// warning when the top two are too close to call). If the chrome-exclusion
// pass leaves nothing, the first loose match is taken with a warning.
func runTier6RoleName(cands []candidate, intent runspec.Intent) (tierResult, string) {
	normalized := normalizeLabel(intent.ElementLabel)
	role := roleHints[normalized]

	pattern, _ := fuzzyPattern(intent.ElementLabel)

	var loose []candidate
	for _, c := range cands {
		if isHidden(c) || !actionAllows(intent.Action, c) {
			continue
		}
		r := impliedRole(c)
		if r == "" {
			continue
		}
		if role != "" && r != role {
			continue
		}
		if !pattern.MatchString(c.text) && !pattern.MatchString(c.attrs["aria-label"]) {
			continue
		}
		loose = append(loose, c)
	}

	warning := ""
	matches := loose
	if len(loose) > 1 {
		var exact []candidate
		for _, c := range loose {
			if normalizeLabel(c.text) == normalized || normalizeLabel(c.attrs["aria-label"]) == normalized {
				exact = append(exact, c)
			}
		}
		if len(exact) == 1 {
			matches = exact
		} else {
			var filtered []candidate
			for _, c := range loose {
				if looksLikeChrome(c.text) || looksLikeChrome(c.attrs["aria-label"]) {
					continue
				}
				if cls := strings.ToLower(c.attrs["class"]); strings.Contains(cls, "tab-close") || strings.Contains(cls, "tab-remove") {
					continue
				}
				filtered = append(filtered, c)
			}
			if len(filtered) == 1 {
				matches = filtered
			} else if len(filtered) > 1 {
				ranked := rankBySimilarity(filtered, normalized)
				matches = ranked[:1]
				fp0 := simhash.Fingerprint(normalizeLabel(candidateLabelText(ranked[0])))
				fp1 := simhash.Fingerprint(normalizeLabel(candidateLabelText(ranked[1])))
				if simhash.Similar(fp0, fp1, tier6SimilarityTieThreshold) {
					warning = "non_unique"
				}
			} else {
				matches = loose[:1]
				warning = "non_unique"
			}
		}
	}

	return tierResult{
		strategy: runspec.Tier6RoleName,
		matches:  matches,
		score:    0.94,
		selFor: func(c candidate, all []candidate) string {
			r := impliedRole(c)
			if r != "" {
				return synthesizeSelector(all, c, c.tag, "role", r)
			}
			return synthesizeByPosition(c)
		},
	}, warning
}

// candidateLabelText returns the text a Tier 6 candidate should be
// SimHash-compared against: its own visible text, falling back to its
// aria-label for controls (inputs, icon buttons) that carry no text node.
func candidateLabelText(c candidate) string {
	if c.text != "" {
		return c.text
	}
	return c.attrs["aria-label"]
}

// rankBySimilarity orders cands by SimHash distance between normalized
// (the caller's own normalized label) and each candidate's own text,
// closest first. Tier 6 reaches for this only once its exact-text and
// chrome-exclusion passes have both failed to narrow a role match down to
// one element — an arbitrary positional pick at that point would silently
// prefer whichever candidate happened to appear first in the document.
func rankBySimilarity(cands []candidate, normalized string) []candidate {
	labelFP := simhash.Fingerprint(normalized)
	ranked := make([]candidate, len(cands))
	copy(ranked, cands)
	sort.SliceStable(ranked, func(i, j int) bool {
		di := simhash.Distance(labelFP, simhash.Fingerprint(normalizeLabel(candidateLabelText(ranked[i]))))
		dj := simhash.Distance(labelFP, simhash.Fingerprint(normalizeLabel(candidateLabelText(ranked[j]))))
		return di < dj
	})
	return ranked
}

// runTier7DataTestHook scans the common test-hook attribute spellings
// (data-testid, data-test, data-qa, data-cy, data-automation) used across
// the example corpus's own front ends.
func runTier7DataTestHook(cands []candidate, intent runspec.Intent, pattern *regexp.Regexp) tierResult {
	hookAttrs := []string{"data-testid", "data-test", "data-qa", "data-cy", "data-automation"}
	var matches []candidate
	for _, c := range cands {
		if isHidden(c) || !actionAllows(intent.Action, c) {
			continue
		}
		for _, key := range hookAttrs {
			if val, ok := c.attrs[key]; ok && val != "" && pattern.MatchString(val) {
				matches = append(matches, c)
				break
			}
		}
	}
	return tierResult{
		strategy: runspec.Tier7DataTestHook,
		matches:  matches,
		score:    0.80,
		selFor: func(c candidate, all []candidate) string {
			for _, key := range hookAttrs {
				if val, ok := c.attrs[key]; ok && val != "" && pattern.MatchString(val) {
					return synthesizeSelector(all, c, c.tag, key, val)
				}
			}
			return synthesizeByPosition(c)
		},
	}
}

// runTier8IDClass is the last-resort probe against an element's own id or
// class tokens. Never stable: ids and classes are implementation detail a
// front-end refactor changes without any user-facing signal.
func runTier8IDClass(cands []candidate, intent runspec.Intent) tierResult {
	normalized := normalizeLabel(intent.ElementLabel)
	slug := strings.ReplaceAll(normalized, " ", "")

	var matches []candidate
	for _, c := range cands {
		if isHidden(c) || !actionAllows(intent.Action, c) {
			continue
		}
		id := strings.ToLower(c.attrs["id"])
		classes := strings.Fields(strings.ToLower(c.attrs["class"]))
		if slug != "" && strings.Contains(id, slug) {
			matches = append(matches, c)
			continue
		}
		for _, cls := range classes {
			if slug != "" && strings.Contains(cls, slug) {
				matches = append(matches, c)
				break
			}
		}
	}

	return tierResult{
		strategy: runspec.Tier8IDClass,
		matches:  matches,
		score:    0.70,
		selFor: func(c candidate, all []candidate) string {
			if id, ok := c.attrs["id"]; ok && id != "" {
				return "#" + cssEscapeIdent(id)
			}
			for _, cls := range strings.Fields(c.attrs["class"]) {
				if strings.Contains(strings.ToLower(cls), slug) {
					return c.tag + "." + cssEscapeIdent(cls)
				}
			}
			return synthesizeByPosition(c)
		},
	}
}
