package discovery

import (
	"strings"

	"golang.org/x/net/html"
)

// candidate is one element pulled from a parsed region snapshot, with just
// enough of its shape for a tier's probe to judge it without ever touching
// the live page.
type candidate struct {
	node       *html.Node
	tag        string
	attrs      map[string]string
	text       string // trimmed, direct+descendant text content
	tagIndex   int    // 0-based position among same-tag elements, document order
	globalPath []int  // child index at each ancestor level, for selector synthesis
}

// parseSnapshot parses a region's rendered markup into a DOM tree Discovery
// can walk repeatedly across tiers without re-fetching from the driver.
func parseSnapshot(htmlStr string) (*html.Node, error) {
	return html.Parse(strings.NewReader(htmlStr))
}

// collectCandidates walks doc in document order, returning every element
// node whose tag is in tags (all elements when tags is empty), each
// annotated with its attributes and a normalized text snapshot.
func collectCandidates(doc *html.Node, tags map[string]bool) []candidate {
	var out []candidate
	tagCounts := make(map[string]int)

	var walk func(n *html.Node, path []int)
	walk = func(n *html.Node, path []int) {
		if n.Type == html.ElementNode {
			if len(tags) == 0 || tags[n.Data] {
				idx := tagCounts[n.Data]
				tagCounts[n.Data] = idx + 1
				out = append(out, candidate{
					node:       n,
					tag:        n.Data,
					attrs:      attrMap(n),
					text:       elementText(n),
					tagIndex:   idx,
					globalPath: append([]int(nil), path...),
				})
			}
		}
		childIdx := 0
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				walk(c, append(path, childIdx))
				childIdx++
			}
		}
	}
	walk(doc, nil)
	return out
}

func attrMap(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}

// elementText returns n's direct and descendant text content, collapsed to
// single spaces, the way an accessible name computation would read it.
func elementText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapseSpace(strings.TrimSpace(b.String()))
}

// isHidden approximates browser visibility from static markup: it cannot
// see computed CSS, but it catches the common explicit signals (the hidden
// attribute, aria-hidden, inline display:none, and hidden input types)
// cheaply enough to filter obviously-dead candidates before a tier ever
// asks the live driver to confirm.
func isHidden(c candidate) bool {
	if _, ok := c.attrs["hidden"]; ok {
		return true
	}
	if c.attrs["aria-hidden"] == "true" {
		return true
	}
	if c.tag == "input" && c.attrs["type"] == "hidden" {
		return true
	}
	style := strings.ToLower(c.attrs["style"])
	if strings.Contains(style, "display:none") || strings.Contains(style, "display: none") {
		return true
	}
	if strings.ToLower(c.attrs["role"]) == "presentation" || strings.ToLower(c.attrs["role"]) == "separator" {
		return true
	}
	return false
}
