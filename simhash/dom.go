package simhash

import (
	"strings"

	"golang.org/x/net/html"
)

// extractTags walks HTML with the tokenizer and collects open tag names in order.
func extractTags(htmlStr string) []string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	var tags []string

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			tags = append(tags, string(tn))
		}
	}
}
