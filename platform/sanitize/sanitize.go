// Package sanitize reduces HTML message bodies to plain text.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	blockTagRegex  = regexp.MustCompile(`(?i)<(?:/p|br\s*/?|/div|/li|/tr)>`)
	multiLineRegex = regexp.MustCompile(`\n{3,}`)
)

// StripHTML removes all HTML tags from a string, keeping line breaks for
// block-level boundaries so the result reads like the original message.
func StripHTML(s string) string {
	result := blockTagRegex.ReplaceAllString(s, "\n")
	result = htmlTagRegex.ReplaceAllString(result, "")
	// Decode common HTML entities
	result = strings.ReplaceAll(result, "&nbsp;", " ")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	result = multiLineRegex.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}
