// Package htmlsanitize cleans user-authored content before it is stored.
//
// Announcements and resource descriptions may carry limited rich text;
// chat messages are plain text only. Policies are built once at package
// init; bluemonday policies are safe for concurrent use.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
)

func init() {
	ugc = bluemonday.UGCPolicy()
	// Formatting the editor emits beyond the UGC default.
	ugc.AllowElements("u", "s", "sub", "sup", "mark")
	ugc.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
	ugc.AllowAttrs("colspan", "rowspan").OnElements("th", "td")

	strict = bluemonday.StrictPolicy()
}

// Sanitize cleans rich-text content, keeping safe formatting (paragraphs,
// emphasis, lists, tables, code, links) and stripping scripts, event
// handlers, and javascript: URLs.
func Sanitize(content string) string {
	if content == "" {
		return ""
	}
	return ugc.Sanitize(content)
}

// Strip removes all markup, returning plain text. Used for chat message
// content where no formatting is allowed.
func Strip(content string) string {
	if content == "" {
		return ""
	}
	return strings.TrimSpace(strict.Sanitize(content))
}
