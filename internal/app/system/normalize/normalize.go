// Package normalize provides canonical forms for user-entered identity
// fields so lookups and uniqueness checks behave predictably.
package normalize

import "strings"

// Email lowercases and trims an email address. Email matching is
// case-insensitive everywhere in the app.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// StudentID trims and uppercases a student identifier.
func StudentID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Tag lowercases and trims one group tag; empty results should be
// dropped by the caller.
func Tag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Tags normalizes a tag list, dropping empties and duplicates while
// preserving first-seen order.
func Tags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = Tag(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
