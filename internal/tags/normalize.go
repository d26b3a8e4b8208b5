package tags

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	invalidRe    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	repeatRe     = regexp.MustCompile(`_{2,}`)
)

// Normalize canonicalizes a single tag: trimmed, lowercased, spaces become
// underscores, everything outside letters/digits/underscore is dropped and
// repeated underscores collapse. Returns "" when nothing survives.
func Normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = whitespaceRe.ReplaceAllString(tag, "_")
	tag = invalidRe.ReplaceAllString(tag, "")
	tag = repeatRe.ReplaceAllString(tag, "_")
	return strings.Trim(tag, "_")
}

// NormalizeAll normalizes and deduplicates a tag list, preserving order and
// dropping empties. The result is capped at max entries when max > 0.
func NormalizeAll(raw []string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range raw {
		normalized := Normalize(tag)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
