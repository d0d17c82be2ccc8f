package search

import (
	"strings"
	"unicode/utf8"
)

// Highlight returns a window of at most maxLen bytes of content centred on
// the first occurrence of any query term, with "..." marking cut edges.
// Without a match the window starts at the beginning of content.
func Highlight(content, query string, maxLen int) string {
	content = strings.Join(strings.Fields(content), " ")
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	lower := strings.ToLower(content)
	at := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.Trim(term, `.,;:!?"'()[]`)
		if len(term) < 2 {
			continue
		}
		if i := strings.Index(lower, term); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}

	start := 0
	if at > maxLen/3 {
		start = at - maxLen/3
	}
	end := start + maxLen
	if end > len(content) {
		end = len(content)
		start = max(0, end-maxLen)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start++
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}

	out := content[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(content) {
		out += "..."
	}
	return out
}
