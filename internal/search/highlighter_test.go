package search

import (
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	if Highlight("short", "x", 10) != "short" {
		t.Error("short string should be unchanged")
	}
	if got := Highlight("long text here", "", 4); got != "long..." {
		t.Errorf("no match: got %q", got)
	}
	if Highlight("x", "x", 0) != "x" {
		t.Error("maxLen 0 should return as-is")
	}

	content := strings.Repeat("filler words ", 20) + "Data center revenue rose sharply." + strings.Repeat(" trailing", 20)
	got := Highlight(content, "revenue", 60)
	if !strings.Contains(got, "revenue") {
		t.Errorf("window should contain the match: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("both edges should be marked: %q", got)
	}

	if got := Highlight("a\n\nb   c", "", 100); got != "a b c" {
		t.Errorf("whitespace should collapse: %q", got)
	}
}
