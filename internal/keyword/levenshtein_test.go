package keyword

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"revenue", "revenue", 0},
		{"", "gaap", 4},
		{"gaap", "", 4},
		{"revenue", "revenu", 1},
		{"margin", "margins", 1},
		{"kitten", "sitting", 3},
		{"amortization", "amortisation", 1},
		{"ebitda", "ebidta", 2},
		{"café", "cafe", 1},
		{"Revenue", "revenue", 1},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := LevenshteinDistance(tt.b, tt.a); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) not symmetric: %d", tt.b, tt.a, got)
		}
	}
}

func TestDamerauLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"ab", "ba", 1},
		{"ebitda", "ebidta", 1},
		{"liabilities", "liabilites", 1},
		{"dividend", "divdiend", 1},
		{"kitten", "sitting", 3},
		{"", "cash", 4},
	}
	for _, tt := range tests {
		if got := DamerauLevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("DamerauLevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
