package fileid

import (
	"strings"
	"testing"
)

func TestFileDocID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/filings/NVIDIA_Q1_2024.pdf", "NVIDIA_Q1_2024"},
		{"/filings/nested/../NVIDIA_Q1_2024.pdf", "NVIDIA_Q1_2024"},
		{"reports/Financial Report.xlsx", "Financial_Report"},
		{"/a/10-K (2023).htm", "10-K_2023"},
		{"/a/aapl.10q.2024.html", "aapl.10q.2024"},
	}
	for _, tt := range tests {
		if got := FileDocID(tt.path); got != tt.want {
			t.Errorf("FileDocID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileDocID_hashFallback(t *testing.T) {
	id1 := FileDocID("/foo/決算.pdf")
	id2 := FileDocID("/foo/./決算.pdf")
	id3 := FileDocID("/bar/決算.pdf")
	if !strings.HasPrefix(id1, hashPrefix) || len(id1) != len(hashPrefix)+16 {
		t.Errorf("unexpected fallback id %q", id1)
	}
	if id1 != id2 {
		t.Errorf("cleaned paths should match: %q vs %q", id1, id2)
	}
	if id1 == id3 {
		t.Errorf("different paths should differ: %q", id1)
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("revenue"))
	if a != Checksum([]byte("revenue")) {
		t.Error("checksum should be deterministic")
	}
	if a == Checksum([]byte("revenue.")) {
		t.Error("different content should differ")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}
