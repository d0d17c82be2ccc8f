package models

import (
	"path/filepath"
	"regexp"
	"strings"
)

// UnknownPeriod is the period tag of filings whose name carries none.
const UnknownPeriod = "Unknown"

var (
	quarterRe    = regexp.MustCompile(`(?i)\bQ([1-4])[_\- ]?((?:19|20)\d{2})`)
	fiscalYearRe = regexp.MustCompile(`(?i)\bFY[_\- ]?((?:19|20)\d{2})`)
)

// ParsePeriod extracts a reporting period from a file name such as
// "NVIDIA_Q1_2024.pdf" and normalizes it to "Q1-2024" or "FY2024".
func ParsePeriod(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	// \b does not fire between '_' and a letter.
	base = strings.ReplaceAll(base, "_", " ")
	if m := quarterRe.FindStringSubmatch(base); m != nil {
		return "Q" + m[1] + "-" + m[2]
	}
	if m := fiscalYearRe.FindStringSubmatch(base); m != nil {
		return "FY" + m[1]
	}
	return UnknownPeriod
}
