package keyword

import (
	"errors"
	"testing"
)

type mapDictionary struct {
	terms map[string]int
	err   error
}

func (d mapDictionary) TermFrequencies() (map[string]int, error) {
	return d.terms, d.err
}

func TestSpellChecker_Check(t *testing.T) {
	dict := mapDictionary{terms: map[string]int{
		"net": 4, "revenue": 5, "ebitda": 3, "margin": 2, "lease": 2, "least": 9,
	}}
	tests := []struct {
		name      string
		query     string
		corrected string
		changed   bool
	}{
		{"transposed letters", "Net ebidta", "net ebitda", true},
		{"known terms", "revenue margin", "revenue margin", false},
		{"missing letter", "revenu", "revenue", true},
		{"short terms kept", "q3x revenue", "q3x revenue", false},
		{"numbers kept", "revenue 20244", "revenue 20244", false},
		{"tie broken by frequency", "leasx", "least", true},
		{"punctuation trimmed", "(ebidta)?", "ebitda", true},
		{"too far", "cashflow", "cashflow", false},
	}
	sc := NewSpellChecker(dict)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := sc.Check(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if c.Corrected != tt.corrected {
				t.Errorf("Corrected = %q, want %q", c.Corrected, tt.corrected)
			}
			if c.Changed() != tt.changed {
				t.Errorf("Changed() = %v, want %v", c.Changed(), tt.changed)
			}
		})
	}
}

func TestSpellChecker_MinFrequency(t *testing.T) {
	sc := NewSpellChecker(mapDictionary{terms: map[string]int{"ebitda": 3}}, WithMinFrequency(5))
	c, err := sc.Check("ebidta")
	if err != nil {
		t.Fatal(err)
	}
	if c.Changed() || len(c.Misspelled) != 0 {
		t.Errorf("rare terms should not be suggested: %+v", c)
	}
}

func TestSpellChecker_Suggest(t *testing.T) {
	sc := NewSpellChecker(mapDictionary{terms: map[string]int{
		"margin": 2, "margins": 10, "marine": 1,
	}}, WithMaxDistance(1))
	got, err := sc.Suggest("Margns")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Term != "margins" || got[0].Distance != 1 {
		t.Errorf("Suggest = %+v", got)
	}
}

func TestSpellChecker_DictionaryError(t *testing.T) {
	sc := NewSpellChecker(mapDictionary{err: errors.New("closed")})
	if _, err := sc.Check("revenue"); err == nil {
		t.Error("expected dictionary error")
	}
}

func TestSpellChecker_BleveDictionary(t *testing.T) {
	idx := newTestIndex(t)
	freqs, err := idx.TermFrequencies()
	if err != nil {
		t.Fatal(err)
	}
	if freqs["revenue"] != 3 || freqs["h100"] != 1 {
		t.Errorf("revenue = %d, h100 = %d", freqs["revenue"], freqs["h100"])
	}

	c, err := NewSpellChecker(idx).Check("gamng revenue")
	if err != nil {
		t.Fatal(err)
	}
	if c.Misspelled["gamng"] != "gaming" || c.Corrected != "gaming revenue" {
		t.Errorf("correction = %+v", c)
	}
}
