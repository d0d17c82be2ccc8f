package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// TermDictionary exposes the indexed terms and how many chunks hold each.
type TermDictionary interface {
	TermFrequencies() (map[string]int, error)
}

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// Correction is the outcome of checking a query against the dictionary.
type Correction struct {
	Query     string
	Corrected string
	// Misspelled maps each unknown query term to its replacement.
	Misspelled map[string]string
}

// Changed reports whether any term was replaced.
func (c *Correction) Changed() bool {
	return c.Corrected != c.Query
}

// SpellChecker corrects query terms that do not occur in the index, so a
// mistyped "ebidta" still finds chunks about EBITDA.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	minTermLength  int
	maxSuggestions int
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms held by fewer chunks.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSpellChecker returns a SpellChecker over dict. The dictionary is read
// on every Check, so it always reflects the current index.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		minTermLength:  4,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check replaces every unknown query term with its best suggestion. Short
// terms and numbers are kept as typed.
func (s *SpellChecker) Check(query string) (*Correction, error) {
	freqs, err := s.dictionary.TermFrequencies()
	if err != nil {
		return nil, err
	}
	terms := tokenizeQuery(query)
	out := &Correction{Query: strings.Join(terms, " "), Misspelled: map[string]string{}}
	corrected := make([]string, len(terms))
	for i, term := range terms {
		corrected[i] = term
		if _, ok := freqs[term]; ok || !correctable(term, s.minTermLength) {
			continue
		}
		if sugg := s.suggest(term, freqs); len(sugg) > 0 {
			corrected[i] = sugg[0].Term
			out.Misspelled[term] = sugg[0].Term
		}
	}
	out.Corrected = strings.Join(corrected, " ")
	return out, nil
}

// Suggest returns dictionary terms within the edit distance of term, best
// first.
func (s *SpellChecker) Suggest(term string) ([]Suggestion, error) {
	freqs, err := s.dictionary.TermFrequencies()
	if err != nil {
		return nil, err
	}
	return s.suggest(strings.ToLower(term), freqs), nil
}

func (s *SpellChecker) suggest(term string, freqs map[string]int) []Suggestion {
	n := utf8.RuneCountInString(term)
	var out []Suggestion
	for cand, freq := range freqs {
		if cand == term || freq < s.minFreq {
			continue
		}
		diff := utf8.RuneCountInString(cand) - n
		if diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := DamerauLevenshteinDistance(term, cand)
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      cand,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

func correctable(term string, minLen int) bool {
	if utf8.RuneCountInString(term) < minLen {
		return false
	}
	for _, r := range term {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}
