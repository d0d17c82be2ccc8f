package chunker

import (
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Unit is what a sentence group budget counts.
type Unit int

const (
	UnitSentences Unit = iota + 1
	UnitWords
)

// ParseUnit maps "sentences" or "words" to a Unit. Empty means sentences.
func ParseUnit(name string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sentence", "sentences":
		return UnitSentences, true
	case "word", "words":
		return UnitWords, true
	}
	return 0, false
}

// SentenceSplitter detects sentence boundaries.
type SentenceSplitter interface {
	Split(text string) []string
}

// PunktSplitter uses the English Punkt model, which knows common
// abbreviations ("Inc.", "approx.") and decimal numbers.
type PunktSplitter struct {
	once      sync.Once
	tokenizer *sentences.DefaultSentenceTokenizer
	fallback  RegexSplitter
}

// Split returns the trimmed, whitespace-collapsed sentences of text.
func (p *PunktSplitter) Split(text string) []string {
	p.once.Do(func() {
		// Training data loads on first use; a load failure leaves the regex fallback.
		tok, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			p.tokenizer = tok
		}
	})
	if p.tokenizer == nil {
		return p.fallback.Split(text)
	}
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		if clean := strings.Join(strings.Fields(s.Text), " "); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

var sentenceRe = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// RegexSplitter splits after runs of terminal punctuation.
type RegexSplitter struct{}

func (RegexSplitter) Split(text string) []string {
	var out []string
	for _, m := range sentenceRe.FindAllString(text, -1) {
		if clean := strings.Join(strings.Fields(m), " "); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

var (
	defaultSplitterOnce sync.Once
	defaultSplitter     *PunktSplitter
)

// DefaultSplitter returns the shared Punkt splitter.
func DefaultSplitter() SentenceSplitter {
	defaultSplitterOnce.Do(func() { defaultSplitter = &PunktSplitter{} })
	return defaultSplitter
}

// ChunkBySentences groups consecutive sentences of text so that each group
// holds at most maxUnits sentences. A group is closed before the sentence
// that would overflow it.
func ChunkBySentences(text string, maxUnits int) ([]string, error) {
	if err := validateSize(maxUnits); err != nil {
		return nil, err
	}
	return groupSentences(DefaultSplitter().Split(text), maxUnits, UnitSentences)
}

// ChunkBySentenceWords is ChunkBySentences with a word budget. A single
// sentence longer than maxWords is kept whole in its own chunk.
func ChunkBySentenceWords(text string, maxWords int) ([]string, error) {
	if err := validateSize(maxWords); err != nil {
		return nil, err
	}
	return groupSentences(DefaultSplitter().Split(text), maxWords, UnitWords)
}

func groupSentences(sents []string, maxUnits int, unit Unit) ([]string, error) {
	if err := validateSize(maxUnits); err != nil {
		return nil, err
	}
	measure := func(string) int { return 1 }
	if unit == UnitWords {
		measure = CountWords
	}
	var (
		chunks []string
		cur    []string
		used   int
	)
	for _, s := range sents {
		n := measure(s)
		if len(cur) > 0 && used+n > maxUnits {
			chunks = append(chunks, strings.Join(cur, " "))
			cur, used = nil, 0
		}
		cur = append(cur, s)
		used += n
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks, nil
}
