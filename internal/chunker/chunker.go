// Package chunker splits document text into bounded chunks. All sizes are
// measured in whitespace-delimited words.
package chunker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
)

// Strategy selects how text is split.
type Strategy int

const (
	Fixed Strategy = iota + 1
	Sentence
	Sliding
	Recursive
)

var strategyNames = map[Strategy]string{
	Fixed:     "fixed",
	Sentence:  "sentence",
	Sliding:   "sliding",
	Recursive: "recursive",
}

var strategyAliases = map[string]Strategy{
	"fixed":          Fixed,
	"fixed_size":     Fixed,
	"sentence":       Sentence,
	"sentences":      Sentence,
	"sliding":        Sliding,
	"sliding_window": Sliding,
	"recursive":      Recursive,
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStrategy returns the strategy for name. Matching ignores case and
// surrounding space.
func ParseStrategy(name string) (Strategy, error) {
	s, ok := strategyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, errs.UnknownStrategy(name)
	}
	return s, nil
}

// Strategies lists the supported strategies in declaration order.
func Strategies() []Strategy {
	return []Strategy{Fixed, Sentence, Sliding, Recursive}
}

// Options configures a Chunker.
type Options struct {
	Strategy Strategy
	// Size is the target chunk size. For Sentence it is the group budget
	// in SentenceUnit.
	Size    int
	Overlap int
	// MaxUnits is the hard ceiling enforced after splitting; 0 disables it.
	MaxUnits     int
	SentenceUnit Unit
	Separators   []string
}

// Chunker splits text using one configured strategy.
type Chunker struct {
	opts     Options
	splitter SentenceSplitter
	logger   *zap.Logger
}

// Option configures optional Chunker dependencies.
type Option func(*Chunker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// WithSentenceSplitter overrides the sentence boundary detector.
func WithSentenceSplitter(s SentenceSplitter) Option {
	return func(c *Chunker) { c.splitter = s }
}

// New validates opts and returns a Chunker.
func New(opts Options, options ...Option) (*Chunker, error) {
	if _, ok := strategyNames[opts.Strategy]; !ok {
		return nil, errs.UnknownStrategy(opts.Strategy.String())
	}
	switch opts.Strategy {
	case Sliding, Recursive:
		if err := validateWindow(opts.Size, opts.Overlap); err != nil {
			return nil, err
		}
	default:
		if err := validateSize(opts.Size); err != nil {
			return nil, err
		}
	}
	if opts.MaxUnits < 0 {
		return nil, errs.InvalidConfiguration("max units must not be negative, got %d", opts.MaxUnits)
	}
	if opts.SentenceUnit == 0 {
		opts.SentenceUnit = UnitSentences
	}
	if len(opts.Separators) == 0 {
		opts.Separators = DefaultSeparators
	}
	c := &Chunker{
		opts:     opts,
		splitter: DefaultSplitter(),
		logger:   zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	return c, nil
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Split returns the chunk texts for text, with the ceiling enforced.
func (c *Chunker) Split(text string) ([]string, error) {
	var (
		parts []string
		err   error
	)
	switch c.opts.Strategy {
	case Fixed:
		parts, err = ChunkFixed(text, c.opts.Size)
	case Sentence:
		parts, err = groupSentences(c.splitter.Split(text), c.opts.Size, c.opts.SentenceUnit)
	case Sliding:
		parts, err = ChunkSliding(text, c.opts.Size, c.opts.Overlap)
	case Recursive:
		parts, err = ChunkRecursive(text, c.opts.Size, c.opts.Overlap, c.opts.Separators)
	default:
		return nil, errs.UnknownStrategy(c.opts.Strategy.String())
	}
	if err != nil {
		return nil, err
	}
	if c.opts.MaxUnits > 0 {
		before := len(parts)
		parts, err = ValidateAndResplit(parts, c.opts.MaxUnits)
		if err != nil {
			return nil, err
		}
		if len(parts) != before {
			c.logger.Debug("resplit oversized chunks",
				zap.String("strategy", c.opts.Strategy.String()),
				zap.Int("before", before),
				zap.Int("after", len(parts)))
		}
	}
	return parts, nil
}

// Chunk splits text into chunks of docID carrying a copy of meta.
func (c *Chunker) Chunk(docID, text string, meta map[string]string) ([]models.Chunk, error) {
	parts, err := c.Split(text)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(parts))
	for i, p := range parts {
		m := make(map[string]string, len(meta)+1)
		for k, v := range meta {
			m[k] = v
		}
		m[models.MetaDocument] = docID
		chunks = append(chunks, models.Chunk{
			ID:         models.ChunkID(docID, i),
			DocumentID: docID,
			Index:      i,
			Content:    p,
			TokenCount: CountWords(p),
			Metadata:   m,
		})
	}
	return chunks, nil
}

func validateSize(size int) error {
	if size <= 0 {
		return errs.InvalidConfiguration("chunk size must be positive, got %d", size)
	}
	return nil
}

func validateWindow(size, overlap int) error {
	if err := validateSize(size); err != nil {
		return err
	}
	if overlap < 0 || overlap >= size {
		return errs.InvalidConfiguration("overlap must be in [0, %d), got %d", size, overlap)
	}
	return nil
}
