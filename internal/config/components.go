package config

import (
	"os"
	"strings"

	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/embedding"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/llm"
	"github.com/hyperjump/kessan/internal/search"
)

// ChunkerOptions converts the chunking section.
func (c *Config) ChunkerOptions() (chunker.Options, error) {
	strategy, err := chunker.ParseStrategy(c.Chunking.Strategy)
	if err != nil {
		return chunker.Options{}, err
	}
	unit, ok := chunker.ParseUnit(c.Chunking.SentenceUnit)
	if !ok {
		return chunker.Options{}, errs.InvalidConfiguration("unknown sentence unit %q", c.Chunking.SentenceUnit)
	}
	return chunker.Options{
		Strategy:     strategy,
		Size:         c.Chunking.Size,
		Overlap:      c.Chunking.OverlapOrDefault(),
		MaxUnits:     c.Chunking.MaxUnits,
		SentenceUnit: unit,
	}, nil
}

// ChunkingOverrides holds per-request chunking settings; zero fields keep
// the configured value.
type ChunkingOverrides struct {
	Strategy     string
	Size         int
	Overlap      int
	MaxUnits     int
	SentenceUnit string
}

// WithChunking returns a copy of c with the set overrides applied. Changing
// the strategy without an overlap resets the overlap to the strategy's
// default.
func (c *Config) WithChunking(o ChunkingOverrides) *Config {
	out := *c
	if o.Strategy != "" {
		out.Chunking.Strategy = o.Strategy
		if o.Overlap == 0 {
			out.Chunking.Overlap = nil
		}
	}
	if o.Size > 0 {
		out.Chunking.Size = o.Size
	}
	if o.Overlap > 0 {
		overlap := o.Overlap
		out.Chunking.Overlap = &overlap
	}
	if o.MaxUnits > 0 {
		out.Chunking.MaxUnits = o.MaxUnits
	}
	if o.SentenceUnit != "" {
		out.Chunking.SentenceUnit = o.SentenceUnit
	}
	return &out
}

// EmbeddingConfig converts the embedding section. The OpenAI key falls
// back to OPENAI_API_KEY.
func (c *Config) EmbeddingConfig() embedding.Config {
	key := c.Embedding.APIKey
	if key == "" {
		key = os.Getenv(llm.APIKeyEnv(llm.GPT))
	}
	return embedding.Config{
		Provider:   embedding.Provider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		APIKey:     key,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: c.Embedding.Dimensions,
		Timeout:    c.Embedding.Timeout,
		MaxRetries: c.Embedding.MaxRetries,
		BatchSize:  c.Ingest.EmbedBatchSize,
		CacheSize:  c.Embedding.CacheSize,
		ModelPath:  c.Embedding.ModelPath,
		MaxTokens:  c.Embedding.MaxTokens,
	}
}

// SearchConfig converts the search section.
func (c *Config) SearchConfig() search.Config {
	return search.Config{
		Weights:             search.Weights{Semantic: c.Search.SemanticWeight, Keyword: c.Search.KeywordWeight},
		CandidateMultiplier: c.Search.CandidateMultiplier,
		FuzzyEnabled:        c.Search.FuzzyEnabled,
		Fuzziness:           c.Search.Fuzziness,
		TitleBoost:          c.Search.KeywordTitleBoost,
	}
}

// IndexerConfig converts the ingest section.
func (c *Config) IndexerConfig() indexer.Config {
	return indexer.Config{
		EmbedBatchSize: c.Ingest.EmbedBatchSize,
		EmbedWorkers:   c.Ingest.EmbedWorkers,
		Include:        c.Ingest.Include,
		Exclude:        c.Ingest.Exclude,
	}
}

// ProviderConfigs returns one config per supported provider. Keys set in
// the file win over the environment. Provider names outside the supported
// set are UnknownProvider.
func (c *Config) ProviderConfigs() (map[llm.Name]llm.Config, error) {
	for name := range c.LLM.Providers {
		if _, err := llm.ParseName(name); err != nil {
			return nil, err
		}
	}
	out := make(map[llm.Name]llm.Config, len(llm.Names()))
	for _, n := range llm.Names() {
		pc := c.providerSection(n)
		key := pc.APIKey
		if key == "" {
			key = os.Getenv(llm.APIKeyEnv(n))
		}
		out[n] = llm.Config{
			APIKey:      key,
			BaseURL:     pc.BaseURL,
			Model:       pc.Model,
			Temperature: c.LLM.Temperature,
			MaxTokens:   c.LLM.MaxTokens,
			Timeout:     c.LLM.Timeout,
			MaxRetries:  c.LLM.MaxRetries,
		}
	}
	return out, nil
}

func (c *Config) providerSection(n llm.Name) ProviderConfig {
	for name, pc := range c.LLM.Providers {
		if llm.Name(strings.ToLower(strings.TrimSpace(name))) == n {
			return pc
		}
	}
	return ProviderConfig{}
}
