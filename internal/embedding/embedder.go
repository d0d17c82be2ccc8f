// Package embedding maps chunk text to vectors through a hosted model, a
// local ONNX model, or a deterministic hashing embedder.
package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Provider names a backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderHash   Provider = "hash"
	ProviderONNX   Provider = "onnx"
)

// Config selects and configures an embedding backend. Clients are built
// on first use, so a Config with a missing key only fails when called.
type Config struct {
	Provider   Provider
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
	// BatchSize caps texts per upstream request.
	BatchSize int
	CacheSize int
	// ModelPath and MaxTokens apply to the onnx backend.
	ModelPath string
	MaxTokens int
}

// Option configures optional dependencies.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns the embedder for cfg, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg Config, opts ...Option) (Embedder, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI, "":
		e, err = NewOpenAIEmbedder(cfg, o.logger)
	case ProviderHash:
		e = NewHashEmbedder(cfg.Dimensions)
	case ProviderONNX:
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	default:
		return nil, errs.InvalidConfiguration("unknown embedding provider: %s (supported: openai, hash, onnx)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
