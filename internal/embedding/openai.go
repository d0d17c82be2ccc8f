package embedding

import (
	"context"
	"errors"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	cfg    Config
	logger *zap.Logger

	once   sync.Once
	client openai.Client
	err    error
}

// NewOpenAIEmbedder returns an embedder for cfg. No client is created and
// no key is checked until the first call.
func NewOpenAIEmbedder(cfg Config, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIEmbedder{cfg: cfg, logger: logger}, nil
}

func (e *OpenAIEmbedder) init() error {
	e.once.Do(func() {
		if e.cfg.APIKey == "" {
			e.err = errs.InvalidConfiguration("embedding API key is not set")
			return
		}
		opts := []option.RequestOption{option.WithAPIKey(e.cfg.APIKey)}
		if e.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(e.cfg.BaseURL))
		}
		if e.cfg.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(e.cfg.Timeout))
		}
		if e.cfg.MaxRetries > 0 {
			opts = append(opts, option.WithMaxRetries(e.cfg.MaxRetries))
		}
		e.client = openai.NewClient(opts...)
		e.logger.Debug("embedding client ready", zap.String("model", e.cfg.Model), zap.String("base_url", e.cfg.BaseURL))
	})
	return e.err
}

// Embed embeds one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most BatchSize inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.cfg.Model),
	}
	if e.cfg.Model != string(openai.EmbeddingModelTextEmbeddingAda002) {
		params.Dimensions = openai.Int(int64(e.cfg.Dimensions))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, upstreamError("embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errs.Upstream("embeddings", errors.New("response size does not match input")).
			WithDetail("expected", len(texts)).WithDetail("got", len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, errs.Upstream("embeddings", errors.New("response index out of range"))
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close is a no-op; the HTTP client is shared.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

func upstreamError(service string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ue := errs.Upstream(service, err)
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		ue.WithDetail("status", apiErr.StatusCode)
	}
	return ue
}
