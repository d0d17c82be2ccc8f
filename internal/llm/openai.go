package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
)

// Config configures one provider. Every supported vendor exposes an
// OpenAI-compatible chat completions endpoint, so only the base URL,
// model and key differ.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Defaults returns the vendor defaults for name.
func Defaults(name Name) Config {
	switch name {
	case Gemini:
		return Config{BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/", Model: "gemini-2.0-flash"}
	case Claude:
		return Config{BaseURL: "https://api.anthropic.com/v1/", Model: "claude-3-5-sonnet-latest", MaxTokens: 1024}
	case DeepSeek:
		return Config{BaseURL: "https://api.deepseek.com/v1/", Model: "deepseek-chat"}
	case Grok:
		return Config{BaseURL: "https://api.x.ai/v1/", Model: "grok-2-latest"}
	default:
		return Config{Model: "gpt-4o"}
	}
}

// APIKeyEnv is the environment variable holding the key for name.
func APIKeyEnv(name Name) string {
	switch name {
	case Gemini:
		return "GEMINI_API_KEY"
	case Claude:
		return "ANTHROPIC_API_KEY"
	case DeepSeek:
		return "DEEPSEEK_API_KEY"
	case Grok:
		return "XAI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// withDefaults fills unset fields of cfg from the vendor defaults.
func withDefaults(name Name, cfg Config) Config {
	d := Defaults(name)
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	return cfg
}

// ChatGenerator calls a chat completions endpoint. The client is built on
// the first call.
type ChatGenerator struct {
	name   Name
	cfg    Config
	logger *zap.Logger

	once   sync.Once
	client openai.Client
	err    error
}

// NewChatGenerator returns a generator for provider name.
func NewChatGenerator(name Name, cfg Config, logger *zap.Logger) *ChatGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatGenerator{name: name, cfg: withDefaults(name, cfg), logger: logger}
}

func (g *ChatGenerator) init() error {
	g.once.Do(func() {
		if g.cfg.APIKey == "" {
			g.err = errs.InvalidConfiguration("%s API key is not set (%s)", g.name, APIKeyEnv(g.name)).
				WithDetail("provider", string(g.name))
			return
		}
		opts := []option.RequestOption{option.WithAPIKey(g.cfg.APIKey)}
		if g.cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(g.cfg.BaseURL))
		}
		if g.cfg.Timeout > 0 {
			opts = append(opts, option.WithRequestTimeout(g.cfg.Timeout))
		}
		if g.cfg.MaxRetries > 0 {
			opts = append(opts, option.WithMaxRetries(g.cfg.MaxRetries))
		}
		g.client = openai.NewClient(opts...)
	})
	return g.err
}

// Generate sends one system and one user message and returns the first
// choice verbatim.
func (g *ChatGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	if err := g.init(); err != nil {
		return "", err
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(g.cfg.Temperature),
	}
	if g.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.cfg.MaxTokens))
	}
	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", g.upstream(err)
	}
	if len(resp.Choices) == 0 {
		return "", g.upstream(errors.New("response has no choices"))
	}
	g.logger.Debug("generation complete",
		zap.String("provider", string(g.name)),
		zap.String("model", g.cfg.Model),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)))
	return resp.Choices[0].Message.Content, nil
}

func (g *ChatGenerator) upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ue := errs.Upstream(string(g.name), err).WithDetail("provider", string(g.name))
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		ue.WithDetail("status", apiErr.StatusCode)
	}
	return ue
}
