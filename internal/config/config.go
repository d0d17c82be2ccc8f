// Package config provides configuration loading and structs for the Kessan server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kessan/internal/errs"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	LogLevel  string          `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	LLM       LLMConfig       `yaml:"llm"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host" validate:"required"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	MaxUploadMB  int           `yaml:"max_upload_mb" validate:"min=1"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path" validate:"required"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexType string `yaml:"vector_index_type" validate:"oneof=memory bolt faiss"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// ChunkingConfig selects the chunking strategy and its sizes, in words
// (sentences for the sentence strategy unless sentence_unit is "words").
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy" validate:"required"`
	Size         int    `yaml:"size" validate:"min=1"`
	Overlap      *int   `yaml:"overlap" validate:"omitempty,min=0,ltfield=Size"`
	MaxUnits     int    `yaml:"max_units" validate:"min=0"`
	SentenceUnit string `yaml:"sentence_unit" validate:"omitempty,oneof=sentences words"`
}

// OverlapOrDefault returns the configured overlap. Unset, it is zero for
// the fixed and sentence strategies and min(20, size/10) otherwise.
func (c ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	if c.Strategy == "fixed" || c.Strategy == "sentence" {
		return 0
	}
	return min(20, c.Size/10)
}

// IngestConfig controls directory ingestion and the embedding pool.
type IngestConfig struct {
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	EmbedBatchSize int      `yaml:"embed_batch_size" validate:"min=1"`
	EmbedWorkers   int      `yaml:"embed_workers" validate:"min=1,max=64"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider" validate:"oneof=openai hash onnx"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey     string        `yaml:"api_key"`
	Dimensions int           `yaml:"dimensions" validate:"min=1"`
	ModelPath  string        `yaml:"model_path"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size" validate:"min=0"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"min=0"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	SemanticWeight      float64 `yaml:"semantic_weight" validate:"min=0,max=1"`
	KeywordWeight       float64 `yaml:"keyword_weight" validate:"min=0,max=1"`
	CandidateMultiplier int     `yaml:"candidate_multiplier" validate:"min=1"`
	FuzzyEnabled        bool    `yaml:"fuzzy_enabled"`
	Fuzziness           int     `yaml:"fuzziness" validate:"min=0,max=2"`
	KeywordTitleBoost   float64 `yaml:"keyword_title_boost" validate:"min=0"`
	SpellCorrection     *bool   `yaml:"spell_correction"`
}

// SpellCorrectionOrDefault reports whether zero-hit keyword queries are
// retried with corrected spelling; defaults to true when unset.
func (s SearchConfig) SpellCorrectionOrDefault() bool {
	if s.SpellCorrection != nil {
		return *s.SpellCorrection
	}
	return true
}

// LLMConfig holds answer and summary provider settings.
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Temperature     float64                   `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens       int                       `yaml:"max_tokens" validate:"min=0"`
	Timeout         time.Duration             `yaml:"timeout"`
	MaxRetries      int                       `yaml:"max_retries" validate:"min=0"`
	SummaryMaxChars int                       `yaml:"summary_max_chars" validate:"min=0"`
	Providers       map[string]ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig overrides one provider's vendor defaults. API keys are
// normally taken from the environment instead.
type ProviderConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string `yaml:"api_key"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Debounce    time.Duration `yaml:"debounce"`
	Recursive   *bool         `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults and validates the result. A .env file next to the config, if
// present, seeds environment variables that are not already set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfiguration, err, "failed to parse config")
	}

	configDir := filepath.Dir(path)
	if err := LoadEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
// "./" paths resolve against the working directory.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	if wd, err := os.Getwd(); err == nil {
		cfg.expandPaths(wd)
	}
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DatabasePath = expandPath(c.Storage.DatabasePath, configDir)
	c.Storage.BleveIndexPath = expandPath(c.Storage.BleveIndexPath, configDir)
	c.Storage.VectorIndexPath = expandPath(c.Storage.VectorIndexPath, configDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// LoadEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errs.Wrap(errs.KindInvalidConfiguration, err, "failed to load %s", path)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Failures are InvalidConfiguration
// naming every offending field.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.KindInvalidConfiguration, err, "invalid config")
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fmt.Sprintf("%s (%s)", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	}
	return errs.InvalidConfiguration("invalid config: %s", strings.Join(fields, ", ")).
		WithDetail("fields", strings.Join(fields, ","))
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths and
// ":memory:" are kept.
func expandPath(path string, configDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
