package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
chunking:
  strategy: sentence
  size: 5
  sentence_unit: words
watch:
  debounce: 500ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr = %s", cfg.Server.Addr())
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Chunking.OverlapOrDefault() != 0 {
		t.Errorf("sentence strategy should not get a default overlap, got %d", cfg.Chunking.OverlapOrDefault())
	}

	opts, err := cfg.ChunkerOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Strategy != chunker.Sentence || opts.Size != 5 || opts.SentenceUnit != chunker.UnitWords {
		t.Errorf("chunker options = %+v", opts)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/kessan.db"
  vector_index_path: ":memory:"
watch:
  directories: ["./inbox"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kessan.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if cfg.Storage.VectorIndexPath != ":memory:" {
		t.Errorf(":memory: should be kept, got %s", cfg.Storage.VectorIndexPath)
	}
	if len(cfg.Watch.Directories) != 1 || cfg.Watch.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("watch directories = %v", cfg.Watch.Directories)
	}
	if !cfg.Watch.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"bad port", "server:\n  port: 70000\n", "Server.Port"},
		{"overlap not below size", "chunking:\n  strategy: sliding\n  size: 10\n  overlap: 10\n", "Chunking.Overlap"},
		{"vector index type", "storage:\n  vector_index_type: annoy\n", "Storage.VectorIndexType"},
		{"embedding provider", "embedding:\n  provider: cohere\n", "Embedding.Provider"},
		{"weight above one", "search:\n  semantic_weight: 1.5\n", "Search.SemanticWeight"},
		{"provider url", "llm:\n  providers:\n    gpt:\n      base_url: not a url\n", "BaseURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !errors.Is(err, errs.ErrInvalidConfiguration) {
				t.Fatalf("expected invalid configuration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestLoad_chunkingOverlap(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"explicit zero kept", "chunking:\n  strategy: sliding\n  size: 100\n  overlap: 0\n", 0},
		{"explicit value kept", "chunking:\n  strategy: sliding\n  size: 100\n  overlap: 7\n", 7},
		{"small size derives the default", "chunking:\n  size: 10\n", 1},
		{"tiny size", "chunking:\n  strategy: sliding\n  size: 5\n", 0},
		{"default capped at 20", "chunking:\n  strategy: recursive\n  size: 500\n", 20},
		{"fixed has none", "chunking:\n  strategy: fixed\n  size: 500\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if got := cfg.Chunking.OverlapOrDefault(); got != tt.want {
				t.Errorf("overlap = %d, want %d", got, tt.want)
			}
			opts, err := cfg.ChunkerOptions()
			if err != nil {
				t.Fatal(err)
			}
			if opts.Overlap != tt.want {
				t.Errorf("chunker overlap = %d, want %d", opts.Overlap, tt.want)
			}
		})
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	if !errors.Is(err, errs.ErrInvalidConfiguration) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_dotEnv(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")
	_ = os.Unsetenv("XAI_API_KEY")
	t.Setenv("GEMINI_API_KEY", "from-environment")

	path := writeConfig(t, "llm:\n  default_provider: grok\n")
	env := "XAI_API_KEY=from-dotenv\nGEMINI_API_KEY=ignored\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	providers, err := cfg.ProviderConfigs()
	if err != nil {
		t.Fatal(err)
	}
	if providers[llm.Grok].APIKey != "from-dotenv" {
		t.Errorf("grok key = %q", providers[llm.Grok].APIKey)
	}
	if providers[llm.Gemini].APIKey != "from-environment" {
		t.Errorf(".env must not override the environment, gemini key = %q", providers[llm.Gemini].APIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Search.SemanticWeight != 0.7 || cfg.Search.KeywordWeight != 0.3 {
		t.Errorf("default weights: %+v", cfg.Search)
	}
	if cfg.Chunking.Strategy != "recursive" || cfg.Chunking.OverlapOrDefault() != 20 {
		t.Errorf("default chunking: %+v", cfg.Chunking)
	}
	if cfg.LLM.DefaultProvider != "gpt" {
		t.Errorf("default provider: %s", cfg.LLM.DefaultProvider)
	}
	if cfg.Storage.VectorIndexType != "bolt" {
		t.Errorf("default vector index: %s", cfg.Storage.VectorIndexType)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_keepsKeywordOnlyWeights(t *testing.T) {
	cfg := &Config{Search: SearchConfig{KeywordWeight: 1}}
	ApplyDefaults(cfg)
	if cfg.Search.SemanticWeight != 0 || cfg.Search.KeywordWeight != 1 {
		t.Errorf("weights = %+v", cfg.Search)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSearchConfig_SpellCorrectionOrDefault(t *testing.T) {
	var s SearchConfig
	if !s.SpellCorrectionOrDefault() {
		t.Error("spell correction should default to on")
	}
	off := false
	s.SpellCorrection = &off
	if s.SpellCorrectionOrDefault() {
		t.Error("explicit false should disable spell correction")
	}
}

func TestChunkerOptions_unknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Chunking.Strategy = "paragraph"
	if _, err := cfg.ChunkerOptions(); !errors.Is(err, errs.ErrUnknownStrategy) {
		t.Errorf("expected unknown strategy, got %v", err)
	}
}

func TestProviderConfigs(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg := Default()
	cfg.LLM.Providers = map[string]ProviderConfig{
		"Claude": {Model: "claude-custom", APIKey: "file-key"},
	}
	providers, err := cfg.ProviderConfigs()
	if err != nil {
		t.Fatal(err)
	}
	if len(providers) != len(llm.Names()) {
		t.Errorf("got %d providers", len(providers))
	}
	if providers[llm.Claude].Model != "claude-custom" || providers[llm.Claude].APIKey != "file-key" {
		t.Errorf("claude = %+v", providers[llm.Claude])
	}
	if providers[llm.GPT].APIKey != "env-key" {
		t.Errorf("gpt key = %q", providers[llm.GPT].APIKey)
	}
	if cfg.EmbeddingConfig().APIKey != "env-key" {
		t.Error("embedding key should fall back to OPENAI_API_KEY")
	}

	cfg.LLM.Providers["mistral"] = ProviderConfig{}
	if _, err := cfg.ProviderConfigs(); !errors.Is(err, errs.ErrUnknownProvider) {
		t.Errorf("expected unknown provider, got %v", err)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Storage.DatabasePath = "/tmp/kessan.db"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.LLM.Timeout != time.Minute {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestWithChunking(t *testing.T) {
	cfg := Default()
	got := cfg.WithChunking(ChunkingOverrides{Strategy: "sentence", Size: 3})
	if got.Chunking.Strategy != "sentence" || got.Chunking.Size != 3 || got.Chunking.OverlapOrDefault() != 0 {
		t.Errorf("overridden chunking = %+v", got.Chunking)
	}
	if cfg.Chunking.Strategy != "recursive" || cfg.Chunking.OverlapOrDefault() != 20 {
		t.Errorf("original config must be untouched: %+v", cfg.Chunking)
	}

	got = cfg.WithChunking(ChunkingOverrides{Overlap: 5, MaxUnits: 100})
	if got.Chunking.Strategy != "recursive" || got.Chunking.OverlapOrDefault() != 5 || got.Chunking.MaxUnits != 100 {
		t.Errorf("overridden chunking = %+v", got.Chunking)
	}
	if _, err := got.ChunkerOptions(); err != nil {
		t.Errorf("ChunkerOptions: %v", err)
	}
}
