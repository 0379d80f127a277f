// Package config loads the application configuration from YAML, with
// sensible defaults for first runs.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"docrag/internal/errs"
)

// ChunkerConfig configures the sliding-window chunker. Overlap is a
// pointer so an explicit "overlap: 0" is distinguishable from an
// absent key; nil means unset and gets a default.
type ChunkerConfig struct {
	MaxLength int  `yaml:"max_length"`
	Overlap   *int `yaml:"overlap"`
}

// OverlapValue returns the configured overlap, or zero when unset.
func (c ChunkerConfig) OverlapValue() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// OpenAIEmbedderConfig holds settings for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HashEmbedderConfig holds settings for the deterministic hash embedder.
type HashEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Hash   *HashEmbedderConfig   `yaml:"hash,omitempty"`
}

// SQLiteIndexConfig holds settings for the persistent index backend.
// Each corpus gets its own database file under Dir.
type SQLiteIndexConfig struct {
	Dir string `yaml:"dir"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Type   string             `yaml:"type"`
	SQLite *SQLiteIndexConfig `yaml:"sqlite,omitempty"`
}

// EngineConfig tunes the retrieval engine.
type EngineConfig struct {
	MaxFragmentsPerDocument int `yaml:"max_fragments_per_document"`
	EmbedBatchSize          int `yaml:"embed_batch_size"`
	EmbedConcurrency        int `yaml:"embed_concurrency"`
	RetryAttempts           int `yaml:"retry_attempts"`
	RetryBaseMillis         int `yaml:"retry_base_millis"`
}

// SummarizerConfig configures ingestion report summaries.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Index      IndexConfig      `yaml:"index"`
	Engine     EngineConfig     `yaml:"engine"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Server     ServerConfig     `yaml:"server"`
}

// RetryBase returns the engine retry base delay as a duration.
func (c EngineConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMillis) * time.Millisecond
}

// Timeout returns the embedder HTTP timeout as a duration.
func (c OpenAIEmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads a config from path. A missing file yields defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, errs.Wrap(err, errs.CodeConfigInvalid, "read config file", errs.Field("path", path))
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(err, errs.CodeConfigInvalid, "parse config file", errs.Field("path", path))
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Chunker.MaxLength == 0 {
		cfg.Chunker.MaxLength = 800
	}
	if cfg.Chunker.Overlap == nil {
		overlap := 0
		if cfg.Chunker.MaxLength > 100 {
			overlap = 100
		}
		cfg.Chunker.Overlap = &overlap
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hash"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "hash" {
		if cfg.Embedder.Hash == nil {
			cfg.Embedder.Hash = &HashEmbedderConfig{}
		}
		if cfg.Embedder.Hash.Dimension == 0 {
			cfg.Embedder.Hash.Dimension = 256
		}
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Type == "sqlite" {
		if cfg.Index.SQLite == nil {
			cfg.Index.SQLite = &SQLiteIndexConfig{}
		}
		if cfg.Index.SQLite.Dir == "" {
			cfg.Index.SQLite.Dir = "docrag-data"
		}
	}
	if cfg.Engine.MaxFragmentsPerDocument == 0 {
		cfg.Engine.MaxFragmentsPerDocument = 1000
	}
	if cfg.Engine.EmbedBatchSize == 0 {
		cfg.Engine.EmbedBatchSize = 32
	}
	if cfg.Engine.EmbedConcurrency == 0 {
		cfg.Engine.EmbedConcurrency = 4
	}
	if cfg.Engine.RetryAttempts == 0 {
		cfg.Engine.RetryAttempts = 3
	}
	if cfg.Engine.RetryBaseMillis == 0 {
		cfg.Engine.RetryBaseMillis = 200
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}

func validate(cfg *AppConfig) error {
	if overlap := cfg.Chunker.OverlapValue(); overlap < 0 || cfg.Chunker.MaxLength <= overlap {
		return errs.New(errs.CodeConfigInvalid, "chunker max_length must exceed non-negative overlap",
			errs.Field("max_length", cfg.Chunker.MaxLength), errs.Field("overlap", overlap))
	}
	switch cfg.Embedder.Type {
	case "hash", "openai":
	default:
		return errs.New(errs.CodeConfigInvalid, "unknown embedder type", errs.Field("type", cfg.Embedder.Type))
	}
	switch cfg.Index.Type {
	case "memory", "sqlite":
	default:
		return errs.New(errs.CodeConfigInvalid, "unknown index type", errs.Field("type", cfg.Index.Type))
	}
	return nil
}
