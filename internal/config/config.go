package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LogConfig configures the zap logger.
type LogConfig struct {
	Mode   string `yaml:"mode"`
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
	// TUIOutput receives logs while the terminal UI owns the screen.
	TUIOutput string `yaml:"tui_output"`
}

// GCSConfig contains connection details for a Google Cloud Storage bucket.
type GCSConfig struct {
	EmulatorHost string `yaml:"emulator_host"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// SourceConfig selects where label files are read from.
type SourceConfig struct {
	Type string `yaml:"type"`
	// Container is the bucket name for gcs or the directory for local.
	Container string     `yaml:"container"`
	Prefix    string     `yaml:"prefix"`
	Exclude   []string   `yaml:"exclude"`
	Suffix    string     `yaml:"suffix"`
	GCS       *GCSConfig `yaml:"gcs,omitempty"`
}

// DocumentsConfig controls document compilation and normalization.
type DocumentsConfig struct {
	TitleKeys    []string `yaml:"title_keys"`
	ExpectedKeys []string `yaml:"expected_keys"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// RedisCacheConfig configures the Redis embedding cache.
type RedisCacheConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	Prefix      string `yaml:"prefix"`
	TTLSecs     int    `yaml:"ttl_secs"`
}

// CacheConfig selects the embedding cache.
type CacheConfig struct {
	Type  string            `yaml:"type"`
	Redis *RedisCacheConfig `yaml:"redis,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type       string                `yaml:"type"`
	Dimensions int                   `yaml:"dimensions"`
	OpenAI     *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Cache      CacheConfig           `yaml:"cache"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PgVectorConfig contains connection details for PostgreSQL with pgvector.
type PgVectorConfig struct {
	DSNEnv string `yaml:"dsn_env"`
}

// SearchIndexConfig selects and configures the search index implementation.
type SearchIndexConfig struct {
	Type     string          `yaml:"type"`
	Name     string          `yaml:"name"`
	TopK     int             `yaml:"top_k"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PgVector *PgVectorConfig `yaml:"pgvector,omitempty"`
}

// ChatConfig configures the chat completion client and prompt.
type ChatConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Model        string  `yaml:"model"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	TimeoutSecs  int     `yaml:"timeout_secs"`
	SystemPrompt string  `yaml:"system_prompt"`
	HistoryTurns int     `yaml:"history_turns"`
}

// CheckpointConfig sets where the embedded document set is persisted.
type CheckpointConfig struct {
	Path string `yaml:"path"`
}

// SummarizerConfig configures the ingest summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Source      SourceConfig      `yaml:"source"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	SearchIndex SearchIndexConfig `yaml:"search_index"`
	Chat        ChatConfig        `yaml:"chat"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			applyConfigDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
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
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Log:    LogConfig{Mode: "dev", Level: "info", Output: "stderr", TUIOutput: "docqa.log"},
		Source: SourceConfig{Type: "local", Container: "labels", Suffix: ".labels.json", Exclude: []string{"fields.json", "ocr.json"}},
		Documents: DocumentsConfig{
			TitleKeys:    []string{"document_title"},
			ExpectedKeys: []string{"document_title", "author", "date", "summary"},
		},
		Embedder:    EmbedderConfig{Type: "openai", Dimensions: 1536, Cache: CacheConfig{Type: "memory"}},
		SearchIndex: SearchIndexConfig{Type: "memory", Name: "labelled-documents", TopK: 3},
		Chat:        ChatConfig{HistoryTurns: 3},
		Checkpoint:  CheckpointConfig{Path: filepath.Join("data", "documents.json")},
		Summarizer:  SummarizerConfig{MaxSentences: 3},
	}
}

const defaultSystemPrompt = "You are an assistant that answers questions about a collection of labelled documents. " +
	"Answer only from the provided context. If the context does not contain the answer, say you do not know."

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Source.Suffix == "" {
		cfg.Source.Suffix = ".labels.json"
	}
	if cfg.Source.Type == "gcs" {
		if cfg.Source.GCS == nil {
			cfg.Source.GCS = &GCSConfig{}
		}
		if cfg.Source.GCS.TimeoutSecs == 0 {
			cfg.Source.GCS.TimeoutSecs = 30
		}
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
	if cfg.Embedder.Cache.Type == "redis" {
		if cfg.Embedder.Cache.Redis == nil {
			cfg.Embedder.Cache.Redis = &RedisCacheConfig{}
		}
		if cfg.Embedder.Cache.Redis.Prefix == "" {
			cfg.Embedder.Cache.Redis.Prefix = "docqa:emb:"
		}
	}
	if cfg.SearchIndex.TopK <= 0 {
		cfg.SearchIndex.TopK = 3
	}
	switch cfg.SearchIndex.Type {
	case "qdrant":
		if cfg.SearchIndex.Qdrant == nil {
			cfg.SearchIndex.Qdrant = &QdrantConfig{}
		}
		if cfg.SearchIndex.Qdrant.APIKeyEnv == "" {
			cfg.SearchIndex.Qdrant.APIKeyEnv = "QDRANT_API_KEY"
		}
		if cfg.SearchIndex.Qdrant.TimeoutSecs == 0 {
			cfg.SearchIndex.Qdrant.TimeoutSecs = 15
		}
	case "pgvector":
		if cfg.SearchIndex.PgVector == nil {
			cfg.SearchIndex.PgVector = &PgVectorConfig{}
		}
		if cfg.SearchIndex.PgVector.DSNEnv == "" {
			cfg.SearchIndex.PgVector.DSNEnv = "DATABASE_URL"
		}
	}
	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = 800
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 60
	}
	if cfg.Chat.SystemPrompt == "" {
		cfg.Chat.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Chat.HistoryTurns < 0 {
		cfg.Chat.HistoryTurns = 0
	}
	if cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = filepath.Join("data", "documents.json")
	}
	if cfg.Summarizer.MaxSentences <= 0 {
		cfg.Summarizer.MaxSentences = 3
	}
}
