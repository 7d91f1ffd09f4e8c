package config

import (
	"os"
	"strconv"
	"strings"

	"docqa/internal/domain"
)

// Environment variables that override file settings.
const (
	EnvSourceType          = "DOCQA_SOURCE_TYPE"
	EnvSourceContainer     = "DOCQA_SOURCE_CONTAINER"
	EnvSourcePrefix        = "DOCQA_SOURCE_PREFIX"
	EnvEmbeddingBaseURL    = "DOCQA_EMBEDDING_BASE_URL"
	EnvEmbeddingModel      = "DOCQA_EMBEDDING_MODEL"
	EnvEmbeddingDimensions = "DOCQA_EMBEDDING_DIMENSIONS"
	EnvSearchIndexType     = "DOCQA_SEARCH_INDEX_TYPE"
	EnvSearchIndexName     = "DOCQA_SEARCH_INDEX_NAME"
	EnvQdrantURL           = "DOCQA_QDRANT_URL"
	EnvRedisAddr           = "DOCQA_REDIS_ADDR"
	EnvChatBaseURL         = "DOCQA_CHAT_BASE_URL"
	EnvChatModel           = "DOCQA_CHAT_MODEL"
	EnvStorageEmulator     = "STORAGE_EMULATOR_HOST"
)

func applyEnvOverrides(cfg *AppConfig) {
	setString(&cfg.Source.Type, EnvSourceType)
	setString(&cfg.Source.Container, EnvSourceContainer)
	setString(&cfg.Source.Prefix, EnvSourcePrefix)
	if v := env(EnvStorageEmulator); v != "" {
		if cfg.Source.GCS == nil {
			cfg.Source.GCS = &GCSConfig{}
		}
		cfg.Source.GCS.EmulatorHost = v
	}
	cfg.Embedder.Dimensions = envInt(EnvEmbeddingDimensions, cfg.Embedder.Dimensions)
	if v := env(EnvEmbeddingBaseURL); v != "" {
		ensureOpenAI(cfg).BaseURL = v
	}
	if v := env(EnvEmbeddingModel); v != "" {
		ensureOpenAI(cfg).Model = v
	}
	setString(&cfg.SearchIndex.Type, EnvSearchIndexType)
	setString(&cfg.SearchIndex.Name, EnvSearchIndexName)
	if v := env(EnvQdrantURL); v != "" {
		if cfg.SearchIndex.Qdrant == nil {
			cfg.SearchIndex.Qdrant = &QdrantConfig{}
		}
		cfg.SearchIndex.Qdrant.URL = v
	}
	if v := env(EnvRedisAddr); v != "" {
		if cfg.Embedder.Cache.Redis == nil {
			cfg.Embedder.Cache.Redis = &RedisCacheConfig{}
		}
		cfg.Embedder.Cache.Redis.Addr = v
	}
	setString(&cfg.Chat.BaseURL, EnvChatBaseURL)
	setString(&cfg.Chat.Model, EnvChatModel)
}

func ensureOpenAI(cfg *AppConfig) *OpenAIEmbedderConfig {
	if cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	return cfg.Embedder.OpenAI
}

// Validate checks every required value once, before any work starts.
// Absent values are reported together in a *domain.MissingConfigurationError.
// needChat is false for ingest-only runs.
func (c *AppConfig) Validate(needChat bool) error {
	switch c.Source.Type {
	case "local", "gcs":
	default:
		return domain.InvalidArgument("unknown source type %q", c.Source.Type)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return domain.InvalidArgument("unknown embedder %q", c.Embedder.Type)
	}
	switch c.Embedder.Cache.Type {
	case "", "none", "memory", "redis":
	default:
		return domain.InvalidArgument("unknown embedding cache %q", c.Embedder.Cache.Type)
	}
	switch c.SearchIndex.Type {
	case "memory", "qdrant", "pgvector":
	default:
		return domain.InvalidArgument("unknown search index %q", c.SearchIndex.Type)
	}
	if len(c.Documents.TitleKeys) == 0 {
		return domain.InvalidArgument("documents.title_keys must not be empty")
	}

	var missing []string
	need := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	need("source.container ("+EnvSourceContainer+")", c.Source.Container)
	need("search_index.name ("+EnvSearchIndexName+")", c.SearchIndex.Name)
	if c.Embedder.Type == "openai" {
		need(c.Embedder.OpenAI.APIKeyEnv, os.Getenv(c.Embedder.OpenAI.APIKeyEnv))
		need("embedder.openai.model ("+EnvEmbeddingModel+")", c.Embedder.OpenAI.Model)
		if c.Embedder.Dimensions <= 0 {
			missing = append(missing, "embedder.dimensions ("+EnvEmbeddingDimensions+")")
		}
	}
	if c.Embedder.Cache.Type == "redis" {
		need("embedder.cache.redis.addr ("+EnvRedisAddr+")", c.Embedder.Cache.Redis.Addr)
	}
	switch c.SearchIndex.Type {
	case "qdrant":
		need("search_index.qdrant.url ("+EnvQdrantURL+")", c.SearchIndex.Qdrant.URL)
	case "pgvector":
		need(c.SearchIndex.PgVector.DSNEnv, os.Getenv(c.SearchIndex.PgVector.DSNEnv))
	}
	if needChat {
		need(c.Chat.APIKeyEnv, os.Getenv(c.Chat.APIKeyEnv))
		need("chat.model ("+EnvChatModel+")", c.Chat.Model)
	}
	if len(missing) > 0 {
		return &domain.MissingConfigurationError{Names: missing}
	}
	return nil
}

// Secret reads the value of the environment variable named name.
func Secret(name string) string {
	if name == "" {
		return ""
	}
	return env(name)
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func setString(dst *string, name string) {
	if v := env(name); v != "" {
		*dst = v
	}
}

func envInt(name string, def int) int {
	v := env(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
