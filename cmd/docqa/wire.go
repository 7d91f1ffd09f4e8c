package main

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/chat"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/embedding/openai"
	"docqa/internal/embedding/tfidf"
	"docqa/internal/logger"
	"docqa/internal/objectstore"
	"docqa/internal/objectstore/gcs"
	"docqa/internal/objectstore/local"
	"docqa/internal/searchindex/memory"
	"docqa/internal/searchindex/pgvector"
	"docqa/internal/searchindex/qdrant"
)

// components holds the long-lived clients of one run.
type components struct {
	loader    domain.LabelLoader
	embedder  domain.Embedder
	index     domain.SearchIndex
	completer chat.Completer
	closers   []func() error
}

func (c *components) Close(log *logger.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, needChat bool, log *logger.Logger) (*components, error) {
	c := &components{}
	var err error
	if c.loader, err = buildLoader(ctx, cfg, c, log); err != nil {
		c.Close(log)
		return nil, err
	}
	if c.embedder, err = buildEmbedder(ctx, cfg, c, log); err != nil {
		c.Close(log)
		return nil, err
	}
	if c.index, err = buildIndex(ctx, cfg, log); err != nil {
		c.Close(log)
		return nil, err
	}
	c.closers = append(c.closers, c.index.Close)
	if needChat {
		client, err := chat.NewOpenAIClient(chat.Config{
			BaseURL: cfg.Chat.BaseURL,
			APIKey:  config.Secret(cfg.Chat.APIKeyEnv),
			Timeout: time.Duration(cfg.Chat.TimeoutSecs) * time.Second,
		})
		if err != nil {
			c.Close(log)
			return nil, err
		}
		c.completer = client
	}
	return c, nil
}

func buildLoader(ctx context.Context, cfg *config.AppConfig, c *components, log *logger.Logger) (domain.LabelLoader, error) {
	filter := objectstore.Filter{Exclude: cfg.Source.Exclude, Suffix: cfg.Source.Suffix}
	switch cfg.Source.Type {
	case "gcs":
		src, err := gcs.NewSource(ctx, gcs.Config{
			Bucket:       cfg.Source.Container,
			Prefix:       cfg.Source.Prefix,
			EmulatorHost: cfg.Source.GCS.EmulatorHost,
			Timeout:      time.Duration(cfg.Source.GCS.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, src.Close)
		return objectstore.NewReader(src, filter, log), nil
	case "local":
		return objectstore.NewReader(local.NewSource(cfg.Source.Container, cfg.Source.Prefix), filter, log), nil
	default:
		return nil, domain.InvalidArgument("unknown source type %q", cfg.Source.Type)
	}
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig, c *components, log *logger.Logger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf":
		emb = tfidf.NewEmbedder(cfg.Embedder.Dimensions)
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKey:     config.Secret(oc.APIKeyEnv),
			Model:      oc.Model,
			Dimensions: cfg.Embedder.Dimensions,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		emb = client
	default:
		return nil, domain.InvalidArgument("unknown embedder %q", cfg.Embedder.Type)
	}

	switch cfg.Embedder.Cache.Type {
	case "", "none":
		return emb, nil
	case "memory":
		return embedding.NewCachedEmbedder(emb, embedding.NewMemoryStore(), log), nil
	case "redis":
		rc := cfg.Embedder.Cache.Redis
		store, err := embedding.NewRedisStore(ctx, embedding.RedisConfig{
			Addr:     rc.Addr,
			Password: config.Secret(rc.PasswordEnv),
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			TTL:      time.Duration(rc.TTLSecs) * time.Second,
		})
		if err != nil {
			return nil, domain.NewServiceError("redis", "connect", err)
		}
		c.closers = append(c.closers, store.Close)
		return embedding.NewCachedEmbedder(emb, store, log), nil
	default:
		return nil, domain.InvalidArgument("unknown embedding cache %q", cfg.Embedder.Cache.Type)
	}
}

func buildIndex(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (domain.SearchIndex, error) {
	sc := cfg.SearchIndex
	switch sc.Type {
	case "memory":
		return memory.NewIndex(), nil
	case "qdrant":
		idx, err := qdrant.NewIndex(qdrant.Config{
			URL:        sc.Qdrant.URL,
			APIKey:     config.Secret(sc.Qdrant.APIKeyEnv),
			Collection: sc.Name,
			Timeout:    time.Duration(sc.Qdrant.TimeoutSecs) * time.Second,
		}, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "pgvector":
		idx, err := pgvector.NewIndex(ctx, pgvector.Config{
			DSN:   config.Secret(sc.PgVector.DSNEnv),
			Table: sc.Name,
		}, log)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown search index %q: %w", sc.Type, domain.ErrInvalidArgument)
	}
}
