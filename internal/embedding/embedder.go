// Package embedding holds the embedding cache; the embedder implementations
// live in its subpackages.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// Store persists vectors by cache key.
type Store interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, vector []float64) error
}

// Fingerprinter is implemented by embedders whose vectors depend on state
// beyond the text, such as a fitted vocabulary. The fingerprint changes
// whenever that state does.
type Fingerprinter interface {
	Fingerprint() string
}

// CachedEmbedder serves repeated texts from a Store. Cache failures are
// logged and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next  domain.Embedder
	store Store
	log   *logger.Logger
}

func NewCachedEmbedder(next domain.Embedder, store Store, log *logger.Logger) *CachedEmbedder {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedEmbedder{next: next, store: store, log: log.With("component", "EmbeddingCache")}
}

func (c *CachedEmbedder) Name() string { return c.next.Name() }

func (c *CachedEmbedder) Prepare(corpus []string) error { return c.next.Prepare(corpus) }

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	var fingerprint string
	if f, ok := c.next.(Fingerprinter); ok {
		fingerprint = f.Fingerprint()
	}
	key := CacheKey(c.next.Name(), fingerprint, c.next.Dimension(), text)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		c.log.Warn("embedding cache read failed", "error", err)
	} else if ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, v); err != nil {
		c.log.Warn("embedding cache write failed", "error", err)
	}
	return v, nil
}

// CacheKey derives a stable key from the embedder identity, its state
// fingerprint and the text.
func CacheKey(name, fingerprint string, dimension int, text string) string {
	h := sha256.New()
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(dimension))
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(fingerprint))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(size[:])
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryStore is an unbounded in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	vectors map[string][]float64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vectors: make(map[string][]float64)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[key] = vector
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
