package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/embedding/tfidf"
)

type countingEmbedder struct {
	calls int
	fail  bool
}

func (e *countingEmbedder) Name() string           { return "counting" }
func (e *countingEmbedder) Prepare([]string) error { return nil }
func (e *countingEmbedder) Dimension() int         { return 2 }
func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("down")
	}
	return []float64{float64(len(text)), 1}, nil
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]float64, bool, error) {
	return nil, false, errors.New("cache offline")
}
func (brokenStore) Set(context.Context, string, []float64) error { return errors.New("cache offline") }

func TestCachedEmbedderServesRepeats(t *testing.T) {
	inner := &countingEmbedder{}
	store := NewMemoryStore()
	c := NewCachedEmbedder(inner, store, nil)

	a, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	b, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, store.Len())

	_, err = c.Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderFallsThroughOnCacheFailure(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, brokenStore{}, nil)
	v, err := c.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, v)
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	store := NewMemoryStore()
	_, err := NewCachedEmbedder(inner, store, nil).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Zero(t, store.Len())
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	assert.NotEqual(t, CacheKey("a", "", 2, "x"), CacheKey("b", "", 2, "x"))
	assert.NotEqual(t, CacheKey("a", "", 2, "x"), CacheKey("a", "", 3, "x"))
	assert.NotEqual(t, CacheKey("a", "v1", 2, "x"), CacheKey("a", "v2", 2, "x"))
	assert.NotEqual(t, CacheKey("a", "", 1, "x"), CacheKey("a", "", 1+1<<16, "x"))
	assert.Equal(t, CacheKey("a", "", 2, "x"), CacheKey("a", "", 2, "x"))
}

func TestCachedTFIDFVectorsFollowTheCorpus(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := tfidf.NewEmbedder(0)
	require.NoError(t, first.Prepare([]string{"report", "memo"}))
	stale, err := NewCachedEmbedder(first, store, nil).Embed(ctx, "report memo")
	require.NoError(t, err)

	second := tfidf.NewEmbedder(0)
	corpus := []string{"report memo", "aardvark report", "apple report"}
	require.NoError(t, second.Prepare(corpus))
	want, err := second.Embed(ctx, "report memo")
	require.NoError(t, err)

	got, err := NewCachedEmbedder(second, store, nil).Embed(ctx, "report memo")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NotEqual(t, stale, got)
	assert.Equal(t, 2, store.Len())
}
