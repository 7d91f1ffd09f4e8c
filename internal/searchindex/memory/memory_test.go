package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func seeded(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureIndex(ctx, domain.BuildSchema("test", []string{"title"}, 2)))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedDocument{
		{ID: "1", Fields: domain.DocumentFrom("title", "Annual report"), Content: "Annual report | revenue grew", Vector: []float64{1, 0}},
		{ID: "2", Fields: domain.DocumentFrom("title", "Safety manual"), Content: "Safety manual | wear gloves", Vector: []float64{0, 1}},
		{ID: "3", Fields: domain.DocumentFrom("title", "Budget"), Content: "Budget | revenue forecast", Vector: []float64{0.7, 0.7}},
	}))
	return idx
}

func ids(rs []domain.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Document.ID
	}
	return out
}

func TestVectorOnlySearch(t *testing.T) {
	got, err := seeded(t).Search(context.Background(), domain.HybridQuery{Vector: []float64{0, 1}, TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(got))
}

func TestKeywordOnlySearch(t *testing.T) {
	got, err := seeded(t).Search(context.Background(), domain.HybridQuery{Text: "gloves", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestHybridSearchFusesBothSignals(t *testing.T) {
	got, err := seeded(t).Search(context.Background(), domain.HybridQuery{Text: "revenue forecast", Vector: []float64{0.6, 0.8}, TopK: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].Document.ID)
	assert.Equal(t, "Budget | revenue forecast", got[0].Document.Content)
}

func TestUpsertReplacesByID(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []domain.IndexedDocument{{ID: "2", Content: "Replaced", Vector: []float64{0, 1}}}))
	assert.Equal(t, 3, idx.Len())
	got, err := idx.Search(ctx, domain.HybridQuery{Text: "replaced", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestDimensionChecks(t *testing.T) {
	idx := seeded(t)
	ctx := context.Background()
	assert.ErrorIs(t, idx.Upsert(ctx, []domain.IndexedDocument{{ID: "4", Vector: []float64{1}}}), domain.ErrInvalidArgument)
	_, err := idx.Search(ctx, domain.HybridQuery{Vector: []float64{1, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.ErrorIs(t, NewIndex().Upsert(ctx, nil), domain.ErrInvalidArgument)
}

func TestEnsureIndexResetsOnDimensionChange(t *testing.T) {
	idx := seeded(t)
	require.NoError(t, idx.EnsureIndex(context.Background(), domain.BuildSchema("test", []string{"title"}, 2)))
	assert.Equal(t, 3, idx.Len())
	require.NoError(t, idx.EnsureIndex(context.Background(), domain.BuildSchema("test", []string{"title"}, 4)))
	assert.Zero(t, idx.Len())
}

func TestSearchBeforeEnsureIndexIsEmpty(t *testing.T) {
	got, err := NewIndex().Search(context.Background(), domain.HybridQuery{Text: "annual report", Vector: []float64{1, 0}, TopK: 3})
	require.NoError(t, err)
	assert.Empty(t, got)
}
