package searchindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func hits(ids ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = domain.SearchResult{Document: domain.IndexedDocument{ID: id}}
	}
	return out
}

func ids(rs []domain.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Document.ID
	}
	return out
}

func TestFuseRewardsAgreement(t *testing.T) {
	got := Fuse(0, hits("a", "b", "c"), hits("b"))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, ids(got))
	assert.InDelta(t, 1.0/62+1.0/61, got[0].Score, 1e-12)
}

func TestFuseTopKAndTies(t *testing.T) {
	assert.Equal(t, []string{"a", "x"}, ids(Fuse(2, hits("a", "b"), hits("x", "y"))))
	assert.Empty(t, Fuse(3))
}

func TestHasSignal(t *testing.T) {
	assert.False(t, HasSignal(nil))
	assert.False(t, HasSignal([]float64{0, 0}))
	assert.True(t, HasSignal([]float64{0, 1e-9}))
}
