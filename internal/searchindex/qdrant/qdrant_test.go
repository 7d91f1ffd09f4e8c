package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestIndex(t *testing.T, rt roundTripFunc) *Index {
	t.Helper()
	idx, err := NewIndex(Config{
		URL:        "http://qdrant.local/",
		APIKey:     "secret",
		Collection: "docs",
		HTTPClient: &http.Client{Transport: rt},
	}, nil)
	require.NoError(t, err)
	return idx
}

func jsonResponse(t *testing.T, status int, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok"})
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

type call struct {
	Method string
	Path   string
	Body   map[string]any
}

func TestEnsureIndexCreatesCollectionAndPayloadIndexes(t *testing.T) {
	var calls []call
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		c := call{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.Body)
		}
		calls = append(calls, c)
		if r.Method == http.MethodGet {
			return jsonResponse(t, http.StatusNotFound, nil), nil
		}
		return jsonResponse(t, http.StatusOK, true), nil
	})

	err := idx.EnsureIndex(context.Background(), domain.BuildSchema("docs", []string{"title", "author"}, 3))
	require.NoError(t, err)

	require.Len(t, calls, 5)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "/collections/docs", calls[1].Path)
	vectors := calls[1].Body["vectors"].(map[string]any)
	assert.Equal(t, float64(3), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
	assert.Equal(t, "/collections/docs/index", calls[2].Path)
	assert.Equal(t, "content", calls[2].Body["field_name"])
	assert.Equal(t, "fields.title", calls[3].Body["field_name"])
	assert.Equal(t, "fields.author", calls[4].Body["field_name"])
}

func TestEnsureIndexKeepsExistingCollection(t *testing.T) {
	n := 0
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		n++
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "green"}), nil
	})
	require.NoError(t, idx.EnsureIndex(context.Background(), domain.BuildSchema("docs", nil, 3)))
	assert.Equal(t, 1, n)
}

func TestEnsureIndexSurfacesServerErrors(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusInternalServerError, nil), nil
	})
	err := idx.EnsureIndex(context.Background(), domain.BuildSchema("docs", nil, 3))
	require.ErrorIs(t, err, domain.ErrExternalService)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
}

func TestUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs/points", r.URL.Path)
		assert.Equal(t, "wait=true", r.URL.RawQuery)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "acknowledged"}), nil
	})
	idx.dimension = 2
	id := uuid.NewString()
	err := idx.Upsert(context.Background(), []domain.IndexedDocument{
		{ID: id, Fields: domain.DocumentFrom("title", "Report"), Content: "Report", Vector: []float64{1, 0}},
		{ID: "not-a-uuid", Content: "x", Vector: []float64{0, 1}},
	})
	require.NoError(t, err)

	points := captured["points"].([]any)
	require.Len(t, points, 2)
	first := points[0].(map[string]any)
	assert.Equal(t, id, first["id"])
	payload := first["payload"].(map[string]any)
	assert.Equal(t, id, payload["doc_id"])
	assert.Equal(t, map[string]any{"title": "Report"}, payload["fields"])
	second := points[1].(map[string]any)
	assert.Equal(t, PointID("not-a-uuid"), second["id"])
	_, err = uuid.Parse(second["id"].(string))
	assert.NoError(t, err)
}

func TestUpsertRejectsWrongDimensions(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})
	idx.dimension = 3
	err := idx.Upsert(context.Background(), []domain.IndexedDocument{{ID: "a", Vector: []float64{1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSearchFusesVectorAndTextHits(t *testing.T) {
	hit := func(id, content string, score float64) map[string]any {
		return map[string]any{
			"id":    PointID(id),
			"score": score,
			"payload": map[string]any{
				"doc_id":  id,
				"fields":  map[string]any{"title": id},
				"content": content,
			},
		}
	}
	var scrollBody map[string]any
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		switch r.URL.Path {
		case "/collections/docs/points/search":
			return jsonResponse(t, http.StatusOK, []any{
				hit("a", "alpha report", 0.9),
				hit("b", "beta budget", 0.8),
			}), nil
		case "/collections/docs/points/scroll":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&scrollBody))
			return jsonResponse(t, http.StatusOK, map[string]any{
				"points": []any{hit("c", "budget forecast", 0), hit("b", "beta budget", 0)},
			}), nil
		}
		t.Fatalf("unexpected path %s", r.URL.Path)
		return nil, nil
	})

	got, err := idx.Search(context.Background(), domain.HybridQuery{Text: "budget forecast", Vector: []float64{1, 0}, TopK: 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Document.ID)
	assert.Equal(t, "b", got[0].Document.Fields.Map()["title"])

	should := scrollBody["filter"].(map[string]any)["should"].([]any)
	assert.Len(t, should, 2)
}

func TestSearchSkipsVectorQueryWithoutSignal(t *testing.T) {
	idx := newTestIndex(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/collections/docs/points/scroll", r.URL.Path)
		return jsonResponse(t, http.StatusOK, map[string]any{"points": []any{}}), nil
	})
	got, err := idx.Search(context.Background(), domain.HybridQuery{Text: "anything", Vector: []float64{0, 0}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewIndexRequiresURL(t *testing.T) {
	_, err := NewIndex(Config{}, nil)
	assert.ErrorIs(t, err, domain.ErrMissingConfiguration)
}
