package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/searchindex"
	"docqa/internal/textutil"
)

// Index is an in-process hybrid index. Vector hits are ranked by cosine
// similarity, keyword hits by token overlap, and the two lists are fused.
type Index struct {
	mu     sync.RWMutex
	schema domain.IndexSchema
	order  []string
	docs   map[string]domain.IndexedDocument
}

func NewIndex() *Index { return &Index{docs: make(map[string]domain.IndexedDocument)} }

// EnsureIndex records the schema. Changing the vector size drops stored documents.
func (s *Index) EnsureIndex(_ context.Context, schema domain.IndexSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema.Dimensions != schema.Dimensions {
		s.order = nil
		s.docs = make(map[string]domain.IndexedDocument)
	}
	s.schema = schema
	return nil
}

// Upsert stores documents, replacing existing ones by ID.
func (s *Index) Upsert(_ context.Context, docs []domain.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schema.Dimensions == 0 {
		return domain.InvalidArgument("memory index: EnsureIndex not called")
	}
	for _, d := range docs {
		if d.ID == "" {
			return domain.InvalidArgument("memory index: document without id")
		}
		if len(d.Vector) != 0 && len(d.Vector) != s.schema.Dimensions {
			return domain.InvalidArgument("memory index: document %s has %d dimensions, want %d", d.ID, len(d.Vector), s.schema.Dimensions)
		}
	}
	for _, d := range docs {
		if _, ok := s.docs[d.ID]; !ok {
			s.order = append(s.order, d.ID)
		}
		s.docs[d.ID] = d
	}
	return nil
}

// Search returns no hits until EnsureIndex has been called.
func (s *Index) Search(_ context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	if s.schema.Dimensions == 0 {
		return nil, nil
	}
	var lists [][]domain.SearchResult
	if searchindex.HasSignal(q.Vector) {
		if len(q.Vector) != s.schema.Dimensions {
			return nil, fmt.Errorf("memory index: query has %d dimensions, want %d: %w", len(q.Vector), s.schema.Dimensions, domain.ErrInvalidArgument)
		}
		lists = append(lists, s.vectorRank(q.Vector))
	}
	if strings.TrimSpace(q.Text) != "" {
		lists = append(lists, s.keywordRank(q.Text))
	}
	return searchindex.Fuse(topK, lists...), nil
}

func (s *Index) Close() error { return nil }

// Len returns the number of stored documents.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Index) vectorRank(query []float64) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		d := s.docs[id]
		if len(d.Vector) == 0 {
			continue
		}
		out = append(out, domain.SearchResult{Document: d, Score: cosine(query, d.Vector)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Index) keywordRank(text string) []domain.SearchResult {
	qset := textutil.TokenSet(text)
	out := make([]domain.SearchResult, 0, len(s.order))
	for _, id := range s.order {
		d := s.docs[id]
		score := textutil.Ochiai(qset, d.Content)
		if score <= 0 {
			continue
		}
		out = append(out, domain.SearchResult{Document: d, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
