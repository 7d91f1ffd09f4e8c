// Package searchindex holds ranking helpers shared by the index backends.
package searchindex

import (
	"sort"

	"docqa/internal/domain"
)

// RRFConstant is the k in 1/(k+rank).
const RRFConstant = 60

// Fuse merges ranked lists with reciprocal rank fusion. Documents are
// matched by ID; the first occurrence supplies the document body. Ties
// keep the order of first appearance.
func Fuse(topK int, lists ...[]domain.SearchResult) []domain.SearchResult {
	type entry struct {
		doc   domain.IndexedDocument
		score float64
		first int
	}
	byID := make(map[string]*entry)
	seq := 0
	for _, list := range lists {
		for rank, r := range list {
			e, ok := byID[r.Document.ID]
			if !ok {
				e = &entry{doc: r.Document, first: seq}
				byID[r.Document.ID] = e
				seq++
			}
			e.score += 1.0 / float64(RRFConstant+rank+1)
		}
	}
	out := make([]*entry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].first < out[j].first
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	results := make([]domain.SearchResult, len(out))
	for i, e := range out {
		results[i] = domain.SearchResult{Document: e.doc, Score: e.score}
	}
	return results
}

// HasSignal reports whether v has any non-zero component.
func HasSignal(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
