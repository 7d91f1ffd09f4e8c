package tfidf

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"sort"
	"sync"

	"docqa/internal/textutil"
)

// Embedder implements a simple TF-IDF vectorizer for offline runs.
// It builds a vocabulary from the corpus and computes IDF values. With a
// fixed dimension, vocabulary terms are folded into that many buckets so the
// vectors fit an index created with a preset size.
type Embedder struct {
	mu          sync.RWMutex
	vocabulary  map[string]int
	idf         []float64
	fixed       int
	dimension   int
	prepared    bool
	fingerprint string
}

// NewEmbedder creates an unprepared TF-IDF embedder. dimensions <= 0 sizes
// vectors to the vocabulary.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions < 0 {
		dimensions = 0
	}
	return &Embedder{vocabulary: make(map[string]int), fixed: dimensions}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range textutil.ContentTokens(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Create stable ordering for vocabulary
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	h := sha256.New()
	var buf [8]byte
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
		_, _ = h.Write([]byte(term))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(e.idf[i]))
		_, _ = h.Write(buf[:])
	}
	e.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]
	e.dimension = len(terms)
	if e.fixed > 0 {
		e.dimension = e.fixed
	}
	e.prepared = true
	return nil
}

// Fingerprint identifies the fitted vocabulary and IDF weights. It is empty
// before Prepare.
func (e *Embedder) Fingerprint() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fingerprint
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return e.fixed
	}
	return e.dimension
}

// Embed computes the L2-normalized TF-IDF embedding for the given text.
// Text with no known terms yields a zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range textutil.ContentTokens(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx%e.dimension] += float64(count) / float64(total) * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
