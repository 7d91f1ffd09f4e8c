package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Span is one run of annotated text inside a label entry.
type Span struct {
	Page          int         `json:"page,omitempty"`
	Text          string      `json:"text"`
	BoundingBoxes [][]float64 `json:"boundingBoxes,omitempty"`
}

// LabelEntry tags one or more text spans with a semantic label.
type LabelEntry struct {
	Label string `json:"label"`
	Value []Span `json:"value"`
}

// LabelRecord is one parsed label file.
type LabelRecord struct {
	Source   string       `json:"-"`
	Document string       `json:"document,omitempty"`
	Labels   []LabelEntry `json:"labels"`
}

// FlatEntity is a single label/text pair produced by flattening a record.
type FlatEntity struct {
	Key   string
	Value string
}

// MarshalJSON encodes the entity as a single-key object.
func (e FlatEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{e.Key: e.Value})
}

// UnmarshalJSON accepts exactly one key.
func (e *FlatEntity) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("flat entity must have exactly one key, got %d: %w", len(m), ErrMalformedInput)
	}
	for k, v := range m {
		e.Key, e.Value = k, v
	}
	return nil
}

// IndexedDocument is a normalized document ready for the search index.
type IndexedDocument struct {
	ID      string    `json:"id"`
	Fields  *Document `json:"fields"`
	Content string    `json:"content"`
	Vector  []float64 `json:"contentVector,omitempty"`
}

// SearchResult is a ranked hit returned by a search index.
type SearchResult struct {
	Document IndexedDocument
	Score    float64
}

// HybridQuery combines keyword text with an optional query vector.
// A nil Vector means keyword-only search.
type HybridQuery struct {
	Text   string
	Vector []float64
	TopK   int
}

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the state carried between question-answer turns.
type Conversation struct {
	Messages []Message
}

// Append returns a copy of the conversation with msgs appended.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make([]Message, 0, len(c.Messages)+len(msgs))
	out = append(out, c.Messages...)
	out = append(out, msgs...)
	return Conversation{Messages: out}
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SearchIndex stores indexed documents and answers hybrid queries.
type SearchIndex interface {
	EnsureIndex(ctx context.Context, schema IndexSchema) error
	Upsert(ctx context.Context, docs []IndexedDocument) error
	Search(ctx context.Context, query HybridQuery) ([]SearchResult, error)
	Close() error
}

// LabelLoader produces parsed label records from some storage backend.
type LabelLoader interface {
	ReadLabels(ctx context.Context) ([]LabelRecord, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
