package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/searchindex"
	"docqa/internal/textutil"
)

const (
	payloadDocID   = "doc_id"
	payloadFields  = "fields"
	payloadContent = "content"
)

var pointIDNamespace = uuid.MustParse("6f1b8f62-5e4b-4d0e-9b7a-2f1d3c4a5b60")

// Index is a minimal REST client to Qdrant. It uses cosine distance,
// creates the collection when missing and adds a full-text index on content.
type Index struct {
	log        *logger.Logger
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewIndex(cfg Config, log *logger.Logger) (*Index, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, &domain.MissingConfigurationError{Names: []string{"search_index.qdrant.url"}}
	}
	if log == nil {
		log = logger.Nop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Index{
		log:        log,
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     client,
	}, nil
}

// EnsureIndex creates the collection and its payload indexes if the
// collection does not exist yet.
func (s *Index) EnsureIndex(ctx context.Context, schema domain.IndexSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if s.collection == "" {
		s.collection = schema.Name
	}
	s.dimension = schema.Dimensions

	status, err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		s.log.Debug("qdrant collection exists", "collection", s.collection)
		return nil
	}
	if status != http.StatusNotFound {
		return wrap("get_collection", status, err)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     schema.Dimensions,
			"distance": "Cosine",
		},
	}
	if status, err := s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
		return wrap("create_collection", status, err)
	}

	textIndex := map[string]any{
		"field_name": payloadContent,
		"field_schema": map[string]any{
			"type":      "text",
			"tokenizer": "word",
			"lowercase": true,
		},
	}
	if status, err := s.do(ctx, http.MethodPut, s.collectionPath("/index?wait=true"), textIndex, nil); err != nil {
		return wrap("create_text_index", status, err)
	}
	for _, name := range schema.FilterableFields() {
		keyword := map[string]any{
			"field_name":   payloadFields + "." + name,
			"field_schema": "keyword",
		}
		if status, err := s.do(ctx, http.MethodPut, s.collectionPath("/index?wait=true"), keyword, nil); err != nil {
			return wrap("create_keyword_index", status, err)
		}
	}
	s.log.Info("qdrant collection created", "collection", s.collection, "dimensions", schema.Dimensions)
	return nil
}

func (s *Index) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return domain.InvalidArgument("qdrant: document without id")
		}
		if s.dimension > 0 && len(d.Vector) != s.dimension {
			return domain.InvalidArgument("qdrant: document %s has %d dimensions, want %d", d.ID, len(d.Vector), s.dimension)
		}
		fields := d.Fields
		if fields == nil {
			fields = domain.NewDocument()
		}
		points = append(points, map[string]any{
			"id":     PointID(d.ID),
			"vector": d.Vector,
			"payload": map[string]any{
				payloadDocID:   d.ID,
				payloadFields:  fields,
				payloadContent: d.Content,
			},
		})
	}
	body := map[string]any{"points": points}
	if status, err := s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), body, nil); err != nil {
		return wrap("upsert", status, err)
	}
	return nil
}

type point struct {
	Score   float64 `json:"score"`
	Payload struct {
		DocID   string           `json:"doc_id"`
		Fields  *domain.Document `json:"fields"`
		Content string           `json:"content"`
	} `json:"payload"`
}

func (p point) document() domain.IndexedDocument {
	return domain.IndexedDocument{ID: p.Payload.DocID, Fields: p.Payload.Fields, Content: p.Payload.Content}
}

// Search runs a vector search and a full-text scroll and fuses the two rankings.
func (s *Index) Search(ctx context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	var lists [][]domain.SearchResult
	if searchindex.HasSignal(q.Vector) {
		hits, err := s.vectorSearch(ctx, q.Vector, topK)
		if err != nil {
			return nil, err
		}
		lists = append(lists, hits)
	}
	if strings.TrimSpace(q.Text) != "" {
		hits, err := s.textSearch(ctx, q.Text, topK)
		if err != nil {
			return nil, err
		}
		lists = append(lists, hits)
	}
	return searchindex.Fuse(topK, lists...), nil
}

func (s *Index) vectorSearch(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if status, err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, wrap("search", status, err)
	}
	out := make([]domain.SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, domain.SearchResult{Document: p.document(), Score: p.Score})
	}
	return out, nil
}

// textSearch scrolls points whose content matches any query term and
// ranks them locally by token overlap.
func (s *Index) textSearch(ctx context.Context, text string, topK int) ([]domain.SearchResult, error) {
	terms := textutil.ContentTokens(text)
	if len(terms) == 0 {
		terms = textutil.Tokens(text)
	}
	if len(terms) == 0 {
		return nil, nil
	}
	should := make([]any, 0, len(terms))
	for _, t := range terms {
		should = append(should, map[string]any{"key": payloadContent, "match": map[string]any{"text": t}})
	}
	req := map[string]any{
		"filter":       map[string]any{"should": should},
		"limit":        topK * 4,
		"with_payload": true,
		"with_vector":  false,
	}
	var resp struct {
		Result struct {
			Points []point `json:"points"`
		} `json:"result"`
	}
	if status, err := s.do(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &resp); err != nil {
		return nil, wrap("scroll", status, err)
	}
	qset := textutil.TokenSet(text)
	out := make([]domain.SearchResult, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		d := p.document()
		out = append(out, domain.SearchResult{Document: d, Score: textutil.Ochiai(qset, d.Content)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (s *Index) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// PointID maps a document id onto the UUID Qdrant requires. UUIDs pass through.
func PointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(pointIDNamespace, []byte(id)).String()
}

func (s *Index) collectionPath(suffix string) string {
	return s.url + "/collections/" + s.collection + suffix
}

// do sends a JSON request and decodes the response into out when given.
// The returned status is zero when no response was received.
func (s *Index) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func wrap(op string, status int, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &domain.ServiceError{Service: "qdrant", Op: op, StatusCode: status, Err: err}
}
