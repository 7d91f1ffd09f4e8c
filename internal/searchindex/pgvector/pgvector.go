package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/searchindex"
	"docqa/internal/textutil"
)

// Index stores documents in PostgreSQL with the pgvector extension.
// Vector hits come from an HNSW cosine index, keyword hits from a
// generated tsvector column; both rankings are fused.
type Index struct {
	db        *sql.DB
	log       *logger.Logger
	table     string
	dimension int
}

type Config struct {
	DSN   string
	Table string
}

func NewIndex(ctx context.Context, cfg Config, log *logger.Logger) (*Index, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, &domain.MissingConfigurationError{Names: []string{"DOCQA_PG_DSN"}}
	}
	if log == nil {
		log = logger.Nop()
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, domain.NewServiceError("pgvector", "open", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, domain.NewServiceError("pgvector", "ping", err)
	}
	idx := &Index{db: db, log: log}
	if cfg.Table != "" {
		idx.table = TableName(cfg.Table)
	}
	return idx, nil
}

// EnsureIndex creates the extension, table and indexes if missing.
func (s *Index) EnsureIndex(ctx context.Context, schema domain.IndexSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	if s.table == "" {
		s.table = TableName(schema.Name)
	}
	s.dimension = schema.Dimensions
	for _, stmt := range migrations(s.table, schema.Dimensions) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return domain.NewServiceError("pgvector", "migrate", err)
		}
	}
	s.log.Debug("pgvector table ready", "table", s.table, "dimensions", schema.Dimensions)
	return nil
}

func migrations(table string, dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			fields JSONB NOT NULL DEFAULT '{}',
			content TEXT NOT NULL,
			embedding vector(%d),
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`, table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tsv_idx ON %s USING gin (content_tsv)`, table, table),
	}
}

// Upsert stores documents in one transaction, updating existing ones by ID.
func (s *Index) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for _, d := range docs {
		if d.ID == "" {
			return domain.InvalidArgument("pgvector: document without id")
		}
		if len(d.Vector) != 0 && s.dimension > 0 && len(d.Vector) != s.dimension {
			return domain.InvalidArgument("pgvector: document %s has %d dimensions, want %d", d.ID, len(d.Vector), s.dimension)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewServiceError("pgvector", "begin", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, fields, content, embedding, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			fields = EXCLUDED.fields,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()`, s.table)
	for _, d := range docs {
		fields := d.Fields
		if fields == nil {
			fields = domain.NewDocument()
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields of %s: %w", d.ID, err)
		}
		var embedding any
		if len(d.Vector) > 0 {
			embedding = formatEmbedding(d.Vector)
		}
		if _, err := tx.ExecContext(ctx, stmt, d.ID, string(raw), d.Content, embedding); err != nil {
			return domain.NewServiceError("pgvector", "upsert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewServiceError("pgvector", "commit", err)
	}
	return nil
}

func (s *Index) Search(ctx context.Context, q domain.HybridQuery) ([]domain.SearchResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}
	var lists [][]domain.SearchResult
	if searchindex.HasSignal(q.Vector) {
		if s.dimension > 0 && len(q.Vector) != s.dimension {
			return nil, domain.InvalidArgument("pgvector: query has %d dimensions, want %d", len(q.Vector), s.dimension)
		}
		hits, err := s.query(ctx, "vector_search", fmt.Sprintf(`
			SELECT id, fields, content, 1 - (embedding <=> $1::vector) AS score
			FROM %s
			WHERE embedding IS NOT NULL
			ORDER BY embedding <=> $1::vector
			LIMIT $2`, s.table), formatEmbedding(q.Vector), topK)
		if err != nil {
			return nil, err
		}
		lists = append(lists, hits)
	}
	if tsq := TSQuery(q.Text); tsq != "" {
		hits, err := s.query(ctx, "text_search", fmt.Sprintf(`
			SELECT id, fields, content, ts_rank_cd(content_tsv, query) AS score
			FROM %s, to_tsquery('simple', $1) query
			WHERE content_tsv @@ query
			ORDER BY score DESC
			LIMIT $2`, s.table), tsq, topK)
		if err != nil {
			return nil, err
		}
		lists = append(lists, hits)
	}
	return searchindex.Fuse(topK, lists...), nil
}

func (s *Index) query(ctx context.Context, op, query string, args ...any) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewServiceError("pgvector", op, err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var (
			doc    domain.IndexedDocument
			fields []byte
			score  float64
		)
		if err := rows.Scan(&doc.ID, &fields, &doc.Content, &score); err != nil {
			return nil, domain.NewServiceError("pgvector", op, err)
		}
		doc.Fields = domain.NewDocument()
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, doc.Fields); err != nil {
				return nil, fmt.Errorf("decode fields of %s: %w", doc.ID, err)
			}
		}
		results = append(results, domain.SearchResult{Document: doc, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewServiceError("pgvector", op, err)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func (s *Index) Close() error {
	return s.db.Close()
}

// TableName turns an index name into a safe lowercase SQL identifier.
func TableName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "idx_" + out
	}
	return out
}

// TSQuery builds an OR query over the content terms of text.
func TSQuery(text string) string {
	terms := textutil.ContentTokens(text)
	if len(terms) == 0 {
		terms = textutil.Tokens(text)
	}
	seen := make(map[string]struct{}, len(terms))
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.NewReplacer("'", "", "’", "").Replace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		parts = append(parts, t)
	}
	return strings.Join(parts, " | ")
}

// formatEmbedding converts a float64 slice to pgvector text format: "[0.1,0.2,0.3]".
func formatEmbedding(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
