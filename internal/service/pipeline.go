package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"docqa/internal/checkpoint"
	"docqa/internal/domain"
	"docqa/internal/labels"
	"docqa/internal/logger"
	"docqa/internal/objectstore"
)

const uploadBatchSize = 100

// PipelineConfig holds the document settings the ingest stages need.
type PipelineConfig struct {
	TitleKeys        []string
	ExpectedKeys     []string
	IndexName        string
	CheckpointPath   string
	SummarySentences int
	// SkipUpload stops after the checkpoint is written.
	SkipUpload bool
}

// IngestReport summarizes one ingest or reload run.
type IngestReport struct {
	Records    int
	Malformed  int
	Entities   int
	Documents  int
	Untitled   bool
	Collisions int
	Embedded   int
	Skipped    int
	Uploaded   int
	Checkpoint string
	Summary    string
	// UploadErr is set when the index could not be written. It does not
	// fail the run.
	UploadErr error
}

// Pipeline runs the stages from label files to a populated search index.
type Pipeline struct {
	cfg        PipelineConfig
	loader     domain.LabelLoader
	embedder   domain.Embedder
	index      domain.SearchIndex
	summarizer domain.Summarizer
	log        *logger.Logger
	newID      func() string
}

func NewPipeline(cfg PipelineConfig, loader domain.LabelLoader, embedder domain.Embedder, index domain.SearchIndex, summarizer domain.Summarizer, log *logger.Logger) (*Pipeline, error) {
	if len(cfg.TitleKeys) == 0 {
		return nil, domain.InvalidArgument("title keys must not be empty")
	}
	if err := labels.ValidateKeys(cfg.ExpectedKeys); err != nil {
		return nil, err
	}
	if cfg.IndexName == "" {
		return nil, domain.InvalidArgument("index name must not be empty")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		cfg:        cfg,
		loader:     loader,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		log:        log.With("component", "Pipeline"),
		newID:      uuid.NewString,
	}, nil
}

// Extract loads label records and turns them into normalized documents.
// Malformed records are logged and skipped.
func (p *Pipeline) Extract(ctx context.Context) ([]*domain.Document, IngestReport, error) {
	var report IngestReport
	records, err := p.loader.ReadLabels(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("load labels: %w", err)
	}
	report.Records = len(records)
	if r, ok := p.loader.(interface{ LastReport() objectstore.LoadReport }); ok {
		report.Malformed = len(r.LastReport().Malformed)
	}

	entities, err := labels.Flatten(records)
	if err != nil {
		for _, e := range unjoin(err) {
			p.log.Warn("skipping malformed label record", "error", e)
			report.Malformed++
		}
	}
	report.Entities = len(entities)

	docs, stats, err := labels.CompileWithStats(entities, p.cfg.TitleKeys)
	if err != nil {
		return nil, report, err
	}
	if stats.Untitled {
		p.log.Warn("entities before the first title key formed an untitled document", "title_keys", p.cfg.TitleKeys)
	}
	for _, c := range stats.Collisions {
		p.log.Debug("label value overwritten", "document", c.Document, "key", c.Key, "old", c.Old, "new", c.New)
	}
	report.Untitled = stats.Untitled
	report.Collisions = len(stats.Collisions)

	docs, err = labels.Normalize(docs, p.cfg.ExpectedKeys)
	if err != nil {
		return nil, report, err
	}
	report.Documents = len(docs)
	p.log.Info("documents extracted", "records", report.Records, "entities", report.Entities, "documents", report.Documents, "malformed", report.Malformed)
	return docs, report, nil
}

// Embed computes the combined content and vector of each document and
// assigns it a fresh id. Documents whose embedding fails are skipped; the
// returned count says how many.
func (p *Pipeline) Embed(ctx context.Context, docs []*domain.Document) ([]domain.IndexedDocument, int, error) {
	if len(docs) == 0 {
		return nil, 0, nil
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = labels.CombinedContent(d)
	}
	if err := p.embedder.Prepare(contents); err != nil {
		return nil, 0, fmt.Errorf("prepare embedder %s: %w", p.embedder.Name(), err)
	}

	out := make([]domain.IndexedDocument, 0, len(docs))
	skipped := 0
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		vec, err := p.embedder.Embed(ctx, contents[i])
		if err != nil {
			p.log.Warn("embedding failed; document skipped", "index", i, "error", err)
			skipped++
			continue
		}
		out = append(out, domain.IndexedDocument{
			ID:      p.newID(),
			Fields:  d,
			Content: contents[i],
			Vector:  vec,
		})
	}
	p.log.Info("documents embedded", "embedder", p.embedder.Name(), "embedded", len(out), "skipped", skipped)
	return out, skipped, nil
}

// Ingest runs extraction and embedding, writes the checkpoint and uploads
// the documents. Upload failures are reported, not returned.
func (p *Pipeline) Ingest(ctx context.Context) (IngestReport, error) {
	docs, report, err := p.Extract(ctx)
	if err != nil {
		return report, err
	}
	indexed, skipped, err := p.Embed(ctx, docs)
	if err != nil {
		return report, err
	}
	report.Embedded = len(indexed)
	report.Skipped = skipped

	if p.cfg.CheckpointPath != "" {
		if err := checkpoint.Save(p.cfg.CheckpointPath, indexed); err != nil {
			return report, fmt.Errorf("save checkpoint: %w", err)
		}
		report.Checkpoint = p.cfg.CheckpointPath
		p.log.Info("checkpoint written", "path", p.cfg.CheckpointPath, "documents", len(indexed))
	}

	p.finish(ctx, indexed, &report)
	return report, nil
}

// Reload uploads the documents of an existing checkpoint without
// re-running extraction.
func (p *Pipeline) Reload(ctx context.Context) (IngestReport, error) {
	var report IngestReport
	if p.cfg.CheckpointPath == "" {
		return report, &domain.MissingConfigurationError{Names: []string{"checkpoint.path"}}
	}
	indexed, err := checkpoint.Load(p.cfg.CheckpointPath)
	if err != nil {
		return report, fmt.Errorf("load checkpoint: %w", err)
	}
	report.Checkpoint = p.cfg.CheckpointPath
	report.Documents = len(indexed)
	report.Embedded = len(indexed)
	if len(indexed) > 0 {
		contents := make([]string, len(indexed))
		for i, d := range indexed {
			contents[i] = d.Content
		}
		// Query embeddings must come from the same vocabulary.
		if err := p.embedder.Prepare(contents); err != nil {
			return report, fmt.Errorf("prepare embedder %s: %w", p.embedder.Name(), err)
		}
	}
	p.finish(ctx, indexed, &report)
	return report, nil
}

func (p *Pipeline) finish(ctx context.Context, indexed []domain.IndexedDocument, report *IngestReport) {
	if p.index != nil && !p.cfg.SkipUpload {
		n, err := p.upload(ctx, indexed)
		report.Uploaded = n
		if err != nil {
			report.UploadErr = err
			p.log.Error("upload to search index failed", "index", p.cfg.IndexName, "uploaded", n, "error", err)
		} else {
			p.log.Info("documents uploaded", "index", p.cfg.IndexName, "count", n)
		}
	}
	if p.summarizer != nil && len(indexed) > 0 {
		summary, err := p.summarizer.Summarize(corpusText(indexed), p.cfg.SummarySentences)
		if err != nil {
			p.log.Warn("summary failed", "error", err)
		}
		report.Summary = summary
	}
}

func (p *Pipeline) upload(ctx context.Context, docs []domain.IndexedDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	dims := p.embedder.Dimension()
	if dims <= 0 {
		dims = len(docs[0].Vector)
	}
	schema := domain.BuildSchema(p.cfg.IndexName, p.cfg.ExpectedKeys, dims)
	if err := p.index.EnsureIndex(ctx, schema); err != nil {
		return 0, err
	}
	uploaded := 0
	for start := 0; start < len(docs); start += uploadBatchSize {
		end := min(start+uploadBatchSize, len(docs))
		if err := p.index.Upsert(ctx, docs[start:end]); err != nil {
			return uploaded, err
		}
		uploaded = end
	}
	return uploaded, nil
}

func corpusText(docs []domain.IndexedDocument) string {
	var b strings.Builder
	for _, d := range docs {
		c := strings.TrimSpace(d.Content)
		if c == "" {
			continue
		}
		b.WriteString(c)
		if !strings.ContainsAny(c[len(c)-1:], ".!?") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}
	return b.String()
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
