// Package objectstore reads annotation label files from a storage backend.
package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// Source lists and opens objects in one container.
type Source interface {
	Name() string
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Filter selects label files by object name.
type Filter struct {
	Exclude []string
	Suffix  string
}

// Match reports whether name ends with the suffix and contains no exclude term.
func (f Filter) Match(name string) bool {
	for _, term := range f.Exclude {
		if term != "" && strings.Contains(name, term) {
			return false
		}
	}
	return strings.HasSuffix(name, f.Suffix)
}

// LoadReport summarizes one ReadLabels pass.
type LoadReport struct {
	Listed    int
	Matched   int
	Loaded    int
	Malformed []error
}

// Reader loads label records from a Source.
type Reader struct {
	src    Source
	filter Filter
	log    *logger.Logger
	last   LoadReport
}

func NewReader(src Source, filter Filter, log *logger.Logger) *Reader {
	if log == nil {
		log = logger.Nop()
	}
	return &Reader{src: src, filter: filter, log: log.With("component", "LabelReader", "source", src.Name())}
}

// ReadLabels returns the parsed records of every matching object, sorted by
// name. Unreadable or malformed files are skipped with a warning; only a
// listing failure is returned as an error.
func (r *Reader) ReadLabels(ctx context.Context) ([]domain.LabelRecord, error) {
	report := LoadReport{}
	names, err := r.src.List(ctx)
	if err != nil {
		r.last = report
		return nil, domain.NewServiceError(r.src.Name(), "list", err)
	}
	sort.Strings(names)
	report.Listed = len(names)

	var out []domain.LabelRecord
	for _, name := range names {
		if !r.filter.Match(name) {
			continue
		}
		report.Matched++
		rec, err := r.readOne(ctx, name)
		if err != nil {
			r.log.Warn("skipping label file", "name", name, "error", err)
			report.Malformed = append(report.Malformed, err)
			continue
		}
		out = append(out, rec)
	}
	report.Loaded = len(out)
	r.last = report
	r.log.Info("label files loaded", "listed", report.Listed, "matched", report.Matched, "loaded", report.Loaded, "skipped", len(report.Malformed))
	return out, nil
}

// LastReport returns the report of the most recent ReadLabels call.
func (r *Reader) LastReport() LoadReport { return r.last }

func (r *Reader) readOne(ctx context.Context, name string) (domain.LabelRecord, error) {
	rc, err := r.src.Open(ctx, name)
	if err != nil {
		return domain.LabelRecord{}, domain.NewServiceError(r.src.Name(), "open "+name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return domain.LabelRecord{}, domain.NewServiceError(r.src.Name(), "read "+name, err)
	}
	return ParseLabelRecord(name, data)
}

type rawSpan struct {
	Page          int         `json:"page"`
	Text          *string     `json:"text"`
	BoundingBoxes [][]float64 `json:"boundingBoxes"`
}

type rawEntry struct {
	Label *string    `json:"label"`
	Value *[]rawSpan `json:"value"`
}

type rawRecord struct {
	Document string      `json:"document"`
	Labels   *[]rawEntry `json:"labels"`
}

// ParseLabelRecord decodes one label file, requiring the labels, label,
// value and text keys to be present.
func ParseLabelRecord(source string, data []byte) (domain.LabelRecord, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.LabelRecord{}, &domain.MalformedLabelError{Source: source, Entry: -1, Reason: fmt.Sprintf("decode: %v", err)}
	}
	if raw.Labels == nil {
		return domain.LabelRecord{}, &domain.MalformedLabelError{Source: source, Entry: -1, Reason: `missing "labels"`}
	}
	rec := domain.LabelRecord{Source: source, Document: raw.Document, Labels: make([]domain.LabelEntry, 0, len(*raw.Labels))}
	for i, e := range *raw.Labels {
		if e.Label == nil {
			return domain.LabelRecord{}, &domain.MalformedLabelError{Source: source, Entry: i, Reason: `missing "label"`}
		}
		if e.Value == nil {
			return domain.LabelRecord{}, &domain.MalformedLabelError{Source: source, Entry: i, Reason: `missing "value"`}
		}
		entry := domain.LabelEntry{Label: *e.Label, Value: make([]domain.Span, 0, len(*e.Value))}
		for _, s := range *e.Value {
			if s.Text == nil {
				return domain.LabelRecord{}, &domain.MalformedLabelError{Source: source, Entry: i, Reason: `span missing "text"`}
			}
			entry.Value = append(entry.Value, domain.Span{Page: s.Page, Text: *s.Text, BoundingBoxes: s.BoundingBoxes})
		}
		rec.Labels = append(rec.Labels, entry)
	}
	return rec, nil
}
