// Package labels turns annotation label records into normalized documents.
package labels

import (
	"errors"
	"strings"

	"docqa/internal/domain"
)

// Flatten emits one entity per label entry, joining span texts with a space.
// Order follows the records, then the entries within each record.
//
// A record containing an entry without a label is skipped whole. The
// entities of every other record are still returned, together with an
// error joining one *domain.MalformedLabelError per skipped record.
func Flatten(records []domain.LabelRecord) ([]domain.FlatEntity, error) {
	var out []domain.FlatEntity
	var errs []error
	for _, rec := range records {
		entities, err := flattenRecord(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, entities...)
	}
	return out, errors.Join(errs...)
}

func flattenRecord(rec domain.LabelRecord) ([]domain.FlatEntity, error) {
	out := make([]domain.FlatEntity, 0, len(rec.Labels))
	for i, entry := range rec.Labels {
		if entry.Label == "" {
			return nil, &domain.MalformedLabelError{Source: rec.Source, Entry: i, Reason: "entry has no label"}
		}
		out = append(out, domain.FlatEntity{Key: entry.Label, Value: joinSpans(entry.Value)})
	}
	return out, nil
}

func joinSpans(spans []domain.Span) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}
