package labels

import "docqa/internal/domain"

// NullValue marks an expected field that no label supplied.
const NullValue = "Null"

// Normalize inserts NullValue for every expected key a document lacks.
// Present keys are never overwritten, so Normalize is idempotent.
// Documents are updated in place and returned.
func Normalize(docs []*domain.Document, expectedKeys []string) ([]*domain.Document, error) {
	if err := ValidateKeys(expectedKeys); err != nil {
		return nil, err
	}
	for _, d := range docs {
		for _, k := range expectedKeys {
			if !d.Has(k) {
				d.Set(k, NullValue)
			}
		}
	}
	return docs, nil
}

// ValidateKeys rejects empty and duplicate keys.
func ValidateKeys(keys []string) error {
	seen := make(map[string]struct{}, len(keys))
	for i, k := range keys {
		if k == "" {
			return domain.InvalidArgument("expected key %d is empty", i)
		}
		if _, dup := seen[k]; dup {
			return domain.InvalidArgument("expected key %q listed twice", k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
