package labels

import (
	"strings"

	"docqa/internal/domain"
)

const contentSeparator = " | "

// CombinedContent joins a document's field values in key order for
// embedding. NullValue placeholders carry no text and are left out.
func CombinedContent(d *domain.Document) string {
	parts := make([]string, 0, d.Len())
	for _, k := range d.Keys() {
		v, _ := d.Get(k)
		v = strings.TrimSpace(v)
		if v == "" || v == NullValue {
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, contentSeparator)
}
