package labels

import "docqa/internal/domain"

// Collision records a value overwritten inside one compiled document.
type Collision struct {
	Document int
	Key      string
	Old      string
	New      string
}

// CompileStats describes a Compile run.
type CompileStats struct {
	Documents int
	// Untitled is true when entities preceding the first title key formed
	// a leading document without a title field.
	Untitled   bool
	Collisions []Collision
}

// Compile groups entities into documents. A title-key entity closes the
// open document and starts a new one; other entities merge into the open
// document with last-write-wins. titleKeys must be non-empty.
func Compile(entities []domain.FlatEntity, titleKeys []string) ([]*domain.Document, error) {
	docs, _, err := CompileWithStats(entities, titleKeys)
	return docs, err
}

// CompileWithStats is Compile that also reports overwritten keys.
func CompileWithStats(entities []domain.FlatEntity, titleKeys []string) ([]*domain.Document, CompileStats, error) {
	var stats CompileStats
	if len(titleKeys) == 0 {
		return nil, stats, domain.InvalidArgument("title keys must not be empty")
	}
	titles := make(map[string]struct{}, len(titleKeys))
	for _, k := range titleKeys {
		titles[k] = struct{}{}
	}

	var docs []*domain.Document
	current := domain.NewDocument()
	for i, e := range entities {
		if _, isTitle := titles[e.Key]; isTitle {
			if current.Len() > 0 {
				docs = append(docs, current)
			}
			current = domain.NewDocument()
			current.Set(e.Key, e.Value)
			continue
		}
		if i == 0 {
			stats.Untitled = true
		}
		if old, ok := current.Get(e.Key); ok {
			stats.Collisions = append(stats.Collisions, Collision{Document: len(docs), Key: e.Key, Old: old, New: e.Value})
		}
		current.Set(e.Key, e.Value)
	}
	if current.Len() > 0 {
		docs = append(docs, current)
	}
	stats.Documents = len(docs)
	return docs, stats, nil
}
