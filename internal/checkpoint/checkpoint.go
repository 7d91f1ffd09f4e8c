// Package checkpoint persists the embedded document set so it can be
// uploaded again without re-running extraction.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"docqa/internal/domain"
)

// Save writes docs as an indented JSON array. The file is replaced
// atomically: data goes to a temporary file that is then renamed.
func Save(path string, docs []domain.IndexedDocument) error {
	if path == "" {
		return domain.InvalidArgument("checkpoint path is empty")
	}
	if docs == nil {
		docs = []domain.IndexedDocument{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Load reads a checkpoint written by Save.
func Load(path string) ([]domain.IndexedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var docs []domain.IndexedDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %v: %w", path, err, domain.ErrMalformedInput)
	}
	for i, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("checkpoint %s: document %d has no id: %w", path, i, domain.ErrMalformedInput)
		}
		if d.Fields == nil {
			docs[i].Fields = domain.NewDocument()
		}
	}
	return docs, nil
}
