package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source reads objects from a directory tree. Object names are slash
// separated paths relative to the root.
type Source struct {
	root   string
	prefix string
}

func NewSource(root, prefix string) *Source {
	return &Source{root: root, prefix: prefix}
}

func (s *Source) Name() string { return "local:" + s.root }

func (s *Source) List(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, s.prefix) {
			out = append(out, name)
		}
		return nil
	})
	return out, err
}

func (s *Source) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.FromSlash(name)))
}
