package objectstore_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/objectstore"
	"docqa/internal/objectstore/local"
)

const validLabels = `{
  "document": "report.pdf",
  "labels": [
    {"label": "document_title", "value": [{"page": 1, "text": "Annual", "boundingBoxes": [[0.1, 0.2]]}, {"page": 1, "text": "Report"}]},
    {"label": "author", "value": [{"page": 1, "text": "A1"}]}
  ]
}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func TestFilterMatch(t *testing.T) {
	f := objectstore.Filter{Exclude: []string{"fields.json", "ocr.json"}, Suffix: ".labels.json"}
	assert.True(t, f.Match("scan/report.pdf.labels.json"))
	assert.False(t, f.Match("scan/report.pdf.ocr.json"))
	assert.False(t, f.Match("fields.json"))
	assert.False(t, f.Match("report.pdf"))
	assert.False(t, (objectstore.Filter{Exclude: []string{"draft"}, Suffix: ".labels.json"}).Match("draft-a.labels.json"))
}

func TestReadLabelsSkipsMalformedFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"b/report.pdf.labels.json":  validLabels,
		"a/broken.pdf.labels.json":  `{"labels": [`,
		"a/novalue.pdf.labels.json": `{"labels": [{"label": "x"}]}`,
		"a/report.pdf.ocr.json":     `{}`,
		"fields.json":               `{"fields": []}`,
		"notes.txt":                 "ignored",
	})
	r := objectstore.NewReader(local.NewSource(root, ""), objectstore.Filter{Exclude: []string{"fields.json", "ocr.json"}, Suffix: ".labels.json"}, nil)

	recs, err := r.ReadLabels(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b/report.pdf.labels.json", recs[0].Source)
	assert.Equal(t, "report.pdf", recs[0].Document)
	require.Len(t, recs[0].Labels, 2)
	assert.Equal(t, "Report", recs[0].Labels[0].Value[1].Text)

	report := r.LastReport()
	assert.Equal(t, 6, report.Listed)
	assert.Equal(t, 3, report.Matched)
	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Malformed, 2)
	for _, e := range report.Malformed {
		assert.ErrorIs(t, e, domain.ErrMalformedInput)
	}
}

func TestReadLabelsPrefix(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"in/x.labels.json":  validLabels,
		"out/y.labels.json": validLabels,
	})
	r := objectstore.NewReader(local.NewSource(root, "in/"), objectstore.Filter{Suffix: ".labels.json"}, nil)
	recs, err := r.ReadLabels(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "in/x.labels.json", recs[0].Source)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) List(context.Context) ([]string, error) {
	return nil, errors.New("permission denied")
}
func (failingSource) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func TestReadLabelsListFailureIsServiceError(t *testing.T) {
	r := objectstore.NewReader(failingSource{}, objectstore.Filter{Suffix: ".labels.json"}, nil)
	_, err := r.ReadLabels(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestParseLabelRecordRequiresText(t *testing.T) {
	_, err := objectstore.ParseLabelRecord("x", []byte(`{"labels": [{"label": "a", "value": [{"page": 1}]}]}`))
	var mle *domain.MalformedLabelError
	require.True(t, errors.As(err, &mle))
	assert.Equal(t, 0, mle.Entry)

	rec, err := objectstore.ParseLabelRecord("y", []byte(`{"labels": []}`))
	require.NoError(t, err)
	assert.Empty(t, rec.Labels)

	_, err = objectstore.ParseLabelRecord("z", []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
