package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/service"
)

func TestDescribe(t *testing.T) {
	r := service.IngestReport{Embedded: 3, Uploaded: 3, Skipped: 1, Checkpoint: "data/documents.json"}
	assert.Equal(t, "3 documents indexed (1 skipped, 0 malformed)", describe(r, false))

	r.Uploaded = 0
	assert.Equal(t, "3 documents embedded, saved to data/documents.json (upload skipped) (1 skipped, 0 malformed)", describe(r, true))
}
