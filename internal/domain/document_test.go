package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentSetKeepsFirstPosition(t *testing.T) {
	d := NewDocument()
	assert.False(t, d.Set("b", "1"))
	assert.False(t, d.Set("a", "2"))
	assert.True(t, d.Set("b", "3"))

	assert.Equal(t, []string{"b", "a"}, d.Keys())
	v, ok := d.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestDocumentJSONPreservesOrder(t *testing.T) {
	d := DocumentFrom("z", "1", "a", "two \"quoted\"", "m", "")

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"z":"1","a":"two \"quoted\"","m":""}`, string(raw))

	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []string{"z", "a", "m"}, back.Keys())
	assert.True(t, d.Equal(&back))
}

func TestDocumentUnmarshalRejectsNonObject(t *testing.T) {
	var d Document
	err := json.Unmarshal([]byte(`["a"]`), &d)
	assert.True(t, errors.Is(err, ErrMalformedInput))

	err = json.Unmarshal([]byte(`{"a":1}`), &d)
	assert.Error(t, err)
}

func TestFlatEntityJSON(t *testing.T) {
	raw, err := json.Marshal(FlatEntity{Key: "author", Value: "A1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"author":"A1"}`, string(raw))

	var e FlatEntity
	require.NoError(t, json.Unmarshal([]byte(`{"title":"X"}`), &e))
	assert.Equal(t, FlatEntity{Key: "title", Value: "X"}, e)
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"a":"1","b":"2"}`), &e), ErrMalformedInput)
}

func TestServiceErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("boom")
	err := NewServiceError("chat", "complete", cause)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, NewServiceError("chat", "complete", nil))
}

func TestBuildSchema(t *testing.T) {
	s := BuildSchema("labels", []string{"title", "author"}, 8)
	require.NoError(t, s.Validate())
	assert.Len(t, s.Fields, 5)
	assert.Equal(t, []string{"title", "author"}, s.FilterableFields())
	assert.ErrorIs(t, BuildSchema("labels", nil, 0).Validate(), ErrInvalidArgument)
}
