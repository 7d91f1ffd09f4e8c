package domain

const (
	FieldID      = "id"
	FieldContent = "content"
	FieldVector  = "contentVector"
)

type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeVector FieldType = "vector"
)

// FieldSpec describes one field of a search index.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Key         bool
	Searchable  bool
	Filterable  bool
	Retrievable bool
	Dimensions  int
}

// IndexSchema is the backend-neutral description of a search index.
type IndexSchema struct {
	Name       string
	Dimensions int
	Fields     []FieldSpec
}

// BuildSchema returns the schema for documents normalized onto expectedKeys.
func BuildSchema(name string, expectedKeys []string, dimensions int) IndexSchema {
	fields := []FieldSpec{
		{Name: FieldID, Type: FieldTypeString, Key: true, Filterable: true, Retrievable: true},
	}
	for _, k := range expectedKeys {
		fields = append(fields, FieldSpec{Name: k, Type: FieldTypeString, Searchable: true, Filterable: true, Retrievable: true})
	}
	fields = append(fields,
		FieldSpec{Name: FieldContent, Type: FieldTypeString, Searchable: true, Retrievable: true},
		FieldSpec{Name: FieldVector, Type: FieldTypeVector, Searchable: true, Dimensions: dimensions},
	)
	return IndexSchema{Name: name, Dimensions: dimensions, Fields: fields}
}

// Validate checks that the schema can be created.
func (s IndexSchema) Validate() error {
	if s.Name == "" {
		return InvalidArgument("index schema has no name")
	}
	if s.Dimensions <= 0 {
		return InvalidArgument("index schema %s: invalid vector dimensions %d", s.Name, s.Dimensions)
	}
	return nil
}

// FilterableFields returns the names of filterable string fields other than the key.
func (s IndexSchema) FilterableFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Type == FieldTypeString && f.Filterable && !f.Key {
			out = append(out, f.Name)
		}
	}
	return out
}
