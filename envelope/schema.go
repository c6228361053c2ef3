package envelope

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/topstack/errors"
)

// Schema is a compiled JSON Schema used to check envelope data before decoding.
type Schema struct {
	schema *gojsonschema.Schema
}

// NewSchema compiles a JSON Schema document.
func NewSchema(document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, errors.WrapInvalid(err, "envelope", "NewSchema", "schema compilation")
	}
	return &Schema{schema: s}, nil
}

// MustSchema is like NewSchema but panics on error. Intended for package-level
// endpoint descriptors.
func MustSchema(document string) *Schema {
	s, err := NewSchema(document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks data against the schema. The first violation is reported as
// *errors.SchemaError; the rest are listed in its Got text.
func (s *Schema) Validate(source string, data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &errors.SchemaError{Source: source, Expected: "valid JSON", Got: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	violations := result.Errors()
	first := violations[0]
	descs := make([]string, 0, len(violations))
	for _, v := range violations {
		descs = append(descs, fmt.Sprintf("%s: %s", v.Field(), v.Description()))
	}
	return &errors.SchemaError{
		Source:   source,
		Field:    first.Field(),
		Expected: first.Type(),
		Got:      strings.Join(descs, "; "),
	}
}
