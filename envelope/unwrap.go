package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/c360/topstack/errors"
)

// Page is the paginated list shape {total, items}. Both keys must be present.
type Page[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

// UnmarshalJSON rejects objects that do not carry both total and items.
func (p *Page[T]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &errors.SchemaError{Expected: "object {total, items}", Got: jsonKind(data)}
	}
	for _, key := range []string{"total", "items"} {
		if _, ok := raw[key]; !ok {
			return &errors.SchemaError{Field: key, Expected: "present"}
		}
	}

	var total int
	if err := json.Unmarshal(raw["total"], &total); err != nil {
		return &errors.SchemaError{Field: "total", Expected: "integer", Got: jsonKind(raw["total"])}
	}
	var items []T
	if err := json.Unmarshal(raw["items"], &items); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	p.Total = total
	p.Items = items
	return nil
}

// Unwrap returns the envelope's data decoded as T. A non-success code yields
// *errors.APIError with the original code and message. Absent data on success
// yields the zero T.
func Unwrap[T any](env *Envelope) (T, error) {
	var zero T
	if env == nil {
		return zero, &errors.DecodeError{Err: fmt.Errorf("nil envelope: %w", errors.ErrInvalidData)}
	}
	if err := env.Err(); err != nil {
		return zero, err
	}
	if !env.HasData() {
		return zero, nil
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return zero, schemaError(env.Source, env.Data, reflect.TypeOf(out), err)
	}
	return out, nil
}

// UnwrapValidated validates data against schema before decoding it as T.
// A nil schema behaves like Unwrap.
func UnwrapValidated[T any](env *Envelope, schema *Schema) (T, error) {
	var zero T
	if env != nil && env.OK() && schema != nil {
		data := env.Data
		if !env.HasData() {
			data = json.RawMessage("null")
		}
		if err := schema.Validate(env.Source, data); err != nil {
			return zero, err
		}
	}
	return Unwrap[T](env)
}

// schemaError turns a decode failure of well-formed data into a SchemaError,
// keeping errors that already carry structured context.
func schemaError(source string, data []byte, target reflect.Type, err error) error {
	var schemaErr *errors.SchemaError
	if errors.As(err, &schemaErr) {
		if schemaErr.Source == "" {
			schemaErr.Source = source
		}
		return schemaErr
	}

	var tsErr *errors.TimestampFormatError
	if errors.As(err, &tsErr) {
		if tsErr.Source == "" {
			tsErr.Source = source
		}
		return tsErr
	}

	var decErr *errors.DecodeError
	if errors.As(err, &decErr) {
		return &errors.SchemaError{Source: source, Field: decErr.Field, Expected: typeName(target), Got: decErr.Err.Error()}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &errors.SchemaError{Source: source, Field: typeErr.Field, Expected: typeErr.Type.String(), Got: typeErr.Value}
	}

	return &errors.SchemaError{Source: source, Expected: typeName(target), Got: jsonKind(data)}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	return t.String()
}

// jsonKind names the top-level JSON type of data.
func jsonKind(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
