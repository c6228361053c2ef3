package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/c360/topstack/errors"
)

// QueryFrom flattens a request value into URL parameters using its JSON field
// names, so one request type serves GET and POST endpoints alike. Null fields
// are skipped, arrays become repeated parameters and nested objects are sent as
// compact JSON.
func QueryFrom(v any) (url.Values, error) {
	switch q := v.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return q, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "client", "QueryFrom", "encode request")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("request must encode as a JSON object: %w", errors.ErrInvalidRequest),
			"client", "QueryFrom", "flatten request")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(url.Values, len(fields))
	for _, k := range keys {
		switch fv := fields[k].(type) {
		case nil:
		case []any:
			for _, item := range fv {
				s, err := scalar(item)
				if err != nil {
					return nil, err
				}
				values.Add(k, s)
			}
		default:
			s, err := scalar(fv)
			if err != nil {
				return nil, err
			}
			values.Set(k, s)
		}
	}
	return values, nil
}

func scalar(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case bool:
		if s {
			return "true", nil
		}
		return "false", nil
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return "", errors.WrapInvalid(err, "client", "QueryFrom", "encode nested value")
		}
		return string(raw), nil
	}
}
