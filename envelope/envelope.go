// Package envelope decodes the {code, message, data} wrapper every platform
// HTTP response uses and maps it to a typed result or a typed error.
//
// Decoding is a pure transformation: Decode checks the wrapper, Unwrap checks the
// code and converts data into the caller's expected shape. A shape mismatch is a
// *errors.SchemaError and is never coerced.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/c360/topstack/errors"
)

// Success tokens. The platform uses "200" on most modules and "0" on a few.
var successCodes = map[string]bool{
	"200": true,
	"0":   true,
}

// Envelope is one decoded platform response.
type Envelope struct {
	// Code is the status token, normalized to a string
	Code string
	// Message is the human readable status text
	Message string
	// Data is the raw payload, nil when absent or null
	Data json.RawMessage
	// Source is the request path or other origin, used in error context
	Source string
	// HTTPStatus is the transport status code when the envelope came over HTTP
	HTTPStatus int
}

// OK reports whether the code is a success token.
func (e *Envelope) OK() bool {
	return successCodes[e.Code]
}

// HasData reports whether the envelope carries a non-null payload.
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0
}

// Err returns the rejection as *errors.APIError, or nil on success.
func (e *Envelope) Err() error {
	if e.OK() {
		return nil
	}
	return &errors.APIError{
		Code:       e.Code,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
		Path:       e.Source,
	}
}

type wire struct {
	Code    json.RawMessage `json:"code"`
	Message *string         `json:"message"`
	Msg     *string         `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Decode parses raw as an envelope. The body must be a JSON object with a code
// that is a string or a number. The message is read from "message", falling
// back to "msg".
func Decode(source string, raw []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &errors.DecodeError{Source: source, Err: fmt.Errorf("empty body: %w", errors.ErrInvalidData)}
	}
	if trimmed[0] != '{' {
		return nil, &errors.DecodeError{Source: source, Err: fmt.Errorf("body is not a JSON object: %w", errors.ErrInvalidData)}
	}

	var w wire
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, &errors.DecodeError{Source: source, Err: err}
	}

	code, err := normalizeCode(w.Code)
	if err != nil {
		return nil, &errors.DecodeError{Source: source, Field: "code", Err: err}
	}

	env := &Envelope{Code: code, Source: source}
	switch {
	case w.Message != nil:
		env.Message = *w.Message
	case w.Msg != nil:
		env.Message = *w.Msg
	}
	if len(w.Data) > 0 && !isNull(w.Data) {
		env.Data = w.Data
	}
	return env, nil
}

func normalizeCode(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", fmt.Errorf("missing: %w", errors.ErrInvalidData)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("want string or number, got %s: %w", raw, errors.ErrInvalidData)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Encode renders an envelope, mainly for tests and fixtures.
func Encode(code, message string, data any) ([]byte, error) {
	out := struct {
		Code    string `json:"code"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}{Code: code, Message: message, Data: data}
	return json.Marshal(out)
}
