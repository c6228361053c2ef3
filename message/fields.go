package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/topstack/errors"
	"github.com/c360/topstack/pkg/timestamp"
)

// field maps one normalized record field to its wire names, canonical first.
type field struct {
	name string
	wire []string
}

// idField covers the three spellings the platform uses for identifiers:
// idField("device_id", "device") accepts deviceID, deviceId and device_id.
func idField(name, camel string) field {
	return field{name: name, wire: []string{camel + "ID", camel + "Id", name}}
}

// plainField is a field whose wire name equals its normalized name.
func plainField(name string) field {
	return field{name: name, wire: []string{name}}
}

// camelField is a field sent in camelCase that normalizes to snake_case.
func camelField(name, camel string) field {
	return field{name: name, wire: []string{camel, name}}
}

// fieldTable is the bidirectional alias table of one record variant.
type fieldTable struct {
	fields []field
	byName map[string]field
	known  map[string]bool
}

func newFieldTable(fields ...field) *fieldTable {
	t := &fieldTable{
		fields: fields,
		byName: make(map[string]field, len(fields)),
		known:  make(map[string]bool, len(fields)*3),
	}
	for _, f := range fields {
		t.byName[f.name] = f
		t.known[f.name] = true
		for _, w := range f.wire {
			t.known[w] = true
		}
	}
	return t
}

// canonical returns the wire name Encode writes for a normalized field.
func (t *fieldTable) canonical(name string) string {
	f, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("message: field %q not in table", name))
	}
	return f.wire[0]
}

// reader pulls normalized fields out of one wire payload. The first failure
// sticks; later calls are no-ops so decode functions read straight through.
type reader struct {
	source string
	table  *fieldTable
	raw    map[string]json.RawMessage
	err    error
}

func newReader(source string, table *fieldTable, payload []byte) (*reader, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &errors.DecodeError{Source: source, Err: err}
	}
	if raw == nil {
		return nil, &errors.DecodeError{Source: source, Err: fmt.Errorf("payload is not an object: %w", errors.ErrInvalidData)}
	}
	return &reader{source: source, table: table, raw: raw}, nil
}

// lookup finds the first wire spelling present with a non-null value.
func (r *reader) lookup(name string) (string, json.RawMessage, bool) {
	if r.err != nil {
		return "", nil, false
	}
	for _, w := range r.table.byName[name].wire {
		v, ok := r.raw[w]
		if !ok || isNull(v) {
			continue
		}
		return w, v, true
	}
	return "", nil, false
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = &errors.DecodeError{Source: r.source, Field: key, Err: err}
	}
}

func (r *reader) str(name string, dst *string) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		r.fail(key, fmt.Errorf("want string: %w", errors.ErrInvalidData))
	}
}

func (r *reader) integer(name string, dst *int) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		r.fail(key, fmt.Errorf("want integer, got %s: %w", v, errors.ErrInvalidData))
	}
}

// boolean accepts JSON booleans and the integer codes 0 and 1.
func (r *reader) boolean(name string, dst *bool) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err == nil {
		return
	}
	var n int
	if err := json.Unmarshal(v, &n); err == nil && (n == 0 || n == 1) {
		*dst = n == 1
		return
	}
	r.fail(key, fmt.Errorf("want boolean, got %s: %w", v, errors.ErrInvalidData))
}

// value keeps any JSON value as decoded by encoding/json.
func (r *reader) value(name string, dst *any) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		r.fail(key, err)
	}
}

func (r *reader) object(name string, dst *map[string]any) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(v, dst); err != nil {
		r.fail(key, fmt.Errorf("want object: %w", errors.ErrInvalidData))
	}
}

func (r *reader) time(name string, dst *time.Time) {
	key, v, ok := r.lookup(name)
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		if r.err == nil {
			r.err = &errors.TimestampFormatError{Source: r.source, Field: key, Value: string(v), Err: fmt.Errorf("want string")}
		}
		return
	}
	t, err := timestamp.ParseUTC(s)
	if err != nil {
		if r.err == nil {
			r.err = &errors.TimestampFormatError{Source: r.source, Field: key, Value: s, Err: err}
		}
		return
	}
	*dst = t
}

// extras returns the payload fields no table entry claims.
func (r *reader) extras() map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range r.raw {
		if r.table.known[k] {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = v
	}
	return out
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// writer builds a wire payload using canonical names.
type writer struct {
	table *fieldTable
	out   map[string]any
}

func newWriter(table *fieldTable) *writer {
	return &writer{table: table, out: make(map[string]any, len(table.fields))}
}

func (w *writer) set(name string, v any) {
	w.out[w.table.canonical(name)] = v
}

func (w *writer) time(name string, t time.Time) {
	if t.IsZero() {
		return
	}
	w.set(name, timestamp.FormatUTC(t))
}

func (w *writer) bytes() ([]byte, error) {
	return json.Marshal(w.out)
}
