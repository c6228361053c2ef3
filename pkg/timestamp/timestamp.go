// Package timestamp provides the timestamp profile used on the TopStack wire.
//
// Platform payloads carry timestamps as RFC 3339 date-time strings with an explicit
// UTC designator ("2024-01-01T12:00:00Z", optionally with fractional seconds).
// ParseUTC accepts exactly that profile and nothing else: offsets, missing zones,
// Unix numbers and other "close enough" forms are rejected instead of guessed at.
//
// Usage Examples:
//
//	t, err := timestamp.ParseUTC("2024-01-01T12:00:00Z")
//	s := timestamp.FormatUTC(t) // "2024-01-01T12:00:00Z"
//
//	// Millisecond helpers for metrics and logs
//	ms := timestamp.ToUnixMs(t)
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire layout. Fractional seconds are optional when parsing.
const Layout = time.RFC3339Nano

// ParseUTC parses a wire timestamp. The string must be an RFC 3339 date-time
// terminated by the "Z" designator.
func ParseUTC(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("timestamp %q lacks UTC designator 'Z'", s)
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not RFC 3339: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatUTC renders t in the wire profile. The zero time renders as "".
func FormatUTC(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Since returns the duration since the given timestamp.
// Returns 0 if timestamp is zero.
func Since(ms int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(ms))
}
