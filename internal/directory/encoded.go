// internal/directory/encoded.go
//
// Boundary decoding for NocoDB columns.
//
// Context
// -------
// Several NocoDB columns (images, tags, categories, opening hours, …) are
// LongText fields that hold JSON *inside* a JSON string:
//
//	"Tags": "[\"shade\",\"water\"]"
//
// Encoded[T] decodes such a column exactly once, when the record is read.
// It also accepts the native form (`"Tags": ["shade"]`) so a column can be
// migrated to a JSON field type without code changes.
//
// Notes
// -----
//   - Decoding never fails.  Malformed input leaves the zero value, sets
//     Valid=false, and is logged at debug level.
//   - For Encoded[[]string] a plain comma list (“Card, Map”) is accepted,
//     which is how NocoDB serialises MultiSelect columns.
package directory

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Encoded is a typed view of a possibly string-encoded JSON column.
type Encoded[T any] struct {
	Value T
	Valid bool
}

// Get returns the decoded value (zero when absent or malformed).
func (e Encoded[T]) Get() T { return e.Value }

// UnmarshalJSON implements json.Unmarshaler and never returns an error.
func (e *Encoded[T]) UnmarshalJSON(b []byte) error {
	var zero T
	e.Value, e.Valid = zero, false

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	payload := b
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			zap.S().Debugw("encoded column: bad string", "err", err)
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		payload = []byte(s)
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		if list, ok := any(&v).(*[]string); ok && payload[0] != '[' && payload[0] != '{' {
			*list = splitList(string(payload))
			e.Value, e.Valid = v, true
			return nil
		}
		zap.S().Debugw("encoded column: undecodable value",
			"err", err, "value", truncate(string(payload), 80))
		return nil
	}
	e.Value, e.Valid = v, true
	return nil
}

// MarshalJSON emits the decoded value, never the encoded string.
func (e Encoded[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Value)
}

// splitList splits a comma list, trimming blanks and dropping empties.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// Flag decodes NocoDB checkbox columns, which arrive as true/false, 1/0, or
// their string forms depending on the underlying database.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.ToLower(string(bytes.TrimSpace(b))), `"`)
	switch s {
	case "true", "1", "yes", "on":
		*f = true
	default:
		*f = false
	}
	return nil
}
