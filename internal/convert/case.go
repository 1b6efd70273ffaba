// Package convert translates between the backend's snake_case wire shape and
// the client's camelCase domain shape, and formats dates the way the backend
// expects them.
package convert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxDepth is the deepest nesting ToCamelCase and ToSnakeCase will walk.
// Anything deeper fails with ErrMaxDepth rather than being truncated.
const MaxDepth = 512

// ErrMaxDepth is returned when a value nests deeper than MaxDepth.
var ErrMaxDepth = errors.New("convert: value nested deeper than max depth")

var snakeSegment = regexp.MustCompile(`_([a-z])`)

// CamelKey converts a single snake_case key to camelCase ("created_at" ->
// "createdAt"). Every underscore followed by a lower-case letter becomes
// that letter upper-cased, so CamelKey(SnakeKey(k)) == k for any key that
// starts with a lower-case letter.
func CamelKey(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	// Leading underscores ("_id") are kept verbatim.
	body := strings.TrimLeft(key, "_")
	prefix := key[:len(key)-len(body)]
	return prefix + snakeSegment.ReplaceAllStringFunc(body, func(m string) string {
		return strings.ToUpper(m[1:])
	})
}

// SnakeKey converts a single camelCase key to snake_case ("createdAt" ->
// "created_at"). Each upper-case letter becomes an underscore and its lower
// case, one letter at a time: "shareURL" is "share_u_r_l".
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if 'A' <= r && r <= 'Z' {
			b.WriteByte('_')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamelCase returns a copy of v with every object key rewritten to
// camelCase. Slices and maps are walked recursively; time.Time and any other
// non-container value is returned unchanged.
func ToCamelCase(v any) (any, error) {
	return transform(v, CamelKey, 0)
}

// ToSnakeCase is the inverse of ToCamelCase.
func ToSnakeCase(v any) (any, error) {
	return transform(v, SnakeKey, 0)
}

func transform(v any, key func(string) string, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrMaxDepth
	}

	switch val := v.(type) {
	case map[string]any:
		return transformMap(val, key, depth)
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, m := range val {
			converted, err := transformMap(m, key, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			converted, err := transform(item, key, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		// Scalars, json.Number, time.Time and anything else opaque.
		return v, nil
	}
}

func transformMap(m map[string]any, key func(string) string, depth int) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, item := range m {
		converted, err := transform(item, key, depth+1)
		if err != nil {
			return nil, err
		}
		out[key(k)] = converted
	}
	return out, nil
}

// CamelizeJSON rewrites the keys of a JSON document to camelCase.
func CamelizeJSON(raw []byte) ([]byte, error) {
	return rewriteJSON(raw, ToCamelCase)
}


// SnakeizeStruct marshals v (a struct with camelCase json tags) and returns
// the result as a snake_case keyed map, ready to send to the backend.
func SnakeizeStruct(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling %T: %w", v, err)
	}
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}
	converted, err := ToSnakeCase(decoded)
	if err != nil {
		return nil, err
	}
	m, ok := converted.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("snakeizing %T: not an object", v)
	}
	return m, nil
}

func rewriteJSON(raw []byte, fn func(any) (any, error)) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw, nil
	}
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}
	converted, err := fn(decoded)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(converted)
	if err != nil {
		return nil, fmt.Errorf("re-encoding json: %w", err)
	}
	return out, nil
}

// decode keeps numbers as json.Number so large ids are not rounded through
// float64.
func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return v, nil
}
