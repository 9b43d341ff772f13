// Package extract recovers structured records from loosely formatted judge output.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoObject = errors.New("no JSON object found")

// UnparseableResponseError is returned when no JSON payload could be recovered.
type UnparseableResponseError struct {
	Raw string
	Err error
}

func (e *UnparseableResponseError) Error() string {
	return fmt.Sprintf("unparseable response: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
}

func (e *UnparseableResponseError) Unwrap() error {
	return e.Err
}

// Extract decodes a JSON object from raw into T. The whole text is tried
// first, then the substring between the first '{' and the last '}'
// inclusive. Payloads that are not objects, such as null or a bare
// number, are rejected.
func Extract[T any](raw string) (T, error) {
	var out T
	text := strings.TrimSpace(raw)

	err := errNoObject
	if strings.HasPrefix(text, "{") {
		if err = json.Unmarshal([]byte(text), &out); err == nil {
			return out, nil
		}
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return out, &UnparseableResponseError{Raw: raw, Err: err}
	}

	// Reset so a partial first decode does not leak into the result.
	var sliced T
	if err := json.Unmarshal([]byte(text[start:end+1]), &sliced); err != nil {
		return out, &UnparseableResponseError{Raw: raw, Err: err}
	}
	return sliced, nil
}

// Object decodes raw into a generic JSON object.
func Object(raw string) (map[string]any, error) {
	return Extract[map[string]any](raw)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
