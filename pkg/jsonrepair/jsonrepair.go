// Package jsonrepair recovers a JSON value from LLM output that is not
// contractually guaranteed to be JSON: the value may be wrapped in prose or
// markdown fencing, or truncated mid-structure by a completion length limit.
//
// Extraction is attempted in order, stopping at the first success:
//  1. strip code fences and whitespace, parse as-is
//  2. locate the first '[' or '{' and scan for a balanced substring
//  3. on truncation, cut back to the last complete top-level element and
//     close the outermost container
package jsonrepair

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoJSON means the text contains no array or object at all.
	ErrNoJSON = errors.New("jsonrepair: no JSON value found in text")
	// ErrUnrepairable means a candidate was found but could not be made valid.
	ErrUnrepairable = errors.New("jsonrepair: JSON value could not be repaired")
)

// Extract returns the JSON array or object embedded in raw model output.
// The returned string is guaranteed to be valid JSON.
func Extract(raw string) (string, error) {
	s := strings.TrimSpace(stripFences(raw))
	if s == "" {
		return "", ErrNoJSON
	}

	if (s[0] == '[' || s[0] == '{') && json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return "", ErrNoJSON
	}
	s = s[start:]

	candidate, ok := scan(s)
	if !ok {
		return "", ErrUnrepairable
	}
	if !json.Valid([]byte(candidate)) {
		return "", ErrUnrepairable
	}
	return candidate, nil
}

// Decode extracts the embedded JSON value and unmarshals it into v.
func Decode(raw string, v interface{}) error {
	s, err := Extract(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), v)
}

// stripFences removes a surrounding markdown code fence, including an
// optional language tag on the opening fence line (```json).
func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isLangTag(strings.TrimSpace(rest[:nl])) {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func isLangTag(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// scan walks s (which starts with '[' or '{') tracking bracket nesting and
// string state. It returns the balanced substring when the outermost
// container closes. If the input ends with brackets still open, it falls back
// to the last position where a complete element existed directly inside the
// outermost container and closes that container.
func scan(s string) (string, bool) {
	var stack []byte
	inStr := false
	esc := false
	safeEnd := -1

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inStr {
			if esc {
				esc = false
				continue
			}
			switch c {
			case '\\':
				esc = true
			case '"':
				inStr = false
				// a closed string is a complete element of a top-level array
				if len(stack) == 1 && stack[0] == '[' {
					safeEnd = i + 1
				}
			}
			continue
		}

		switch c {
		case '"':
			inStr = true
		case '[', '{':
			stack = append(stack, c)
		case ']', '}':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[:i+1], true
			}
			if len(stack) == 1 {
				safeEnd = i + 1
			}
		case ',':
			// a comma at depth 1 means the preceding element or pair is complete
			if len(stack) == 1 {
				safeEnd = i
			}
		}
	}

	// Truncated: keep the valid prefix, drop the unterminated tail.
	if len(stack) == 0 || safeEnd < 0 {
		return "", false
	}
	prefix := strings.TrimRight(s[:safeEnd], ", \t\r\n")
	closer := "]"
	if stack[0] == '{' {
		closer = "}"
	}
	return prefix + closer, true
}
