package pipeline

import (
	"encoding/json"
	"strings"
)

// maxStringUnwrap bounds how many layers of JSON-string-inside-JSON-string
// are peeled off before giving up.
const maxStringUnwrap = 3

// Decoded is the result of leniently decoding untrusted reasoning output.
// Value is set when the text held JSON that decoded into T; Raw always keeps
// the original text.
type Decoded[T any] struct {
	Value *T
	Raw   string
}

// Valid reports whether the text decoded into T.
func (d Decoded[T]) Valid() bool { return d.Value != nil }

// Or returns the decoded value, or fallback when decoding failed.
func (d Decoded[T]) Or(fallback T) T {
	if d.Value != nil {
		return *d.Value
	}
	return fallback
}

// Decode extracts the JSON payload of raw and unmarshals it into T.
func Decode[T any](raw string) Decoded[T] {
	out := Decoded[T]{Raw: raw}
	payload, ok := ExtractJSON(raw)
	if !ok {
		return out
	}
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return out
	}
	out.Value = &v
	return out
}

// DecodeRaw is Decode for a JSON value that may itself be a string holding JSON.
func DecodeRaw[T any](msg json.RawMessage) Decoded[T] {
	return Decode[T](string(msg))
}

// ExtractJSON finds the JSON payload in text. It accepts bare JSON, a fenced
// code block, a JSON string whose content is JSON, and JSON embedded in prose
// (the first balanced object or array).
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)
	for i := 0; i <= maxStringUnwrap; i++ {
		s = stripFence(s)
		if s == "" {
			return "", false
		}

		if json.Valid([]byte(s)) {
			if s[0] != '"' {
				return s, true
			}
			var inner string
			if err := json.Unmarshal([]byte(s), &inner); err != nil {
				return "", false
			}
			s = strings.TrimSpace(inner)
			continue
		}

		if candidate, ok := firstBalanced(s); ok {
			return candidate, true
		}
		return "", false
	}
	return "", false
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		if start := strings.Index(s, "```"); start >= 0 {
			if end := strings.LastIndex(s, "```"); end > start {
				inner := s[start+3 : end]
				if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], "{[") {
					inner = inner[nl+1:]
				}
				if t := strings.TrimSpace(inner); json.Valid([]byte(t)) {
					return t
				}
			}
		}
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// firstBalanced returns the first balanced {...} or [...] in s that is valid
// JSON, skipping brackets inside string literals.
func firstBalanced(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		if end, ok := matchBracket(s, start); ok {
			candidate := s[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}
	return "", false
}

func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
