package translate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParsedOutput is the result of reading a model reply as a JSON object.
// Exactly one of Fields or Err is set.
type ParsedOutput struct {
	Fields map[string]any
	Raw    string
	Err    error
}

func (p ParsedOutput) OK() bool {
	return p.Err == nil
}

// String returns a string field, or "" when absent or not a string.
func (p ParsedOutput) String(key string) string {
	s, _ := p.Fields[key].(string)
	return s
}

// Object returns an object field, or nil when absent or not an object.
func (p ParsedOutput) Object(key string) map[string]any {
	m, _ := p.Fields[key].(map[string]any)
	return m
}

// ParseModelOutput strips an optional leading and trailing code fence line
// and strictly decodes the remainder as one JSON object. Integral numbers
// become int64 so they bind as integers (LIMIT, years); others float64.
func ParseModelOutput(raw string) ParsedOutput {
	text := stripFences(strings.TrimSpace(raw))
	out := ParsedOutput{Raw: text}

	if text == "" {
		out.Err = fmt.Errorf("%w: empty response", ErrMalformedOutput)
		return out
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		return out
	}

	if _, err := dec.Token(); err != io.EOF {
		out.Err = fmt.Errorf("%w: trailing data after JSON object", ErrMalformedOutput)
		return out
	}

	if fields == nil {
		out.Err = fmt.Errorf("%w: not a JSON object", ErrMalformedOutput)
		return out
	}

	out.Fields = normalizeNumbers(fields).(map[string]any)
	return out
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil && !strings.ContainsAny(string(val), ".eE") {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return val
	}
}
