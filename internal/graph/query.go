package graph

import (
	"sort"
	"strings"
)

// Query is a store-executable query string plus its bound parameters.
type Query struct {
	Text   string
	Params map[string]any
}

func (q Query) Empty() bool {
	return q.Text == ""
}

// ParamRefs returns the distinct parameter names referenced in the query
// text, sorted. String literals, backtick-quoted names and comments are
// skipped.
func (q Query) ParamRefs() []string {
	seen := make(map[string]bool)
	var names []string

	text := q.Text
	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == '\'' || c == '"':
			i = skipQuoted(text, i, c, true)
		case c == '`':
			i = skipQuoted(text, i, c, false)
		case strings.HasPrefix(text[i:], "//"):
			if n := strings.IndexByte(text[i:], '\n'); n >= 0 {
				i += n + 1
			} else {
				i = len(text)
			}
		case strings.HasPrefix(text[i:], "/*"):
			if n := strings.Index(text[i+2:], "*/"); n >= 0 {
				i += n + 4
			} else {
				i = len(text)
			}
		case c == '$':
			j := i + 1
			for j < len(text) && isIdentByte(text[j], j == i+1) {
				j++
			}
			if name := text[i+1 : j]; name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			i = j
		default:
			i++
		}
	}

	sort.Strings(names)
	return names
}

// skipQuoted returns the index just past the quoted span opening at start.
// An unterminated span runs to the end of the text.
func skipQuoted(text string, start int, quote byte, escapes bool) int {
	for i := start + 1; i < len(text); i++ {
		switch {
		case escapes && text[i] == '\\':
			i++
		case text[i] == quote:
			return i + 1
		}
	}
	return len(text)
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}

// MissingParams lists referenced parameters that have no bound value.
func (q Query) MissingParams() []string {
	var missing []string
	for _, name := range q.ParamRefs() {
		if _, ok := q.Params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
