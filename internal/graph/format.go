package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FormatResults flattens records into the text block handed to the
// synthesizer. Output is deterministic for the same input.
func FormatResults(question string, records []Record) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, fmt.Sprintf("Results for '%s':", question))

	for _, rec := range records {
		lines = append(lines, "- "+FormatRecord(rec))
	}

	return strings.Join(lines, "\n")
}

func FormatRecord(rec Record) string {
	var parts []string

	for i, key := range rec.Keys {
		v := rec.Values[i]
		if v.Kind() == KindComposite {
			for _, prop := range v.PropKeys() {
				parts = append(parts, prop+": "+renderValue(v.props[prop]))
			}
			continue
		}
		parts = append(parts, key+": "+renderValue(v.scalar))
	}

	return strings.Join(parts, ", ")
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case []any:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = renderValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case []string:
		return "[" + strings.Join(val, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = k + ": " + renderValue(val[k])
		}
		return "{" + strings.Join(items, ", ") + "}"
	default:
		return fmt.Sprint(val)
	}
}
