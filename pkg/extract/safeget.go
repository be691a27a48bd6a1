package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SafeGet resolves a dot-separated path through nested maps and slices.
// Numeric segments index into slices. Any missing or null step yields def,
// and so does a null value at the end of the path.
func SafeGet(obj any, path string, def any) any {
	cur := obj
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return def
		}
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return def
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return def
			}
			cur = node[idx]
		default:
			return def
		}
	}
	if cur == nil {
		return def
	}
	return cur
}

// GetString returns the value at path when it is a string
func GetString(obj any, path string) (string, bool) {
	s, ok := SafeGet(obj, path, nil).(string)
	return s, ok
}

// GetFloat returns the value at path as a float64.
// JSON numbers and numeric strings are accepted.
func GetFloat(obj any, path string) (float64, bool) {
	switch v := SafeGet(obj, path, nil).(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ScalarString renders an upstream scalar as plain text. JSON numbers print
// without exponent, so a 13-digit EAN stays 8410650239439.
func ScalarString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case json.Number:
		return n.String()
	}
	return fmt.Sprint(v)
}
