package domain

import (
	"encoding/json"
	"strings"
)

// RecoverArguments repairs tool-call arguments whose structured values arrived
// encoded as JSON text.
//
// A string is decoded only when, after trimming, it starts with '{' and ends
// with '}' or starts with '[' and ends with ']'. A decoded object is repaired
// recursively, a decoded array is kept as decoded. Arrays are repaired element
// by element under the same rule. Anything that fails to decode, and every
// other value, is kept unchanged. The input map is never modified.
func RecoverArguments(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = recoverValue(v)
	}
	return out
}

func recoverValue(v any) any {
	switch val := v.(type) {
	case string:
		return recoverString(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			if s, ok := item.(string); ok {
				items[i] = recoverString(s)
				continue
			}
			items[i] = item
		}
		return items
	default:
		return v
	}
}

func recoverString(s string) any {
	if !looksLikeJSONContainer(s) {
		return s
	}
	var decoded any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &decoded); err != nil {
		return s
	}
	switch d := decoded.(type) {
	case map[string]any:
		return RecoverArguments(d)
	case []any:
		return d
	default:
		return s
	}
}

func looksLikeJSONContainer(s string) bool {
	t := strings.TrimSpace(s)
	if len(t) < 2 {
		return false
	}
	return (t[0] == '{' && t[len(t)-1] == '}') || (t[0] == '[' && t[len(t)-1] == ']')
}
