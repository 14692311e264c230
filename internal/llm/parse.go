package llm

import (
	"encoding/json"
	"strings"
)

// cleanJSON strips markdown code fences and leading chatter so the payload
// can be unmarshaled even when the model ignores the response format.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	// Cut to the outermost JSON value when prose surrounds it.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s
	}
	return s[start : end+1]
}

// decodeJSON unmarshals model output into v after cleaning.
func decodeJSON(s string, v any) error {
	return json.Unmarshal([]byte(cleanJSON(s)), v)
}
