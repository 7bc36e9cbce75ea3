package ai

import (
	"encoding/json"
	"strings"
)

// extractJSONObject pulls the first JSON object out of a model reply that may
// wrap it in prose or code fences. When the object starting at the first '{'
// does not decode on its own, the span up to the last '}' is returned as is.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	var raw json.RawMessage
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	if err := dec.Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
		return string(raw), true
	}

	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", false
	}
	return text[start : end+1], true
}
