// Package parse extracts a JSON object from raw model output. Models wrap
// JSON in code fences and prose often enough that a salvage pass is part of
// the contract, not a nicety.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?i)```(json)?")

// JSONObject attempts to extract a JSON object from raw model text. It strips
// code-fence markers, tries a direct parse, and on failure salvages the
// substring between the first '{' and the last '}'. Returns (nil, false) when
// nothing parseable is found; it never returns an error.
func JSONObject(raw string) (map[string]any, bool) {
	if raw == "" {
		return nil, false
	}

	text := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))

	if obj, ok := tryParse(text); ok {
		return obj, true
	}

	// Salvage: first '{' through last '}'.
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first >= 0 && last > first {
		if obj, ok := tryParse(text[first : last+1]); ok {
			return obj, true
		}
	}

	return nil, false
}

func tryParse(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}
