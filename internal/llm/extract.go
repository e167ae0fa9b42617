package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON strips code fences from model output. If that still does not
// yield valid JSON it falls back to the outermost object or array span,
// whichever opens first.
func ExtractJSON(text string) string {
	candidate := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(candidate)) {
		return candidate
	}

	pairs := [][2]byte{{'{', '}'}, {'[', ']'}}
	if a := strings.IndexByte(candidate, '['); a != -1 {
		if o := strings.IndexByte(candidate, '{'); o == -1 || a < o {
			pairs[0], pairs[1] = pairs[1], pairs[0]
		}
	}
	for _, p := range pairs {
		if span, ok := outermost(candidate, p[0], p[1]); ok && json.Valid([]byte(span)) {
			return span
		}
	}
	return candidate
}

func outermost(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
