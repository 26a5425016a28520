package llm

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// ExtractJSON recovers a JSON object from a completion that may be wrapped
// in markdown fences or surrounded by prose. Returns the original text when
// no object boundary is found; the caller's unmarshal decides validity.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
			content = strings.TrimSpace(m[1])
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
