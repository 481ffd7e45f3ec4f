package agent

import (
	"regexp"
	"strings"
)

// extractJSONObject returns the first balanced {...} object in s. Braces
// inside JSON strings do not count.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var fencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n(.*?)```")

// extractCodeBlock returns the body of the first ```go fence, or of the first
// fence of any kind when there is no go fence.
func extractCodeBlock(text string) (string, bool) {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	chosen := matches[0]
	for _, m := range matches {
		if lang := strings.ToLower(m[1]); lang == "go" || lang == "golang" {
			chosen = m
			break
		}
	}
	code := strings.TrimSpace(chosen[2])
	return code, code != ""
}
