package dispatch

import (
	"regexp"
	"strings"
)

// maxVariableLen caps template variable values; WhatsApp rejects longer ones.
const maxVariableLen = 500

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeVariable collapses internal whitespace to single spaces, trims,
// and truncates to 500 characters. Sanitizing an already-sanitized value
// is a no-op.
func SanitizeVariable(value string) string {
	value = whitespaceRun.ReplaceAllString(value, " ")
	value = strings.TrimSpace(value)
	if runes := []rune(value); len(runes) > maxVariableLen {
		value = strings.TrimSpace(string(runes[:maxVariableLen]))
	}
	return value
}

// SanitizeVariables sanitizes every value and drops entries that end up empty.
func SanitizeVariables(vars map[string]string) map[string]string {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if clean := SanitizeVariable(v); clean != "" {
			out[k] = clean
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
