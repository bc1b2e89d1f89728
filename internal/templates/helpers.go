package templates

import (
	"fmt"
	"strings"
)

func defaultHelperFuncs() map[string]any {
	return map[string]any{
		"remark_tokens": remarkTokens,
		"has_remark":    hasRemark,
		"truncate":      truncate,
	}
}

// remarkTokens splits stored remarks on whitespace.
func remarkTokens(value any) []string {
	return strings.Fields(stringFromTemplateValue(value))
}

func hasRemark(remarks any, token string) bool {
	for _, candidate := range remarkTokens(remarks) {
		if candidate == token {
			return true
		}
	}
	return false
}

// truncate shortens text to limit runes, appending an ellipsis. Used by
// length constrained channels such as twitter.
func truncate(value any, limit int) string {
	text := stringFromTemplateValue(value)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

func stringFromTemplateValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
