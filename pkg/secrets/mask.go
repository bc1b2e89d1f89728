package secrets

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

const maskRule = "preserveEnds(2,2)"

// credentialFields are the notifier credential keys masked wherever
// go-masker walks a struct or map.
var credentialFields = []string{
	"token", "bearer_token", "access_token", "access_token_secret",
	"consumer_key", "consumer_secret", "api_key", "secret",
	"webhook_url", "aws_secret_access_key",
}

func init() {
	for _, field := range credentialFields {
		masker.Default.RegisterMaskField(field, maskRule)
	}
}

// MaskValues returns a loggable view of resolved credentials keyed by
// "notifier/key", holding the masked value and its version.
func MaskValues(values map[Reference]Value) map[string]any {
	if len(values) == 0 {
		return nil
	}
	masked := make(map[string]any, len(values))
	for ref, val := range values {
		masked[maskLabel(ref)] = map[string]any{
			"value":   Mask(val.String()),
			"version": val.Version,
		}
	}
	return masked
}

func maskLabel(ref Reference) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{ref.Notifier, ref.Key} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "/")
}

// Mask keeps the two leading and trailing characters. Values of four
// characters or fewer are hidden entirely.
func Mask(value string) string {
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	if masked, err := masker.Default.String(maskRule, value); err == nil && masked != value {
		return masked
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
