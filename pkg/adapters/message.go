package adapters

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Message is a rendered activity addressed to one messenger.
type Message struct {
	// ID is the activity identifier.
	ID          string
	Channel     string
	Provider    string
	SubjectType string
	SubjectID   string
	Status      string
	Subject     string
	Body        string
	// Format is the content type of Body, text/plain or text/html.
	Format string
	To     string
	// Credentials holds resolved notifier secrets keyed by secret key.
	Credentials map[string]string
	Metadata    map[string]any
	Attempts    int
}

// Credential returns the first non empty credential among keys.
func (m Message) Credential(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(m.Credentials[key]); v != "" {
			return v
		}
	}
	return ""
}

// IsHTML reports whether the body is HTML.
func (m Message) IsHTML() bool {
	return strings.Contains(strings.ToLower(m.Format), "html")
}

// Headline is the explicit subject, or "[subject_type] status".
func (m Message) Headline() string {
	if s := strings.TrimSpace(m.Subject); s != "" {
		return s
	}
	return fmt.Sprintf("[%s] %s", m.SubjectType, m.Status)
}

// Meta reads a metadata entry as trimmed text.
func (m Message) Meta(key string) string {
	raw, ok := m.Metadata[key]
	if !ok || raw == nil {
		return ""
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(raw))
}

// MetaList reads a metadata entry as a list of strings.
func (m Message) MetaList(key string) []string {
	switch v := m.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			out = append(out, strings.TrimSpace(fmt.Sprint(entry)))
		}
		return out
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

// Capability describes the channels and formats supported by a messenger.
type Capability struct {
	Name     string
	Channels []string
	Formats  []string
	// MaxLength caps the body length in runes, zero means unlimited.
	MaxLength int
}

// Supports reports whether format is accepted.
func (c Capability) Supports(format string) bool {
	return slices.ContainsFunc(c.Formats, func(f string) bool {
		return strings.EqualFold(strings.TrimSpace(f), format)
	})
}

// Messenger is implemented by delivery backends (Slack, SES, Twitter, ...).
type Messenger interface {
	Name() string
	Capabilities() Capability
	Send(ctx context.Context, msg Message) error
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Truncate shortens s to max runes, ending with an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return string(runes[:1])
	}
	return string(runes[:max-1]) + "…"
}
