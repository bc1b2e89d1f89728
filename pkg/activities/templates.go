package activities

import (
	"strings"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/options"
	"github.com/goliatone/go-activities/pkg/snapshot"
)

// DefaultTemplateRoot prefixes every template name.
const DefaultTemplateRoot = "activities"

// TemplateSettings are the process wide template naming settings.
type TemplateSettings struct {
	Root       string
	Extensions options.ExtensionSet
}

// DefaultTemplateSettings mirrors the stock configuration: `.html`
// everywhere except twitter, which uses `.txt`.
func DefaultTemplateSettings() TemplateSettings {
	return TemplateSettings{
		Root: DefaultTemplateRoot,
		Extensions: options.ExtensionSet{
			Default:  options.DefaultExtension,
			Channels: map[string]string{"twitter": ".txt"},
		},
	}
}

func (s TemplateSettings) withDefaults() TemplateSettings {
	s.Root = strings.Trim(strings.TrimSpace(s.Root), "/")
	if s.Root == "" {
		s.Root = DefaultTemplateRoot
	}
	return s
}

func snapshotFields(activity *domain.Activity) (map[string]any, error) {
	if activity == nil || activity.Snapshot.IsZero() {
		return map[string]any{}, nil
	}
	return snapshot.Of(activity)
}
