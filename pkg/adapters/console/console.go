// Package console prints rendered activities through the logger. It backs
// the site wall in the demo and local development.
package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
)

// Adapter logs each activity as one line, or as structured fields.
type Adapter struct {
	name       string
	channels   []string
	structured bool
	report     adapters.Reporter
}

type Option func(*Adapter)

// WithName overrides the adapter name, "console" by default.
func WithName(name string) Option {
	return func(a *Adapter) {
		if name = strings.TrimSpace(name); name != "" {
			a.name = name
		}
	}
}

// WithChannels replaces the declared channels.
func WithChannels(channels ...string) Option {
	return func(a *Adapter) {
		if len(channels) > 0 {
			a.channels = channels
		}
	}
}

// WithStructured logs the message as fields instead of a formatted line.
func WithStructured(enabled bool) Option {
	return func(a *Adapter) {
		a.structured = enabled
	}
}

// New constructs a console adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{name: "console", channels: []string{"console", "feed"}}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	adapter.report = adapters.NewReporter(adapter.name, l)
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability {
	return adapters.Capability{
		Name:     a.name,
		Channels: a.channels,
		Formats:  []string{"text/plain", "text/html"},
	}
}

func (a *Adapter) Send(_ context.Context, msg adapters.Message) error {
	if a.structured {
		a.report.Delivered(msg,
			logger.Field{Key: "subject_id", Value: msg.SubjectID},
			logger.Field{Key: "format", Value: msg.Format},
			logger.Field{Key: "body", Value: msg.Body},
		)
		return nil
	}
	a.report.Logger().Info(fmt.Sprintf("[%s] %s %s#%s: %s",
		a.name, msg.Status, msg.SubjectType, msg.SubjectID, msg.Body))
	return nil
}
