// Package webhook posts activities as JSON documents to an HTTP endpoint.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
)

// Config configures the webhook adapter. A "token" credential takes
// precedence over basic auth.
type Config struct {
	URL             string
	Method          string
	Headers         map[string]string
	Timeout         time.Duration
	BasicAuthUser   string
	BasicAuthPass   string
	DryRun          bool
	ForwardMetadata bool
}

// Payload is the JSON document posted to the endpoint.
type Payload struct {
	ActivityID  string         `json:"activity_id"`
	Channel     string         `json:"channel"`
	SubjectType string         `json:"subject_type"`
	SubjectID   string         `json:"subject_id"`
	Status      string         `json:"status"`
	Subject     string         `json:"subject,omitempty"`
	Body        string         `json:"body"`
	Format      string         `json:"format,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Adapter posts rendered activities to an HTTP endpoint.
type Adapter struct {
	name   string
	cfg    Config
	client *http.Client
	report adapters.Reporter
}

type Option func(*Adapter)

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(a *Adapter) {
		if name = strings.TrimSpace(name); name != "" {
			a.name = name
		}
	}
}

// WithConfig sets the adapter configuration.
func WithConfig(cfg Config) Option {
	return func(a *Adapter) {
		a.cfg = cfg
	}
}

// WithClient injects an HTTP client.
func WithClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// New constructs the webhook adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{name: "webhook"}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.client == nil {
		adapter.client = adapters.NewHTTPClient(adapter.cfg.Timeout)
	}
	adapter.report = adapters.NewReporter(adapter.name, l)
	return adapter
}

func (a *Adapter) Name() string { return a.name }

func (a *Adapter) Capabilities() adapters.Capability {
	return adapters.Capability{
		Name:     a.name,
		Channels: []string{"webhook"},
		Formats:  []string{"text/plain", "text/html"},
	}
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	endpoint := adapters.FirstNonEmpty(msg.Meta("url"), a.cfg.URL)
	if a.cfg.DryRun {
		a.report.Skipped(msg, logger.Field{Key: "url", Value: endpoint})
		return nil
	}
	if endpoint == "" {
		return errors.New("webhook: url is required")
	}
	payload := Payload{
		ActivityID:  msg.ID,
		Channel:     msg.Channel,
		SubjectType: msg.SubjectType,
		SubjectID:   msg.SubjectID,
		Status:      msg.Status,
		Subject:     msg.Subject,
		Body:        msg.Body,
		Format:      msg.Format,
	}
	if a.cfg.ForwardMetadata {
		payload.Metadata = msg.Metadata
	}
	err := adapters.DoJSON(ctx, a.client, "webhook", adapters.JSONRequest{
		Method:    a.cfg.Method,
		URL:       endpoint,
		Bearer:    msg.Credential("token"),
		Headers:   a.cfg.Headers,
		BasicAuth: [2]string{a.cfg.BasicAuthUser, a.cfg.BasicAuthPass},
		Body:      payload,
	}, nil)
	if err != nil {
		return err
	}
	a.report.Delivered(msg)
	return nil
}
