// Package slack posts activities to a Slack channel with chat.postMessage.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
)

const defaultBaseURL = "https://slack.com/api"

// Config holds Slack API settings. Token is a fallback for the "token"
// credential.
type Config struct {
	Token   string
	Channel string
	BaseURL string
	Timeout time.Duration
	DryRun  bool
}

// Adapter posts activities to Slack.
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

// WithConfig sets adapter configuration.
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

// New constructs the Slack adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{name: "slack"}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	if adapter.cfg.BaseURL == "" {
		adapter.cfg.BaseURL = defaultBaseURL
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
		Channels: []string{"slack", "chat"},
		Formats:  []string{"text/plain"},
	}
}

type postMessage struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	Mrkdwn   bool   `json:"mrkdwn"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	channel := adapters.FirstNonEmpty(msg.Meta("slack_channel"), a.cfg.Channel)
	if channel == "" {
		return errors.New("slack: channel required")
	}
	text := strings.TrimSpace(msg.Body)
	if text == "" {
		return errors.New("slack: message body required")
	}
	if a.cfg.DryRun {
		a.report.Skipped(msg, logger.Field{Key: "slack_channel", Value: channel})
		return nil
	}
	token := adapters.FirstNonEmpty(msg.Credential("token", "default"), a.cfg.Token)
	if token == "" {
		return errors.New("slack: token required")
	}

	// Slack answers 200 with ok=false on logical errors.
	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	err := adapters.DoJSON(ctx, a.client, "slack", adapters.JSONRequest{
		URL:    strings.TrimRight(a.cfg.BaseURL, "/") + "/chat.postMessage",
		Bearer: token,
		Body:   postMessage{Channel: channel, Text: text, Mrkdwn: true, ThreadTS: msg.Meta("thread_ts")},
	}, &resp)
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("slack: api error: %s", resp.Error)
	}
	a.report.Delivered(msg, logger.Field{Key: "slack_channel", Value: channel})
	return nil
}
