// Package twitter posts activities as tweets through the v2 API.
package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
)

// MaxTweetLength is the length limit applied before posting.
const MaxTweetLength = 280

const defaultBaseURL = "https://api.twitter.com/2"

// Config holds API settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	DryRun  bool
}

// Adapter creates tweets with an OAuth 2.0 user access token taken from the
// "access_token" credential.
type Adapter struct {
	name      string
	cfg       Config
	client    *http.Client
	delegated bool
	report    adapters.Reporter
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

// WithDelegatedCredentials marks the adapter as posting on behalf of members.
func WithDelegatedCredentials(enabled bool) Option {
	return func(a *Adapter) {
		a.delegated = enabled
	}
}

// New constructs the Twitter adapter.
func New(l logger.Logger, opts ...Option) *Adapter {
	adapter := &Adapter{name: "twitter"}
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
		Name:      a.name,
		Channels:  []string{"twitter"},
		Formats:   []string{"text/plain"},
		MaxLength: MaxTweetLength,
	}
}

// DelegatedCredentials reports whether tweets use member tokens.
func (a *Adapter) DelegatedCredentials() bool { return a.delegated }

func (a *Adapter) Send(ctx context.Context, msg adapters.Message) error {
	text := adapters.Truncate(strings.TrimSpace(msg.Body), MaxTweetLength)
	if text == "" {
		return errors.New("twitter: tweet text required")
	}
	if a.cfg.DryRun {
		a.report.Skipped(msg, logger.Field{Key: "length", Value: len([]rune(text))})
		return nil
	}
	token := msg.Credential("access_token", "token")
	if token == "" {
		return errors.New("twitter: access token required")
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := adapters.DoJSON(ctx, a.client, "twitter", adapters.JSONRequest{
		URL:    strings.TrimRight(a.cfg.BaseURL, "/") + "/tweets",
		Bearer: token,
		Body:   map[string]string{"text": text},
	}, &created)
	if err != nil {
		return problem(err)
	}
	a.report.Delivered(msg, logger.Field{Key: "tweet_id", Value: created.Data.ID})
	return nil
}

// problem adds the API problem detail to status errors.
func problem(err error) error {
	var status *adapters.StatusError
	if !errors.As(err, &status) {
		return err
	}
	var detail struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(status.Body, &detail)
	if msg := adapters.FirstNonEmpty(detail.Detail, detail.Title); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}
