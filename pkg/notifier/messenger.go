package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/retry"
	"github.com/goliatone/go-activities/pkg/secrets"
	"github.com/jaytaylor/html2text"
)

const (
	formatText = "text/plain"
	formatHTML = "text/html"

	// SystemOwner owns site wide credentials.
	SystemOwner = "system"
)

var (
	ErrMissingMessenger = errors.New("notifier: messenger is required")
	ErrMissingOwner     = errors.New("notifier: credential owner unknown")
)

// MessengerConfig configures a MessengerNotifier.
type MessengerConfig struct {
	// Name defaults to the messenger name.
	Name string
	// Channel is the template typename, defaults to the first messenger channel.
	Channel string
	To      string
	// CredentialKeys lists the secrets resolved before each send.
	CredentialKeys []string
	// CredentialScope defaults to secrets.ScopeSystem.
	CredentialScope secrets.Scope
	// Owner picks the credential owner, SystemOwner when nil.
	Owner func(n activities.Notification) string
	// Data is merged into the template context.
	Data  map[string]any
	Retry retry.Policy
}

// MessengerDependencies wires a MessengerNotifier.
type MessengerDependencies struct {
	Messenger adapters.Messenger
	Secrets   secrets.Resolver
	Logger    logger.Logger
	Config    MessengerConfig
}

// MessengerNotifier renders an activity for its channel and hands it to a
// messenger adapter, retrying failed sends.
type MessengerNotifier struct {
	name      string
	channel   string
	messenger adapters.Messenger
	secrets   secrets.Resolver
	logger    logger.Logger
	cfg       MessengerConfig
}

var (
	_ activities.Notifier          = (*MessengerNotifier)(nil)
	_ activities.DelegatedNotifier = (*MessengerNotifier)(nil)
)

// NewMessenger builds a messenger backed notifier.
func NewMessenger(deps MessengerDependencies) (*MessengerNotifier, error) {
	if deps.Messenger == nil {
		return nil, ErrMissingMessenger
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	cfg := deps.Config
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = deps.Messenger.Name()
	}
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		if channels := deps.Messenger.Capabilities().Channels; len(channels) > 0 {
			channel = channels[0]
		}
	}
	if cfg.CredentialScope == "" {
		cfg.CredentialScope = secrets.ScopeSystem
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if len(cfg.CredentialKeys) > 0 && deps.Secrets == nil {
		return nil, fmt.Errorf("notifier: %s needs a secrets resolver", name)
	}
	return &MessengerNotifier{
		name:      name,
		channel:   channel,
		messenger: deps.Messenger,
		secrets:   deps.Secrets,
		logger:    deps.Logger.With(logger.Field{Key: "notifier", Value: name}),
		cfg:       cfg,
	}, nil
}

func (n *MessengerNotifier) Name() string { return n.name }

// Channel returns the template typename.
func (n *MessengerNotifier) Channel() string { return n.channel }

// DelegatedCredentials reports whether sends use member delegated tokens.
func (n *MessengerNotifier) DelegatedCredentials() bool {
	if d, ok := n.messenger.(activities.DelegatedNotifier); ok && d.DelegatedCredentials() {
		return true
	}
	return n.cfg.CredentialScope == secrets.ScopeUser
}

// Notify renders, resolves credentials and sends.
func (n *MessengerNotifier) Notify(ctx context.Context, notification activities.Notification) error {
	activity := notification.Activity
	if activity == nil {
		return errors.New("notifier: notification without activity")
	}
	data := make(map[string]any, len(n.cfg.Data)+1)
	for k, v := range n.cfg.Data {
		data[k] = v
	}
	data["notifier"] = n.name

	body, err := notification.Render(ctx, data, n.channel)
	if err != nil {
		return fmt.Errorf("render %s: %w", n.channel, err)
	}
	body, format, err := n.format(notification, body)
	if err != nil {
		return err
	}
	credentials, err := n.credentials(ctx, notification)
	if err != nil {
		return err
	}

	msg := adapters.Message{
		ID:          activity.ID.String(),
		Channel:     n.channel,
		Provider:    n.messenger.Name(),
		SubjectType: activity.SubjectType,
		SubjectID:   activity.SubjectID,
		Status:      activity.Status,
		Body:        body,
		Format:      format,
		To:          n.cfg.To,
		Credentials: credentials,
		Metadata: map[string]any{
			"remarks": activity.RemarkTokens(),
			"event":   string(notification.Event.Kind),
		},
	}
	return n.cfg.Retry.Do(ctx, func(ctx context.Context, attempt int) error {
		msg.Attempts = attempt
		err := n.messenger.Send(ctx, msg)
		if err != nil {
			n.logger.Warn("delivery error",
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "activity_id", Value: msg.ID},
				logger.Field{Key: "error", Value: err},
			)
		}
		return err
	})
}

func (n *MessengerNotifier) format(notification activities.Notification, body string) (string, string, error) {
	caps := n.messenger.Capabilities()
	format := formatText
	if notification.Mediator != nil && notification.Mediator.TemplateExtension(n.channel) == ".html" {
		format = formatHTML
	}
	if format == formatHTML && !caps.Supports(formatHTML) {
		text, err := html2text.FromString(body, html2text.Options{PrettyTables: true})
		if err != nil {
			return "", "", fmt.Errorf("notifier: html to text: %w", err)
		}
		body, format = text, formatText
	}
	body = strings.TrimSpace(body)
	if caps.MaxLength > 0 {
		body = adapters.Truncate(body, caps.MaxLength)
	}
	return body, format, nil
}

func (n *MessengerNotifier) credentials(ctx context.Context, notification activities.Notification) (map[string]string, error) {
	if len(n.cfg.CredentialKeys) == 0 {
		return nil, nil
	}
	owner := SystemOwner
	if n.cfg.Owner != nil {
		owner = n.cfg.Owner(notification)
	}
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingOwner, n.name)
	}
	refs := make([]secrets.Reference, 0, len(n.cfg.CredentialKeys))
	for _, key := range n.cfg.CredentialKeys {
		refs = append(refs, secrets.Reference{
			Scope:    n.cfg.CredentialScope,
			Owner:    owner,
			Notifier: n.name,
			Key:      key,
		})
	}
	resolved, err := n.secrets.Resolve(ctx, refs...)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	n.logger.Debug("credentials resolved", logger.Field{Key: "credentials", Value: secrets.MaskValues(resolved)})
	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		if val, ok := resolved[ref]; ok {
			out[ref.Key] = val.String()
		}
	}
	return out, nil
}

// EventOwner reads the credential owner from an event value, e.g. the
// member who triggered the activity.
func EventOwner(key string) func(n activities.Notification) string {
	return func(n activities.Notification) string {
		v, ok := n.Event.Value(key)
		if !ok || v == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
