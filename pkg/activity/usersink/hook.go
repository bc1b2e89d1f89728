package usersink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// DefaultName is the registry name of the notifier.
const DefaultName = "user_activity"

// Event value keys read when mapping an activity.
const (
	KeyActorID  = "actor_id"
	KeyUserID   = "user_id"
	KeyTenantID = "tenant_id"
	KeyOrgID    = "org_id"
)

var ErrMissingSink = errors.New("usersink: activity sink is required")

// Notifier forwards recorded activities into a go-users ActivitySink, so
// member facing activity logs include site activities.
type Notifier struct {
	name    string
	channel string
	sink    types.ActivitySink
}

var _ activities.Notifier = (*Notifier)(nil)

// Option configures the notifier.
type Option func(*Notifier)

// WithName overrides DefaultName.
func WithName(name string) Option {
	return func(n *Notifier) {
		if name = strings.TrimSpace(name); name != "" {
			n.name = name
		}
	}
}

// WithChannel sets the record channel, "activities" by default.
func WithChannel(channel string) Option {
	return func(n *Notifier) {
		if channel = strings.TrimSpace(channel); channel != "" {
			n.channel = channel
		}
	}
}

// New builds the notifier.
func New(sink types.ActivitySink, opts ...Option) (*Notifier, error) {
	if sink == nil {
		return nil, ErrMissingSink
	}
	n := &Notifier{name: DefaultName, channel: "activities", sink: sink}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

func (n *Notifier) Name() string { return n.name }

// Notify maps the activity into a types.ActivityRecord and logs it.
func (n *Notifier) Notify(ctx context.Context, notification activities.Notification) error {
	activity := notification.Activity
	if activity == nil {
		return errors.New("usersink: notification without activity")
	}
	evt := notification.Event
	record := types.ActivityRecord{
		ID:         activity.ID,
		UserID:     uuidValue(evt, KeyUserID),
		ActorID:    uuidValue(evt, KeyActorID),
		Verb:       activity.SubjectType + "." + activity.Status,
		ObjectType: activity.SubjectType,
		ObjectID:   activity.SubjectID,
		Channel:    n.channel,
		TenantID:   uuidValue(evt, KeyTenantID),
		OrgID:      uuidValue(evt, KeyOrgID),
		Data:       buildData(notification),
		OccurredAt: activity.CreatedAt,
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	if err := n.sink.Log(ctx, record); err != nil {
		return fmt.Errorf("usersink: log: %w", err)
	}
	return nil
}

func buildData(notification activities.Notification) map[string]any {
	activity := notification.Activity
	data := map[string]any{
		"event":  string(notification.Event.Kind),
		"status": activity.Status,
	}
	if tokens := activity.RemarkTokens(); len(tokens) > 0 {
		data["remarks"] = tokens
	}
	if notification.Event.Action != "" {
		data["action"] = string(notification.Event.Action)
		data["related_type"] = notification.Event.RelatedType
	}
	if activity.PreviousID != uuid.Nil {
		data["previous_id"] = activity.PreviousID.String()
	}
	if fields, err := snapshot.Of(activity); err == nil && len(fields) > 0 {
		data["object"] = fields
	}
	return data
}

func uuidValue(evt activities.Event, key string) uuid.UUID {
	raw, ok := evt.Value(key)
	if !ok || raw == nil {
		return uuid.Nil
	}
	switch v := raw.(type) {
	case uuid.UUID:
		return v
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return uuid.Nil
		}
		return id
	default:
		return uuid.Nil
	}
}
