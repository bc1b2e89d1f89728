package activities

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/options"
)

// Policy decides the fate of an activity. draft is nil for relation changes,
// in which case the policy builds the activity itself. Returning nil
// suppresses recording.
type Policy interface {
	Alter(ctx context.Context, subject domain.Subject, draft *domain.Activity, evt Event) (*domain.Activity, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, subject domain.Subject, draft *domain.Activity, evt Event) (*domain.Activity, error)

func (f PolicyFunc) Alter(ctx context.Context, subject domain.Subject, draft *domain.Activity, evt Event) (*domain.Activity, error) {
	return f(ctx, subject, draft, evt)
}

// DefaultPolicy records every draft unchanged and ignores relation changes.
type DefaultPolicy struct{}

func (DefaultPolicy) Alter(_ context.Context, _ domain.Subject, draft *domain.Activity, _ Event) (*domain.Activity, error) {
	return draft, nil
}

// ContextPreparer is implemented by policies that add template context.
type ContextPreparer interface {
	PrepareContext(ctx context.Context, activity *domain.Activity, data map[string]any) (map[string]any, error)
}

// Notifier delivers a persisted activity to an external backend.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// DelegatedNotifier is implemented by notifiers that post with user
// delegated credentials. They only run when oauth notifications are enabled.
type DelegatedNotifier interface {
	DelegatedCredentials() bool
}

// NotifierLookup resolves notifiers by configured name.
type NotifierLookup interface {
	Lookup(name string) (Notifier, bool)
}

// ErrNotifierNotFound is returned when a configured notifier name is unknown.
var ErrNotifierNotFound = errors.New("activities: notifier not found")

// ResolveNotifiers looks up every name, in order.
func ResolveNotifiers(lookup NotifierLookup, names ...string) ([]Notifier, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if lookup == nil {
		return nil, fmt.Errorf("%w: no lookup for %s", ErrNotifierNotFound, strings.Join(names, ", "))
	}
	out := make([]Notifier, 0, len(names))
	for _, name := range names {
		n, ok := lookup.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotifierNotFound, name)
		}
		out = append(out, n)
	}
	return out, nil
}

// Notification is what notifiers receive after an activity is persisted.
type Notification struct {
	Activity *domain.Activity
	Event    Event
	Mediator *Mediator
	Renderer Renderer
}

// Render renders the notification activity for channel.
func (n Notification) Render(ctx context.Context, data map[string]any, channel string) (string, error) {
	if n.Renderer == nil {
		return "", errors.New("activities: notification has no renderer")
	}
	return n.Renderer.Render(ctx, n.Activity, data, channel)
}

// Renderer renders activities, see Service.Render.
type Renderer interface {
	Render(ctx context.Context, activity *domain.Activity, data map[string]any, channel string) (string, error)
}

// Mediator binds a policy, notifiers and template settings to one subject type.
type Mediator struct {
	mu          sync.RWMutex
	policy      Policy
	notifiers   []Notifier
	extensions  options.ExtensionSet
	subjectType domain.SubjectType
	templates   TemplateSettings
	resolver    *options.ExtensionResolver
}

// MediatorOption configures a Mediator.
type MediatorOption func(*Mediator)

// WithNotifiers sets the ordered notifier list.
func WithNotifiers(notifiers ...Notifier) MediatorOption {
	return func(m *Mediator) {
		for _, n := range notifiers {
			if n != nil {
				m.notifiers = append(m.notifiers, n)
			}
		}
	}
}

// WithDefaultExtension overrides the configured default template extension.
func WithDefaultExtension(ext string) MediatorOption {
	return func(m *Mediator) {
		m.extensions.Default = ext
	}
}

// WithChannelExtension overrides the template extension for one channel.
func WithChannelExtension(channel, ext string) MediatorOption {
	return func(m *Mediator) {
		if m.extensions.Channels == nil {
			m.extensions.Channels = map[string]string{}
		}
		m.extensions.Channels[channel] = ext
	}
}

// NewMediator builds a mediator around policy. A nil policy means DefaultPolicy.
func NewMediator(policy Policy, opts ...MediatorOption) *Mediator {
	if policy == nil {
		policy = DefaultPolicy{}
	}
	m := &Mediator{policy: policy}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// bind is called by the registry on registration.
func (m *Mediator) bind(subjectType domain.SubjectType, settings TemplateSettings) error {
	resolver, err := options.NewExtensionResolver(settings.Extensions, m.extensions)
	if err != nil {
		return fmt.Errorf("activities: extension layers for %s: %w", subjectType, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.subjectType.IsZero() && m.subjectType != subjectType {
		return fmt.Errorf("activities: mediator already bound to %s", m.subjectType)
	}
	m.subjectType = subjectType
	m.templates = settings.withDefaults()
	m.resolver = resolver
	return nil
}

// SubjectType returns the bound type, zero before registration.
func (m *Mediator) SubjectType() domain.SubjectType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subjectType
}

// Policy returns the wrapped policy.
func (m *Mediator) Policy() Policy {
	return m.policy
}

// Notifiers returns a copy of the notifier list.
func (m *Mediator) Notifiers() []Notifier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Notifier(nil), m.notifiers...)
}

// useDefaultNotifiers installs notifiers only when none were configured.
func (m *Mediator) useDefaultNotifiers(notifiers []Notifier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.notifiers) > 0 || len(notifiers) == 0 {
		return false
	}
	m.notifiers = append([]Notifier(nil), notifiers...)
	return true
}

// Alter runs the policy.
func (m *Mediator) Alter(ctx context.Context, subject domain.Subject, draft *domain.Activity, evt Event) (*domain.Activity, error) {
	return m.policy.Alter(ctx, subject, draft, evt)
}

// PrepareContext fills the base template context and lets the policy extend it.
func (m *Mediator) PrepareContext(ctx context.Context, activity *domain.Activity, data map[string]any, channel string) (map[string]any, error) {
	out := make(map[string]any, len(data)+4)
	maps.Copy(out, data)
	object, err := snapshotFields(activity)
	if err != nil {
		return nil, err
	}
	out["activity"] = activityView(activity)
	out["object"] = object
	out["typename"] = channel
	if preparer, ok := m.policy.(ContextPreparer); ok {
		return preparer.PrepareContext(ctx, activity, out)
	}
	return out, nil
}

// TemplateExtension resolves the extension for channel.
func (m *Mediator) TemplateExtension(channel string) string {
	m.mu.RLock()
	resolver := m.resolver
	m.mu.RUnlock()
	if resolver == nil {
		return options.DefaultExtension
	}
	return resolver.Extension(channel)
}

// TemplateNames lists candidate templates for activity, most specific first.
// With a channel the channel qualified names come first, followed by the
// same three names without the channel.
func (m *Mediator) TemplateNames(activity *domain.Activity, channel string) []string {
	m.mu.RLock()
	root := m.templates.withDefaults().Root
	subjectType := m.subjectType
	m.mu.RUnlock()

	if activity != nil {
		if st := activity.Type(); !st.IsZero() {
			subjectType = st
		}
	}
	status := ""
	if activity != nil {
		status = activity.Status
	}
	ext := m.TemplateExtension(channel)
	channel = strings.TrimSpace(channel)

	build := func(suffix string) []string {
		return []string{
			fmt.Sprintf("%s/%s/%s_%s%s%s", root, subjectType.App, subjectType.Entity, status, suffix, ext),
			fmt.Sprintf("%s/%s/%s%s%s", root, subjectType.App, status, suffix, ext),
			fmt.Sprintf("%s/%s%s%s", root, status, suffix, ext),
		}
	}
	if channel == "" {
		return build("")
	}
	return append(build("."+channel), build("")...)
}

// NewActivity builds an activity for subject with status. Policies use it to
// synthesize activities for relation changes.
func NewActivity(subject domain.Subject, status string) *domain.Activity {
	activity := &domain.Activity{Status: status}
	if subject != nil {
		activity.SubjectType = subject.SubjectType().String()
		activity.SubjectID = subject.SubjectID()
	}
	return activity
}

func activityView(activity *domain.Activity) map[string]any {
	if activity == nil {
		return map[string]any{}
	}
	view := map[string]any{
		"id":           activity.ID.String(),
		"subject_type": activity.SubjectType,
		"subject_id":   activity.SubjectID,
		"status":       activity.Status,
		"remarks":      activity.Remarks,
		"remark_list":  activity.RemarkTokens(),
		"created_at":   activity.CreatedAt,
	}
	if activity.Previous != nil {
		view["previous_id"] = activity.Previous.ID.String()
	}
	return view
}
