package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/adapters"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/retry"
	"github.com/goliatone/go-activities/pkg/secrets"
)

type fakeMessenger struct {
	name      string
	caps      adapters.Capability
	failures  int
	sent      []adapters.Message
	delegated bool
}

func (f *fakeMessenger) Name() string                      { return f.name }
func (f *fakeMessenger) Capabilities() adapters.Capability { return f.caps }
func (f *fakeMessenger) DelegatedCredentials() bool        { return f.delegated }

func (f *fakeMessenger) Send(_ context.Context, msg adapters.Message) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary outage")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type staticRenderer string

func (r staticRenderer) Render(context.Context, *domain.Activity, map[string]any, string) (string, error) {
	return string(r), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func boundMediator(t *testing.T) *activities.Mediator {
	t.Helper()
	m := activities.NewMediator(nil)
	reg := activities.NewRegistry()
	if err := reg.Register(domain.NewSubjectType("events", "event"), m); err != nil {
		t.Fatalf("register: %v", err)
	}
	return m
}

func notification(t *testing.T, body string) activities.Notification {
	t.Helper()
	return activities.Notification{
		Activity: &domain.Activity{
			ID:          domain.NewID(),
			SubjectType: "events.event",
			SubjectID:   "1",
			Status:      domain.StatusCreated,
		},
		Event:    activities.SaveEvent(true),
		Mediator: boundMediator(t),
		Renderer: staticRenderer(body),
	}
}

func TestMessengerConvertsHTMLForTextOnlyBackends(t *testing.T) {
	m := &fakeMessenger{name: "slack", caps: adapters.Capability{Channels: []string{"slack"}, Formats: []string{"text/plain"}}}
	n, err := NewMessenger(MessengerDependencies{Messenger: m})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if n.Channel() != "slack" {
		t.Fatalf("expected channel from capabilities, got %q", n.Channel())
	}
	if err := n.Notify(context.Background(), notification(t, "<p>New <b>event</b></p>")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if msg.Format != "text/plain" || strings.Contains(msg.Body, "<") || !strings.Contains(msg.Body, "event") {
		t.Fatalf("expected plain text body, got %q (%s)", msg.Body, msg.Format)
	}
	if msg.SubjectType != "events.event" || msg.Status != domain.StatusCreated {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestMessengerTruncatesToMaxLength(t *testing.T) {
	m := &fakeMessenger{name: "twitter", caps: adapters.Capability{Channels: []string{"twitter"}, Formats: []string{"text/plain"}, MaxLength: 10}}
	n, _ := NewMessenger(MessengerDependencies{Messenger: m})
	if err := n.Notify(context.Background(), notification(t, strings.Repeat("x", 40))); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := len([]rune(m.sent[0].Body)); got > 10 {
		t.Fatalf("expected at most 10 runes, got %d", got)
	}
}

func TestMessengerResolvesCredentials(t *testing.T) {
	ref := secrets.Reference{Scope: secrets.ScopeSystem, Owner: SystemOwner, Notifier: "twitter_kawaz_official", Key: "access_token"}
	provider := secrets.NewStaticProvider(map[secrets.Reference]secrets.Value{ref: {Data: []byte("tok")}})
	m := &fakeMessenger{name: "twitter", caps: adapters.Capability{Channels: []string{"twitter"}, Formats: []string{"text/plain"}}}
	n, err := NewMessenger(MessengerDependencies{
		Messenger: m,
		Secrets:   secrets.ScopedResolver{System: provider},
		Config: MessengerConfig{
			Name:           "twitter_kawaz_official",
			CredentialKeys: []string{"access_token"},
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := n.Notify(context.Background(), notification(t, "hello")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got := m.sent[0].Credential("access_token"); got != "tok" {
		t.Fatalf("expected resolved token, got %q", got)
	}
	if n.DelegatedCredentials() {
		t.Fatalf("system scope must not be delegated")
	}
}

func TestMessengerRequiresOwnerForUserScope(t *testing.T) {
	m := &fakeMessenger{name: "twitter", caps: adapters.Capability{Channels: []string{"twitter"}}}
	n, err := NewMessenger(MessengerDependencies{
		Messenger: m,
		Secrets:   secrets.ScopedResolver{User: secrets.NewStaticProvider(nil)},
		Config: MessengerConfig{
			CredentialKeys:  []string{"access_token"},
			CredentialScope: secrets.ScopeUser,
			Owner:           EventOwner("user_id"),
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !n.DelegatedCredentials() {
		t.Fatalf("user scope should be delegated")
	}
	if err := n.Notify(context.Background(), notification(t, "hi")); !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("expected missing owner, got %v", err)
	}
}

func TestMessengerRetriesFailedSends(t *testing.T) {
	m := &fakeMessenger{name: "webhook", failures: 2, caps: adapters.Capability{Channels: []string{"webhook"}}}
	n, _ := NewMessenger(MessengerDependencies{
		Messenger: m,
		Config:    MessengerConfig{Retry: retry.Policy{MaxAttempts: 3, Sleep: noSleep}},
	})
	if err := n.Notify(context.Background(), notification(t, "ping")); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %+v", m.sent)
	}

	m.failures = 5
	if err := n.Notify(context.Background(), notification(t, "ping")); err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
}

func TestMessengerDelegatedByBackend(t *testing.T) {
	m := &fakeMessenger{name: "twitter", delegated: true}
	n, _ := NewMessenger(MessengerDependencies{Messenger: m})
	if !n.DelegatedCredentials() {
		t.Fatalf("expected delegated backend to mark notifier delegated")
	}
	if _, err := NewMessenger(MessengerDependencies{}); !errors.Is(err, ErrMissingMessenger) {
		t.Fatalf("expected missing messenger, got %v", err)
	}
}
