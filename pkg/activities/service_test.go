package activities

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/goliatone/go-activities/internal/storage/memory"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/goliatone/go-activities/pkg/templates"
	"github.com/google/uuid"
)

type article struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PubState string `json:"pub_state"`
}

func (a *article) SubjectType() domain.SubjectType { return domain.NewSubjectType("blogs", "article") }
func (a *article) SubjectID() string               { return a.ID }

var articleType = domain.NewSubjectType("blogs", "article")

type fixture struct {
	svc      *Service
	registry *Registry
	repo     *memory.ActivityRepository
	loader   *templates.MapLoader
}

func newFixture(t *testing.T, mediator *Mediator, settings *NotificationSettings) fixture {
	t.Helper()
	registry := NewRegistry()
	if mediator != nil {
		if err := registry.Register(articleType, mediator); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	repo := memory.NewActivityRepository()
	loader := templates.NewMapLoader(nil)
	tpl, err := templates.New(templates.Dependencies{Loaders: []templates.Loader{loader}})
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	svc, err := New(Dependencies{
		Registry:      registry,
		Activities:    repo,
		Templates:     tpl,
		Notifications: settings,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{svc: svc, registry: registry, repo: repo, loader: loader}
}

func (f fixture) history(t *testing.T, subject domain.Subject) []domain.Activity {
	t.Helper()
	res, err := f.svc.History(context.Background(), subject, store.ListOptions{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return res.Items
}

func TestServiceCreateRecordsSnapshot(t *testing.T) {
	f := newFixture(t, NewMediator(nil), nil)
	subject := &article{ID: "1", Title: "Hello", PubState: "public"}

	activity, err := f.svc.OnSave(context.Background(), subject, true)
	if err != nil {
		t.Fatalf("on save: %v", err)
	}
	if activity == nil || activity.Status != domain.StatusCreated {
		t.Fatalf("expected created activity, got %+v", activity)
	}
	items := f.history(t, subject)
	if len(items) != 1 {
		t.Fatalf("expected one activity, got %d", len(items))
	}
	fields, err := snapshot.Of(&items[0])
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	want, _ := snapshot.FieldsOf(snapshot.CodecJSON, subject)
	for key, value := range want {
		if !snapshot.Equal(fields[key], value) {
			t.Fatalf("snapshot field %s: got %v want %v", key, fields[key], value)
		}
	}
	if items[0].PreviousID != uuid.Nil || activity.Previous != nil {
		t.Fatalf("first activity should have no previous")
	}
}

func TestServiceDeleteIsNewestAndLinked(t *testing.T) {
	f := newFixture(t, NewMediator(nil), nil)
	subject := &article{ID: "1", Title: "Hello"}
	ctx := context.Background()

	created, _ := f.svc.OnSave(ctx, subject, true)
	subject.Title = "Hello again"
	updated, _ := f.svc.OnSave(ctx, subject, false)
	deleted, err := f.svc.OnDelete(ctx, subject)
	if err != nil {
		t.Fatalf("on delete: %v", err)
	}
	if updated.PreviousID != created.ID || deleted.PreviousID != updated.ID {
		t.Fatalf("expected previous chain created <- updated <- deleted")
	}

	latest, err := f.repo.LatestBySubject(ctx, articleType.String(), "1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != deleted.ID || latest.Status != domain.StatusDeleted {
		t.Fatalf("expected deleted activity to be newest, got %s", latest.Status)
	}
	fields, _ := snapshot.Of(latest)
	if fields["title"] != "Hello again" {
		t.Fatalf("expected snapshot captured before delete, got %v", fields["title"])
	}
	items := f.history(t, subject)
	got := []string{items[0].Status, items[1].Status, items[2].Status}
	if !slices.Equal(got, []string{"deleted", "updated", "created"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestServiceIgnoresUnregisteredTypes(t *testing.T) {
	f := newFixture(t, nil, nil)
	activity, err := f.svc.OnSave(context.Background(), &article{ID: "1"}, true)
	if err != nil || activity != nil {
		t.Fatalf("expected no activity and no error, got %v %v", activity, err)
	}
}

func TestServiceRejectsInvalidSubject(t *testing.T) {
	f := newFixture(t, NewMediator(nil), nil)
	if _, err := f.svc.OnSave(context.Background(), &article{}, true); !errors.Is(err, ErrInvalidSubject) {
		t.Fatalf("expected ErrInvalidSubject, got %v", err)
	}
}

func TestServiceSuppressionLeavesNoTrace(t *testing.T) {
	policy := PolicyFunc(func(_ context.Context, subject domain.Subject, draft *domain.Activity, _ Event) (*domain.Activity, error) {
		if subject.(*article).PubState == "draft" {
			return nil, nil
		}
		if draft.Previous == nil {
			draft.Status = domain.StatusCreated
		}
		return draft, nil
	})
	f := newFixture(t, NewMediator(policy), nil)
	subject := &article{ID: "1", PubState: "draft"}
	ctx := context.Background()

	if activity, _ := f.svc.OnSave(ctx, subject, true); activity != nil {
		t.Fatalf("draft should be suppressed")
	}
	if len(f.history(t, subject)) != 0 {
		t.Fatalf("expected no activities while draft")
	}
	subject.PubState = "public"
	activity, err := f.svc.OnSave(ctx, subject, false)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if activity.Status != domain.StatusCreated {
		t.Fatalf("expected first visible activity to be created, got %s", activity.Status)
	}
	if len(f.history(t, subject)) != 1 {
		t.Fatalf("expected exactly one activity")
	}
}

func TestServiceAlterErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	policy := PolicyFunc(func(context.Context, domain.Subject, *domain.Activity, Event) (*domain.Activity, error) {
		return nil, boom
	})
	f := newFixture(t, NewMediator(policy), nil)
	subject := &article{ID: "1"}
	if _, err := f.svc.OnSave(context.Background(), subject, true); !errors.Is(err, boom) {
		t.Fatalf("expected alter error, got %v", err)
	}
	if len(f.history(t, subject)) != 0 {
		t.Fatalf("nothing should be persisted when alter fails")
	}
}

func TestServiceRelationChangeBuildsActivity(t *testing.T) {
	policy := PolicyFunc(func(_ context.Context, subject domain.Subject, draft *domain.Activity, evt Event) (*domain.Activity, error) {
		if draft != nil {
			return draft, nil
		}
		if evt.Action != ActionPostAdd {
			return nil, nil
		}
		activity := NewActivity(subject, "user_add")
		activity.SetRemarks(evt.Keys...)
		return activity, nil
	})
	f := newFixture(t, NewMediator(policy), nil)
	subject := &article{ID: "1"}
	ctx := context.Background()

	created, _ := f.svc.OnSave(ctx, subject, true)
	if activity, _ := f.svc.OnRelationChange(ctx, subject, ActionPreAdd, "personas.persona", "7", "9"); activity != nil {
		t.Fatalf("pre_add should be suppressed")
	}
	activity, err := f.svc.OnRelationChange(ctx, subject, ActionPostAdd, "personas.persona", "7", "9")
	if err != nil {
		t.Fatalf("relation change: %v", err)
	}
	if activity.Status != "user_add" || activity.Remarks != "7\n9" {
		t.Fatalf("unexpected activity %s %q", activity.Status, activity.Remarks)
	}
	if activity.PreviousID != created.ID {
		t.Fatalf("expected relation activity to link to the created one")
	}
	if activity.Snapshot.IsZero() {
		t.Fatalf("expected snapshot attached to policy built activity")
	}
	if len(f.history(t, subject)) != 2 {
		t.Fatalf("expected two activities")
	}
}

type recordingNotifier struct {
	name      string
	err       error
	panics    bool
	delegated bool
	calls     []*domain.Activity
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.calls = append(n.calls, notification.Activity)
	if n.panics {
		panic("notifier exploded")
	}
	return n.err
}

func (n *recordingNotifier) DelegatedCredentials() bool { return n.delegated }

func TestServiceNotifierFailuresAreIsolated(t *testing.T) {
	failing := &recordingNotifier{name: "failing", err: errors.New("smtp down")}
	panicking := &recordingNotifier{name: "panicking", panics: true}
	healthy := &recordingNotifier{name: "healthy"}
	f := newFixture(t, NewMediator(nil, WithNotifiers(failing, panicking, healthy)), nil)
	subject := &article{ID: "1"}

	activity, err := f.svc.OnSave(context.Background(), subject, true)
	if err != nil {
		t.Fatalf("notifier failure must not fail the save: %v", err)
	}
	if len(failing.calls) != 1 || len(panicking.calls) != 1 || len(healthy.calls) != 1 {
		t.Fatalf("expected every notifier called once")
	}
	if healthy.calls[0].ID != activity.ID {
		t.Fatalf("healthy notifier received wrong activity")
	}
	if _, err := f.repo.GetByID(context.Background(), activity.ID); err != nil {
		t.Fatalf("activity should stay persisted: %v", err)
	}

	err = f.svc.Dispatch(context.Background(), f.svc.registry.mustGet(t, articleType), activity, SaveEvent(true))
	if err == nil || !strings.Contains(err.Error(), "smtp down") || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected joined notifier errors, got %v", err)
	}
}

func TestServiceNotificationSwitches(t *testing.T) {
	plain := &recordingNotifier{name: "plain"}
	delegated := &recordingNotifier{name: "twitter", delegated: true}
	mediator := func() *Mediator { return NewMediator(nil, WithNotifiers(plain, delegated)) }

	f := newFixture(t, mediator(), nil)
	if _, err := f.svc.OnSave(context.Background(), &article{ID: "1"}, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(plain.calls) != 1 || len(delegated.calls) != 0 {
		t.Fatalf("delegated notifier should be skipped without oauth")
	}

	f = newFixture(t, mediator(), &NotificationSettings{Enabled: true, OAuthEnabled: true})
	if _, err := f.svc.OnSave(context.Background(), &article{ID: "2"}, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(delegated.calls) != 1 {
		t.Fatalf("delegated notifier should run with oauth enabled")
	}

	f = newFixture(t, mediator(), &NotificationSettings{})
	if _, err := f.svc.OnSave(context.Background(), &article{ID: "3"}, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(plain.calls) != 2 {
		t.Fatalf("dispatch should be disabled, got %d calls", len(plain.calls))
	}
}

func TestServiceRenderUsesCandidates(t *testing.T) {
	f := newFixture(t, NewMediator(nil), nil)
	f.loader.Set("activities/created.html", "{{ activity.status }}: {{ object.title }}")
	f.loader.Set("activities/blogs/created.twitter.txt", "[{{ typename }}] {{ object.title }} {{ suffix }}")
	ctx := context.Background()

	activity, err := f.svc.OnSave(ctx, &article{ID: "1", Title: "Hello"}, true)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := f.svc.Render(ctx, activity, nil, "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "created: Hello" {
		t.Fatalf("unexpected render %q", out)
	}
	out, err = f.svc.Render(ctx, activity, map[string]any{"suffix": "#kawaz"}, "twitter")
	if err != nil {
		t.Fatalf("render twitter: %v", err)
	}
	if out != "[twitter] Hello #kawaz" {
		t.Fatalf("unexpected twitter render %q", out)
	}

	activity.Status = "archived"
	if _, err := f.svc.Render(ctx, activity, nil, "email"); !errors.Is(err, templates.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestServiceRenderUnknownType(t *testing.T) {
	f := newFixture(t, NewMediator(nil), nil)
	_, err := f.svc.Render(context.Background(), &domain.Activity{SubjectType: "misc.thing", Status: "created"}, nil, "")
	if !errors.Is(err, ErrMediatorNotFound) {
		t.Fatalf("expected ErrMediatorNotFound, got %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Dependencies{}); !errors.Is(err, ErrMissingRegistry) {
		t.Fatalf("expected ErrMissingRegistry, got %v", err)
	}
	if _, err := New(Dependencies{Registry: NewRegistry()}); !errors.Is(err, ErrMissingRepository) {
		t.Fatalf("expected ErrMissingRepository, got %v", err)
	}
	_, err := New(Dependencies{
		Registry:   NewRegistry(),
		Activities: memory.NewActivityRepository(),
		Templates:  stubRenderer{},
		Codec:      "xml",
	})
	if !errors.Is(err, snapshot.ErrUnknownCodec) {
		t.Fatalf("expected ErrUnknownCodec, got %v", err)
	}
}

type stubRenderer struct{}

func (stubRenderer) Render(context.Context, []string, map[string]any) (string, error) {
	return "", nil
}

func (r *Registry) mustGet(t *testing.T, st domain.SubjectType) *Mediator {
	t.Helper()
	m, ok := r.ForType(st)
	if !ok {
		t.Fatalf("mediator for %s not registered", st)
	}
	return m
}
