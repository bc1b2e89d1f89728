package commands

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-activities/internal/storage/memory"
	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/mediators/events"
	"github.com/goliatone/go-activities/pkg/templates"
)

type fixture struct {
	catalog *Catalog
	subject map[string]*events.Event
	tpl     *templates.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	registry := activities.NewRegistry()
	if err := registry.Register(events.SubjectType, events.NewMediator(events.Dependencies{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	tplSvc, err := templates.New(templates.Dependencies{Repository: memory.NewTemplateRepository()})
	if err != nil {
		t.Fatalf("templates service: %v", err)
	}
	svc, err := activities.New(activities.Dependencies{
		Registry:   registry,
		Activities: memory.NewActivityRepository(),
		Templates:  tplSvc,
	})
	if err != nil {
		t.Fatalf("activities service: %v", err)
	}
	subjects := map[string]*events.Event{}
	resolver := SubjectResolverFunc(func(_ context.Context, st domain.SubjectType, id string) (domain.Subject, error) {
		if st != events.SubjectType {
			return nil, errors.New("unknown type")
		}
		e, ok := subjects[id]
		if !ok {
			return nil, errors.New("unknown event")
		}
		return e, nil
	})
	cat, err := NewCatalog(Dependencies{Activities: svc, Templates: tplSvc, Subjects: resolver})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return fixture{catalog: cat, subject: subjects, tpl: tplSvc}
}

func TestCatalogRecordsAndRenders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.subject["5"] = &events.Event{ID: 5, Title: "Game jam", PubState: events.PubStatePublic}
	ref := SubjectRef{SubjectType: "events.event", SubjectID: "5"}

	err := f.catalog.SaveTemplate.Execute(ctx, TemplateUpsert{TemplateInput: templates.TemplateInput{
		Name: "activities/events/event_created.html",
		Body: "{{ object.title }} is open",
	}})
	if err != nil {
		t.Fatalf("save template: %v", err)
	}

	created := &Result{}
	if err := f.catalog.RecordSave.Execute(ctx, RecordSave{SubjectRef: ref, Created: true, Result: created}); err != nil {
		t.Fatalf("record save: %v", err)
	}
	if created.Activity == nil || created.Activity.Status != domain.StatusCreated {
		t.Fatalf("expected created activity, got %+v", created.Activity)
	}

	var out string
	if err := f.catalog.RenderActivity.Execute(ctx, RenderActivity{ActivityID: created.Activity.ID.String(), Output: &out}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(out) != "Game jam is open" {
		t.Fatalf("unexpected render %q", out)
	}

	added := &Result{}
	err = f.catalog.RecordRelation.Execute(ctx, RecordRelation{
		SubjectRef:  ref,
		Action:      "post_add",
		RelatedType: events.PersonaType,
		Keys:        []string{"7"},
		Result:      added,
	})
	if err != nil {
		t.Fatalf("record relation: %v", err)
	}
	if added.Activity == nil || added.Activity.Status != events.StatusUserAdd {
		t.Fatalf("expected user_add, got %+v", added.Activity)
	}

	deleted := &Result{}
	if err := f.catalog.RecordDelete.Execute(ctx, RecordDelete{SubjectRef: ref, Result: deleted}); err != nil {
		t.Fatalf("record delete: %v", err)
	}
	if deleted.Activity == nil || deleted.Activity.PreviousID != added.Activity.ID {
		t.Fatalf("expected delete linked to user_add, got %+v", deleted.Activity)
	}

	if err := f.catalog.DeleteTemplate.Execute(ctx, TemplateDelete{Name: "activities/events/event_created.html"}); err != nil {
		t.Fatalf("delete template: %v", err)
	}
}

func TestCatalogRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.catalog.RecordSave.Execute(ctx, RecordSave{SubjectRef: SubjectRef{SubjectType: "events", SubjectID: "1"}}); err == nil {
		t.Fatalf("expected invalid subject type error")
	}
	if err := f.catalog.RecordSave.Execute(ctx, RecordSave{SubjectRef: SubjectRef{SubjectType: "events.event", SubjectID: "404"}}); err == nil {
		t.Fatalf("expected resolver error")
	}
	f.subject["1"] = &events.Event{ID: 1, PubState: events.PubStatePublic}
	err := f.catalog.RecordRelation.Execute(ctx, RecordRelation{
		SubjectRef: SubjectRef{SubjectType: "events.event", SubjectID: "1"},
		Action:     "replace",
	})
	if err == nil {
		t.Fatalf("expected unknown action error")
	}
	if err := f.catalog.RenderActivity.Execute(ctx, RenderActivity{ActivityID: "nope", Output: new(string)}); err == nil {
		t.Fatalf("expected bad id error")
	}
	if _, err := NewCatalog(Dependencies{}); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}
