package events

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/goliatone/go-activities/internal/storage/memory"
	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/goliatone/go-activities/pkg/templates"
)

func newService(t *testing.T, codec string, deps Dependencies) *activities.Service {
	t.Helper()
	registry := activities.NewRegistry()
	if err := registry.Register(SubjectType, NewMediator(deps)); err != nil {
		t.Fatalf("register: %v", err)
	}
	tpl, err := templates.New(templates.Dependencies{Loaders: []templates.Loader{templates.NewMapLoader(nil)}})
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	svc, err := activities.New(activities.Dependencies{
		Registry:   registry,
		Activities: memory.NewActivityRepository(),
		Templates:  tpl,
		Codec:      codec,
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func count(t *testing.T, svc *activities.Service, e *Event) int {
	t.Helper()
	res, err := svc.History(context.Background(), e, store.ListOptions{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	return len(res.Items)
}

func TestDraftIsSuppressedUntilPublished(t *testing.T) {
	svc := newService(t, snapshot.CodecJSON, Dependencies{})
	ctx := context.Background()
	e := &Event{ID: 1, Title: "Game jam", PubState: PubStateDraft}

	if activity, err := svc.OnSave(ctx, e, true); err != nil || activity != nil {
		t.Fatalf("draft create should be suppressed, got %v %v", activity, err)
	}
	if activity, _ := svc.OnSave(ctx, e, false); activity != nil {
		t.Fatalf("draft update should be suppressed")
	}
	if count(t, svc, e) != 0 {
		t.Fatalf("expected no activities for a draft")
	}

	e.PubState = PubStatePublic
	activity, err := svc.OnSave(ctx, e, false)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if activity == nil || activity.Status != domain.StatusCreated {
		t.Fatalf("expected created on first visible save, got %+v", activity)
	}
	if count(t, svc, e) != 1 {
		t.Fatalf("expected exactly one activity")
	}
}

func TestWatchedFieldChanges(t *testing.T) {
	for _, codec := range []string{snapshot.CodecJSON, snapshot.CodecMsgPack} {
		t.Run(codec, func(t *testing.T) {
			svc := newService(t, codec, Dependencies{})
			ctx := context.Background()
			start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
			e := &Event{ID: 2, Title: "Meetup", PubState: PubStatePublic, PeriodStart: &start}

			if _, err := svc.OnSave(ctx, e, true); err != nil {
				t.Fatalf("create: %v", err)
			}

			e.Place = "Tokyo"
			activity, err := svc.OnSave(ctx, e, false)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if activity == nil || activity.Status != domain.StatusUpdated || activity.Remarks != "place_created" {
				t.Fatalf("expected place_created, got %+v", activity)
			}

			e.Title = "Meetup (renamed)"
			if activity, _ := svc.OnSave(ctx, e, false); activity != nil {
				t.Fatalf("unwatched change must not record, got %s", activity.Remarks)
			}
			if count(t, svc, e) != 2 {
				t.Fatalf("no-op update must not add activities")
			}

			later := start.Add(time.Hour)
			limit := 20
			e.PeriodStart = &later
			e.Place = ""
			e.NumberRestriction = &limit
			activity, err = svc.OnSave(ctx, e, false)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			want := []string{"period_start_updated", "place_deleted", "number_restriction_created"}
			if !slices.Equal(activity.RemarkTokens(), want) {
				t.Fatalf("unexpected remarks %v", activity.RemarkTokens())
			}
		})
	}
}

func TestSameInstantInAnotherZoneIsNotAChange(t *testing.T) {
	for _, codec := range []string{snapshot.CodecJSON, snapshot.CodecMsgPack} {
		t.Run(codec, func(t *testing.T) {
			svc := newService(t, codec, Dependencies{})
			ctx := context.Background()
			start := time.Date(2026, 6, 1, 1, 0, 0, 0, time.UTC)
			e := &Event{ID: 5, Title: "Hackathon", PubState: PubStatePublic, PeriodStart: &start}

			if _, err := svc.OnSave(ctx, e, true); err != nil {
				t.Fatalf("create: %v", err)
			}

			local := start.In(time.FixedZone("JST", 9*3600))
			e.PeriodStart = &local
			activity, err := svc.OnSave(ctx, e, false)
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if activity != nil {
				t.Fatalf("re-save of the same instant must not record, got %s", activity.Remarks)
			}
			if count(t, svc, e) != 1 {
				t.Fatalf("expected a single activity")
			}
		})
	}
}

func TestAttendeeChanges(t *testing.T) {
	svc := newService(t, snapshot.CodecJSON, Dependencies{})
	ctx := context.Background()
	e := &Event{ID: 3, Title: "Workshop", PubState: PubStatePublic}
	if _, err := svc.OnSave(ctx, e, true); err != nil {
		t.Fatalf("create: %v", err)
	}

	activity, err := svc.OnRelationChange(ctx, e, activities.ActionPostAdd, PersonaType, "7", "9")
	if err != nil {
		t.Fatalf("relation: %v", err)
	}
	if activity == nil || activity.Status != StatusUserAdd || activity.Remarks != "7\n9" {
		t.Fatalf("expected user_add with 7 and 9, got %+v", activity)
	}

	activity, _ = svc.OnRelationChange(ctx, e, activities.ActionPostRemove, PersonaType, "9")
	if activity == nil || activity.Status != StatusUserRemoved || activity.Remarks != "9" {
		t.Fatalf("expected user_removed, got %+v", activity)
	}

	for _, action := range []activities.RelationAction{activities.ActionPreAdd, activities.ActionPreRemove, activities.ActionPostClear} {
		if activity, _ := svc.OnRelationChange(ctx, e, action, PersonaType, "1"); activity != nil {
			t.Fatalf("action %s should be ignored", action)
		}
	}
	if activity, _ := svc.OnRelationChange(ctx, e, activities.ActionPostAdd, "products.platform", "1"); activity != nil {
		t.Fatalf("unrelated relation should be ignored")
	}
	if count(t, svc, e) != 3 {
		t.Fatalf("expected created, user_add and user_removed")
	}
}

func TestPrepareContext(t *testing.T) {
	lookup := UserLookupFunc(func(_ context.Context, ids []string) ([]User, error) {
		users := make([]User, 0, len(ids))
		for _, id := range ids {
			users = append(users, User{ID: id, Nickname: "user" + id})
		}
		return users, nil
	})
	policy := NewPolicy(Dependencies{Users: lookup})
	ctx := context.Background()

	data, err := policy.PrepareContext(ctx, &domain.Activity{Status: domain.StatusUpdated, Remarks: "place_created\nperiod_end_deleted"}, map[string]any{})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if data["place_created"] != true || data["period_end_deleted"] != true {
		t.Fatalf("expected flags, got %v", data)
	}

	data, err = policy.PrepareContext(ctx, &domain.Activity{Status: StatusUserAdd, Remarks: "7\n9"}, map[string]any{})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	users, ok := data["users"].([]User)
	if !ok || len(users) != 2 || users[1].Nickname != "user9" {
		t.Fatalf("expected looked up users, got %v", data["users"])
	}
	if ids, _ := data["user_ids"].([]string); !slices.Equal(ids, []string{"7", "9"}) {
		t.Fatalf("unexpected user ids %v", data["user_ids"])
	}
}

func TestDiffTreatsZeroValuesAsEmpty(t *testing.T) {
	previous := map[string]any{"place": "", "number_restriction": float64(10)}
	current := map[string]any{"place": "Osaka", "number_restriction": 10}
	got := Diff(previous, current, "place", "number_restriction", "period_end")
	if !slices.Equal(got, []string{"place_created"}) {
		t.Fatalf("unexpected diff %v", got)
	}
}
