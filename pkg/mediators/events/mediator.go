// Package events holds the activity policy of community events: drafts are
// never announced, updates are reduced to changes of the watched fields and
// attendee changes become user_add / user_removed activities.
package events

import (
	"context"
	"fmt"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/snapshot"
)

// Statuses produced for attendee changes.
const (
	StatusUserAdd     = "user_add"
	StatusUserRemoved = "user_removed"
)

// WatchedFields are diffed against the previous snapshot on update.
var WatchedFields = []string{
	"period_start",
	"period_end",
	"place",
	"number_restriction",
	"attendance_deadline",
}

// User is the template view of an added or removed attendee.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// UserLookup resolves attendee ids for templates.
type UserLookup interface {
	LookupUsers(ctx context.Context, ids []string) ([]User, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, ids []string) ([]User, error)

func (f UserLookupFunc) LookupUsers(ctx context.Context, ids []string) ([]User, error) {
	return f(ctx, ids)
}

// Dependencies configures the policy.
type Dependencies struct {
	Users  UserLookup
	Logger logger.Logger
	// Watch overrides WatchedFields.
	Watch []string
}

// Policy implements activities.Policy and activities.ContextPreparer.
type Policy struct {
	users  UserLookup
	logger logger.Logger
	watch  []string
}

var (
	_ activities.Policy          = (*Policy)(nil)
	_ activities.ContextPreparer = (*Policy)(nil)
)

// NewPolicy builds the events policy.
func NewPolicy(deps Dependencies) *Policy {
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	watch := deps.Watch
	if len(watch) == 0 {
		watch = WatchedFields
	}
	return &Policy{
		users:  deps.Users,
		logger: deps.Logger,
		watch:  append([]string(nil), watch...),
	}
}

// NewMediator wraps the policy in a mediator.
func NewMediator(deps Dependencies, opts ...activities.MediatorOption) *activities.Mediator {
	return activities.NewMediator(NewPolicy(deps), opts...)
}

// Alter applies the event rules.
func (p *Policy) Alter(ctx context.Context, subject domain.Subject, draft *domain.Activity, evt activities.Event) (*domain.Activity, error) {
	if draft == nil {
		return p.alterRelation(subject, evt), nil
	}

	current, err := snapshot.Of(draft)
	if err != nil {
		return nil, err
	}
	if pubState(subject, current) == PubStateDraft {
		return nil, nil
	}
	if draft.Status != domain.StatusUpdated {
		return draft, nil
	}
	if draft.Previous == nil {
		draft.Status = domain.StatusCreated
		return draft, nil
	}

	previous, err := snapshot.Of(draft.Previous)
	if err != nil {
		return nil, fmt.Errorf("events: previous snapshot: %w", err)
	}
	remarks := Diff(previous, current, p.watch...)
	if len(remarks) == 0 {
		p.logger.Debug("event update without watched changes",
			logger.Field{Key: "subject_id", Value: subject.SubjectID()},
		)
		return nil, nil
	}
	draft.SetRemarks(remarks...)
	return draft, nil
}

func (p *Policy) alterRelation(subject domain.Subject, evt activities.Event) *domain.Activity {
	if evt.Kind != activities.EventRelation || evt.RelatedType != PersonaType {
		return nil
	}
	var status string
	switch evt.Action {
	case activities.ActionPostAdd:
		status = StatusUserAdd
	case activities.ActionPostRemove:
		status = StatusUserRemoved
	default:
		return nil
	}
	activity := activities.NewActivity(subject, status)
	activity.SetRemarks(evt.Keys...)
	return activity
}

// PrepareContext exposes remark flags for updates and the affected users
// for attendee changes.
func (p *Policy) PrepareContext(ctx context.Context, activity *domain.Activity, data map[string]any) (map[string]any, error) {
	switch activity.Status {
	case domain.StatusUpdated:
		for _, flag := range activity.RemarkTokens() {
			data[flag] = true
		}
	case StatusUserAdd, StatusUserRemoved:
		ids := activity.RemarkTokens()
		data["user_ids"] = ids
		if p.users != nil {
			users, err := p.users.LookupUsers(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("events: lookup users: %w", err)
			}
			data["users"] = users
		}
	}
	return data, nil
}

// Diff classifies each field as {field}_created, {field}_updated or
// {field}_deleted, in field order. Unchanged fields are skipped.
func Diff(previous, current map[string]any, fields ...string) []string {
	var remarks []string
	for _, field := range fields {
		before, after := previous[field], current[field]
		switch {
		case snapshot.IsEmpty(before) && !snapshot.IsEmpty(after):
			remarks = append(remarks, field+"_created")
		case !snapshot.IsEmpty(before) && !snapshot.IsEmpty(after) && !snapshot.Equal(before, after):
			remarks = append(remarks, field+"_updated")
		case !snapshot.IsEmpty(before) && snapshot.IsEmpty(after):
			remarks = append(remarks, field+"_deleted")
		}
	}
	return remarks
}

func pubState(subject domain.Subject, fields map[string]any) string {
	if e, ok := subject.(*Event); ok {
		return e.PubState
	}
	state, _ := fields["pub_state"].(string)
	return state
}
