package activities

import (
	"context"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
)

// EventKind is the lifecycle event class reported by entity stores.
type EventKind string

const (
	EventSave     EventKind = "save"
	EventDelete   EventKind = "delete"
	EventRelation EventKind = "relation"
)

// RelationAction describes a many-to-many membership change.
type RelationAction string

const (
	ActionPreAdd     RelationAction = "pre_add"
	ActionPostAdd    RelationAction = "post_add"
	ActionPreRemove  RelationAction = "pre_remove"
	ActionPostRemove RelationAction = "post_remove"
	ActionPreClear   RelationAction = "pre_clear"
	ActionPostClear  RelationAction = "post_clear"
)

// Event carries the context of one lifecycle event.
type Event struct {
	Kind EventKind
	// Created is set on the first save of an entity.
	Created bool
	// Action, RelatedType and Keys describe relation changes. Keys keep the
	// order reported by the store.
	Action      RelationAction
	RelatedType string
	Keys        []string
	// Values holds free form context forwarded to policies and notifiers.
	Values     map[string]any
	OccurredAt time.Time
}

// SaveEvent builds a save event.
func SaveEvent(created bool) Event {
	return Event{Kind: EventSave, Created: created, OccurredAt: time.Now().UTC()}
}

// DeleteEvent builds a delete event.
func DeleteEvent() Event {
	return Event{Kind: EventDelete, OccurredAt: time.Now().UTC()}
}

// RelationEvent builds a relation change event.
func RelationEvent(action RelationAction, relatedType string, keys ...string) Event {
	return Event{
		Kind:        EventRelation,
		Action:      action,
		RelatedType: relatedType,
		Keys:        append([]string(nil), keys...),
		OccurredAt:  time.Now().UTC(),
	}
}

// Value returns a free form context value.
func (e Event) Value(key string) (any, bool) {
	if e.Values == nil {
		return nil, false
	}
	v, ok := e.Values[key]
	return v, ok
}

// LifecycleHandler is what entity stores call inline with their writes.
// Every method returns the recorded activity, or nil when nothing was
// recorded.
type LifecycleHandler interface {
	OnSave(ctx context.Context, subject domain.Subject, created bool) (*domain.Activity, error)
	OnDelete(ctx context.Context, subject domain.Subject) (*domain.Activity, error)
	OnRelationChange(ctx context.Context, subject domain.Subject, action RelationAction, relatedType string, keys ...string) (*domain.Activity, error)
	Handle(ctx context.Context, subject domain.Subject, evt Event) (*domain.Activity, error)
}
