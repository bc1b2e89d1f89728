// Package hatenablog suppresses activities for byte identical re-saves of
// blog entries and announces new entries on the official Twitter account.
package hatenablog

import (
	"context"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/snapshot"
)

// DefaultNotifier is the notifier name used when none is injected.
const DefaultNotifier = "twitter_kawaz_official"

// Policy compares the content hash with the previous snapshot.
type Policy struct{}

var _ activities.Policy = Policy{}

// Alter drops updates whose md5 did not change.
func (Policy) Alter(_ context.Context, _ domain.Subject, draft *domain.Activity, _ activities.Event) (*domain.Activity, error) {
	if draft == nil || draft.Status != domain.StatusUpdated || draft.Previous == nil {
		return draft, nil
	}
	current, err := snapshot.Of(draft)
	if err != nil {
		return nil, err
	}
	previous, err := snapshot.Of(draft.Previous)
	if err != nil {
		return nil, err
	}
	if previous["md5"] == current["md5"] {
		return nil, nil
	}
	return draft, nil
}

// Dependencies configures the mediator notifiers. Notifiers wins over Lookup.
type Dependencies struct {
	Notifiers []activities.Notifier
	Lookup    activities.NotifierLookup
}

// NewMediator builds the mediator. Without explicit notifiers the
// DefaultNotifier is resolved through Lookup; with neither the mediator has
// no notifiers.
func NewMediator(deps Dependencies, opts ...activities.MediatorOption) (*activities.Mediator, error) {
	notifiers := deps.Notifiers
	if len(notifiers) == 0 && deps.Lookup != nil {
		resolved, err := activities.ResolveNotifiers(deps.Lookup, DefaultNotifier)
		if err != nil {
			return nil, err
		}
		notifiers = resolved
	}
	opts = append([]activities.MediatorOption{activities.WithNotifiers(notifiers...)}, opts...)
	return activities.NewMediator(Policy{}, opts...), nil
}
