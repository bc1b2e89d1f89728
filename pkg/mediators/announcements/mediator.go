package announcements

import (
	"context"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
)

const pubStateDraft = "draft"

// Policy hides drafts and reports the first visible save as created.
type Policy struct{}

var _ activities.Policy = Policy{}

func (Policy) Alter(_ context.Context, subject domain.Subject, draft *domain.Activity, _ activities.Event) (*domain.Activity, error) {
	if draft == nil {
		return nil, nil
	}
	if a, ok := subject.(*Announcement); ok && a.PubState == pubStateDraft {
		return nil, nil
	}
	if draft.Status == domain.StatusUpdated && draft.Previous == nil {
		draft.Status = domain.StatusCreated
	}
	return draft, nil
}

// NewMediator wraps Policy.
func NewMediator(opts ...activities.MediatorOption) *activities.Mediator {
	return activities.NewMediator(Policy{}, opts...)
}
