package memory

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/google/uuid"
)

// ActivityRepository keeps the activity log in process memory.
type ActivityRepository struct {
	base *baseMemoryRepo[domain.Activity]
}

var _ store.ActivityRepository = (*ActivityRepository)(nil)

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{
		base: newBaseMemoryRepo("activity", recordKeys[domain.Activity]{
			id:        func(a *domain.Activity) *uuid.UUID { return &a.ID },
			createdAt: func(a *domain.Activity) *time.Time { return &a.CreatedAt },
		}),
	}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	if activity == nil {
		return errors.New("memory: activity is required")
	}
	stored := activity.Clone()
	stored.Previous = nil
	if err := r.base.create(ctx, stored, domain.NewID); err != nil {
		return err
	}
	activity.ID = stored.ID
	activity.CreatedAt = stored.CreatedAt
	return nil
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	return r.base.getByID(ctx, id, false)
}

func (r *ActivityRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return r.base.list(ctx, opts, nil), nil
}

func (r *ActivityRepository) ListBySubject(ctx context.Context, subjectType, subjectID string, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return r.base.list(ctx, opts, bySubject(subjectType, subjectID)), nil
}

func (r *ActivityRepository) LatestBySubject(ctx context.Context, subjectType, subjectID string) (*domain.Activity, error) {
	items := r.base.find(bySubject(subjectType, subjectID))
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	latest := items[0]
	return &latest, nil
}

func (r *ActivityRepository) ListLatest(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	seen := make(map[string]struct{})
	var latest []domain.Activity
	for _, item := range r.base.find(nil) {
		key := item.SubjectType + "|" + item.SubjectID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if !opts.Since.IsZero() && item.CreatedAt.Before(opts.Since) {
			continue
		}
		if !opts.Until.IsZero() && item.CreatedAt.After(opts.Until) {
			continue
		}
		latest = append(latest, item)
	}
	return paginate(latest, opts), nil
}

func bySubject(subjectType, subjectID string) func(*domain.Activity) bool {
	return func(a *domain.Activity) bool {
		return a.SubjectType == subjectType && a.SubjectID == subjectID
	}
}
