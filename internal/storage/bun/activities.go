package bunrepo

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivityRepository persists the activity log through go-repository-bun.
type ActivityRepository struct {
	rows table[domain.Activity]
}

var _ store.ActivityRepository = (*ActivityRepository)(nil)

func NewActivityRepository(db *bun.DB) *ActivityRepository {
	handlers := repository.ModelHandlers[*domain.Activity]{
		NewRecord:          func() *domain.Activity { return &domain.Activity{} },
		GetID:              func(a *domain.Activity) uuid.UUID { return a.ID },
		SetID:              func(a *domain.Activity, id uuid.UUID) { a.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(a *domain.Activity) string { return a.ID.String() },
	}
	return &ActivityRepository{
		rows: newTable[domain.Activity](db, handlers),
	}
}

func (r *ActivityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	if activity == nil {
		return errors.New("bunrepo: activity is required")
	}
	activity.EnsureID()
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	return r.rows.insert(ctx, activity)
}

func (r *ActivityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	return r.rows.byID(ctx, id)
}

func (r *ActivityRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return r.rows.page(ctx, withListOptions(opts), newestFirst())
}

func (r *ActivityRepository) ListBySubject(ctx context.Context, subjectType, subjectID string, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return r.rows.page(ctx, withSubject(subjectType, subjectID), withListOptions(opts), newestFirst())
}

func (r *ActivityRepository) LatestBySubject(ctx context.Context, subjectType, subjectID string) (*domain.Activity, error) {
	return r.rows.first(ctx, withSubject(subjectType, subjectID), newestFirst())
}

func (r *ActivityRepository) ListLatest(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return r.rows.page(ctx, withLatestPerSubject(), withListOptions(opts), newestFirst())
}
