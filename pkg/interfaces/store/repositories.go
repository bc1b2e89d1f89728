package store

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a record cannot be located.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a record with the same id already exists.
var ErrConflict = errors.New("store: record already exists")

// ListOptions capture pagination and filtering knobs common to repositories.
type ListOptions struct {
	Limit  int
	Offset int
	Since  time.Time
	Until  time.Time
}

// ListResult bundles records and totals.
type ListResult[T any] struct {
	Items []T
	Total int
}

// ActivityRepository is an append-only log. Listings are newest first.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
	List(ctx context.Context, opts ListOptions) (ListResult[domain.Activity], error)
	ListBySubject(ctx context.Context, subjectType, subjectID string, opts ListOptions) (ListResult[domain.Activity], error)
	LatestBySubject(ctx context.Context, subjectType, subjectID string) (*domain.Activity, error)
	// ListLatest returns only the newest activity of every subject.
	ListLatest(ctx context.Context, opts ListOptions) (ListResult[domain.Activity], error)
}

// TemplateRepository stores named activity templates.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *domain.ActivityTemplate) error
	Update(ctx context.Context, tpl *domain.ActivityTemplate) error
	GetByName(ctx context.Context, name string) (*domain.ActivityTemplate, error)
	List(ctx context.Context, opts ListOptions) (ListResult[domain.ActivityTemplate], error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// TransactionManager runs activity writes inside the caller's unit of work,
// so an activity commits or rolls back with the entity change it records.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxFunc adapts a function to TransactionManager.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TxFunc) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Inline runs writes directly, for stores without transactions.
var Inline TransactionManager = TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
})
