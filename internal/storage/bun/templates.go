package bunrepo

import (
	"context"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TemplateRepository struct {
	rows table[domain.ActivityTemplate]
}

var _ store.TemplateRepository = (*TemplateRepository)(nil)

func NewTemplateRepository(db *bun.DB) *TemplateRepository {
	handlers := repository.ModelHandlers[*domain.ActivityTemplate]{
		NewRecord:          func() *domain.ActivityTemplate { return &domain.ActivityTemplate{} },
		GetID:              func(t *domain.ActivityTemplate) uuid.UUID { return t.ID },
		SetID:              func(t *domain.ActivityTemplate, id uuid.UUID) { t.ID = id },
		GetIdentifier:      func() string { return "name" },
		GetIdentifierValue: func(t *domain.ActivityTemplate) string { return t.Name },
	}
	return &TemplateRepository{
		rows: newTable[domain.ActivityTemplate](db, handlers),
	}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *domain.ActivityTemplate) error {
	tpl.EnsureID()
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	return r.rows.insert(ctx, tpl)
}

func (r *TemplateRepository) Update(ctx context.Context, tpl *domain.ActivityTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	return r.rows.save(ctx, tpl)
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.ActivityTemplate, error) {
	return r.rows.first(ctx, withName(name), withoutDeleted())
}

func (r *TemplateRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.ActivityTemplate], error) {
	return r.rows.page(ctx, withoutDeleted(), withListOptions(opts), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.name ASC")
	})
}

func (r *TemplateRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	record, err := r.rows.byID(ctx, id, withoutDeleted())
	if err != nil {
		return err
	}
	record.DeletedAt = time.Now().UTC()
	return r.rows.save(ctx, record)
}
