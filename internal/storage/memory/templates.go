package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/google/uuid"
)

// TemplateRepository stores activity templates keyed by name.
type TemplateRepository struct {
	base   *baseMemoryRepo[domain.ActivityTemplate]
	mu     sync.RWMutex
	byName map[string]uuid.UUID
}

var _ store.TemplateRepository = (*TemplateRepository)(nil)

func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{
		base: newBaseMemoryRepo("template", recordKeys[domain.ActivityTemplate]{
			id:        func(t *domain.ActivityTemplate) *uuid.UUID { return &t.ID },
			createdAt: func(t *domain.ActivityTemplate) *time.Time { return &t.CreatedAt },
			updatedAt: func(t *domain.ActivityTemplate) *time.Time { return &t.UpdatedAt },
			deletedAt: func(t *domain.ActivityTemplate) *time.Time { return &t.DeletedAt },
		}),
		byName: make(map[string]uuid.UUID),
	}
}

func templateKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *TemplateRepository) Create(ctx context.Context, t *domain.ActivityTemplate) error {
	if t == nil {
		return store.ErrNotFound
	}
	key := templateKey(t.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[key]; ok {
		if _, err := r.base.getByID(ctx, id, false); err == nil {
			return fmt.Errorf("template %s already exists", t.Name)
		}
	}
	if err := r.base.create(ctx, t, domain.NewID); err != nil {
		return err
	}
	r.byName[key] = t.ID
	return nil
}

func (r *TemplateRepository) Update(ctx context.Context, t *domain.ActivityTemplate) error {
	if err := r.base.update(ctx, t); err != nil {
		return err
	}
	r.mu.Lock()
	r.byName[templateKey(t.Name)] = t.ID
	r.mu.Unlock()
	return nil
}

func (r *TemplateRepository) GetByName(ctx context.Context, name string) (*domain.ActivityTemplate, error) {
	r.mu.RLock()
	id, ok := r.byName[templateKey(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return r.base.getByID(ctx, id, false)
}

func (r *TemplateRepository) List(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.ActivityTemplate], error) {
	return r.base.list(ctx, opts, nil), nil
}

func (r *TemplateRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.base.softDelete(ctx, id)
}
