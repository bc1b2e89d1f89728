package bunrepo

import (
	"context"

	"github.com/goliatone/go-activities/pkg/interfaces/store"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// table adapts a go-repository-bun repository to the store contracts:
// value slices out, store.ErrNotFound for missing rows. Calls join the
// transaction carried by ctx, if any.
type table[T any] struct {
	db   *bun.DB
	rows repository.Repository[*T]
}

func newTable[T any](db *bun.DB, handlers repository.ModelHandlers[*T]) table[T] {
	return table[T]{db: db, rows: repository.MustNewRepository[*T](db, handlers)}
}

func (t table[T]) insert(ctx context.Context, record *T) error {
	_, err := t.rows.CreateTx(ctx, conn(ctx, t.db), record)
	return storeError(err)
}

func (t table[T]) save(ctx context.Context, record *T) error {
	_, err := t.rows.UpdateTx(ctx, conn(ctx, t.db), record)
	return storeError(err)
}

// first returns the first row matching criteria; callers add ordering.
func (t table[T]) first(ctx context.Context, criteria ...repository.SelectCriteria) (*T, error) {
	record, err := t.rows.GetTx(ctx, conn(ctx, t.db), append(criteria, withLimit(1))...)
	if err != nil {
		return nil, storeError(err)
	}
	return record, nil
}

func (t table[T]) byID(ctx context.Context, id uuid.UUID, criteria ...repository.SelectCriteria) (*T, error) {
	return t.first(ctx, append([]repository.SelectCriteria{withID(id)}, criteria...)...)
}

func (t table[T]) page(ctx context.Context, criteria ...repository.SelectCriteria) (store.ListResult[T], error) {
	records, total, err := t.rows.ListTx(ctx, conn(ctx, t.db), criteria...)
	if err != nil {
		return store.ListResult[T]{}, storeError(err)
	}
	out := store.ListResult[T]{Items: make([]T, 0, len(records)), Total: total}
	for _, rec := range records {
		if rec != nil {
			out.Items = append(out.Items, *rec)
		}
	}
	return out, nil
}

func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case repository.IsRecordNotFound(err):
		return store.ErrNotFound
	case repository.IsDuplicatedKey(err):
		return store.ErrConflict
	default:
		return err
	}
}
