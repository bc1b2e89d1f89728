package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/google/uuid"
)

// recordKeys exposes the bookkeeping fields of a stored type.
type recordKeys[T any] struct {
	id        func(*T) *uuid.UUID
	createdAt func(*T) *time.Time
	updatedAt func(*T) *time.Time
	deletedAt func(*T) *time.Time
}

type baseMemoryRepo[T any] struct {
	mu        sync.RWMutex
	records   map[uuid.UUID]T
	keys      recordKeys[T]
	entityStr string
	now       func() time.Time
}

func newBaseMemoryRepo[T any](entity string, keys recordKeys[T]) *baseMemoryRepo[T] {
	return &baseMemoryRepo[T]{
		records:   make(map[uuid.UUID]T),
		keys:      keys,
		entityStr: entity,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *baseMemoryRepo[T]) create(_ context.Context, record *T, newID func() uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.keys.id(record)
	if *id == uuid.Nil {
		*id = newID()
	} else if _, exists := r.records[*id]; exists {
		return store.ErrConflict
	}
	now := r.now()
	if created := r.keys.createdAt(record); created.IsZero() {
		*created = now
	}
	if r.keys.updatedAt != nil {
		*r.keys.updatedAt(record) = now
	}
	r.records[*id] = *record
	return nil
}

func (r *baseMemoryRepo[T]) update(_ context.Context, record *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := *r.keys.id(record)
	if id == uuid.Nil {
		return store.ErrNotFound
	}
	if _, ok := r.records[id]; !ok {
		return store.ErrNotFound
	}
	if r.keys.updatedAt != nil {
		*r.keys.updatedAt(record) = r.now()
	}
	r.records[id] = *record
	return nil
}

func (r *baseMemoryRepo[T]) getByID(_ context.Context, id uuid.UUID, includeDeleted bool) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok || (!includeDeleted && r.deleted(&record)) {
		return nil, store.ErrNotFound
	}
	out := record
	return &out, nil
}

func (r *baseMemoryRepo[T]) deleted(record *T) bool {
	if r.keys.deletedAt == nil {
		return false
	}
	return !r.keys.deletedAt(record).IsZero()
}

// find returns matching live records, newest first.
func (r *baseMemoryRepo[T]) find(match func(*T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []T
	for _, record := range r.records {
		if r.deleted(&record) {
			continue
		}
		if match != nil && !match(&record) {
			continue
		}
		filtered = append(filtered, record)
	}
	sort.Slice(filtered, func(i, j int) bool {
		a, b := r.keys.id(&filtered[i]), r.keys.id(&filtered[j])
		return bytes.Compare((*a)[:], (*b)[:]) > 0
	})
	return filtered
}

func (r *baseMemoryRepo[T]) list(ctx context.Context, opts store.ListOptions, match func(*T) bool) store.ListResult[T] {
	filtered := r.find(func(record *T) bool {
		created := *r.keys.createdAt(record)
		if !opts.Since.IsZero() && created.Before(opts.Since) {
			return false
		}
		if !opts.Until.IsZero() && created.After(opts.Until) {
			return false
		}
		return match == nil || match(record)
	})
	return paginate(filtered, opts)
}

func paginate[T any](items []T, opts store.ListOptions) store.ListResult[T] {
	total := len(items)
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return store.ListResult[T]{
		Items: items[start:end],
		Total: total,
	}
}

func (r *baseMemoryRepo[T]) softDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok || r.keys.deletedAt == nil {
		return store.ErrNotFound
	}
	if deletedAt := r.keys.deletedAt(&record); deletedAt.IsZero() {
		*deletedAt = r.now()
	}
	r.records[id] = record
	return nil
}
