package secrets

import (
	"context"
	"sync"
	"time"
)

// Record is an encrypted credential as persisted by a Store.
type Record struct {
	Scope     string
	Owner     string
	Notifier  string
	Key       string
	Version   string
	Cipher    []byte
	Nonce     []byte
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reference returns the identity of the record.
func (r Record) Reference() Reference {
	return Reference{
		Scope:    Scope(r.Scope),
		Owner:    r.Owner,
		Notifier: r.Notifier,
		Key:      r.Key,
		Version:  r.Version,
	}
}

// Store defines persistence operations for encrypted records. Implementations
// return ErrNotFound for missing records.
type Store interface {
	Put(ctx context.Context, rec Record) error
	GetLatest(ctx context.Context, ref Reference) (Record, error)
	GetVersion(ctx context.Context, ref Reference) (Record, error)
	Delete(ctx context.Context, ref Reference) error
	List(ctx context.Context, filter Reference) ([]Record, error)
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Record)}
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.items[key(rec.Reference())] = rec
	return nil
}

func (m *MemoryStore) GetLatest(_ context.Context, ref Reference) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := baseKey(ref)
	var latest Record
	var found bool
	for _, rec := range m.items {
		if baseKey(rec.Reference()) != prefix {
			continue
		}
		if !found || rec.Version > latest.Version {
			latest = rec
			found = true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) GetVersion(_ context.Context, ref Reference) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.items[key(ref)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, ref Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := baseKey(ref)
	for k, rec := range m.items {
		if baseKey(rec.Reference()) == prefix {
			delete(m.items, k)
		}
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, filter Reference) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.items {
		if filter.Scope != "" && rec.Scope != string(filter.Scope) {
			continue
		}
		if filter.Owner != "" && rec.Owner != filter.Owner {
			continue
		}
		if filter.Notifier != "" && rec.Notifier != filter.Notifier {
			continue
		}
		if filter.Key != "" && rec.Key != filter.Key {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
