package secrets

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// StaticProvider keeps plain credentials in memory, grouped per credential
// with one entry per version. Used by the demo and tests.
type StaticProvider struct {
	mu       sync.RWMutex
	versions map[Reference]map[string]Value
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider builds an in-memory provider seeded with optional values.
func NewStaticProvider(seed map[Reference]Value) *StaticProvider {
	p := &StaticProvider{versions: make(map[Reference]map[string]Value)}
	for ref, val := range seed {
		if val.Version == "" {
			val.Version = ref.Version
		}
		p.set(ref.Latest(), val)
	}
	return p
}

func (p *StaticProvider) set(id Reference, val Value) {
	if p.versions[id] == nil {
		p.versions[id] = make(map[string]Value)
	}
	p.versions[id][val.Version] = val
}

// Get returns the requested version, or the newest one when unversioned.
func (p *StaticProvider) Get(_ context.Context, ref Reference) (Value, error) {
	if err := ValidateReference(ref); err != nil {
		return Value{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	versions := p.versions[ref.Latest()]
	if len(versions) == 0 {
		return Value{}, ErrNotFound
	}
	if ref.Version != "" {
		val, ok := versions[ref.Version]
		if !ok {
			return Value{}, ErrNotFound
		}
		return val, nil
	}
	newest := slices.Max(slices.Collect(maps.Keys(versions)))
	return versions[newest], nil
}

func (p *StaticProvider) Put(_ context.Context, ref Reference, value []byte) (string, error) {
	if err := ValidateReference(ref); err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", ErrEmptyValue
	}
	now := time.Now().UTC()
	if ref.Version == "" {
		ref.Version = now.Format(time.RFC3339Nano)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.set(ref.Latest(), Value{Data: slices.Clone(value), Version: ref.Version, Retrieved: now})
	return ref.Version, nil
}

// Delete drops every version of the credential.
func (p *StaticProvider) Delete(_ context.Context, ref Reference) error {
	if err := ValidateReference(ref); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.versions, ref.Latest())
	return nil
}

func (p *StaticProvider) Describe(ctx context.Context, ref Reference) (map[string]any, error) {
	val, err := p.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	count := len(p.versions[ref.Latest()])
	p.mu.RUnlock()
	return map[string]any{"version": val.Version, "versions": count}, nil
}
