package secrets

import (
	"context"
	"sync"
	"time"
)

// ScopedResolver dispatches each reference to the provider for its scope.
type ScopedResolver struct {
	System Provider
	User   Provider
}

var _ Resolver = ScopedResolver{}

// ProviderFor returns the provider matching the scope, or nil.
func (r ScopedResolver) ProviderFor(scope Scope) Provider {
	switch scope {
	case ScopeSystem:
		return r.System
	case ScopeUser:
		return r.User
	default:
		return nil
	}
}

// Resolve fetches every reference, failing on the first missing one.
func (r ScopedResolver) Resolve(ctx context.Context, refs ...Reference) (map[Reference]Value, error) {
	results := make(map[Reference]Value, len(refs))
	for _, ref := range refs {
		prov := r.ProviderFor(ref.Scope)
		if prov == nil {
			return nil, ErrNotFound
		}
		val, err := prov.Get(ctx, ref)
		if err != nil {
			return nil, err
		}
		results[ref] = val
	}
	return results, nil
}

// CachingResolver wraps another resolver and caches successful lookups for a short TTL.
type CachingResolver struct {
	Resolver Resolver
	TTL      time.Duration

	now   func() time.Time
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   Value
	expires time.Time
}

// NewCachingResolver returns inner unchanged when ttl <= 0.
func NewCachingResolver(inner Resolver, ttl time.Duration) Resolver {
	if ttl <= 0 {
		return inner
	}
	return &CachingResolver{
		Resolver: inner,
		TTL:      ttl,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

// Resolve serves fresh entries from cache and fetches the rest. Failed
// lookups are not cached.
func (c *CachingResolver) Resolve(ctx context.Context, refs ...Reference) (map[Reference]Value, error) {
	if c == nil || c.Resolver == nil {
		return nil, ErrUnsupported
	}
	now := c.now()
	results := make(map[Reference]Value, len(refs))
	missing := make([]Reference, 0, len(refs))

	c.mu.Lock()
	for _, ref := range refs {
		if entry, ok := c.cache[key(ref)]; ok && entry.expires.After(now) {
			results[ref] = entry.value
			continue
		}
		missing = append(missing, ref)
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return results, nil
	}
	fresh, err := c.Resolver.Resolve(ctx, missing...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	for ref, val := range fresh {
		c.cache[key(ref)] = cacheEntry{value: val, expires: now.Add(c.TTL)}
		results[ref] = val
	}
	c.mu.Unlock()
	return results, nil
}
