package secrets

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingResolver struct {
	count int
	data  map[Reference]Value
}

func (c *countingResolver) Resolve(_ context.Context, refs ...Reference) (map[Reference]Value, error) {
	c.count++
	out := make(map[Reference]Value, len(refs))
	for _, ref := range refs {
		val, ok := c.data[ref]
		if !ok {
			return nil, ErrNotFound
		}
		out[ref] = val
	}
	return out, nil
}

func TestCachingResolverCachesUntilTTL(t *testing.T) {
	ctx := context.Background()
	ref := Reference{Scope: ScopeSystem, Owner: "kawaz", Notifier: "twitter", Key: "access_token"}
	counter := &countingResolver{data: map[Reference]Value{ref: {Data: []byte("secret"), Version: "v1"}}}

	resolver := NewCachingResolver(counter, time.Minute).(*CachingResolver)
	now := time.Unix(0, 0)
	resolver.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		out, err := resolver.Resolve(ctx, ref)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if out[ref].String() != "secret" {
			t.Fatalf("unexpected value %s", out[ref].Data)
		}
	}
	if counter.count != 1 {
		t.Fatalf("expected one inner resolve, got %d", counter.count)
	}

	now = now.Add(2 * time.Minute)
	if _, err := resolver.Resolve(ctx, ref); err != nil {
		t.Fatalf("resolve after ttl: %v", err)
	}
	if counter.count != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", counter.count)
	}
}

func TestCachingResolverDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	counter := &countingResolver{data: map[Reference]Value{}}
	resolver := NewCachingResolver(counter, time.Minute)
	ref := Reference{Scope: ScopeUser, Owner: "u1", Notifier: "twitter", Key: "access_token"}
	for i := 0; i < 2; i++ {
		if _, err := resolver.Resolve(ctx, ref); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if counter.count != 2 {
		t.Fatalf("expected failures to hit the inner resolver, got %d", counter.count)
	}
}

func TestScopedResolverRoutesByScope(t *testing.T) {
	ctx := context.Background()
	system := Reference{Scope: ScopeSystem, Owner: "kawaz", Notifier: "twitter", Key: "access_token"}
	user := Reference{Scope: ScopeUser, Owner: "u1", Notifier: "twitter", Key: "access_token"}

	resolver := ScopedResolver{
		System: NewStaticProvider(map[Reference]Value{system: {Data: []byte("official")}}),
		User:   NewStaticProvider(map[Reference]Value{user: {Data: []byte("delegated")}}),
	}
	out, err := resolver.Resolve(ctx, system, user)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out[system].String() != "official" || out[user].String() != "delegated" {
		t.Fatalf("unexpected values %v", out)
	}

	if _, err := (ScopedResolver{}).Resolve(ctx, system); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing provider to fail, got %v", err)
	}
}

func TestValidateReference(t *testing.T) {
	if err := ValidateReference(Reference{Scope: "tenant", Owner: "x", Notifier: "n", Key: "k"}); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("expected invalid scope, got %v", err)
	}
	if err := ValidateReference(Reference{Scope: ScopeUser, Notifier: "n", Key: "k"}); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("expected invalid ref, got %v", err)
	}
}
