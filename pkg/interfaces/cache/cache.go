package cache

import (
	"context"
	"time"
)

// Cache holds resolved template bodies keyed by template name. A miss is
// reported with ok=false and a nil error; errors mean the backend failed.
type Cache interface {
	Get(ctx context.Context, key string) (value any, ok bool, err error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Nop disables caching: every lookup misses and writes are dropped.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string) (any, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                  { return nil }
