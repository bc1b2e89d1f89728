package secrets

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("secrets: not found")
	ErrInvalidScope = errors.New("secrets: invalid scope")
	ErrInvalidRef   = errors.New("secrets: invalid reference")
	ErrUnsupported  = errors.New("secrets: unsupported operation")
	ErrEmptyValue   = errors.New("secrets: empty value")
)

// Scope defines who owns a notifier credential.
type Scope string

const (
	// ScopeSystem credentials belong to the site, e.g. the official account.
	ScopeSystem Scope = "system"
	// ScopeUser credentials are delegated by a member.
	ScopeUser Scope = "user"
)

// Reference identifies one notifier credential.
type Reference struct {
	Scope    Scope
	Owner    string
	Notifier string
	Key      string
	Version  string
}

// Latest drops the version so lookups return the newest value.
func (r Reference) Latest() Reference {
	r.Version = ""
	return r
}

// Value carries a resolved credential.
type Value struct {
	Data      []byte
	Version   string
	Retrieved time.Time
	Metadata  map[string]any
}

// String returns the payload as text.
func (v Value) String() string {
	return string(v.Data)
}

// Provider resolves and manages credential values.
type Provider interface {
	Get(ctx context.Context, ref Reference) (Value, error)
	Put(ctx context.Context, ref Reference, value []byte) (string, error)
	Delete(ctx context.Context, ref Reference) error
	Describe(ctx context.Context, ref Reference) (map[string]any, error) // non-sensitive metadata only
}

// Resolver batches resolution of references and returns keyed results.
type Resolver interface {
	Resolve(ctx context.Context, refs ...Reference) (map[Reference]Value, error)
}

// ValidateReference performs basic checks on a reference.
func ValidateReference(ref Reference) error {
	switch ref.Scope {
	case ScopeSystem, ScopeUser:
	default:
		return ErrInvalidScope
	}
	if strings.TrimSpace(ref.Owner) == "" {
		return ErrInvalidRef
	}
	if strings.TrimSpace(ref.Notifier) == "" || strings.TrimSpace(ref.Key) == "" {
		return ErrInvalidRef
	}
	return nil
}

func key(ref Reference) string {
	return baseKey(ref) + ref.Version
}

func baseKey(ref Reference) string {
	return string(ref.Scope) + "|" + ref.Owner + "|" + ref.Notifier + "|" + ref.Key + "|"
}
