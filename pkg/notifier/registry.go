package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-activities/pkg/activities"
)

// ErrDuplicateNotifier is returned when two notifiers share a name.
var ErrDuplicateNotifier = errors.New("notifier: name already registered")

// Registry resolves notifiers by the names used in configuration
// (e.g. "twitter_kawaz_official").
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]activities.Notifier
}

var _ activities.NotifierLookup = (*Registry)(nil)

// NewRegistry registers the given notifiers, ignoring duplicates.
func NewRegistry(notifiers ...activities.Notifier) *Registry {
	r := &Registry{notifiers: make(map[string]activities.Notifier)}
	for _, n := range notifiers {
		_ = r.Register(n)
	}
	return r
}

// Register adds a notifier under its name.
func (r *Registry) Register(n activities.Notifier) error {
	if n == nil {
		return errors.New("notifier: nil notifier")
	}
	name := normalizeName(n.Name())
	if name == "" {
		return errors.New("notifier: name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNotifier, name)
	}
	r.notifiers[name] = n
	return nil
}

// Lookup implements activities.NotifierLookup.
func (r *Registry) Lookup(name string) (activities.Notifier, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[normalizeName(name)]
	return n, ok
}

// Resolve looks up names in order and fails on the first unknown one.
func (r *Registry) Resolve(names ...string) ([]activities.Notifier, error) {
	return activities.ResolveNotifiers(r, names...)
}

// Names lists registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Func adapts a function to activities.Notifier.
type Func struct {
	name string
	fn   func(ctx context.Context, n activities.Notification) error
}

// NewFunc builds a named function notifier.
func NewFunc(name string, fn func(ctx context.Context, n activities.Notification) error) Func {
	return Func{name: name, fn: fn}
}

func (f Func) Name() string { return f.name }

func (f Func) Notify(ctx context.Context, n activities.Notification) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, n)
}
