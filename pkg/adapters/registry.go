package adapters

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrAdapterNotFound  = errors.New("adapters: adapter not found")
	ErrDuplicateAdapter = errors.New("adapters: adapter already registered")
)

// Registry keeps the messengers notifiers can be built on, by name.
type Registry struct {
	mu         sync.RWMutex
	messengers map[string]Messenger
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{messengers: make(map[string]Messenger)}
}

// Register adds m under its name. Names are case insensitive and unique.
func (r *Registry) Register(m Messenger) error {
	if m == nil {
		return errors.New("adapters: messenger is nil")
	}
	name := strings.ToLower(strings.TrimSpace(m.Name()))
	if name == "" {
		return errors.New("adapters: messenger name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.messengers[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
	}
	r.messengers[name] = m
	return nil
}

// Get returns the messenger registered under name.
func (r *Registry) Get(name string) (Messenger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.messengers[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// ForChannel lists messengers declaring channel, sorted by name.
func (r *Registry) ForChannel(channel string) []Messenger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Messenger
	for _, m := range r.messengers {
		if slices.ContainsFunc(m.Capabilities().Channels, func(c string) bool { return strings.EqualFold(c, channel) }) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Messenger) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Names lists registered messenger names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.messengers))
	for name := range r.messengers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
