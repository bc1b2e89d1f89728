package activities

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-activities/pkg/domain"
)

var (
	ErrDuplicateRegistration = errors.New("activities: subject type already registered")
	ErrRegistrySealed        = errors.New("activities: registry is sealed")
	ErrMediatorNotFound      = errors.New("activities: no mediator registered")
	ErrInvalidSubject        = errors.New("activities: invalid subject")
)

// Registry maps subject types to mediators. Registrations are write once.
type Registry struct {
	mu        sync.RWMutex
	mediators map[domain.SubjectType]*Mediator
	templates TemplateSettings
	sealed    bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTemplateSettings sets the template root and configured extensions.
func WithTemplateSettings(settings TemplateSettings) RegistryOption {
	return func(r *Registry) {
		r.templates = settings.withDefaults()
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		mediators: make(map[domain.SubjectType]*Mediator),
		templates: DefaultTemplateSettings(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register binds mediator to subjectType.
func (r *Registry) Register(subjectType domain.SubjectType, mediator *Mediator) error {
	if subjectType.App == "" || subjectType.Entity == "" {
		return fmt.Errorf("%w: subject type %q", ErrInvalidSubject, subjectType.String())
	}
	if mediator == nil {
		return errors.New("activities: mediator is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.mediators[subjectType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, subjectType)
	}
	if err := mediator.bind(subjectType, r.templates); err != nil {
		return err
	}
	r.mediators[subjectType] = mediator
	return nil
}

// MustRegister panics when Register fails. Intended for init time wiring.
func (r *Registry) MustRegister(subjectType domain.SubjectType, mediator *Mediator) {
	if err := r.Register(subjectType, mediator); err != nil {
		panic(err)
	}
}

// ForType returns the mediator bound to subjectType.
func (r *Registry) ForType(subjectType domain.SubjectType) (*Mediator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mediators[subjectType]
	return m, ok
}

// ForActivity returns the mediator of the activity's subject type.
func (r *Registry) ForActivity(activity *domain.Activity) (*Mediator, bool) {
	if activity == nil {
		return nil, false
	}
	return r.ForType(activity.Type())
}

// Types lists registered subject types sorted by name.
func (r *Registry) Types() []domain.SubjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SubjectType, 0, len(r.mediators))
	for st := range r.mediators {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Seal blocks further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal was called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// ApplyDefaultNotifiers gives notifiers to every mediator that has none and
// returns the types that received them.
func (r *Registry) ApplyDefaultNotifiers(notifiers ...Notifier) []domain.SubjectType {
	var applied []domain.SubjectType
	for _, st := range r.Types() {
		m, _ := r.ForType(st)
		if m != nil && m.useDefaultNotifiers(notifiers) {
			applied = append(applied, st)
		}
	}
	return applied
}

// Templates returns the registry template settings.
func (r *Registry) Templates() TemplateSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates
}
