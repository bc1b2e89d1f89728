package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	"github.com/goliatone/go-activities/pkg/snapshot"
	"github.com/google/uuid"
)

var (
	ErrMissingRegistry   = errors.New("activities: registry is required")
	ErrMissingRepository = errors.New("activities: activity repository is required")
	ErrMissingTemplates  = errors.New("activities: template renderer is required")
)

// TemplateRenderer renders the first existing template among names.
// templates.Service satisfies it.
type TemplateRenderer interface {
	Render(ctx context.Context, names []string, data map[string]any) (string, error)
}

// NotificationSettings are the global dispatch switches.
type NotificationSettings struct {
	Enabled      bool
	OAuthEnabled bool
}

// DefaultNotificationSettings enables dispatch and disables notifiers that
// need user delegated credentials.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{Enabled: true}
}

// Dependencies wires the pipeline.
type Dependencies struct {
	Registry     *Registry
	Activities   store.ActivityRepository
	Transactions store.TransactionManager
	Templates    TemplateRenderer
	Logger       logger.Logger
	Metrics      Metrics
	// Codec names the snapshot codec, json when empty.
	Codec string
	// Notifications defaults to DefaultNotificationSettings when nil.
	Notifications *NotificationSettings
}

// Service records activities for lifecycle events, renders them and fans
// them out to notifiers.
type Service struct {
	registry     *Registry
	activities   store.ActivityRepository
	transactions store.TransactionManager
	templates    TemplateRenderer
	logger       logger.Logger
	metrics      Metrics
	codec        string
	settings     NotificationSettings
}

var (
	_ LifecycleHandler = (*Service)(nil)
	_ Renderer         = (*Service)(nil)
)

// New builds the activity service.
func New(deps Dependencies) (*Service, error) {
	if deps.Registry == nil {
		return nil, ErrMissingRegistry
	}
	if deps.Activities == nil {
		return nil, ErrMissingRepository
	}
	if deps.Templates == nil {
		return nil, ErrMissingTemplates
	}
	if deps.Transactions == nil {
		deps.Transactions = store.Inline
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Codec == "" {
		deps.Codec = snapshot.CodecJSON
	}
	if _, err := snapshot.Lookup(deps.Codec); err != nil {
		return nil, err
	}
	settings := DefaultNotificationSettings()
	if deps.Notifications != nil {
		settings = *deps.Notifications
	}
	return &Service{
		registry:     deps.Registry,
		activities:   deps.Activities,
		transactions: deps.Transactions,
		templates:    deps.Templates,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		codec:        deps.Codec,
		settings:     settings,
	}, nil
}

// Registry returns the registry the service dispatches through.
func (s *Service) Registry() *Registry {
	return s.registry
}

// OnSave records a created or updated activity.
func (s *Service) OnSave(ctx context.Context, subject domain.Subject, created bool) (*domain.Activity, error) {
	return s.Handle(ctx, subject, SaveEvent(created))
}

// OnDelete records a deleted activity. Call it before the entity store
// removes the row so the snapshot holds the final state.
func (s *Service) OnDelete(ctx context.Context, subject domain.Subject) (*domain.Activity, error) {
	return s.Handle(ctx, subject, DeleteEvent())
}

// OnRelationChange lets the mediator build an activity for a membership change.
func (s *Service) OnRelationChange(ctx context.Context, subject domain.Subject, action RelationAction, relatedType string, keys ...string) (*domain.Activity, error) {
	return s.Handle(ctx, subject, RelationEvent(action, relatedType, keys...))
}

// Handle runs one lifecycle event through the mediator of the subject type.
// It returns nil when the type is not registered or the mediator suppressed
// the activity. Mediator errors abort the step and are returned as is.
func (s *Service) Handle(ctx context.Context, subject domain.Subject, evt Event) (*domain.Activity, error) {
	subjectType, err := validateSubject(subject)
	if err != nil {
		return nil, err
	}
	mediator, ok := s.registry.ForType(subjectType)
	if !ok {
		return nil, nil
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	previous, err := s.latest(ctx, subjectType, subject.SubjectID())
	if err != nil {
		return nil, err
	}

	var draft *domain.Activity
	switch evt.Kind {
	case EventSave, EventDelete:
		status := domain.StatusUpdated
		if evt.Kind == EventDelete {
			status = domain.StatusDeleted
		} else if evt.Created {
			status = domain.StatusCreated
		}
		draft = NewActivity(subject, status)
		draft.SetPrevious(previous)
		if err := s.attachSnapshot(draft, subject); err != nil {
			return nil, err
		}
	case EventRelation:
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrInvalidSubject, evt.Kind)
	}

	activity, err := mediator.Alter(ctx, subject, draft, evt)
	if err != nil {
		return nil, fmt.Errorf("activities: alter %s %s: %w", subjectType, subject.SubjectID(), err)
	}
	if activity == nil {
		s.metrics.ActivitySuppressed(subjectType.String(), evt.Kind)
		s.logger.Debug("activity suppressed",
			logger.Field{Key: "subject_type", Value: subjectType.String()},
			logger.Field{Key: "subject_id", Value: subject.SubjectID()},
			logger.Field{Key: "event", Value: string(evt.Kind)},
		)
		return nil, nil
	}

	if activity.SubjectType == "" {
		activity.SubjectType = subjectType.String()
	}
	if activity.SubjectID == "" {
		activity.SubjectID = subject.SubjectID()
	}
	if activity.Previous == nil && activity.PreviousID == uuid.Nil {
		activity.SetPrevious(previous)
	}
	if activity.Snapshot.IsZero() {
		if err := s.attachSnapshot(activity, subject); err != nil {
			return nil, err
		}
	}

	if err := s.transactions.WithinTransaction(ctx, func(txCtx context.Context) error {
		return s.activities.Create(txCtx, activity)
	}); err != nil {
		return nil, fmt.Errorf("activities: persist: %w", err)
	}
	s.metrics.ActivityRecorded(activity.SubjectType, activity.Status)
	s.logger.Info("activity recorded",
		logger.Field{Key: "activity_id", Value: activity.ID.String()},
		logger.Field{Key: "subject_type", Value: activity.SubjectType},
		logger.Field{Key: "subject_id", Value: activity.SubjectID},
		logger.Field{Key: "status", Value: activity.Status},
	)

	if err := s.Dispatch(ctx, mediator, activity, evt); err != nil {
		s.logger.Warn("activity dispatch incomplete",
			logger.Field{Key: "activity_id", Value: activity.ID.String()},
			logger.Field{Key: "error", Value: err},
		)
	}
	return activity, nil
}

// Dispatch delivers a persisted activity to the mediator notifiers in
// order. Every notifier runs regardless of earlier failures; failures are
// joined into the returned error.
func (s *Service) Dispatch(ctx context.Context, mediator *Mediator, activity *domain.Activity, evt Event) error {
	if mediator == nil || activity == nil {
		return nil
	}
	if !s.settings.Enabled {
		return nil
	}
	notification := Notification{
		Activity: activity,
		Event:    evt,
		Mediator: mediator,
		Renderer: s,
	}
	var errs []error
	for _, notifier := range mediator.Notifiers() {
		name := notifier.Name()
		if delegated, ok := notifier.(DelegatedNotifier); ok && delegated.DelegatedCredentials() && !s.settings.OAuthEnabled {
			s.metrics.NotifierSkipped(name, "oauth_disabled")
			s.logger.Debug("notifier skipped",
				logger.Field{Key: "notifier", Value: name},
				logger.Field{Key: "reason", Value: "oauth_disabled"},
			)
			continue
		}
		started := time.Now()
		err := s.notify(ctx, notifier, notification)
		took := time.Since(started)
		if err != nil {
			s.metrics.NotifierFailed(name, took)
			s.logger.Error("notifier failed",
				logger.Field{Key: "notifier", Value: name},
				logger.Field{Key: "activity_id", Value: activity.ID.String()},
				logger.Field{Key: "subject_type", Value: activity.SubjectType},
				logger.Field{Key: "status", Value: activity.Status},
				logger.Field{Key: "error", Value: err},
			)
			errs = append(errs, fmt.Errorf("notifier %s: %w", name, err))
			continue
		}
		s.metrics.NotifierDelivered(name, took)
	}
	return errors.Join(errs...)
}

func (s *Service) notify(ctx context.Context, notifier Notifier, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return notifier.Notify(ctx, n)
}

// Render renders activity for channel using the template candidates of its
// mediator. An empty channel renders the generic templates.
func (s *Service) Render(ctx context.Context, activity *domain.Activity, data map[string]any, channel string) (string, error) {
	if activity == nil {
		return "", fmt.Errorf("%w: activity is required", ErrInvalidSubject)
	}
	mediator, ok := s.registry.ForActivity(activity)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMediatorNotFound, activity.SubjectType)
	}
	payload, err := mediator.PrepareContext(ctx, activity, data, channel)
	if err != nil {
		return "", fmt.Errorf("activities: prepare context: %w", err)
	}
	return s.templates.Render(ctx, mediator.TemplateNames(activity, channel), payload)
}

// TemplateNames returns the candidate templates for activity and channel.
func (s *Service) TemplateNames(activity *domain.Activity, channel string) ([]string, error) {
	mediator, ok := s.registry.ForActivity(activity)
	if !ok {
		subjectType := ""
		if activity != nil {
			subjectType = activity.SubjectType
		}
		return nil, fmt.Errorf("%w: %s", ErrMediatorNotFound, subjectType)
	}
	return mediator.TemplateNames(activity, channel), nil
}

// History lists the activities of one subject, newest first.
func (s *Service) History(ctx context.Context, subject domain.Subject, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	subjectType, err := validateSubject(subject)
	if err != nil {
		return store.ListResult[domain.Activity]{}, err
	}
	return s.activities.ListBySubject(ctx, subjectType.String(), subject.SubjectID(), opts)
}

// Feed lists every activity newest first.
func (s *Service) Feed(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return s.activities.List(ctx, opts)
}

// Wall lists the newest activity of every subject.
func (s *Service) Wall(ctx context.Context, opts store.ListOptions) (store.ListResult[domain.Activity], error) {
	return s.activities.ListLatest(ctx, opts)
}

// Get loads one activity and links the activity it follows.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if activity.Previous == nil && activity.PreviousID != uuid.Nil {
		previous, err := s.activities.GetByID(ctx, activity.PreviousID)
		switch {
		case err == nil:
			activity.Previous = previous
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return activity, nil
}

func (s *Service) latest(ctx context.Context, subjectType domain.SubjectType, subjectID string) (*domain.Activity, error) {
	previous, err := s.activities.LatestBySubject(ctx, subjectType.String(), subjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("activities: load previous: %w", err)
	}
	return previous, nil
}

func (s *Service) attachSnapshot(activity *domain.Activity, subject domain.Subject) error {
	data, err := snapshot.Encode(s.codec, subject)
	if err != nil {
		return err
	}
	activity.Snapshot = data
	activity.SnapshotCodec = s.codec
	return nil
}

func validateSubject(subject domain.Subject) (domain.SubjectType, error) {
	if subject == nil {
		return domain.SubjectType{}, fmt.Errorf("%w: subject is required", ErrInvalidSubject)
	}
	subjectType := subject.SubjectType()
	if subjectType.App == "" || subjectType.Entity == "" {
		return domain.SubjectType{}, fmt.Errorf("%w: subject type is required", ErrInvalidSubject)
	}
	if subject.SubjectID() == "" {
		return domain.SubjectType{}, fmt.Errorf("%w: subject id is required", ErrInvalidSubject)
	}
	return subjectType, nil
}
