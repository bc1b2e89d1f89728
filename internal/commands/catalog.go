package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/templates"
	command "github.com/goliatone/go-command"
	"github.com/google/uuid"
)

// Catalog exposes go-command compatible handlers for host transports.
type Catalog struct {
	RecordSave     command.Commander[RecordSave]
	RecordDelete   command.Commander[RecordDelete]
	RecordRelation command.Commander[RecordRelation]
	RenderActivity command.Commander[RenderActivity]
	SaveTemplate   command.Commander[TemplateUpsert]
	DeleteTemplate command.Commander[TemplateDelete]
}

// SubjectResolver loads the entity a command refers to. Hosts implement it
// over their own stores; for deletes it must still return the last state.
type SubjectResolver interface {
	Resolve(ctx context.Context, subjectType domain.SubjectType, subjectID string) (domain.Subject, error)
}

// SubjectResolverFunc adapts a function to SubjectResolver.
type SubjectResolverFunc func(ctx context.Context, subjectType domain.SubjectType, subjectID string) (domain.Subject, error)

func (f SubjectResolverFunc) Resolve(ctx context.Context, subjectType domain.SubjectType, subjectID string) (domain.Subject, error) {
	return f(ctx, subjectType, subjectID)
}

type activityService interface {
	Handle(ctx context.Context, subject domain.Subject, evt activities.Event) (*domain.Activity, error)
	Render(ctx context.Context, activity *domain.Activity, data map[string]any, channel string) (string, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Activity, error)
}

type templateService interface {
	Save(ctx context.Context, input templates.TemplateInput) (*domain.ActivityTemplate, error)
	Delete(ctx context.Context, name string) error
}

// Dependencies wires services into the command catalog.
type Dependencies struct {
	Activities activityService
	Templates  templateService
	Subjects   SubjectResolver
	Logger     logger.Logger
}

// NewCatalog builds the command catalog using the supplied dependencies.
func NewCatalog(deps Dependencies) (*Catalog, error) {
	if deps.Activities == nil {
		return nil, errors.New("commands: activity service is required")
	}
	if deps.Templates == nil {
		return nil, errors.New("commands: templates service is required")
	}
	if deps.Subjects == nil {
		return nil, errors.New("commands: subject resolver is required")
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}
	record := recorder{svc: deps.Activities, subjects: deps.Subjects, logger: deps.Logger}

	return &Catalog{
		RecordSave:     recordSaveCommand{record},
		RecordDelete:   recordDeleteCommand{record},
		RecordRelation: recordRelationCommand{record},
		RenderActivity: renderCommand{svc: deps.Activities},
		SaveTemplate:   templateUpsertCommand{templates: deps.Templates},
		DeleteTemplate: templateDeleteCommand{templates: deps.Templates},
	}, nil
}

// SubjectRef identifies an entity by "{app}.{entity}" type and id.
type SubjectRef struct {
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
}

// Result receives the activity recorded by a command, nil when suppressed.
type Result struct {
	Activity *domain.Activity
}

// RecordSave reports that an entity was saved.
type RecordSave struct {
	SubjectRef
	Created bool           `json:"created"`
	Values  map[string]any `json:"values,omitempty"`
	Result  *Result        `json:"-"`
}

// RecordDelete reports that an entity is being deleted.
type RecordDelete struct {
	SubjectRef
	Values map[string]any `json:"values,omitempty"`
	Result *Result        `json:"-"`
}

// RecordRelation reports a change of an entity's many-to-many relation.
type RecordRelation struct {
	SubjectRef
	Action      string         `json:"action"`
	RelatedType string         `json:"related_type"`
	Keys        []string       `json:"keys"`
	Values      map[string]any `json:"values,omitempty"`
	Result      *Result        `json:"-"`
}

type recorder struct {
	svc      activityService
	subjects SubjectResolver
	logger   logger.Logger
}

func (r recorder) record(ctx context.Context, ref SubjectRef, evt activities.Event, values map[string]any, out *Result) error {
	subjectType, err := domain.ParseSubjectType(ref.SubjectType)
	if err != nil {
		return err
	}
	subjectID := strings.TrimSpace(ref.SubjectID)
	if subjectID == "" {
		return errors.New("commands: subject id is required")
	}
	subject, err := r.subjects.Resolve(ctx, subjectType, subjectID)
	if err != nil {
		return fmt.Errorf("commands: resolve %s %s: %w", subjectType, subjectID, err)
	}
	evt.Values = values
	activity, err := r.svc.Handle(ctx, subject, evt)
	if err != nil {
		return err
	}
	if out != nil {
		out.Activity = activity
	}
	return nil
}

type recordSaveCommand struct{ recorder }

func (c recordSaveCommand) Execute(ctx context.Context, msg RecordSave) error {
	return c.record(ctx, msg.SubjectRef, activities.SaveEvent(msg.Created), msg.Values, msg.Result)
}

type recordDeleteCommand struct{ recorder }

func (c recordDeleteCommand) Execute(ctx context.Context, msg RecordDelete) error {
	return c.record(ctx, msg.SubjectRef, activities.DeleteEvent(), msg.Values, msg.Result)
}

type recordRelationCommand struct{ recorder }

func (c recordRelationCommand) Execute(ctx context.Context, msg RecordRelation) error {
	action, err := parseAction(msg.Action)
	if err != nil {
		return err
	}
	evt := activities.RelationEvent(action, strings.TrimSpace(msg.RelatedType), msg.Keys...)
	return c.record(ctx, msg.SubjectRef, evt, msg.Values, msg.Result)
}

func parseAction(value string) (activities.RelationAction, error) {
	action := activities.RelationAction(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case activities.ActionPreAdd, activities.ActionPostAdd,
		activities.ActionPreRemove, activities.ActionPostRemove,
		activities.ActionPreClear, activities.ActionPostClear:
		return action, nil
	default:
		return "", fmt.Errorf("commands: unknown relation action %q", value)
	}
}

// RenderActivity renders a stored activity for a channel into Output.
type RenderActivity struct {
	ActivityID string         `json:"activity_id"`
	Channel    string         `json:"channel"`
	Data       map[string]any `json:"data,omitempty"`
	Output     *string        `json:"-"`
}

type renderCommand struct {
	svc activityService
}

func (c renderCommand) Execute(ctx context.Context, msg RenderActivity) error {
	if msg.Output == nil {
		return errors.New("commands: render output is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(msg.ActivityID))
	if err != nil {
		return fmt.Errorf("commands: activity id: %w", err)
	}
	activity, err := c.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	out, err := c.svc.Render(ctx, activity, msg.Data, msg.Channel)
	if err != nil {
		return err
	}
	*msg.Output = out
	return nil
}

// TemplateUpsert wraps templates.TemplateInput for command invocation.
type TemplateUpsert struct {
	templates.TemplateInput
}

type templateUpsertCommand struct {
	templates templateService
}

func (c templateUpsertCommand) Execute(ctx context.Context, msg TemplateUpsert) error {
	_, err := c.templates.Save(ctx, msg.TemplateInput)
	return err
}

// TemplateDelete removes a repository template by name.
type TemplateDelete struct {
	Name string `json:"name"`
}

type templateDeleteCommand struct {
	templates templateService
}

func (c templateDeleteCommand) Execute(ctx context.Context, msg TemplateDelete) error {
	return c.templates.Delete(ctx, msg.Name)
}
