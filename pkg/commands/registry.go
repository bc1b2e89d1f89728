package commands

import (
	internalcommands "github.com/goliatone/go-activities/internal/commands"
	"github.com/goliatone/go-activities/pkg/activities"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/templates"
	command "github.com/goliatone/go-command"
)

// Re-export request types so consumers need not import internal packages.
type (
	SubjectRef          = internalcommands.SubjectRef
	SubjectResolver     = internalcommands.SubjectResolver
	SubjectResolverFunc = internalcommands.SubjectResolverFunc
	Result              = internalcommands.Result
	RecordSave          = internalcommands.RecordSave
	RecordDelete        = internalcommands.RecordDelete
	RecordRelation      = internalcommands.RecordRelation
	RenderActivity      = internalcommands.RenderActivity
	TemplateUpsert      = internalcommands.TemplateUpsert
	TemplateDelete      = internalcommands.TemplateDelete
)

// Registry exposes go-command compatible handlers backed by the module services.
type Registry struct {
	Catalog        *internalcommands.Catalog
	RecordSave     command.Commander[RecordSave]
	RecordDelete   command.Commander[RecordDelete]
	RecordRelation command.Commander[RecordRelation]
	RenderActivity command.Commander[RenderActivity]
	SaveTemplate   command.Commander[TemplateUpsert]
	DeleteTemplate command.Commander[TemplateDelete]
}

// Dependencies mirror the internal command dependencies but keep them public.
type Dependencies struct {
	Activities *activities.Service
	Templates  *templates.Service
	Subjects   SubjectResolver
	Logger     logger.Logger
}

// New builds the registry using the provided dependencies.
func New(deps Dependencies) (*Registry, error) {
	internalDeps := internalcommands.Dependencies{
		Subjects: deps.Subjects,
		Logger:   deps.Logger,
	}
	// typed nil pointers must not reach the interface fields
	if deps.Activities != nil {
		internalDeps.Activities = deps.Activities
	}
	if deps.Templates != nil {
		internalDeps.Templates = deps.Templates
	}
	catalog, err := internalcommands.NewCatalog(internalDeps)
	if err != nil {
		return nil, err
	}
	return &Registry{
		Catalog:        catalog,
		RecordSave:     catalog.RecordSave,
		RecordDelete:   catalog.RecordDelete,
		RecordRelation: catalog.RecordRelation,
		RenderActivity: catalog.RenderActivity,
		SaveTemplate:   catalog.SaveTemplate,
		DeleteTemplate: catalog.DeleteTemplate,
	}, nil
}

// Commanders returns every handler so callers can register them with go-command registries.
func (r *Registry) Commanders() []any {
	if r == nil {
		return nil
	}
	return []any{
		r.RecordSave,
		r.RecordDelete,
		r.RecordRelation,
		r.RenderActivity,
		r.SaveTemplate,
		r.DeleteTemplate,
	}
}
