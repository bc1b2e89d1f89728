package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internaltemplates "github.com/goliatone/go-activities/internal/templates"
	"github.com/goliatone/go-activities/pkg/domain"
	"github.com/goliatone/go-activities/pkg/interfaces/cache"
	"github.com/goliatone/go-activities/pkg/interfaces/logger"
	"github.com/goliatone/go-activities/pkg/interfaces/store"
	i18n "github.com/goliatone/go-i18n"
)

// ErrTemplateNotFound is returned when none of the candidate names exist.
var ErrTemplateNotFound = errors.New("templates: template not found")

// Service selects the first existing template among candidates and renders it.
type Service struct {
	loader     Loader
	repo       store.TemplateRepository
	cache      cache.Cache
	logger     logger.Logger
	engine     *internaltemplates.Engine
	cacheTTL   time.Duration
	translator i18n.Translator
}

// Dependencies wires loaders, cache and the optional translator. Loaders are
// consulted in order: Loaders, then the Repository.
type Dependencies struct {
	Loaders       []Loader
	Repository    store.TemplateRepository
	Cache         cache.Cache
	Logger        logger.Logger
	Translator    i18n.Translator
	DefaultLocale string
	CacheTTL      time.Duration
	Helpers       map[string]any
}

// TemplateInput captures editable template fields.
type TemplateInput struct {
	Name        string
	Body        string
	Description string
	Metadata    domain.JSONMap
}

var errNoLoaders = errors.New("templates: at least one loader or repository is required")

// New instantiates the templates service.
func New(deps Dependencies) (*Service, error) {
	chain := make(Chain, 0, len(deps.Loaders)+1)
	for _, loader := range deps.Loaders {
		if loader != nil {
			chain = append(chain, loader)
		}
	}
	if deps.Repository != nil {
		chain = append(chain, RepositoryLoader{Repository: deps.Repository})
	}
	if len(chain) == 0 {
		return nil, errNoLoaders
	}
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = &logger.Nop{}
	}

	engineOpts := []internaltemplates.Option{
		internaltemplates.WithDefaultLocale(deps.DefaultLocale),
		internaltemplates.WithHelperFuncs(deps.Helpers),
	}
	if deps.Translator != nil {
		engineOpts = append(engineOpts, internaltemplates.WithTranslator(deps.Translator))
	}
	engine, err := internaltemplates.NewEngine(engineOpts...)
	if err != nil {
		return nil, err
	}

	return &Service{
		loader:     chain,
		repo:       deps.Repository,
		cache:      deps.Cache,
		logger:     deps.Logger,
		engine:     engine,
		cacheTTL:   deps.CacheTTL,
		translator: deps.Translator,
	}, nil
}

// RegisterHelpers exposes helper registration to callers.
func (s *Service) RegisterHelpers(funcs map[string]any) {
	if s == nil {
		return
	}
	s.engine.RegisterHelpers(funcs)
}

// Select returns the first candidate that exists along with its body.
func (s *Service) Select(ctx context.Context, names ...string) (string, string, error) {
	if s == nil {
		return "", "", errNoLoaders
	}
	for _, name := range names {
		if body, ok := s.readCache(ctx, name); ok {
			return name, body, nil
		}
		body, err := s.loader.Load(ctx, name)
		if errors.Is(err, ErrTemplateNotFound) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("templates: load %s: %w", name, err)
		}
		s.writeCache(ctx, name, body)
		return name, body, nil
	}
	return "", "", fmt.Errorf("%w: tried %s", ErrTemplateNotFound, strings.Join(names, ", "))
}

// Render selects the first existing candidate and renders it with data.
func (s *Service) Render(ctx context.Context, names []string, data map[string]any) (string, error) {
	name, body, err := s.Select(ctx, names...)
	if err != nil {
		return "", err
	}
	out, err := s.engine.RenderString(ctx, body, data)
	if err != nil {
		s.logger.Warn("activity template render failed",
			logger.Field{Key: "template", Value: name},
			logger.Field{Key: "error", Value: err},
		)
		return "", err
	}
	return out, nil
}

// Save creates or replaces a repository backed template and drops its cache entry.
func (s *Service) Save(ctx context.Context, input TemplateInput) (*domain.ActivityTemplate, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("templates: repository is required")
	}
	input.Name = normalizeName(input.Name)
	if input.Name == "" {
		return nil, errors.New("templates: name is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, errors.New("templates: body is required")
	}

	current, err := s.repo.GetByName(ctx, input.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		record := &domain.ActivityTemplate{
			Name:        input.Name,
			Body:        input.Body,
			Description: strings.TrimSpace(input.Description),
			Metadata:    input.Metadata,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, err
		}
		s.invalidate(ctx, input.Name)
		return record, nil
	case err != nil:
		return nil, err
	}

	current.Body = input.Body
	if desc := strings.TrimSpace(input.Description); desc != "" {
		current.Description = desc
	}
	if input.Metadata != nil {
		current.Metadata = input.Metadata
	}
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	s.invalidate(ctx, input.Name)
	return current, nil
}

// Delete soft deletes a repository template.
func (s *Service) Delete(ctx context.Context, name string) error {
	if s == nil || s.repo == nil {
		return errors.New("templates: repository is required")
	}
	tpl, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, tpl.ID); err != nil {
		return err
	}
	s.invalidate(ctx, name)
	return nil
}

func (s *Service) readCache(ctx context.Context, name string) (string, bool) {
	if s.cacheTTL <= 0 {
		return "", false
	}
	value, ok, err := s.cache.Get(ctx, cacheKey(name))
	if err != nil {
		s.logger.Warn("templates cache get failed", logger.Field{Key: "error", Value: err})
		return "", false
	}
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		s.logger.Warn("templates cache returned unexpected type", logger.Field{Key: "type", Value: fmt.Sprintf("%T", value)})
		return "", false
	}
}

func (s *Service) writeCache(ctx context.Context, name, body string) {
	if s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(name), body, s.cacheTTL); err != nil {
		s.logger.Warn("templates cache set failed", logger.Field{Key: "error", Value: err})
	}
}

func (s *Service) invalidate(ctx context.Context, name string) {
	if err := s.cache.Delete(ctx, cacheKey(name)); err != nil {
		s.logger.Warn("templates cache delete failed", logger.Field{Key: "error", Value: err})
	}
}

func cacheKey(name string) string {
	return "templates:" + strings.ToLower(normalizeName(name))
}
