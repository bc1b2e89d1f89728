package templates

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	i18n "github.com/goliatone/go-i18n"
	gotemplate "github.com/goliatone/go-template"
)

var (
	// ErrRendererConfig reports a go-template renderer that could not be built.
	ErrRendererConfig = errors.New("templates: renderer configuration is incomplete")
	// ErrEmptyTemplate is returned for a blank activity template body.
	ErrEmptyTemplate = errors.New("templates: template body is empty")
)

// Engine renders template bodies with go-template and keeps helper functions
// registered on the renderer.
type Engine struct {
	renderer      *gotemplate.Engine
	helpersMu     sync.RWMutex
	helpers       map[string]any
	translator    i18n.Translator
	defaultLocale string
	localeKey     string
	renderMu      sync.Mutex
}

type engineOptions struct {
	translator     i18n.Translator
	defaultLocale  string
	helperFuncs    []map[string]any
	rendererOpts   []gotemplate.Option
	missingHandler i18n.MissingTranslationHandler
	localeKey      string
}

// Option configures the engine.
type Option func(*engineOptions)

// WithTranslator exposes the go-i18n `t` helper to templates.
func WithTranslator(translator i18n.Translator) Option {
	return func(o *engineOptions) {
		o.translator = translator
	}
}

// WithDefaultLocale sets the locale injected when render data has none.
func WithDefaultLocale(locale string) Option {
	return func(o *engineOptions) {
		o.defaultLocale = locale
	}
}

// WithHelperFuncs registers additional helper functions with the renderer.
func WithHelperFuncs(funcs map[string]any) Option {
	return func(o *engineOptions) {
		if len(funcs) == 0 {
			return
		}
		o.helperFuncs = append(o.helperFuncs, funcs)
	}
}

// WithRendererOptions forwards options directly to go-template's renderer.
func WithRendererOptions(opts ...gotemplate.Option) Option {
	return func(o *engineOptions) {
		o.rendererOpts = append(o.rendererOpts, opts...)
	}
}

// WithLocaleKey customizes the data key that carries the locale.
func WithLocaleKey(key string) Option {
	return func(o *engineOptions) {
		if key == "" {
			return
		}
		o.localeKey = key
	}
}

// WithMissingTranslationHandler customizes how go-i18n helpers surface missing keys.
func WithMissingTranslationHandler(handler i18n.MissingTranslationHandler) Option {
	return func(o *engineOptions) {
		o.missingHandler = handler
	}
}

// NewEngine builds the renderer and registers the default helpers plus the
// i18n helpers when a translator is configured.
func NewEngine(opts ...Option) (*Engine, error) {
	settings := engineOptions{localeKey: "locale"}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	defaultLocale := strings.TrimSpace(settings.defaultLocale)
	if defaultLocale == "" && settings.translator != nil {
		if provider, ok := settings.translator.(interface{ DefaultLocale() string }); ok {
			defaultLocale = provider.DefaultLocale()
		}
	}
	if defaultLocale == "" {
		defaultLocale = "en"
	}

	rendererOpts := append([]gotemplate.Option{gotemplate.WithBaseDir(".")}, settings.rendererOpts...)
	renderer, err := gotemplate.NewRenderer(rendererOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendererConfig, err)
	}

	engine := &Engine{
		renderer:      renderer,
		helpers:       make(map[string]any),
		translator:    settings.translator,
		defaultLocale: defaultLocale,
		localeKey:     settings.localeKey,
	}
	engine.RegisterHelpers(defaultHelperFuncs())
	if settings.translator != nil {
		engine.RegisterHelpers(i18n.TemplateHelpers(settings.translator, i18n.HelperConfig{
			LocaleKey:         engine.localeKey,
			TemplateHelperKey: "t",
			OnMissing:         settings.missingHandler,
		}))
	}
	for _, funcs := range settings.helperFuncs {
		engine.RegisterHelpers(funcs)
	}
	return engine, nil
}

// RegisterHelpers adds helper functions to the renderer. A nil value removes
// the helper from the registry listing.
func (e *Engine) RegisterHelpers(funcs map[string]any) {
	if e == nil || len(funcs) == 0 {
		return
	}
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	for key, fn := range funcs {
		if fn == nil {
			delete(e.helpers, key)
			continue
		}
		e.helpers[key] = fn
	}
	gotemplate.WithTemplateFunc(funcs)(e.renderer)
}

// Helpers lists the registered helper names.
func (e *Engine) Helpers() map[string]any {
	if e == nil {
		return nil
	}
	e.helpersMu.RLock()
	defer e.helpersMu.RUnlock()
	return maps.Clone(e.helpers)
}

// DefaultLocale returns the locale injected when data carries none.
func (e *Engine) DefaultLocale() string {
	return e.defaultLocale
}

// RenderString renders body with data. The locale key is filled with the
// default locale when missing.
func (e *Engine) RenderString(ctx context.Context, body string, data map[string]any) (string, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if e == nil || e.renderer == nil {
		return "", ErrRendererConfig
	}
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyTemplate
	}
	payload := make(map[string]any, len(data)+1)
	maps.Copy(payload, data)
	if locale, _ := payload[e.localeKey].(string); strings.TrimSpace(locale) == "" {
		payload[e.localeKey] = e.defaultLocale
	}

	e.renderMu.Lock()
	defer e.renderMu.Unlock()
	out, err := e.renderer.RenderString(body, payload)
	if err != nil {
		return "", fmt.Errorf("templates: render: %w", err)
	}
	return out, nil
}
