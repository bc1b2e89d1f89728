package templates

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/goliatone/go-activities/pkg/interfaces/store"
)

// Loader returns the body of a named template, or ErrTemplateNotFound.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string) (string, error)

func (f LoaderFunc) Load(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// MapLoader serves templates from memory.
type MapLoader struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewMapLoader seeds a loader with name to body pairs.
func NewMapLoader(seed map[string]string) *MapLoader {
	loader := &MapLoader{templates: make(map[string]string, len(seed))}
	for name, body := range seed {
		loader.templates[normalizeName(name)] = body
	}
	return loader
}

// Set adds or replaces a template.
func (l *MapLoader) Set(name, body string) {
	l.mu.Lock()
	l.templates[normalizeName(name)] = body
	l.mu.Unlock()
}

func (l *MapLoader) Load(_ context.Context, name string) (string, error) {
	l.mu.RLock()
	body, ok := l.templates[normalizeName(name)]
	l.mu.RUnlock()
	if !ok {
		return "", ErrTemplateNotFound
	}
	return body, nil
}

// FSLoader reads templates from a file system such as os.DirFS or embed.FS.
type FSLoader struct {
	FS fs.FS
}

func (l FSLoader) Load(_ context.Context, name string) (string, error) {
	if l.FS == nil {
		return "", ErrTemplateNotFound
	}
	data, err := fs.ReadFile(l.FS, normalizeName(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return "", ErrTemplateNotFound
		}
		return "", err
	}
	return string(data), nil
}

// RepositoryLoader reads templates stored as ActivityTemplate records.
type RepositoryLoader struct {
	Repository store.TemplateRepository
}

func (l RepositoryLoader) Load(ctx context.Context, name string) (string, error) {
	if l.Repository == nil {
		return "", ErrTemplateNotFound
	}
	tpl, err := l.Repository.GetByName(ctx, normalizeName(name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrTemplateNotFound
		}
		return "", err
	}
	return tpl.Body, nil
}

// Chain tries loaders in order; the first hit wins.
type Chain []Loader

func (c Chain) Load(ctx context.Context, name string) (string, error) {
	for _, loader := range c {
		if loader == nil {
			continue
		}
		body, err := loader.Load(ctx, name)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}
	}
	return "", ErrTemplateNotFound
}

func normalizeName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}
