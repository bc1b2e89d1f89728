package options

import (
	"fmt"
	"strings"

	opts "github.com/goliatone/go-options"
	layering "github.com/goliatone/go-options/layering"
)

// DefaultExtension is used when no layer names an extension.
const DefaultExtension = ".html"

var (
	builtinScope  = opts.NewScope("builtin", opts.ScopePrioritySystem, opts.WithScopeLabel("Built-in"))
	configScope   = opts.NewScope("config", opts.ScopePriorityTenant, opts.WithScopeLabel("Configuration"))
	mediatorScope = opts.NewScope("mediator", opts.ScopePriorityUser, opts.WithScopeLabel("Mediator"))
)

// ExtensionSet is one layer of template extension settings: a default plus
// per-channel overrides.
type ExtensionSet struct {
	Default  string
	Channels map[string]string
}

func (s ExtensionSet) data() map[string]any {
	data := map[string]any{}
	if ext := NormalizeExtension(s.Default); ext != "" {
		data["default"] = ext
	}
	// Channels are flattened so layers merge key by key.
	for channel, ext := range s.Channels {
		key := channelKey(channel)
		if key == "" || NormalizeExtension(ext) == "" {
			continue
		}
		data[key] = NormalizeExtension(ext)
	}
	return data
}

// ExtensionResolver picks template extensions from layered settings. Lookup
// order: mediator channel, configured channel, mediator default, configured
// default, DefaultExtension.
type ExtensionResolver struct {
	merged *opts.Options[map[string]any]
}

// NewExtensionResolver layers the configured settings under the mediator's.
func NewExtensionResolver(config, mediator ExtensionSet) (*ExtensionResolver, error) {
	stack, err := opts.NewStack(
		layer(builtinScope, map[string]any{"default": DefaultExtension}),
		layer(configScope, config.data()),
		layer(mediatorScope, mediator.data()),
	)
	if err != nil {
		return nil, fmt.Errorf("options: extension layers: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return nil, fmt.Errorf("options: merge extension layers: %w", err)
	}
	return &ExtensionResolver{merged: merged}, nil
}

func layer(scope opts.Scope, data map[string]any) opts.Layer[map[string]any] {
	return opts.NewLayer(scope, layering.Clone(data), opts.WithSnapshotID[map[string]any](scope.Name))
}

// Extension returns the extension for channel, dot included. An empty
// channel yields the default.
func (r *ExtensionResolver) Extension(channel string) string {
	ext, _ := r.lookup(channel)
	return ext
}

// Trace reports which layer supplied the extension for channel.
func (r *ExtensionResolver) Trace(channel string) opts.Trace {
	_, trace := r.lookup(channel)
	return trace
}

func (r *ExtensionResolver) lookup(channel string) (string, opts.Trace) {
	if r == nil || r.merged == nil {
		return DefaultExtension, opts.Trace{}
	}
	paths := []string{"default"}
	if key := channelKey(channel); key != "" {
		paths = append([]string{key}, paths...)
	}
	for _, path := range paths {
		value, trace, err := r.merged.ResolveWithTrace(path)
		if err != nil {
			continue
		}
		if ext, ok := value.(string); ok && ext != "" {
			return ext, trace
		}
	}
	return DefaultExtension, opts.Trace{Path: "default"}
}

// NormalizeExtension trims the value and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func channelKey(channel string) string {
	channel = strings.ToLower(strings.TrimSpace(channel))
	if channel == "" {
		return ""
	}
	return "channel_" + strings.ReplaceAll(channel, ".", "_")
}
