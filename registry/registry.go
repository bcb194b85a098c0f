package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/observe"
)

const registrationEvent = "mcp.component.registration"

// Option configures a Registry.
type Option func(*Registry)

// WithValidator replaces the default strict validator. Use Nop to disable
// validation when the host validates component shapes upstream.
func WithValidator(v Validator) Option {
	return func(r *Registry) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithEvents enables registration observability events. Disabled (no-op) by
// default to keep boot-time registration cheap.
func WithEvents(rec observe.Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.events = rec
		}
	}
}

// Registry holds the three component maps. All mutation paths share the same
// gate: resolve, build, validate, insert; failures log, emit a failed event,
// and skip the entry.
type Registry struct {
	abilities *abilities.Registry
	validator Validator
	log       *slog.Logger
	events    observe.Recorder

	mu        sync.RWMutex
	tools     map[string]*Tool
	resources map[string]*Resource
	prompts   map[string]*Prompt
}

// New builds a component registry over the given ability registry.
func New(ab *abilities.Registry, opts ...Option) *Registry {
	r := &Registry{
		abilities: ab,
		validator: Strict{},
		log:       slog.Default(),
		events:    observe.Nop{},
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		prompts:   make(map[string]*Prompt),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Abilities exposes the backing ability registry for handlers that need to
// resolve a component's execute/permission callbacks.
func (r *Registry) Abilities() *abilities.Registry { return r.abilities }

// Validator returns the registry's validator so read paths (resource
// contents) can apply the same gate.
func (r *Registry) Validator() Validator { return r.validator }

func (r *Registry) emit(ctx context.Context, componentType, name, status string) {
	r.events.Record(ctx, observe.Event{
		Name: registrationEvent,
		Tags: map[string]string{
			"component_type": componentType,
			"component":      name,
			"status":         status,
		},
	})
}

func (r *Registry) resolveAbility(ctx context.Context, componentType, name string) (abilities.Ability, bool) {
	if r.abilities == nil {
		r.log.Warn("registry.ability.lookup.unavailable", slog.String("ability", name))
		r.emit(ctx, componentType, name, "failed")
		return nil, false
	}
	a, ok := r.abilities.Get(name)
	if !ok {
		r.log.Warn("registry.ability.missing", slog.String("ability", name), slog.String("component_type", componentType))
		r.emit(ctx, componentType, name, "failed")
		return nil, false
	}
	if !a.Meta().Public {
		r.log.Warn("registry.ability.not_public", slog.String("ability", name), slog.String("component_type", componentType))
		r.emit(ctx, componentType, name, "failed")
		return nil, false
	}
	return a, true
}

// RegisterTools resolves each ability name and exposes it as a tool. Entries
// that fail to resolve or validate are skipped.
func (r *Registry) RegisterTools(ctx context.Context, names ...string) {
	for _, name := range names {
		a, ok := r.resolveAbility(ctx, "tool", name)
		if !ok {
			continue
		}
		meta := a.Meta()
		t := &Tool{
			Name:         ToolNameForAbility(a.Name()),
			Title:        a.Label(),
			Description:  a.Description(),
			InputSchema:  a.InputSchema(),
			OutputSchema: a.OutputSchema(),
			Annotations:  meta.Annotations,
			AbilityName:  a.Name(),
		}
		if err := r.AddTool(ctx, t); err != nil {
			r.log.Warn("registry.tool.rejected", slog.String("ability", name), slog.String("err", err.Error()))
		}
	}
}

// RegisterResources resolves each ability name and exposes it as a resource.
// The ability metadata must declare a URI; otherwise registration fails for
// that entry.
func (r *Registry) RegisterResources(ctx context.Context, names ...string) {
	for _, name := range names {
		a, ok := r.resolveAbility(ctx, "resource", name)
		if !ok {
			continue
		}
		meta := a.Meta()
		if meta.URI == "" {
			r.log.Warn("registry.resource.uri_missing", slog.String("ability", name), slog.String("err", "Resource URI not found"))
			r.emit(ctx, "resource", name, "failed")
			continue
		}
		res := &Resource{
			URI:         meta.URI,
			Name:        a.Label(),
			Description: a.Description(),
			MimeType:    meta.MimeType,
			AbilityName: a.Name(),
		}
		if err := r.AddResource(ctx, res); err != nil {
			r.log.Warn("registry.resource.rejected", slog.String("ability", name), slog.String("err", err.Error()))
		}
	}
}

// RegisterPrompts accepts a mixed list of ability names (string) and
// PromptBuilder values. Entries of any other kind are silently skipped.
func (r *Registry) RegisterPrompts(ctx context.Context, entries ...any) {
	for _, entry := range entries {
		switch e := entry.(type) {
		case string:
			r.registerAbilityPrompt(ctx, e)
		case PromptBuilder:
			r.registerBuilderPrompt(ctx, e)
		default:
			// Unsupported entry kinds are ignored.
		}
	}
}

func (r *Registry) registerAbilityPrompt(ctx context.Context, name string) {
	a, ok := r.resolveAbility(ctx, "prompt", name)
	if !ok {
		return
	}
	def := PromptDefinition{
		Name:        ToolNameForAbility(a.Name()),
		Title:       a.Label(),
		Description: a.Description(),
		Arguments:   promptArgumentsFromSchema(a.InputSchema()),
	}
	if err := r.AddPrompt(ctx, NewAbilityPrompt(def, a.Name())); err != nil {
		r.log.Warn("registry.prompt.rejected", slog.String("ability", name), slog.String("err", err.Error()))
	}
}

func (r *Registry) registerBuilderPrompt(ctx context.Context, b PromptBuilder) {
	def, err := func() (def PromptDefinition, err error) {
		// Builders are host-supplied; a panicking Configure must not take
		// down registration of the remaining entries.
		defer func() {
			if rec := recover(); rec != nil {
				err = panicError(rec)
			}
		}()
		return b.Configure()
	}()
	if err != nil {
		r.log.Warn("registry.prompt.build_failed", slog.String("err", err.Error()))
		r.emit(ctx, "prompt", def.Name, "failed")
		return
	}
	if err := r.AddPrompt(ctx, NewBuilderPrompt(def, b)); err != nil {
		r.log.Warn("registry.prompt.rejected", slog.String("prompt", def.Name), slog.String("err", err.Error()))
	}
}

// AddTool inserts a pre-built tool after validation.
func (r *Registry) AddTool(ctx context.Context, t *Tool) error {
	if err := r.validator.ValidateTool(t); err != nil {
		r.emit(ctx, "tool", t.Name, "failed")
		return err
	}
	r.mu.Lock()
	r.tools[t.Name] = t
	r.mu.Unlock()
	r.emit(ctx, "tool", t.Name, "registered")
	return nil
}

// AddResource inserts a pre-built resource after validation.
func (r *Registry) AddResource(ctx context.Context, res *Resource) error {
	if err := r.validator.ValidateResource(res); err != nil {
		r.emit(ctx, "resource", res.URI, "failed")
		return err
	}
	r.mu.Lock()
	r.resources[res.URI] = res
	r.mu.Unlock()
	r.emit(ctx, "resource", res.URI, "registered")
	return nil
}

// AddPrompt inserts a pre-built prompt after validation.
func (r *Registry) AddPrompt(ctx context.Context, p *Prompt) error {
	if err := r.validator.ValidatePrompt(p); err != nil {
		r.emit(ctx, "prompt", p.Name(), "failed")
		return err
	}
	r.mu.Lock()
	r.prompts[p.Name()] = p
	r.mu.Unlock()
	r.emit(ctx, "prompt", p.Name(), "registered")
	return nil
}

// RemoveResourceByAbility drops the resource backed by the named ability,
// reporting whether one was registered. Providers that unregister abilities
// at runtime use it to keep the component map in step.
func (r *Registry) RemoveResourceByAbility(ctx context.Context, name string) bool {
	r.mu.Lock()
	uri := ""
	for u, res := range r.resources {
		if res.AbilityName == name {
			uri = u
			break
		}
	}
	if uri == "" {
		r.mu.Unlock()
		return false
	}
	delete(r.resources, uri)
	r.mu.Unlock()
	r.emit(ctx, "resource", uri, "removed")
	return true
}

// Tools returns a copy of the tool map keyed by derived tool name.
func (r *Registry) Tools() map[string]*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Tool, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}
	return out
}

// Resources returns a copy of the resource map keyed by URI.
func (r *Registry) Resources() map[string]*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Resource, len(r.resources))
	for k, v := range r.resources {
		out[k] = v
	}
	return out
}

// Prompts returns a copy of the prompt map keyed by prompt name.
func (r *Registry) Prompts() map[string]*Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Prompt, len(r.prompts))
	for k, v := range r.prompts {
		out[k] = v
	}
	return out
}

// Tool returns the tool registered under name, or nil.
func (r *Registry) Tool(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Resource returns the resource registered under uri, or nil.
func (r *Registry) Resource(uri string) *Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resources[uri]
}

// Prompt returns the prompt registered under name, or nil.
func (r *Registry) Prompt(name string) *Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.prompts[name]
}
