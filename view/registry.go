package view

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/syssam/deepview/codec"
	"github.com/syssam/deepview/schema"
)

// keySuffix terminates every registry key, mirroring the handler naming
// scheme "{use case}{entity}Handler".
const keySuffix = "Handler"

// Key returns the registry key for a (use case, entity type) pair.
func Key(uc UseCase, entity string) string {
	return uc.Name + entity + keySuffix
}

// Registry caches one handler per (use case, entity type) key for the
// process lifetime. It is constructed explicitly at startup and safe
// for concurrent use; a handler is built at most once per key even
// under concurrent first requests.
type Registry struct {
	graph *schema.Graph

	mu       sync.RWMutex
	handlers map[string]*Handler
	codecs   map[string]codec.Codec

	group     singleflight.Group
	buildHook func(key string)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBuildHook installs a hook invoked once per handler construction,
// keyed by registry key. Used to observe build counts.
func WithBuildHook(hook func(key string)) RegistryOption {
	return func(r *Registry) { r.buildHook = hook }
}

// NewRegistry returns an empty registry over the given schema graph.
func NewRegistry(g *schema.Graph, opts ...RegistryOption) *Registry {
	r := &Registry{
		graph:    g,
		handlers: make(map[string]*Handler),
		codecs:   make(map[string]codec.Codec),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph returns the schema graph the registry serves.
func (r *Registry) Graph() *schema.Graph { return r.graph }

// Handler returns the handler for (entity, use case), building and
// caching it on first request. Two concurrent first requests for the
// same key observe a single construction and receive the identical
// instance.
func (r *Registry) Handler(entity *schema.EntityType, uc UseCase) *Handler {
	key := Key(uc, entity.Name)
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if ok {
		return h
	}
	v, _, _ := r.group.Do(key, func() (any, error) {
		// A racing caller may have finished between the fast path and
		// the singleflight entry.
		r.mu.RLock()
		h, ok := r.handlers[key]
		r.mu.RUnlock()
		if ok {
			return h, nil
		}
		h = NewHandler(r.graph, entity, uc, r.codecFor(key))
		if r.buildHook != nil {
			r.buildHook(key)
		}
		r.mu.Lock()
		// A manual Register may have landed while the handler was being
		// built; it wins, the built handler is discarded.
		if existing, ok := r.handlers[key]; ok {
			h = existing
		} else {
			r.handlers[key] = h
		}
		r.mu.Unlock()
		return h, nil
	})
	return v.(*Handler)
}

// HandlerFor resolves the entity type by name and returns its handler.
func (r *Registry) HandlerFor(entity string, uc UseCase) (*Handler, error) {
	t, ok := r.graph.Type(entity)
	if !ok {
		return nil, fmt.Errorf("deepview: unknown entity type %q", entity)
	}
	return r.Handler(t, uc), nil
}

// Register pre-registers a manually built handler. It takes precedence
// over auto-generation and is never overwritten; registering a second
// handler for the same key is an error.
func (r *Registry) Register(h *Handler) error {
	key := Key(h.useCase, h.entity.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[key]; ok {
		return fmt.Errorf("deepview: handler %q already registered", key)
	}
	r.handlers[key] = h
	return nil
}

// RegisterAll builds handlers for every entity type in the graph under
// the given use case. Intended for startup warm-up, e.g. registering
// the read-only handlers before serving.
func (r *Registry) RegisterAll(uc UseCase) []*Handler {
	types := r.graph.Types()
	hs := make([]*Handler, 0, len(types))
	for _, t := range types {
		hs = append(hs, r.Handler(t, uc))
	}
	return hs
}

// RegisterCodec supplies the serialization strategy for a (use case,
// entity type) pair, applied when that handler is built. Handlers
// without an explicit codec use codec.JSON.
func (r *Registry) RegisterCodec(entity string, uc UseCase, c codec.Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[Key(uc, entity)] = c
}

func (r *Registry) codecFor(key string) codec.Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codecs[key]
}
