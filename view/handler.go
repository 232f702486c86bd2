package view

import (
	"strings"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/codec"
	"github.com/syssam/deepview/schema"
)

// Handler owns everything derived once per (use case, entity type)
// pair: the legal relation-path set, the filterable field set, and the
// serialization strategy. Handlers are immutable and shared by every
// request for their key.
type Handler struct {
	entity   *schema.EntityType
	useCase  UseCase
	paths    []string
	pathSet  map[string]struct{}
	fieldSet map[string]struct{}
	codec    codec.Codec
}

// NewHandler computes the path sets for entity via the graph walker and
// returns a ready handler. A nil codec falls back to codec.JSON.
// Exclusion is a per-request concern; nothing is excluded here.
func NewHandler(g *schema.Graph, entity *schema.EntityType, uc UseCase, c codec.Codec) *Handler {
	if c == nil {
		c = codec.JSON
	}
	paths := g.Paths(entity)
	pathSet := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		pathSet[p] = struct{}{}
	}
	fields := g.FieldPaths(entity)
	fieldSet := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		fieldSet[f] = struct{}{}
	}
	return &Handler{
		entity:   entity,
		useCase:  uc,
		paths:    paths,
		pathSet:  pathSet,
		fieldSet: fieldSet,
		codec:    c,
	}
}

// Entity returns the entity type the handler serves.
func (h *Handler) Entity() *schema.EntityType { return h.entity }

// UseCase returns the use case the handler was built for.
func (h *Handler) UseCase() UseCase { return h.useCase }

// AllowWrite reports whether the handler accepts write operations.
func (h *Handler) AllowWrite() bool { return h.useCase.AllowWrite }

// Writable returns deepview.ErrReadOnly when the handler's use case
// does not allow writes. Callers gate every write path on it.
func (h *Handler) Writable() error {
	if !h.useCase.AllowWrite {
		return deepview.ErrReadOnly
	}
	return nil
}

// DefaultDepth returns the eager-loading depth used when the request
// carries no depth parameter.
func (h *Handler) DefaultDepth() int { return h.useCase.DefaultDepth }

// Codec returns the serialization strategy attached to the handler.
func (h *Handler) Codec() codec.Codec { return h.codec }

// Paths returns the legal relation paths of the entity, sorted. The
// returned slice is a copy; the cached set is never mutated.
func (h *Handler) Paths() []string {
	ps := make([]string, len(h.paths))
	copy(ps, h.paths)
	return ps
}

// HasPath reports whether p is a legal relation path of the entity.
func (h *Handler) HasPath(p string) bool {
	_, ok := h.pathSet[p]
	return ok
}

// LegalField reports whether name can be used as a filter key: a
// scalar field of the root, a relation path, or a relation path ending
// in a scalar field of the reached entity. The name is matched exactly;
// direction prefixes belong to ordering keys only.
func (h *Handler) LegalField(name string) bool {
	_, ok := h.fieldSet[name]
	return ok
}

// LegalOrderKey reports whether name can order results: a legal field,
// optionally carrying the "-" descending prefix.
func (h *Handler) LegalOrderKey(name string) bool {
	return h.LegalField(strings.TrimPrefix(name, "-"))
}
