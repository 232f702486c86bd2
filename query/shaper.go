package query

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/schema"
	"github.com/syssam/deepview/view"
)

// Shape resolves a Plan from the handler's legal path set and the
// request parameters:
//
//  1. effective depth is the request depth, else the handler default;
//  2. excluded paths prune their whole subtree (whole-segment prefix
//     match, not substring);
//  3. paths deeper than the effective depth are dropped; depth 0 loads
//     the root entity only;
//  4. filter and ordering keys are looked up against the handler's
//     legal field set; unknown keys are dropped silently.
func Shape(h *view.Handler, p Params) (*Plan, error) {
	depth := h.DefaultDepth()
	if p.Depth != nil {
		if *p.Depth < 0 {
			return nil, deepview.NewInvalidParameterError(paramDepth, strconv.Itoa(*p.Depth), errors.New("must be non-negative"))
		}
		depth = *p.Depth
	}

	plan := &Plan{}
	for _, path := range h.Paths() {
		if excluded(path, p.Exclude) {
			continue
		}
		if len(schema.Segments(path)) > depth {
			continue
		}
		plan.EagerLoad = append(plan.EagerLoad, path)
	}

	for key, value := range p.Filters {
		key = Normalize(key)
		if !h.LegalField(key) {
			continue
		}
		plan.Filters = append(plan.Filters, Filter{Field: key, Value: value})
	}
	sort.Slice(plan.Filters, func(i, j int) bool {
		return plan.Filters[i].Field < plan.Filters[j].Field
	})

	for _, field := range p.OrderBy {
		field = Normalize(field)
		if !h.LegalOrderKey(field) {
			continue
		}
		desc := strings.HasPrefix(field, "-")
		plan.OrderBy = append(plan.OrderBy, Order{Field: strings.TrimPrefix(field, "-"), Desc: desc})
	}
	return plan, nil
}

// excluded reports whether path equals an exclusion or lies in an
// excluded subtree. Matching is on whole path segments: excluding
// "author" prunes "author.profile" but not "authored".
func excluded(path string, exclude []string) bool {
	for _, ex := range exclude {
		if ex == "" {
			continue
		}
		if path == ex || strings.HasPrefix(path, ex+schema.PathSeparator) {
			return true
		}
	}
	return false
}
