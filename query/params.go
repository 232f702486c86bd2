// Package query turns untrusted request parameters into validated
// fetch plans. Every filter and ordering key is a lookup against the
// handler's precomputed legal set; unknown keys are dropped, never
// interpreted.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/syssam/deepview"
	"github.com/syssam/deepview/schema"
)

// Reserved parameter names of the request vocabulary. Any other key is
// an equality filter candidate.
const (
	paramDepth   = "depth"
	paramExclude = "exclude"
	paramOrderBy = "order_by"
)

// wireSeparator is the path separator accepted on the wire in addition
// to the canonical dotted form, e.g. "author__name".
const wireSeparator = "__"

// Params carries the recognized request parameters for one request.
type Params struct {
	// Depth limits eager loading to paths of at most Depth segments.
	// Nil means the handler's default depth.
	Depth *int
	// Exclude prunes the named relation paths and their subtrees.
	Exclude []string
	// Filters are equality predicates keyed by field name or dotted
	// field path.
	Filters map[string]string
	// OrderBy lists ordering fields, first entry is the primary sort.
	// A leading "-" sorts descending.
	OrderBy []string
}

// ParseValues extracts Params from raw query values. A type-malformed
// depth yields a *deepview.InvalidParameterError; everything else is
// collected as-is and validated later by Shape.
func ParseValues(values url.Values) (Params, error) {
	var p Params
	for key, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := vs[0]
		switch key {
		case paramDepth:
			d, err := strconv.Atoi(v)
			if err != nil {
				return Params{}, deepview.NewInvalidParameterError(paramDepth, v, err)
			}
			p.Depth = &d
		case paramExclude:
			for _, e := range strings.Split(v, ",") {
				if e = Normalize(strings.TrimSpace(e)); e != "" {
					p.Exclude = append(p.Exclude, e)
				}
			}
		case paramOrderBy:
			for _, f := range strings.Split(v, ",") {
				if f = Normalize(strings.TrimSpace(f)); f != "" {
					p.OrderBy = append(p.OrderBy, f)
				}
			}
		default:
			if p.Filters == nil {
				p.Filters = make(map[string]string)
			}
			p.Filters[Normalize(key)] = v
		}
	}
	return p, nil
}

// Normalize rewrites the wire separator to the canonical dotted form.
func Normalize(key string) string {
	return strings.ReplaceAll(key, wireSeparator, schema.PathSeparator)
}
