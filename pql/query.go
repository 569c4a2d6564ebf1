package pql

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
)

// Condition is one key=value pair. Value is a string, bool, int64,
// float64, nil, api.Pointer or whatever was bound to a ? parameter.
type Condition struct {
	Key   string
	Value any
}

type Options struct {
	Order []string
	Keys  []string
	Limit *int
	Page  *int
	Start *int
}

func (o Options) empty() bool {
	return len(o.Order) == 0 && len(o.Keys) == 0 && o.Limit == nil && o.Page == nil && o.Start == nil
}

func (o Options) paging() bool {
	return o.Limit != nil || o.Page != nil || o.Start != nil
}

func (o *Options) set(opts []Condition) error {
	for _, opt := range opts {
		var err error
		switch opt.Key {
		case "order":
			o.Order, err = list(opt.Value)
		case "keys":
			o.Keys, err = list(opt.Value)
		case "limit":
			o.Limit, err = integer(opt.Value)
		case "page":
			o.Page, err = integer(opt.Value)
		case "start":
			o.Start, err = integer(opt.Value)
		default:
			err = errors.New("unknown option")
		}
		if err != nil {
			return fmt.Errorf("option %s: %w", opt.Key, err)
		}
	}
	return nil
}

func list(v any) ([]string, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected a comma separated string, got %v", v)
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty name in %q", s)
		}
		out = append(out, part)
	}
	return out, nil
}

func integer(v any) (*int, error) {
	switch v := v.(type) {
	case int:
		return &v, nil
	case int64:
		n := int(v)
		return &n, nil
	case float64:
		if v == math.Trunc(v) {
			n := int(v)
			return &n, nil
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("expected an integer, got %v", v)
}

// Query is a parsed query. Includes hold pointer field names in Class
// and may nest further.
type Query struct {
	Options  Options
	Class    string
	Filters  []Condition
	Includes []*Query
}

// IncludePaths flattens the include tree into dotted paths, parents
// first: { owner { team } } gives owner, owner.team.
func (q *Query) IncludePaths() []string {
	var paths []string
	var walk func(prefix string, includes []*Query)
	walk = func(prefix string, includes []*Query) {
		for _, inc := range includes {
			path := prefix + inc.Class
			paths = append(paths, path)
			walk(path+".", inc.Includes)
		}
	}
	walk("", q.Includes)
	return paths
}

// Descriptor converts q into input for the query encoder. Paging is
// enabled when any of limit, page or start is given.
func (q *Query) Descriptor() query.Descriptor {
	d := query.Descriptor{
		Includes: q.IncludePaths(),
		Keys:     q.Options.Keys,
		Paging:   q.Options.paging(),
		Window: query.Window{
			Page:  q.Options.Page,
			Start: q.Options.Start,
			Limit: q.Options.Limit,
		},
	}

	for _, o := range q.Options.Order {
		if strings.HasPrefix(o, "-") {
			d.Sorters = append(d.Sorters, query.Sorter{Property: o[1:], Direction: query.DESC})
		} else {
			d.Sorters = append(d.Sorters, query.Sorter{Property: o, Direction: query.ASC})
		}
	}

	for _, f := range q.Filters {
		if p, ok := f.Value.(api.Pointer); ok {
			d.Filters = append(d.Filters, query.PointerEquality{
				Property:  f.Key,
				ClassName: p.ClassName,
				ObjectID:  p.ObjectID,
			})
			continue
		}
		d.Filters = append(d.Filters, query.Equality{Property: f.Key, Value: f.Value})
	}

	return d
}

// String renders q back into the query language. Parsing the result
// gives an equal query.
func (q *Query) String() string {
	var parts []string

	if opts := q.Options.String(); opts != "" {
		parts = append(parts, opts)
	}

	head := q.Class
	if len(q.Filters) > 0 {
		filters := make([]string, 0, len(q.Filters))
		for _, f := range q.Filters {
			filters = append(filters, f.Key+"="+formatValue(f.Value))
		}
		head += "(" + strings.Join(filters, " ") + ")"
	}
	parts = append(parts, head)

	if len(q.Includes) > 0 {
		var nested []string
		for _, inc := range q.Includes {
			nested = append(nested, inc.String())
		}
		parts = append(parts, fmt.Sprintf("{ %s }", strings.Join(nested, " ")))
	}

	return strings.Join(parts, " ")
}

func (o Options) String() string {
	var opts []string
	if len(o.Order) > 0 {
		opts = append(opts, "order="+quote(strings.Join(o.Order, ",")))
	}
	if len(o.Keys) > 0 {
		opts = append(opts, "keys="+quote(strings.Join(o.Keys, ",")))
	}
	if o.Limit != nil {
		opts = append(opts, "limit="+strconv.Itoa(*o.Limit))
	}
	if o.Page != nil {
		opts = append(opts, "page="+strconv.Itoa(*o.Page))
	}
	if o.Start != nil {
		opts = append(opts, "start="+strconv.Itoa(*o.Start))
	}
	if len(opts) == 0 {
		return ""
	}
	return "(" + strings.Join(opts, " ") + ")"
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			// keep the float a float when parsed again
			s += ".0"
		}
		return s
	case api.Pointer:
		return "@" + v.ClassName + "/" + quote(v.ObjectID)
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
