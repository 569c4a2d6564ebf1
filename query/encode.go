package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aep/parsekit/api"
)

// ParamNames are the query-string keys the encoder emits.
type ParamNames struct {
	Order   string
	Where   string
	Skip    string
	Start   string
	Limit   string
	Count   string
	Include string
	Keys    string
}

func DefaultParamNames() ParamNames {
	return ParamNames{
		Order:   "order",
		Where:   "where",
		Skip:    "skip",
		Start:   "start",
		Limit:   "limit",
		Count:   "count",
		Include: "include",
		Keys:    "keys",
	}
}

// Encoder translates a Descriptor into backend query parameters. The zero
// value is not usable, use NewEncoder. An Encoder holds no mutable state
// and may be shared between goroutines.
type Encoder struct {
	Names ParamNames
}

func NewEncoder() *Encoder {
	return &Encoder{Names: DefaultParamNames()}
}

var defaultEncoder = NewEncoder()

func EncodeSorters(sorters []Sorter) (string, error) {
	return defaultEncoder.EncodeSorters(sorters)
}

func EncodeFilters(filters []Filter) (string, error) {
	return defaultEncoder.EncodeFilters(filters)
}

func EncodeWindow(window Window, paging bool) (Params, error) {
	return defaultEncoder.EncodeWindow(window, paging)
}

func EncodeIncludes(includes []string) (string, error) {
	return defaultEncoder.EncodeIncludes(includes)
}

func EncodeKeys(keys []string) (string, error) {
	return defaultEncoder.EncodeKeys(keys)
}

func BuildParameterMap(d Descriptor) (Params, error) {
	return defaultEncoder.BuildParameterMap(d)
}

func (e *Encoder) EncodeSorters(sorters []Sorter) (string, error) {
	parts := make([]string, 0, len(sorters))
	for i, s := range sorters {
		if s.Property == "" {
			return "", malformed(fmt.Sprintf("sorters[%d].property", i), "must not be empty")
		}
		if s.descending() {
			parts = append(parts, "-"+s.Property)
		} else {
			parts = append(parts, s.Property)
		}
	}
	return strings.Join(parts, ","), nil
}

// EncodeFilters reduces filters into a single where object keyed by
// property and returns it as JSON. A later filter on the same property
// replaces an earlier one.
func (e *Encoder) EncodeFilters(filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	where, err := whereObject(filters, "filters")
	if err != nil {
		return "", err
	}

	return marshal(where)
}

func (e *Encoder) EncodeWindow(window Window, paging bool) (Params, error) {
	params := Params{}
	if !paging {
		return params, nil
	}

	if window.Page != nil && *window.Page < 1 {
		return nil, invalid("window.page", "must be 1 or greater, got %d", *window.Page)
	}
	if window.Limit != nil && *window.Limit < 0 {
		return nil, invalid("window.limit", "must not be negative, got %d", *window.Limit)
	}
	if window.Start != nil && *window.Start < 0 {
		return nil, invalid("window.start", "must not be negative, got %d", *window.Start)
	}

	if window.Page != nil && window.Limit != nil && *window.Limit > 0 && *window.Page-1 > math.MaxInt / *window.Limit {
		return nil, invalid("window.page", "page %d with limit %d overflows skip", *window.Page, *window.Limit)
	}

	if window.Page != nil && window.Limit != nil {
		params[e.Names.Skip] = strconv.Itoa((*window.Page - 1) * *window.Limit)
	}
	if window.Start != nil {
		params[e.Names.Start] = strconv.Itoa(*window.Start)
	}
	if window.Limit != nil {
		params[e.Names.Limit] = strconv.Itoa(*window.Limit)
	}
	params[e.Names.Count] = "1"

	return params, nil
}

func (e *Encoder) EncodeIncludes(includes []string) (string, error) {
	return joinNames(includes, "includes")
}

func (e *Encoder) EncodeKeys(keys []string) (string, error) {
	return joinNames(keys, "keys")
}

func (e *Encoder) BuildParameterMap(d Descriptor) (Params, error) {
	params, err := e.EncodeWindow(d.Window, d.Paging)
	if err != nil {
		return nil, err
	}

	order, err := e.EncodeSorters(d.Sorters)
	if err != nil {
		return nil, err
	}
	if order != "" {
		params[e.Names.Order] = order
	}

	where, err := e.EncodeFilters(d.Filters)
	if err != nil {
		return nil, err
	}
	if where != "" {
		params[e.Names.Where] = where
	}

	include, err := e.EncodeIncludes(d.Includes)
	if err != nil {
		return nil, err
	}
	if include != "" {
		params[e.Names.Include] = include
	}

	keys, err := e.EncodeKeys(d.Keys)
	if err != nil {
		return nil, err
	}
	if keys != "" {
		params[e.Names.Keys] = keys
	}

	return params, nil
}

func joinNames(names []string, field string) (string, error) {
	for i, name := range names {
		if name == "" {
			return "", malformed(fmt.Sprintf("%s[%d]", field, i), "must not be empty")
		}
	}
	return strings.Join(names, ","), nil
}

type inQuery struct {
	ClassName string         `json:"className"`
	Where     map[string]any `json:"where,omitempty"`
}

func whereObject(filters []Filter, field string) (map[string]any, error) {
	where := make(map[string]any, len(filters))
	for i, f := range filters {
		key, value, err := filterValue(f, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		where[key] = value
	}
	return where, nil
}

func singleObject(f Filter, field string) (map[string]any, error) {
	key, value, err := filterValue(f, field)
	if err != nil {
		return nil, err
	}
	return map[string]any{key: value}, nil
}

func filterValue(f Filter, field string) (string, any, error) {
	switch f := f.(type) {
	case Equality:
		if f.Property == "" {
			return "", nil, malformed(field+".property", "must not be empty")
		}
		if _, err := json.Marshal(f.Value); err != nil {
			return "", nil, invalid(field+".value", "cannot be encoded as JSON: %v", err)
		}
		return f.Property, f.Value, nil

	case PointerEquality:
		if f.Property == "" {
			return "", nil, malformed(field+".property", "must not be empty")
		}
		if f.ClassName == "" {
			return "", nil, malformed(field+".className", "must not be empty")
		}
		if f.ObjectID == "" {
			return "", nil, malformed(field+".objectId", "must not be empty")
		}
		return f.Property, api.NewPointer(f.ClassName, f.ObjectID), nil

	case InQuery:
		if f.Property == "" {
			return "", nil, malformed(field+".property", "must not be empty")
		}
		if f.ClassName == "" {
			return "", nil, malformed(field+".className", "must not be empty")
		}
		sub := inQuery{ClassName: f.ClassName}
		if f.Where != nil {
			where, err := singleObject(f.Where, field+".where")
			if err != nil {
				return "", nil, err
			}
			sub.Where = where
		}
		return f.Property, map[string]any{"$inQuery": sub}, nil

	case Or:
		if len(f.Operands) == 0 {
			return "", nil, malformed(field+".operands", "must not be empty")
		}
		operands := make([]map[string]any, 0, len(f.Operands))
		for i, op := range f.Operands {
			obj, err := singleObject(op, fmt.Sprintf("%s.operands[%d]", field, i))
			if err != nil {
				return "", nil, err
			}
			operands = append(operands, obj)
		}
		return f.Key(), operands, nil

	case nil:
		return "", nil, invalid(field, "filter must not be nil")
	}

	return "", nil, invalid(field, "unsupported filter type %T", f)
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encoding where: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
