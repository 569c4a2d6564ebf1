package mock

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/aep/parsekit/api"
)

// matches evaluates the where shapes the query encoder produces: plain
// equality (including pointers), $or and $inQuery. The caller must hold
// the lock.
func (s *store) matches(obj api.Object, where map[string]any) (bool, error) {
	for key, cond := range where {
		if key == "$or" {
			ok, err := s.matchOr(obj, cond)
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		if strings.HasPrefix(key, "$") {
			return false, errInvalidQuery("unsupported query operator %s", key)
		}

		if m, ok := cond.(map[string]any); ok && isOperator(m) {
			sub, ok := m["$inQuery"]
			if !ok || len(m) != 1 {
				return false, errInvalidQuery("unsupported constraint on %s", key)
			}
			ok, err := s.matchInQuery(obj[key], sub)
			if err != nil || !ok {
				return false, err
			}
			continue
		}

		if !equalValues(obj[key], cond) {
			return false, nil
		}
	}
	return true, nil
}

func (s *store) matchOr(obj api.Object, cond any) (bool, error) {
	operands, ok := cond.([]any)
	if !ok || len(operands) == 0 {
		return false, errInvalidQuery("$or must be a non-empty array")
	}
	for _, op := range operands {
		sub, ok := op.(map[string]any)
		if !ok {
			return false, errInvalidQuery("$or operands must be objects")
		}
		ok, err := s.matches(obj, sub)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *store) matchInQuery(value any, sub any) (bool, error) {
	sq, ok := sub.(map[string]any)
	if !ok {
		return false, errInvalidQuery("$inQuery must be an object")
	}
	className, _ := sq["className"].(string)
	if className == "" {
		return false, errInvalidQuery("$inQuery requires a className")
	}

	var where map[string]any
	if w, ok := sq["where"]; ok && w != nil {
		where, ok = w.(map[string]any)
		if !ok {
			return false, errInvalidQuery("$inQuery where must be an object")
		}
	}

	found, err := s.filter(className, where)
	if err != nil {
		return false, err
	}
	ids := make(map[string]bool, len(found))
	for _, obj := range found {
		ids[obj.ObjectID()] = true
	}

	pointsInto := func(v any) bool {
		p, ok := v.(map[string]any)
		if !ok || p["__type"] != api.TypePointer || p["className"] != className {
			return false
		}
		id, _ := p["objectId"].(string)
		return ids[id]
	}

	if arr, ok := value.([]any); ok {
		for _, v := range arr {
			if pointsInto(v) {
				return true, nil
			}
		}
		return false, nil
	}
	return pointsInto(value), nil
}

func isOperator(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// normalize converts all numbers to float64 so values decoded from
// different sources compare equal.
func normalize(v any) any {
	switch v := v.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case api.Object:
		return normalize(map[string]any(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = normalize(x)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = normalize(x)
		}
		return out
	}
	return v
}

// equalValues compares a stored value with a query value. A scalar query
// value matches an array field containing it.
func equalValues(stored, want any) bool {
	s, w := normalize(stored), normalize(want)
	if arr, ok := s.([]any); ok {
		if _, wantArr := w.([]any); !wantArr {
			for _, item := range arr {
				if reflect.DeepEqual(item, w) {
					return true
				}
			}
			return false
		}
	}
	return reflect.DeepEqual(s, w)
}

func compareValues(a, b any) int {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// lessByOrder compares by a list of keys, each optionally prefixed
// with - for descending order.
func lessByOrder(a, b api.Object, order []string) bool {
	for _, key := range order {
		desc := strings.HasPrefix(key, "-")
		key = strings.TrimPrefix(key, "-")

		c := compareValues(a[key], b[key])
		if desc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// includePath replaces the pointer at path with the object it points to.
// The caller must hold the lock.
func (s *store) includePath(obj map[string]any, path []string) {
	if len(path) == 0 || path[0] == "" {
		return
	}
	v, ok := obj[path[0]]
	if !ok {
		return
	}
	obj[path[0]] = s.expand(v, path[1:])
}

func (s *store) expand(v any, rest []string) any {
	switch v := v.(type) {
	case map[string]any:
		switch v["__type"] {
		case api.TypePointer:
			className, _ := v["className"].(string)
			id, _ := v["objectId"].(string)
			target, ok := s.lookup(className, id)
			if !ok {
				return v
			}
			full := present(deepCopyObject(target))
			full["__type"] = "Object"
			full["className"] = className
			s.includePath(full, rest)
			return map[string]any(full)
		case "Object":
			s.includePath(v, rest)
		}
	case []any:
		for i, item := range v {
			v[i] = s.expand(item, rest)
		}
	}
	return v
}
