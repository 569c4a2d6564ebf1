package mock

import (
	"slices"

	"github.com/aep/parsekit/api"
)

// relationChange adds or removes one member of a relation. Changes are
// collected while applying an update and committed once all of it
// succeeded.
type relationChange struct {
	key     relationKey
	pointer api.Pointer
	add     bool
}

// apply writes fields into obj, executing __op operations, and returns
// the relation changes to commit. The caller must hold the write lock.
func (s *store) apply(className, id string, obj api.Object, fields map[string]any) ([]relationChange, error) {
	var changes []relationChange
	for k, v := range fields {
		if reservedField(k) {
			continue
		}

		if op, ok := v.(map[string]any); ok {
			if name, ok := op["__op"].(string); ok {
				c, err := applyOp(className, id, obj, k, name, op)
				if err != nil {
					return nil, err
				}
				changes = append(changes, c...)
				continue
			}
		}

		obj[k] = v
	}
	return changes, nil
}

// commitRelations applies changes in order. The caller must hold the
// write lock.
func (s *store) commitRelations(changes []relationChange) {
	for _, c := range changes {
		members := s.relations[c.key]
		if members == nil {
			members = make(map[string]api.Pointer)
			s.relations[c.key] = members
		}
		if c.add {
			members[c.pointer.ObjectID] = c.pointer
		} else {
			delete(members, c.pointer.ObjectID)
		}
	}
}

func applyOp(className, id string, obj api.Object, field, name string, op map[string]any) ([]relationChange, error) {
	switch name {
	case api.OpAdd, api.OpAddUnique, api.OpRemove:
		objects, ok := op["objects"].([]any)
		if !ok {
			return nil, errInvalidJSON("%s on %s requires an objects array", name, field)
		}
		current, _ := obj[field].([]any)
		if _, exists := obj[field]; exists && current == nil {
			return nil, errInvalidJSON("%s is not an array", field)
		}
		obj[field] = applyArrayOp(name, current, objects)

	case api.OpAddRelation, api.OpRemoveRelation:
		objects, ok := op["objects"].([]any)
		if !ok {
			return nil, errInvalidJSON("%s on %s requires an objects array", name, field)
		}
		return applyRelation(className, id, obj, field, name, objects)

	case api.OpIncrement:
		amount, ok := normalize(op["amount"]).(float64)
		if !ok {
			return nil, errInvalidJSON("Increment on %s requires a numeric amount", field)
		}
		current := 0.0
		if v, exists := obj[field]; exists {
			current, ok = normalize(v).(float64)
			if !ok {
				return nil, errInvalidJSON("cannot increment non-number field %s", field)
			}
		}
		obj[field] = current + amount

	case api.OpDelete:
		delete(obj, field)

	default:
		return nil, errInvalidJSON("unknown operation %s", name)
	}
	return nil, nil
}

func applyArrayOp(name string, current, objects []any) []any {
	out := slices.Clone(current)
	if out == nil {
		out = []any{}
	}

	contains := func(list []any, v any) bool {
		return slices.ContainsFunc(list, func(x any) bool { return equalValues(x, v) })
	}

	switch name {
	case api.OpAdd:
		out = append(out, objects...)
	case api.OpAddUnique:
		for _, o := range objects {
			if !contains(out, o) {
				out = append(out, o)
			}
		}
	case api.OpRemove:
		out = slices.DeleteFunc(out, func(x any) bool { return contains(objects, x) })
	}
	return out
}

func applyRelation(className, id string, obj api.Object, field, name string, objects []any) ([]relationChange, error) {
	pointers := make([]api.Pointer, 0, len(objects))
	for _, o := range objects {
		m, ok := o.(map[string]any)
		if !ok || m["__type"] != api.TypePointer {
			return nil, errInvalidJSON("%s on %s requires pointers", name, field)
		}
		cn, _ := m["className"].(string)
		oid, _ := m["objectId"].(string)
		if cn == "" || oid == "" {
			return nil, errInvalidJSON("%s on %s requires pointers", name, field)
		}
		if len(pointers) > 0 && pointers[0].ClassName != cn {
			return nil, errInvalidJSON("all objects in a relation must have the same class")
		}
		pointers = append(pointers, api.NewPointer(cn, oid))
	}
	if len(pointers) == 0 {
		return nil, nil
	}

	if existing, ok := obj[field].(map[string]any); ok {
		if existing["__type"] == "Relation" && existing["className"] != pointers[0].ClassName {
			return nil, errInvalidJSON("relation %s holds %v objects", field, existing["className"])
		}
	}

	key := relationKey{className, id, field}
	changes := make([]relationChange, 0, len(pointers))
	for _, p := range pointers {
		changes = append(changes, relationChange{key: key, pointer: p, add: name == api.OpAddRelation})
	}

	obj[field] = map[string]any{
		"__type":    "Relation",
		"className": pointers[0].ClassName,
	}
	return changes, nil
}
