package mock

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aep/parsekit/api"
	"github.com/google/uuid"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

var classNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type class struct {
	objects map[string]api.Object
	order   []string
}

type relationKey struct {
	class, id, field string
}

type storedFile struct {
	contentType string
	data        []byte
}

// store keeps all objects in memory. Objects handed out are deep copies.
type store struct {
	mu        sync.RWMutex
	classes   map[string]*class
	relations map[relationKey]map[string]api.Pointer
	files     map[string]storedFile
	now       func() time.Time
}

func newStore() *store {
	return &store{
		classes:   make(map[string]*class),
		relations: make(map[relationKey]map[string]api.Pointer),
		files:     make(map[string]storedFile),
		now:       time.Now,
	}
}

func newObjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

func validClassName(name string) error {
	if !classNamePattern.MatchString(name) {
		return &apiError{400, codeInvalidClassName, fmt.Sprintf("invalid class name: %s", name)}
	}
	return nil
}

func (s *store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *store) create(className string, fields map[string]any) (api.Object, error) {
	if err := validClassName(className); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(className, fields, nil)
}

// insertLocked stores a new object built from fields. hidden fields are
// set verbatim and never returned to clients. The caller must hold the
// write lock.
func (s *store) insertLocked(className string, fields, hidden map[string]any) (api.Object, error) {
	cl, ok := s.classes[className]
	if !ok {
		cl = &class{objects: make(map[string]api.Object)}
		s.classes[className] = cl
	}

	id := newObjectID()
	for cl.objects[id] != nil {
		id = newObjectID()
	}

	now := s.timestamp()
	obj := api.Object{
		"objectId":  id,
		"createdAt": now,
		"updatedAt": now,
	}
	changes, err := s.apply(className, id, obj, fields)
	if err != nil {
		return nil, err
	}
	for k, v := range hidden {
		obj[k] = v
	}

	cl.objects[id] = obj
	cl.order = append(cl.order, id)
	s.commitRelations(changes)

	return present(deepCopyObject(obj)), nil
}

func (s *store) get(className, id string, includes []string) (api.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.lookup(className, id)
	if !ok {
		return nil, errNotFound()
	}

	out := deepCopyObject(obj)
	for _, path := range includes {
		s.includePath(out, strings.Split(path, "."))
	}
	return present(out), nil
}

func (s *store) update(className, id string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.lookup(className, id)
	if !ok {
		return "", errNotFound()
	}

	// apply to a copy so a failing operation leaves the object untouched
	updated := deepCopyObject(obj)
	changes, err := s.apply(className, id, updated, fields)
	if err != nil {
		return "", err
	}

	now := s.timestamp()
	updated["updatedAt"] = now
	s.classes[className].objects[id] = updated
	s.commitRelations(changes)
	return now, nil
}

func (s *store) delete(className, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, ok := s.classes[className]
	if !ok || cl.objects[id] == nil {
		return errNotFound()
	}

	delete(cl.objects, id)
	for i, oid := range cl.order {
		if oid == id {
			cl.order = append(cl.order[:i], cl.order[i+1:]...)
			break
		}
	}
	for k := range s.relations {
		if k.class == className && k.id == id {
			delete(s.relations, k)
		}
	}
	return nil
}

type findQuery struct {
	where   map[string]any
	order   []string
	skip    int
	limit   int
	count   bool
	include []string
	keys    []string
}

func (s *store) find(className string, q findQuery) ([]api.Object, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.filter(className, q.where)
	if err != nil {
		return nil, 0, err
	}

	if len(q.order) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return lessByOrder(matched[i], matched[j], q.order)
		})
	}

	total := len(matched)

	if q.skip > len(matched) {
		matched = nil
	} else {
		matched = matched[q.skip:]
	}
	if q.limit < len(matched) {
		matched = matched[:q.limit]
	}

	results := make([]api.Object, 0, len(matched))
	for _, obj := range matched {
		out := deepCopyObject(obj)
		for _, path := range q.include {
			s.includePath(out, strings.Split(path, "."))
		}
		if len(q.keys) > 0 {
			out = project(out, q.keys)
		}
		results = append(results, present(out))
	}

	return results, total, nil
}

// filter returns the objects of className matching where, in insertion
// order. The caller must hold the lock.
func (s *store) filter(className string, where map[string]any) ([]api.Object, error) {
	cl, ok := s.classes[className]
	if !ok {
		return nil, nil
	}

	var matched []api.Object
	for _, id := range cl.order {
		obj := cl.objects[id]
		ok, err := s.matches(obj, where)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}

func (s *store) lookup(className, id string) (api.Object, bool) {
	cl, ok := s.classes[className]
	if !ok {
		return nil, false
	}
	obj, ok := cl.objects[id]
	return obj, ok
}

func (s *store) relationMembers(className, id, field string) []api.Pointer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.relations[relationKey{className, id, field}]
	out := make([]api.Pointer, 0, len(members))
	for _, p := range members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID < out[j].ObjectID })
	return out
}

func (s *store) putFile(name string, f storedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = f
}

func (s *store) file(name string) (storedFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[name]
	return f, ok
}

func reservedField(name string) bool {
	switch name {
	case "objectId", "createdAt", "updatedAt", "className", "ACL":
		return true
	}
	return strings.HasPrefix(name, "_")
}

// present strips internal fields before an object leaves the store.
func present(obj api.Object) api.Object {
	for k := range obj {
		if strings.HasPrefix(k, "_") {
			delete(obj, k)
		}
	}
	return obj
}

func project(obj api.Object, keys []string) api.Object {
	out := api.Object{
		"objectId":  obj["objectId"],
		"createdAt": obj["createdAt"],
		"updatedAt": obj["updatedAt"],
	}
	for _, k := range keys {
		top, _, _ := strings.Cut(k, ".")
		if v, ok := obj[top]; ok {
			out[top] = v
		}
	}
	return out
}

func deepCopyObject(obj api.Object) api.Object {
	return api.Object(deepCopy(map[string]any(obj)).(map[string]any))
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = deepCopy(x)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = deepCopy(x)
		}
		return out
	}
	return v
}

// decodeJSON decodes raw into a generic value keeping numbers exact.
func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
