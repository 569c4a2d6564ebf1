package query

import (
	"net/url"
	"strings"
)

const (
	ASC  = "ASC"
	DESC = "DESC"
)

type Sorter struct {
	Property  string
	Direction string
}

func (s Sorter) descending() bool {
	return strings.ToUpper(s.Direction) == DESC
}

// Filter is one constraint of a query. The encoder understands
// Equality, PointerEquality, InQuery and Or.
type Filter interface {
	// Key is the property the filter is stored under in the where object.
	Key() string
}

type Equality struct {
	Property string
	Value    any
}

func (f Equality) Key() string { return f.Property }

// PointerEquality matches a pointer field referencing one object.
type PointerEquality struct {
	Property  string
	ClassName string
	ObjectID  string
}

func (f PointerEquality) Key() string { return f.Property }

// InQuery matches values found by a subquery on ClassName. Where is optional.
type InQuery struct {
	Property  string
	ClassName string
	Where     Filter
}

func (f InQuery) Key() string { return f.Property }

type Or struct {
	Operands []Filter
}

func (f Or) Key() string { return "$or" }

// Window selects a slice of the result set. Page is 1-based.
type Window struct {
	Page  *int
	Start *int
	Limit *int
}

type Descriptor struct {
	Sorters  []Sorter
	Filters  []Filter
	Window   Window
	Includes []string
	Keys     []string
	Paging   bool
}

// Params maps query-string keys to values.
type Params map[string]string

func (p Params) Values() url.Values {
	values := make(url.Values, len(p))
	for k, v := range p {
		values.Set(k, v)
	}
	return values
}

func (p Params) Encode() string {
	return p.Values().Encode()
}

// Int returns a pointer to v, for filling a Window.
func Int(v int) *int {
	return &v
}
