package mock

import (
	"encoding/json"
	"testing"

	"github.com/aep/parsekit/api"
	"github.com/stretchr/testify/assert"
)

func TestEqualValues(t *testing.T) {
	tests := []struct {
		stored   any
		want     any
		expected bool
	}{
		{json.Number("3"), float64(3), true},
		{json.Number("3"), 3, true},
		{"a", "a", true},
		{"a", "b", false},
		{[]any{"a", "b"}, "b", true},
		{[]any{"a", "b"}, "c", false},
		{[]any{"a", "b"}, []any{"a", "b"}, true},
		{nil, nil, true},
		{nil, "a", false},
		{
			map[string]any{"__type": "Pointer", "className": "Team", "objectId": "x"},
			map[string]any{"__type": "Pointer", "className": "Team", "objectId": "x"},
			true,
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, equalValues(test.stored, test.want), "%v == %v", test.stored, test.want)
	}
}

func TestLessByOrder(t *testing.T) {
	a := api.Object{"score": json.Number("1"), "name": "b"}
	b := api.Object{"score": json.Number("2"), "name": "a"}
	c := api.Object{"name": "c"}

	assert.True(t, lessByOrder(a, b, []string{"score"}))
	assert.False(t, lessByOrder(a, b, []string{"-score"}))
	assert.True(t, lessByOrder(b, a, []string{"name"}))
	assert.True(t, lessByOrder(c, a, []string{"score"}), "missing values sort first")
	assert.False(t, lessByOrder(a, a, []string{"score", "name"}))
}

func TestApplyArrayOp(t *testing.T) {
	tests := []struct {
		op       string
		current  []any
		objects  []any
		expected []any
	}{
		{api.OpAdd, nil, []any{"a"}, []any{"a"}},
		{api.OpAdd, []any{"a"}, []any{"a"}, []any{"a", "a"}},
		{api.OpAddUnique, []any{"a"}, []any{"a", "b"}, []any{"a", "b"}},
		{api.OpAddUnique, []any{json.Number("1")}, []any{float64(1)}, []any{json.Number("1")}},
		{api.OpRemove, []any{"a", "b", "a"}, []any{"a"}, []any{"b"}},
		{api.OpRemove, nil, []any{"a"}, []any{}},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, applyArrayOp(test.op, test.current, test.objects), "%s %v %v", test.op, test.current, test.objects)
	}
}
