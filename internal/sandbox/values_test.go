package sandbox

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetByPath(t *testing.T) {
	obj := map[string]any{
		"user": map[string]any{
			"address": map[string]any{"city": "Paris"},
			"roles":   []string{"admin", "dev"},
		},
		"nothing": nil,
	}

	testCases := []struct {
		path     string
		expected any
		found    bool
	}{
		{"user.address.city", "Paris", true},
		{"user.roles.1", "dev", true},
		{"user.roles.length", 2.0, true},
		{"user.missing", nil, false},
		{"user.address.city.length", 5.0, true},
		{"nothing", nil, true},
		{"nothing.deeper", nil, false},
		{"user.__proto__", nil, false},
		{"constructor", nil, false},
		{"", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, found := GetByPath(obj, tc.path)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestStringify(t *testing.T) {
	testCases := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, ""},
		{"string", "a<b", "a<b"},
		{"integer float", 3.0, "3"},
		{"fraction", 0.25, "0.25"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"list", []any{1, "x"}, `[1,"x"]`},
		{"map keeps html", map[string]any{"h": "<b>"}, `{"h":"<b>"}`},
		{"nan", math.NaN(), "NaN"},
		{"infinity", math.Inf(1), "Infinity"},
		{"unencodable", []any{math.NaN()}, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Stringify(tc.value))
		})
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []any{true, 1, -1.5, "x", []any{}, map[string]any{}} {
		assert.True(t, Truthy(v), "%#v", v)
	}
	for _, v := range []any{nil, false, 0, 0.0, "", math.NaN()} {
		assert.False(t, Truthy(v), "%#v", v)
	}
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty([]any{}))
	assert.True(t, IsEmpty([]string{}))
	assert.True(t, IsEmpty(map[string]any{}))
	assert.False(t, IsEmpty(""))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty([]any{nil}))
}

type profile struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 3.0, Normalize(int64(3)))
	assert.Equal(t, []any{"a"}, Normalize([]string{"a"}))
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, Normalize(profile{Name: "Ada", Age: 36}))
	assert.Equal(t, map[string]any{"name": "Ada", "age": 36.0}, Normalize(&profile{Name: "Ada", Age: 36}))
	assert.Nil(t, Normalize((*profile)(nil)))
	assert.Nil(t, Normalize(func() {}))
	assert.Equal(t, []any{1, 2}, Normalize([2]int{1, 2}))
}

func TestSortedKeysSkipsUnsafe(t *testing.T) {
	keys := SortedKeys(map[string]any{"b": 1, "a": 2, "__proto__": 3})
	assert.Equal(t, []string{"a", "b"}, keys)
}
