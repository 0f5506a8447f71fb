package tree

import (
	"encoding/json"
	"testing"

	"github.com/iancoleman/orderedmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsMap(t *testing.T) {
	ptr := Map("a", 1)
	assert.Same(t, ptr, AsMap(ptr))

	val := *ptr
	got := AsMap(val)
	require.NotNil(t, got)
	assert.Equal(t, []string{"a"}, got.Keys())

	assert.Nil(t, AsMap(map[string]any{"a": 1}))
	assert.Nil(t, AsMap("a"))
	assert.Nil(t, AsMap(nil))
}

func TestIsScalar(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"string", "x", true},
		{"empty string", "", true},
		{"bool", false, true},
		{"int", 80, true},
		{"int64", int64(80), true},
		{"uint16", uint16(80), true},
		{"float64", 1.5, true},
		{"json number", json.Number("42"), true},
		{"nil", nil, false},
		{"slice", []any{"a"}, false},
		{"map", Map(), false},
		{"absent", Absent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsScalar(tt.value))
		})
	}
}

func TestSame(t *testing.T) {
	m := Map("a", 1)
	s := []any{"a", "b"}

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same map pointer", m, m, true},
		{"map value and its pointer", *m, m, true},
		{"equal but distinct maps", Map("a", 1), Map("a", 1), false},
		{"shallow copy", m, Copy(m), false},
		{"same slice", s, s, true},
		{"resliced", s, s[:1], false},
		{"equal but distinct slices", []any{"a", "b"}, []any{"a", "b"}, false},
		{"equal strings", "x", "x", true},
		{"different strings", "x", "y", false},
		{"number kinds differ", 1, 1.0, false},
		{"nil and nil", nil, nil, true},
		{"nil and map", nil, m, false},
		{"map and string", m, "x", false},
		{"absent", Absent, Absent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Same(tt.a, tt.b))
		})
	}
}

func TestCopyIsShallow(t *testing.T) {
	inner := Map("x", 1)
	m := Map("b", inner, "a", "v")

	c := Copy(m)
	c.Set("a", "changed")
	c.Set("z", true)

	assert.Equal(t, []string{"b", "a", "z"}, c.Keys())
	assert.Equal(t, []string{"b", "a"}, m.Keys())
	v, _ := m.Get("a")
	assert.Equal(t, "v", v)

	got, _ := c.Get("b")
	assert.True(t, Same(inner, got))
}

func TestDeepCopy(t *testing.T) {
	src := Map("server", []any{Map("listen", 80)}, "name", "x")

	cp := DeepCopy(src).(*orderedmap.OrderedMap)
	servers, _ := cp.Get("server")
	AsMap(servers.([]any)[0]).Set("listen", 443)

	orig, _ := src.Get("server")
	listen, _ := AsMap(orig.([]any)[0]).Get("listen")
	assert.Equal(t, 80, listen)
	assert.Equal(t, []string{"server", "name"}, cp.Keys())
}

func TestNormalize(t *testing.T) {
	var decoded orderedmap.OrderedMap
	require.NoError(t, json.Unmarshal([]byte(`{"http":{"server":[{"listen":80}],"b":1}}`), &decoded))

	got := Normalize(decoded).(*orderedmap.OrderedMap)
	http, _ := got.Get("http")
	httpMap, ok := http.(*orderedmap.OrderedMap)
	require.True(t, ok, "nested object should be a pointer, got %T", http)
	assert.Equal(t, []string{"server", "b"}, httpMap.Keys())

	servers, _ := httpMap.Get("server")
	_, ok = servers.([]any)[0].(*orderedmap.OrderedMap)
	assert.True(t, ok)

	plain := Normalize(map[string]any{"b": 1, "a": []map[string]any{{"k": "v"}}}).(*orderedmap.OrderedMap)
	assert.Equal(t, []string{"a", "b"}, plain.Keys())
	a, _ := plain.Get("a")
	_, ok = a.([]any)[0].(*orderedmap.OrderedMap)
	assert.True(t, ok)
}

func TestIsNil(t *testing.T) {
	var typed *orderedmap.OrderedMap
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(typed))
	assert.False(t, IsNil(Map()))
	assert.False(t, IsNil("x"))
}
