package directive

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/tree"
)

var om = tree.Map

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultBlocks())

	tests := []struct {
		name  string
		path  path.Path
		value any
		want  Type
	}{
		{"null", path.New("main", "http", "ip_hash"), nil, Nullary},
		{"null in parameterless set", path.New("main", "http", "server"), nil, Nullary},
		{"string", path.New("main", "user"), "nginx", Simple},
		{"number", path.New("main", "worker_processes"), 4, Simple},
		{"bool", path.New("main", "http", "sendfile"), true, Simple},
		{"empty list", path.New("main", "http", "server"), []any{}, Simple},
		{"list of scalars", path.New("main", "http", "server", "server_name"), []any{"a.com", 2}, Simple},
		{"list of contexts in set", path.New("main", "http", "server"), []any{om("listen", 80), om()}, BlockWithoutParam},
		{"list of contexts with marker", path.New("main", "http", "types{}"), []any{om("a", "b")}, BlockWithoutParam},
		{"context in set", path.New("main", "http"), om("sendfile", true), BlockWithoutParam},
		{"empty context in set", path.New("main", "events"), om(), BlockWithoutParam},
		{"context with marker", path.New("main", "http", "types{}"), om("text/html", "html"), BlockWithoutParam},
		{"param blocks", path.New("main", "http", "location"), om("/", om("proxy_pass", "http://x")), BlockWithParam},
		{"empty object outside set", path.New("main", "http", "location"), om(), BlockWithParam},
		{"key-value simple", path.New("main", "http", "proxy_set_header"), om("Host", "$host", "X-Real-IP", "$remote_addr"), Simple},
		{"value map counts as context", path.New("main", "http", "location"), om("/", *om("root", "/srv")), BlockWithParam},
		{"unknown context path", path.New("unknown", "server"), om("listen", om("x", 1)), BlockWithParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(tt.path, tt.value, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyErrors(t *testing.T) {
	c := NewClassifier(DefaultBlocks())

	tests := []struct {
		name  string
		path  path.Path
		value any
	}{
		{"mixed list", path.New("main", "http", "x"), []any{"a", om("b", 1)}},
		{"list with null", path.New("main", "http", "x"), []any{"a", nil}},
		{"scalars in set path", path.New("main", "http", "server"), []any{om(), "a"}},
		{"mixed object", path.New("main", "http", "location"), om("/", om(), "b", "c")},
		{"object with null value", path.New("main", "http", "add_header"), om("X", nil)},
		{"unsupported scalar", path.New("main", "x"), struct{}{}},
		{"plain go map", path.New("main", "x"), map[string]any{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Classify(tt.path, tt.value, nil)
			var inputErr *InputError
			require.True(t, errors.As(err, &inputErr), "want *InputError, got %v", err)
			assert.Equal(t, tt.path.String(), inputErr.Path.String())
		})
	}
}

func TestClassifyCustomSet(t *testing.T) {
	value := om("text/html", "html")
	p := path.New("main", "http", "types")

	got, err := NewClassifier(DefaultBlocks()).Classify(p, value, nil)
	require.NoError(t, err)
	assert.Equal(t, Simple, got)

	got, err = NewClassifier(DefaultBlocks().With("main/http/types")).Classify(p, value, nil)
	require.NoError(t, err)
	assert.Equal(t, BlockWithoutParam, got)
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(DefaultBlocks())
	value := om("/", om("a", 1), "/b", om("c", 2))
	p := path.New("main", "http", "location")

	first, err := c.Classify(p, value, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := c.Classify(p, value, nil)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestInputErrorMessage(t *testing.T) {
	err := &InputError{
		Path:  path.New("main", "http", "x"),
		Value: []any{strings.Repeat("a", 60)},
	}
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "invalid value in main/http/x: "), msg)
	preview := strings.TrimPrefix(msg, "invalid value in main/http/x: ")
	assert.Equal(t, `["`+strings.Repeat("a", 40)+"...", preview)

	short := &InputError{Path: path.New("main", "x"), Value: []any{"a", 1}}
	assert.Equal(t, `invalid value in main/x: ["a",1]`, short.Error())

	wide := &InputError{
		Path:  path.New("main", "x"),
		Value: tree.Map("kk", strings.Repeat("世界", 20), "b", tree.New()),
	}
	msg = wide.Error()
	assert.True(t, utf8.ValidString(msg), msg)
	assert.Equal(t, `invalid value in main/x: {"kk":"`+strings.Repeat("世界", 17)+"世...", msg)
}

func TestDecode(t *testing.T) {
	t.Run("nullary", func(t *testing.T) {
		d, err := Decode(Nullary, nil)
		require.NoError(t, err)
		assert.Equal(t, Nullary, d.Type())
	})

	t.Run("scalar is wrapped", func(t *testing.T) {
		d, err := Decode(Simple, "a.com")
		require.NoError(t, err)
		assert.Equal(t, []any{"a.com"}, d.(*SimpleValues).List)
		assert.Nil(t, d.(*SimpleValues).Pairs)
	})

	t.Run("list is kept", func(t *testing.T) {
		list := []any{"a", "b"}
		d, err := Decode(Simple, list)
		require.NoError(t, err)
		assert.True(t, tree.Same(list, d.(*SimpleValues).List))
	})

	t.Run("pairs", func(t *testing.T) {
		pairs := om("Host", "$host")
		d, err := Decode(Simple, pairs)
		require.NoError(t, err)
		assert.Same(t, pairs, d.(*SimpleValues).Pairs)
	})

	t.Run("single block", func(t *testing.T) {
		ctx := om("listen", 80)
		d, err := Decode(BlockWithoutParam, ctx)
		require.NoError(t, err)
		b := d.(*Blocks)
		assert.True(t, b.Single)
		assert.Equal(t, 1, b.Len())
		assert.Same(t, ctx, b.Contexts[0])
	})

	t.Run("block list", func(t *testing.T) {
		d, err := Decode(BlockWithoutParam, []any{om("a", 1), *om("b", 2)})
		require.NoError(t, err)
		b := d.(*Blocks)
		assert.False(t, b.Single)
		assert.Equal(t, 2, b.Len())
	})

	t.Run("param blocks", func(t *testing.T) {
		root := om("root", "/srv")
		d, err := Decode(BlockWithParam, om("/", root))
		require.NoError(t, err)
		pb := d.(*ParamBlocks)
		assert.Equal(t, 1, pb.Len())
		assert.Same(t, root, pb.Context("/"))
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := Decode(BlockWithParam, "x")
		assert.Error(t, err)
		_, err = Decode(BlockWithParam, om("/", "x"))
		assert.Error(t, err)
		_, err = Decode(BlockWithoutParam, []any{"x"})
		assert.Error(t, err)
		_, err = Decode(Type(9), "x")
		assert.Error(t, err)
	})
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "NULLARY", Nullary.String())
	assert.Equal(t, "SIMPLE", Simple.String())
	assert.Equal(t, "BLOCK_WITHOUT_PARAM", BlockWithoutParam.String())
	assert.Equal(t, "BLOCK_WITH_PARAM", BlockWithParam.String())
	assert.Equal(t, "Type(7)", Type(7).String())
	assert.True(t, BlockWithParam.IsBlock())
	assert.False(t, Simple.IsBlock())
}

func TestBlockSet(t *testing.T) {
	set := NewBlockSet("/main/http/", "main/events")
	assert.True(t, set.Has("main/http"))
	assert.False(t, set.Has("main/http/server"))

	extended := set.With("main/http/types")
	assert.True(t, extended.Has("main/http/types"))
	assert.False(t, set.Has("main/http/types"))
	assert.Equal(t, []string{"main/events", "main/http", "main/http/types"}, extended.Paths())

	assert.True(t, DefaultBlocks().Has("main/stream/server"))
}

func TestParam(t *testing.T) {
	assert.Equal(t, "/api", KeyParam("/api").String())
	assert.Equal(t, "3", IndexParam(3).String())
	assert.True(t, KeyParam("").Keyed)
	assert.False(t, IndexParam(0).Keyed)
}
