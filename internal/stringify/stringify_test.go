package stringify

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/tree"
)

var om = tree.Map

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}

func TestStringifyNestedBlocks(t *testing.T) {
	input := om("http", om(
		"server", []any{
			om("listen", 80, "server_name", []any{"a.com", "b.com"}),
		},
	))

	got, err := Stringify(path.Resolve("main"), input, Options{})
	require.NoError(t, err)
	assert.Equal(t, lines(
		"",
		"http {",
		"",
		"\tserver {",
		"",
		"\t\tlisten 80;",
		"",
		"\t\tserver_name a.com;",
		"\t\tserver_name b.com;",
		"\t}",
		"}",
	), got)
}

func TestStringifyParamBlock(t *testing.T) {
	input := om("location", om("/", om("proxy_pass", "http://x")))

	got, err := Stringify(path.Resolve("http"), input, Options{})
	require.NoError(t, err)
	assert.Equal(t, lines(
		"",
		"location / {",
		"",
		"\tproxy_pass http://x;",
		"}",
	), got)
}

func TestStringifyDirectives(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nullary", om("ip_hash", nil), "ip_hash;"},
		{"string is trimmed", om("root", "  /srv  "), lines("", "root /srv;")},
		{"integer", om("worker_processes", 4), lines("", "worker_processes 4;")},
		{"float", om("ratio", 1.5), lines("", "ratio 1.5;")},
		{"whole float", om("keepalive_timeout", float64(65)), lines("", "keepalive_timeout 65;")},
		{"large float", om("limit", 1e21), lines("", "limit 1e+21;")},
		{"below exponent switch", om("limit", 1e20), lines("", "limit 100000000000000000000;")},
		{"tiny float", om("ratio", -1.5e-7), lines("", "ratio -1.5e-7;")},
		{"small float", om("ratio", 0.000001), lines("", "ratio 0.000001;")},
		{"json number", om("port", json.Number("8080")), lines("", "port 8080;")},
		{"booleans", om("sendfile", true, "gzip", false), lines("", "sendfile on;", "", "gzip off;")},
		{"list", om("server_name", []any{"a", "b"}), lines("", "server_name a;", "server_name b;")},
		{"pairs", om("proxy_set_header", om("Host", "$host", "X-Real-IP", "$remote_addr")), lines(
			"",
			"proxy_set_header Host $host;",
			"proxy_set_header X-Real-IP $remote_addr;",
		)},
		{"empty list", om("x", []any{}), ""},
		{"marker is stripped", om("types{}", om("text/html", "html")), lines(
			"",
			"types {",
			"",
			"\ttext/html html;",
			"}",
		)},
		{"repeated parameterless blocks", om("if{}", []any{om("return", 404), om("return", 403)}), lines(
			"",
			"if {",
			"",
			"\treturn 404;",
			"}",
			"",
			"if {",
			"",
			"\treturn 403;",
			"}",
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(path.Resolve("http"), tree.AsMap(tt.input), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringifyRaw(t *testing.T) {
	input := om(
		"server", om(
			"listen", 80,
			RawDirective, []any{"# managed by hand\nlocation = /ping {", "\treturn 204;\n}"},
		),
	)

	got, err := Stringify(path.Resolve("http"), input, Options{})
	require.NoError(t, err)
	assert.Equal(t, lines(
		"",
		"server {",
		"",
		"\tlisten 80;",
		"\t# managed by hand",
		"\tlocation = /ping {",
		"\t\treturn 204;",
		"\t}",
		"}",
	), got)

	single, err := Stringify(path.Resolve("http"), om(RawDirective, "a\nb"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "a\nb", single)
}

func TestStringifyIndentation(t *testing.T) {
	input := om("server", om("location", om("/", om("root", "/srv"))))
	want := func(unit string) string {
		return lines(
			"",
			"server {",
			"",
			unit+"location / {",
			"",
			unit+unit+"root /srv;",
			unit+"}",
			"}",
		)
	}

	tests := []struct {
		name   string
		indent Indentation
		unit   string
	}{
		{"default", Indentation{}, "\t"},
		{"tab", Tab, "\t"},
		{"spaces", Spaces(4), "    "},
		{"literal", Literal("..."), "..."},
		{"none", Literal(""), ""},
		{"parsed number", ParseIndentation("2"), "  "},
		{"parsed tab", ParseIndentation("tab"), "\t"},
		{"parsed literal", ParseIndentation("->"), "->"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Stringify(path.Resolve("http"), input, Options{Indentation: tt.indent})
			require.NoError(t, err)
			assert.Equal(t, want(tt.unit), got)
		})
	}
}

func TestStringifyCustomValue(t *testing.T) {
	input := om("location", om("~ \\.php$", om("fastcgi_pass", "unix:/run/php.sock")))
	quote := func(value any, name string) (string, error) {
		s, err := DefaultValue(value, name)
		if err != nil {
			return "", err
		}
		if strings.ContainsAny(s, " ;") {
			return `"` + s + `"`, nil
		}
		return s, nil
	}

	got, err := Stringify(path.Resolve("http"), input, Options{StringifyValue: quote})
	require.NoError(t, err)
	assert.Contains(t, got, `location "~ \.php$" {`)
	assert.Contains(t, got, "\tfastcgi_pass unix:/run/php.sock;")
}

func TestStringifyCustomBlocks(t *testing.T) {
	input := om("types", om("text/html", "html"))

	got, err := Stringify(path.Resolve("http"), input, Options{})
	require.NoError(t, err)
	assert.Equal(t, lines("", "types text/html html;"), got)

	blocks := directive.DefaultBlocks().With("main/http/types")
	got, err = Stringify(path.Resolve("http"), input, Options{Blocks: &blocks})
	require.NoError(t, err)
	assert.Equal(t, lines("", "types {", "", "\ttext/html html;", "}"), got)
}

func TestStringifyErrors(t *testing.T) {
	t.Run("input error", func(t *testing.T) {
		_, err := Stringify(path.Resolve("main"), om("http", om("a", []any{"x", om()})), Options{})
		var inputErr *directive.InputError
		require.True(t, errors.As(err, &inputErr), "got %v", err)
		assert.Equal(t, "main/http/a", inputErr.Path.String())
	})

	t.Run("non-scalar value", func(t *testing.T) {
		classifier := directive.ClassifierFunc(func(path.Path, any, any) (directive.Type, error) {
			return directive.Simple, nil
		})
		_, err := Stringify(path.Resolve("main"), om("a", []any{[]any{1}}), Options{Classifier: classifier})
		assert.ErrorIs(t, err, ErrNotScalar)
	})

	t.Run("value func error", func(t *testing.T) {
		boom := errors.New("boom")
		fail := func(any, string) (string, error) { return "", boom }
		_, err := Stringify(path.Resolve("http"), om("location", om("/", om())), Options{StringifyValue: fail})
		assert.ErrorIs(t, err, boom)
	})
}

func TestStringifyIsDeterministic(t *testing.T) {
	input := om(
		"user", "nginx",
		"events", om("worker_connections", 1024),
		"http", om(
			"upstream", om("a", om("server", []any{"10.0.0.1", "10.0.0.2"}), "b", om("server", "10.0.0.3")),
			"server", []any{om("listen", 80), om("listen", 443, "ssl", nil)},
		),
	)

	first, err := Stringify(path.Resolve("main"), input, Options{})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := Stringify(path.Resolve("main"), input, Options{})
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestDefaultValue(t *testing.T) {
	_, err := DefaultValue(struct{}{}, "x")
	assert.ErrorIs(t, err, ErrNotScalar)

	s, err := DefaultValue(nil, "x")
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = DefaultValue(uint8(7), "x")
	require.NoError(t, err)
	assert.Equal(t, "7", s)
}
