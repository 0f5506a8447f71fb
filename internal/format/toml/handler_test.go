package toml

import (
	"errors"
	"strings"
	"testing"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/tree"
)

func TestHandler_Parse(t *testing.T) {
	h := New()

	tests := []struct {
		name     string
		input    string
		wantKeys []string
		wantErr  bool
	}{
		{
			name:     "simple toml",
			input:    `user = "nginx"`,
			wantKeys: []string{"user"},
		},
		{
			name:     "with section",
			input:    "[events]\nworker_connections = 1024",
			wantKeys: []string{"events"},
		},
		{
			name:     "nested section",
			input:    "[http]\n[http.server]\nlisten = 80",
			wantKeys: []string{"http"},
		},
		{
			name:     "empty document",
			input:    "",
			wantKeys: []string{},
		},
		{
			name:    "invalid toml",
			input:   `[invalid`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Parse([]byte(tt.input), format.ParseOptions{})
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if strings.Join(got.Keys(), ",") != strings.Join(tt.wantKeys, ",") {
				t.Errorf("Parse() keys = %v, want %v", got.Keys(), tt.wantKeys)
			}
		})
	}
}

func TestHandler_Parse_StripCommentsError(t *testing.T) {
	h := New()

	_, err := h.Parse([]byte(`user = "nginx"`), format.ParseOptions{StripComments: true})
	if err == nil {
		t.Error("Parse() with StripComments should return error for TOML")
	}
}

func TestHandler_Parse_PreservesOrder(t *testing.T) {
	h := New()

	input := `worker_processes = 4
user = "nginx"
error_log = "/var/log/nginx/error.log"

[http]
sendfile = true
keepalive_timeout = 65
access_log = "off"
`

	got, err := h.Parse([]byte(input), format.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if keys := strings.Join(got.Keys(), ","); keys != "worker_processes,user,error_log,http" {
		t.Errorf("Parse() keys = %s (order not preserved)", keys)
	}
	http, _ := got.Get("http")
	if keys := strings.Join(tree.AsMap(http).Keys(), ","); keys != "sendfile,keepalive_timeout,access_log" {
		t.Errorf("http keys = %s (order not preserved)", keys)
	}
}

func TestHandler_Parse_ArrayOfTables(t *testing.T) {
	h := New()

	input := `[[http.server]]
server_name = "a.com"
listen = 80

[[http.server]]
server_name = "b.com"
listen = 443

[http.server.location."/"]
proxy_pass = "http://backend"
`

	got, err := h.Parse([]byte(input), format.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	http, _ := got.Get("http")
	servers, _ := tree.AsMap(http).Get("server")
	list, ok := servers.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("server = %#v, want two contexts", servers)
	}

	first := tree.AsMap(list[0])
	if keys := strings.Join(first.Keys(), ","); keys != "server_name,listen" {
		t.Errorf("server[0] keys = %s", keys)
	}
	second := tree.AsMap(list[1])
	location, ok := second.Get("location")
	if !ok {
		t.Fatalf("server[1] has no location: %v", second.Keys())
	}
	root, _ := tree.AsMap(location).Get("/")
	if pass, _ := tree.AsMap(root).Get("proxy_pass"); pass != "http://backend" {
		t.Errorf("proxy_pass = %#v", pass)
	}
}

func TestHandler_ParseWithTypes(t *testing.T) {
	h := New()

	input := `
string = "hello"
integer = 42
float = 3.14
boolean = true
array = [1, 2, 3]
date = 1979-05-27T07:32:00Z
`

	got, err := h.Parse([]byte(input), format.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	str, _ := got.Get("string")
	if str != "hello" {
		t.Errorf("string = %v, want 'hello'", str)
	}

	integer, _ := got.Get("integer")
	if integer != int64(42) {
		t.Errorf("integer = %v (%T), want 42", integer, integer)
	}

	float, _ := got.Get("float")
	if float != 3.14 {
		t.Errorf("float = %v, want 3.14", float)
	}

	boolean, _ := got.Get("boolean")
	if boolean != true {
		t.Errorf("boolean = %v, want true", boolean)
	}

	arr, _ := got.Get("array")
	arrSlice, ok := arr.([]any)
	if !ok || len(arrSlice) != 3 {
		t.Errorf("array = %v (%T), want [1, 2, 3]", arr, arr)
	}

	date, _ := got.Get("date")
	if date != "1979-05-27T07:32:00Z" {
		t.Errorf("date = %#v, want RFC 3339 string", date)
	}
}

func TestHandler_ParseErrorPosition(t *testing.T) {
	h := New()

	_, err := h.Parse([]byte("user = \"nginx\"\nworker_processes = nope\n"), format.ParseOptions{})
	var parseErr *format.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Parse() error = %v, want *format.ParseError", err)
	}
	if parseErr.Line != 2 {
		t.Errorf("Line = %d, want 2", parseErr.Line)
	}
	if !strings.Contains(parseErr.Snippet, "worker_processes") {
		t.Errorf("Snippet = %q, want the offending line", parseErr.Snippet)
	}
}

func TestHandler_Serialize(t *testing.T) {
	h := New()

	data, err := h.Serialize(tree.Map("user", "nginx", "gone", tree.Absent), format.SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	want := "user = \"nginx\"\n"
	if string(data) != want {
		t.Errorf("Serialize() = %q, want %q", string(data), want)
	}
}

func TestHandler_SerializeRejectsNull(t *testing.T) {
	h := New()

	_, err := h.Serialize(tree.Map("http", tree.Map("ip_hash", nil)), format.SerializeOptions{})
	if err == nil {
		t.Fatal("Serialize() should reject null values")
	}
	if !strings.Contains(err.Error(), "http.ip_hash") {
		t.Errorf("error = %v, want it to name http.ip_hash", err)
	}
}

func TestHandler_ParseAndSerialize_RoundTrip(t *testing.T) {
	h := New()

	input := tree.Map(
		"events", tree.Map("worker_connections", 1024),
		"http", tree.Map(
			"sendfile", true,
			"server", []any{
				tree.Map("listen", 80, "server_name", []any{"a.com", "b.com"}),
				tree.Map("listen", 443),
			},
		),
	)

	data, err := h.Serialize(input, format.SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	parsed, err := h.Parse(data, format.ParseOptions{})
	if err != nil {
		t.Fatalf("Re-parse serialized data error = %v\n%s", err, data)
	}

	http, _ := parsed.Get("http")
	servers, _ := tree.AsMap(http).Get("server")
	list, ok := servers.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("server = %#v, want two contexts", servers)
	}
	names, _ := tree.AsMap(list[0]).Get("server_name")
	if n, ok := names.([]any); !ok || len(n) != 2 || n[0] != "a.com" {
		t.Errorf("server_name = %#v", names)
	}
	listen, _ := tree.AsMap(list[1]).Get("listen")
	if listen != int64(443) {
		t.Errorf("listen = %#v, want 443", listen)
	}

	again, err := h.Serialize(parsed, format.SerializeOptions{})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("second serialization differs:\n%s\nwant:\n%s", again, data)
	}
}
