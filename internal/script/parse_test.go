package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/path"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantVersion int
		wantFormat  string
		wantContext string
		wantStrip   bool
		wantBlocks  int
		wantHeader  string
		wantErr     bool
	}{
		{
			name: "basic script",
			content: `#!/usr/bin/env ngxconf
# version 1
# format json
#---
{"user": "nginx"}
`,
			wantVersion: 1,
			wantFormat:  format.JSON,
			wantContext: "main",
		},
		{
			name: "all directives",
			content: `#!/usr/bin/env ngxconf
# version 1
# context main/http
# format yml
# indent 4
# strip-comments false
# block main/http/upstream
# block /main/stream/upstream/
#---
server:
  listen: 80
`,
			wantVersion: 1,
			wantFormat:  format.YAML,
			wantContext: "main/http",
			wantBlocks:  2,
		},
		{
			name: "short context name",
			content: `#!/usr/bin/env ngxconf
# version 1
# context location
#---
root: /srv
`,
			wantVersion: 1,
			wantFormat:  AutoFormat,
			wantContext: "main/http/location",
		},
		{
			name: "jsonc",
			content: `#!/usr/bin/env ngxconf
# version 1
# format jsonc
# strip-comments true
#---
// upstream servers
{"user": "nginx"}
`,
			wantVersion: 1,
			wantFormat:  format.JSON,
			wantContext: "main",
			wantStrip:   true,
		},
		{
			name: "with header comment",
			content: `#!/usr/bin/env ngxconf
# version 1
# Generated by ngxconf, do not edit.
# format json
#---
{"user": "nginx"}
`,
			wantVersion: 1,
			wantFormat:  format.JSON,
			wantContext: "main",
			wantHeader:  "Generated by ngxconf, do not edit.",
		},
		{
			name: "with multi-line header",
			content: `#!/usr/bin/env ngxconf
# version 1
# Web tier
#
# Owner: platform team
#
#---
{"user": "nginx"}
`,
			wantVersion: 1,
			wantFormat:  AutoFormat,
			wantContext: "main",
			wantHeader:  "Web tier\n\nOwner: platform team",
		},
		{
			name: "empty comment lines in directives",
			content: `#!/usr/bin/env ngxconf
# version 1
#
# format json
#---
{"user": "nginx"}
`,
			wantVersion: 1,
			wantFormat:  format.JSON,
			wantContext: "main",
		},
		{
			name: "missing version",
			content: `#!/usr/bin/env ngxconf
# format json
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "version not first",
			content: `#!/usr/bin/env ngxconf
# format json
# version 1
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "duplicate version",
			content: `#!/usr/bin/env ngxconf
# version 1
# version 1
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "unsupported version",
			content: `#!/usr/bin/env ngxconf
# version 999
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "invalid version",
			content: `#!/usr/bin/env ngxconf
# version one
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "no body",
			content: `#!/usr/bin/env ngxconf
# version 1
# format json
#---
`,
			wantErr: true,
		},
		{
			name: "missing separator",
			content: `#!/usr/bin/env ngxconf
# version 1
# format json
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "invalid line without hash prefix",
			content: `#!/usr/bin/env ngxconf
# version 1
format json
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "unsupported format",
			content: `#!/usr/bin/env ngxconf
# version 1
# format xml
#---
<http/>
`,
			wantErr: true,
		},
		{
			name: "invalid context",
			content: `#!/usr/bin/env ngxconf
# version 1
# context ["main",
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
		{
			name: "invalid strip-comments",
			content: `#!/usr/bin/env ngxconf
# version 1
# strip-comments yes
#---
{"user": "nginx"}
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse(tt.content)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if script.Version != tt.wantVersion {
				t.Errorf("Version = %d, want %d", script.Version, tt.wantVersion)
			}
			if script.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", script.Format, tt.wantFormat)
			}
			if script.Context.String() != tt.wantContext {
				t.Errorf("Context = %q, want %q", script.Context.String(), tt.wantContext)
			}
			if script.StripComments != tt.wantStrip {
				t.Errorf("StripComments = %v, want %v", script.StripComments, tt.wantStrip)
			}
			if len(script.Blocks) != tt.wantBlocks {
				t.Errorf("len(Blocks) = %d, want %d", len(script.Blocks), tt.wantBlocks)
			}
			if got := strings.Join(script.Header, "\n"); got != tt.wantHeader {
				t.Errorf("Header = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestParse_Body(t *testing.T) {
	content := `#!/usr/bin/env ngxconf
# version 1
# format json
#---
{
  "user": "nginx",
  "events": {
    "worker_connections": 1024
  }
}
`
	script, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	expectedBody := `{
  "user": "nginx",
  "events": {
    "worker_connections": 1024
  }
}`
	if script.Body != expectedBody {
		t.Errorf("Body = %q, want %q", script.Body, expectedBody)
	}
	if len(script.Header) != 0 {
		t.Errorf("Header = %q, want empty", script.Header)
	}
}

func TestParse_BlocksAndIndent(t *testing.T) {
	content := `#!/usr/bin/env ngxconf
# version 1
# indent 2
# block /main/http/upstream/
#---
http: {}
`
	script, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(script.Blocks) != 1 || script.Blocks[0] != "main/http/upstream" {
		t.Errorf("Blocks = %v, want [main/http/upstream]", script.Blocks)
	}
	if script.Indent == nil || script.Indent.String() != "  " {
		t.Errorf("Indent = %v, want two spaces", script.Indent)
	}
}

func TestScript_BodyFormat(t *testing.T) {
	tests := []struct {
		format string
		body   string
		want   string
	}{
		{AutoFormat, `{"user": "nginx"}`, format.JSON},
		{AutoFormat, "user: nginx", format.YAML},
		{format.TOML, `user = "nginx"`, format.TOML},
	}

	for _, tt := range tests {
		s := &Script{Format: tt.format, Body: tt.body}
		if got := s.BodyFormat(); got != tt.want {
			t.Errorf("BodyFormat(%q, %q) = %q, want %q", tt.format, tt.body, got, tt.want)
		}
	}
}

func TestScript_Comment(t *testing.T) {
	s := &Script{Header: []string{"Web tier", "", "Owner: platform team"}}
	want := "# Web tier\n#\n# Owner: platform team"
	if got := s.Comment(); got != want {
		t.Errorf("Comment() = %q, want %q", got, want)
	}

	if got := (&Script{}).Comment(); got != "" {
		t.Errorf("Comment() without header = %q, want empty", got)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nginx.conf.ngx")
	content := "#!/usr/bin/env ngxconf\n# version 1\n#---\n{\"user\": \"nginx\"}\n"
	if err := os.WriteFile(file, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}

	script, err := ParseFile(file)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if script.Context.String() != path.Main {
		t.Errorf("Context = %q, want main", script.Context.String())
	}

	if _, err := ParseFile(filepath.Join(dir, "missing")); err == nil {
		t.Error("ParseFile() should fail for a missing file")
	}
}
