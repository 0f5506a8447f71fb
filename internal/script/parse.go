// Package script provides parsing for self-rendering ngxconf script files.
//
// A script is an executable file run through ngxconf as its interpreter:
//
//	#!/usr/bin/env ngxconf
//	# version 1
//	# context http
//	# format yaml
//	# Generated for the web tier.
//	#---
//	server:
//	  listen: 80
//
// Directive lines come before the #--- separator; any other comment line
// there is header text that is copied to the output.
package script

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/stringify"
)

// CurrentVersion is the latest supported script format version.
const CurrentVersion = 1

// Separator ends the directive section.
const Separator = "#---"

// AutoFormat makes the body format detected from its content.
const AutoFormat = "auto"

// Script represents a parsed ngxconf script.
type Script struct {
	Version       int
	Context       path.Path
	Format        string
	Indent        *stringify.Indentation
	StripComments bool
	Blocks        []string
	Header        []string
	Body          string
}

// ParseFile reads and parses the script at filename.
func ParseFile(filename string) (*Script, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(string(content))
}

// Parse parses a script from its content.
func Parse(content string) (*Script, error) {
	script := &Script{
		Context: path.Resolve(path.Main),
		Format:  AutoFormat,
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	versionSeen := false
	inBody := false
	var bodyLines []string

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		// Skip shebang
		if lineNum == 1 && strings.HasPrefix(line, "#!") {
			continue
		}

		if inBody {
			bodyLines = append(bodyLines, line)
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == Separator {
			inBody = true
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			return nil, fmt.Errorf("line %d: expected a # directive or %s, got %q", lineNum, Separator, trimmed)
		}

		text := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if text == "" {
			if len(script.Header) > 0 {
				script.Header = append(script.Header, "")
			}
			continue
		}

		name, value, _ := strings.Cut(text, " ")
		value = strings.TrimSpace(value)

		if name == "version" {
			if versionSeen {
				return nil, fmt.Errorf("line %d: duplicate version directive", lineNum)
			}
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid version %q", lineNum, value)
			}
			if v > CurrentVersion {
				return nil, fmt.Errorf("line %d: unsupported version %d (max supported: %d), please upgrade ngxconf", lineNum, v, CurrentVersion)
			}
			if v < 1 {
				return nil, fmt.Errorf("line %d: invalid version %d", lineNum, v)
			}
			script.Version = v
			versionSeen = true
			continue
		}

		if !versionSeen {
			return nil, fmt.Errorf("line %d: version directive must come first", lineNum)
		}
		if err := script.apply(name, value, text); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script: %w", err)
	}

	if !versionSeen {
		return nil, fmt.Errorf("missing required version directive")
	}
	if !inBody {
		return nil, fmt.Errorf("missing %s separator before the configuration body", Separator)
	}

	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
	if body == "" {
		return nil, fmt.Errorf("no configuration body found")
	}
	script.Body = body

	for len(script.Header) > 0 && script.Header[len(script.Header)-1] == "" {
		script.Header = script.Header[:len(script.Header)-1]
	}
	return script, nil
}

// apply handles one directive line after the version. Lines that are not
// directives become header text.
func (s *Script) apply(name, value, text string) error {
	switch name {
	case "context":
		p, err := path.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid context %q: %w", value, err)
		}
		s.Context = p

	case "format":
		if value == AutoFormat {
			s.Format = AutoFormat
			return nil
		}
		f, err := format.Normalize(value)
		if err != nil {
			return err
		}
		s.Format = f

	case "indent":
		if value == "" {
			return fmt.Errorf("indent needs a value")
		}
		indent := stringify.ParseIndentation(value)
		s.Indent = &indent

	case "strip-comments":
		switch value {
		case "true":
			s.StripComments = true
		case "false":
			s.StripComments = false
		default:
			return fmt.Errorf("strip-comments must be true or false")
		}

	case "block":
		p := strings.Trim(value, path.Separator)
		if p == "" {
			return fmt.Errorf("block needs a slash-joined context path")
		}
		s.Blocks = append(s.Blocks, p)

	default:
		s.Header = append(s.Header, text)
	}
	return nil
}

// BodyFormat returns the format of the body. An automatic format is JSON
// when the body starts with "{" and YAML otherwise.
func (s *Script) BodyFormat() string {
	if s.Format != AutoFormat {
		return s.Format
	}
	if strings.HasPrefix(s.Body, "{") {
		return format.JSON
	}
	return format.YAML
}

// Comment returns the header as nginx comment lines, or "" without header.
func (s *Script) Comment() string {
	if len(s.Header) == 0 {
		return ""
	}
	lines := make([]string, len(s.Header))
	for i, h := range s.Header {
		lines[i] = strings.TrimRight("# "+h, " ")
	}
	return strings.Join(lines, "\n")
}
