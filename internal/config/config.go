// Package config provides the ngxconf tool configuration file.
//
// The file is optional. It is looked up as .ngxconf.{yaml,yml,json,toml} in the
// working directory unless a path is given, and every field can be overridden
// from the environment with the NGXCONF_ prefix, e.g. NGXCONF_CONTEXT=http or
// NGXCONF_RULES_INCLUDE_DIR=/etc/nginx/incl.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
)

// DefaultName is the base name of the configuration file, without extension.
const DefaultName = ".ngxconf"

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "NGXCONF"

// Config is the tool configuration.
type Config struct {
	// Context is the top-level context of rendered input: a short name, a
	// slash path or a JSON array.
	Context string `mapstructure:"context"`

	// Format forces the input format instead of detecting it from the name.
	Format string `mapstructure:"format"`

	// Indent is a number of spaces, "tab", or a literal string.
	Indent string `mapstructure:"indent"`

	// BlocksWithoutParam lists slash paths of additional parameterless
	// blocks, e.g. "main/http/types".
	BlocksWithoutParam []string `mapstructure:"blocks_without_param"`

	LogLevel string `mapstructure:"log_level"`

	Rules Rules `mapstructure:"rules"`

	file string
}

// Rules configures the built-in rewrite rules. Zero values disable a rule.
type Rules struct {
	IncludeDir      string   `mapstructure:"include_dir"`
	IncludeExt      string   `mapstructure:"include_ext"`
	IncludeContexts []string `mapstructure:"include_contexts"`

	// ProxyHeaders are "Header value" strings added to proxied blocks.
	ProxyHeaders []string `mapstructure:"proxy_headers"`

	// Remove lists simple directives to delete.
	Remove []string `mapstructure:"remove"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("context", path.Main)
	v.SetDefault("format", "")
	v.SetDefault("indent", "")
	v.SetDefault("blocks_without_param", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("rules.include_dir", "")
	v.SetDefault("rules.include_ext", ".conf")
	v.SetDefault("rules.include_contexts", []string{})
	v.SetDefault("rules.proxy_headers", []string{})
	v.SetDefault("rules.remove", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps configuration keys to the command-line flags overriding them.
var flagKeys = map[string]string{
	"context":   "context",
	"format":    "format",
	"indent":    "indent",
	"log_level": "log-level",
}

// Load reads the configuration. An empty filename searches for DefaultName
// in dir and falls back to defaults when no file exists; a given filename
// must exist.
func Load(filename, dir string) (*Config, error) {
	return LoadWithFlags(filename, dir, nil)
}

// LoadWithFlags is Load with flags that were set on the command line taking
// precedence over the file and the environment. Flags are matched by name:
// --context, --format, --indent and --log-level.
func LoadWithFlags(filename, dir string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}
	if filename != "" {
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName(DefaultName)
		if dir == "" {
			dir = "."
		}
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filename != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.file = v.ConfigFileUsed()
	return &cfg, nil
}

// File returns the file the configuration was read from, or "".
func (c *Config) File() string {
	return c.file
}

// Save writes the configuration to filename. The format follows the file
// extension.
func (c *Config) Save(filename string) error {
	v := viper.New()
	v.Set("context", c.Context)
	v.Set("format", c.Format)
	v.Set("indent", c.Indent)
	v.Set("blocks_without_param", c.BlocksWithoutParam)
	v.Set("log_level", c.LogLevel)
	v.Set("rules.include_dir", c.Rules.IncludeDir)
	v.Set("rules.include_ext", c.Rules.IncludeExt)
	v.Set("rules.include_contexts", c.Rules.IncludeContexts)
	v.Set("rules.proxy_headers", c.Rules.ProxyHeaders)
	v.Set("rules.remove", c.Rules.Remove)

	if err := v.WriteConfigAs(filename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	c.file = filename
	return nil
}

// ContextPath parses Context.
func (c *Config) ContextPath() (path.Path, error) {
	p, err := path.Parse(c.Context)
	if err != nil {
		return path.Path{}, fmt.Errorf("invalid context %q: %w", c.Context, err)
	}
	return p, nil
}

// Blocks returns the built-in parameterless blocks plus the configured ones.
func (c *Config) Blocks() directive.BlockSet {
	return directive.DefaultBlocks().With(c.BlocksWithoutParam...)
}

// AddBlock adds a parameterless block path.
// Returns true if the path was added, false if it already exists.
func (c *Config) AddBlock(p string) bool {
	p = NormalizeBlock(p)
	for _, existing := range c.BlocksWithoutParam {
		if NormalizeBlock(existing) == p {
			return false
		}
	}
	c.BlocksWithoutParam = append(c.BlocksWithoutParam, p)
	return true
}

// RemoveBlock removes a parameterless block path.
// Returns true if the path was removed, false if it wasn't found.
func (c *Config) RemoveBlock(p string) bool {
	p = NormalizeBlock(p)
	for i, existing := range c.BlocksWithoutParam {
		if NormalizeBlock(existing) == p {
			c.BlocksWithoutParam = append(c.BlocksWithoutParam[:i], c.BlocksWithoutParam[i+1:]...)
			return true
		}
	}
	return false
}

// NormalizeBlock returns the slash path of a block. It accepts
// "main/http/types", "/main/http/types/" and `["main","http","types"]`.
func NormalizeBlock(p string) string {
	if strings.HasPrefix(strings.TrimSpace(p), "[") {
		if parsed, err := path.Parse(p); err == nil {
			return parsed.String()
		}
	}
	return strings.Trim(strings.TrimSpace(p), path.Separator)
}
