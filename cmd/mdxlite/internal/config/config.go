package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"

	"github.com/recera/mdxlite/internal/cache"
	"github.com/recera/mdxlite/pkg/markdown"
	"github.com/recera/mdxlite/pkg/mdx"
	"github.com/recera/mdxlite/pkg/renderer/html"
	"github.com/recera/mdxlite/pkg/script"
)

// FileNames are the configuration files Load looks for, in order.
var FileNames = []string{"mdxlite.yaml", "mdxlite.yml", "mdxlite.json"}

// Config represents the mdxlite.yaml configuration
type Config struct {
	// Directory holding the documents to build and serve
	ContentDir string `json:"contentDir,omitempty" yaml:"contentDir,omitempty"`

	// Element policy
	Elements *ElementsConfig `json:"elements,omitempty" yaml:"elements,omitempty"`

	// Script evaluation configuration
	Script *ScriptConfig `json:"script,omitempty" yaml:"script,omitempty"`

	// Markdown dialect
	Markdown *MarkdownConfig `json:"markdown,omitempty" yaml:"markdown,omitempty"`

	// HTML output configuration
	Render *RenderConfig `json:"render,omitempty" yaml:"render,omitempty"`

	// Build configuration
	Build *BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Development server configuration
	Dev *DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`
}

// ElementsConfig controls which elements survive sanitization
type ElementsConfig struct {
	// Only these tags are kept. An empty list removes every element.
	Allowed []string `json:"allowed" yaml:"allowed,omitempty"`

	// These tags are removed. Cannot be combined with Allowed.
	Disallowed []string `json:"disallowed,omitempty" yaml:"disallowed,omitempty"`

	// Keep the children of removed elements
	Unwrap bool `json:"unwrap,omitempty" yaml:"unwrap,omitempty"`

	// Drop raw HTML instead of showing it as text
	SkipHTML bool `json:"skipHTML,omitempty" yaml:"skipHTML,omitempty"`
}

// ScriptConfig seeds the evaluator of every compile
type ScriptConfig struct {
	// Import specifier to export table
	Modules map[string]map[string]any `json:"modules,omitempty" yaml:"modules,omitempty"`

	// Bindings visible to every fragment
	Globals map[string]any `json:"globals,omitempty" yaml:"globals,omitempty"`

	// Time limit per fragment, e.g. "2s". Empty or "0" disables it.
	Budget string `json:"budget,omitempty" yaml:"budget,omitempty"`

	// Maximum call stack depth, 0 for the interpreter default
	MaxCallStackSize int `json:"maxCallStackSize,omitempty" yaml:"maxCallStackSize,omitempty"`
}

// MarkdownConfig selects the markdown dialect
type MarkdownConfig struct {
	// Disable GitHub Flavored Markdown (tables, strikethrough, task lists)
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// RenderConfig contains HTML output configuration
type RenderConfig struct {
	// Wrap each document in an element with this tag
	Fragment string `json:"fragment,omitempty" yaml:"fragment,omitempty"`

	// Post-filter output with a user generated content policy
	UGC bool `json:"ugc,omitempty" yaml:"ugc,omitempty"`

	// Tag renames applied when rendering, e.g. h1: h2
	Rename map[string]string `json:"rename,omitempty" yaml:"rename,omitempty"`
}

// BuildConfig contains build configuration
type BuildConfig struct {
	// Output directory
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Cache directory, empty for the user cache directory
	CacheDir string `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty"`

	// Maximum cache size in bytes
	CacheMaxSize int64 `json:"cacheMaxSize,omitempty" yaml:"cacheMaxSize,omitempty"`

	// Disable the rendered output cache
	NoCache bool `json:"noCache,omitempty" yaml:"noCache,omitempty"`

	// Number of documents compiled in parallel
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// DevConfig contains development server configuration
type DevConfig struct {
	// Server port
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Server host
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// Load loads configuration from the first of FileNames found in
// projectPath. Without a file the defaults are returned.
func Load(projectPath string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(projectPath, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return LoadFile(path)
	}
	return DefaultConfig(), nil
}

// LoadFile loads configuration from path. Files ending in .json are JSON,
// anything else is YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(&config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &config, nil
}

// Save writes configuration as YAML to mdxlite.yaml in projectPath
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectPath, FileNames[0]), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		ContentDir: "content",
		Elements:   &ElementsConfig{},
		Script: &ScriptConfig{
			Budget: "5s",
		},
		Markdown: &MarkdownConfig{},
		Render:   &RenderConfig{},
		Build: &BuildConfig{
			Output:       "dist",
			CacheMaxSize: 256 << 20,
			Workers:      4,
		},
		Dev: &DevConfig{
			Port: 5173,
			Host: "localhost",
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.ContentDir == "" {
		config.ContentDir = defaults.ContentDir
	}
	if config.Elements == nil {
		config.Elements = defaults.Elements
	}
	if config.Script == nil {
		config.Script = defaults.Script
	} else if config.Script.Budget == "" {
		config.Script.Budget = defaults.Script.Budget
	}
	if config.Markdown == nil {
		config.Markdown = defaults.Markdown
	}
	if config.Render == nil {
		config.Render = defaults.Render
	}

	if config.Build == nil {
		config.Build = defaults.Build
	} else {
		if config.Build.Output == "" {
			config.Build.Output = defaults.Build.Output
		}
		if config.Build.CacheMaxSize == 0 {
			config.Build.CacheMaxSize = defaults.Build.CacheMaxSize
		}
		if config.Build.Workers == 0 {
			config.Build.Workers = defaults.Build.Workers
		}
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
	}
}

var tagName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Elements != nil {
		opts := mdx.Options{AllowedElements: c.Elements.Allowed, DisallowedElements: c.Elements.Disallowed}
		if err := opts.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("elements: %w", err))
		}
	}
	if c.Script != nil {
		if _, err := c.Script.BudgetDuration(); err != nil {
			errs = append(errs, err)
		}
		if c.Script.MaxCallStackSize < 0 {
			errs = append(errs, fmt.Errorf("script: maxCallStackSize must not be negative"))
		}
	}
	if c.Render != nil {
		if c.Render.Fragment != "" && !tagName.MatchString(c.Render.Fragment) {
			errs = append(errs, fmt.Errorf("render: invalid fragment tag %q", c.Render.Fragment))
		}
		for from, to := range c.Render.Rename {
			if !tagName.MatchString(to) {
				errs = append(errs, fmt.Errorf("render: invalid tag %q for %s", to, from))
			}
		}
	}
	if c.Build != nil && c.Build.Workers < 0 {
		errs = append(errs, fmt.Errorf("build: workers must not be negative"))
	}
	if c.Dev != nil && (c.Dev.Port < 0 || c.Dev.Port > 65535) {
		errs = append(errs, fmt.Errorf("dev: port %d out of range", c.Dev.Port))
	}

	return errors.Join(errs...)
}

// BudgetDuration parses the evaluation budget
func (s *ScriptConfig) BudgetDuration() (time.Duration, error) {
	if s.Budget == "" || s.Budget == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Budget)
	if err != nil {
		return 0, fmt.Errorf("script: invalid budget %q: %w", s.Budget, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("script: budget %q must not be negative", s.Budget)
	}
	return d, nil
}

// CompileOptions returns the compile options described by the
// configuration. Each compile gets its own evaluator seeded from the
// script section.
func (c *Config) CompileOptions(logger *slog.Logger) mdx.Options {
	budget, _ := c.Script.BudgetDuration()

	modules := make(map[string]script.Module, len(c.Script.Modules))
	for name, exports := range c.Script.Modules {
		modules[name] = script.Module(exports)
	}

	var parserOpts []markdown.Option
	if !c.Markdown.Strict {
		parserOpts = append(parserOpts, markdown.WithGFM())
	}

	return mdx.Options{
		AllowedElements:    c.Elements.Allowed,
		DisallowedElements: c.Elements.Disallowed,
		UnwrapDisallowed:   c.Elements.Unwrap,
		SkipHTML:           c.Elements.SkipHTML,
		Parser:             markdown.New(parserOpts...),
		NewEvaluator: mdx.ScriptEvaluator(script.Options{
			Modules:          modules,
			Globals:          c.Script.Globals,
			Budget:           budget,
			MaxCallStackSize: c.Script.MaxCallStackSize,
			Logger:           logger,
		}),
		Logger: logger,
	}
}

// RenderOptions returns the HTML renderer options described by the
// configuration
func (c *Config) RenderOptions() html.Options {
	opts := html.Options{Fragment: c.Render.Fragment}
	if c.Render.UGC {
		opts.Policy = bluemonday.UGCPolicy()
	}
	if len(c.Render.Rename) > 0 {
		opts.Components = make(map[string]html.Component, len(c.Render.Rename))
		for from, to := range c.Render.Rename {
			opts.Components[from] = html.Rename(to)
		}
	}
	return opts
}

// Fingerprint identifies every setting that changes rendered output, for
// use in cache keys
func (c *Config) Fingerprint() (string, error) {
	return cache.Fingerprint(struct {
		Elements *ElementsConfig
		Script   *ScriptConfig
		Markdown *MarkdownConfig
		Render   *RenderConfig
	}{c.Elements, c.Script, c.Markdown, c.Render})
}
