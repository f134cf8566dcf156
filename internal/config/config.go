// Package config loads tessera settings through Viper: a .tessera.yml file,
// TESSERA_* environment variables and bound command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/tessera/internal/engine"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/pipeline"
	"github.com/conneroisu/tessera/internal/sandbox"
)

type Config struct {
	Templates  TemplatesConfig  `mapstructure:"templates" yaml:"templates" json:"templates"`
	Features   FeaturesConfig   `mapstructure:"features" yaml:"features" json:"features"`
	Render     RenderConfig     `mapstructure:"render" yaml:"render" json:"render"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation" json:"validation"`
	Build      BuildConfig      `mapstructure:"build" yaml:"build" json:"build"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch" json:"watch"`
	Log        LogConfig        `mapstructure:"log" yaml:"log" json:"log"`
}

type TemplatesConfig struct {
	Root       string   `mapstructure:"root" yaml:"root" json:"root"`
	Pages      []string `mapstructure:"pages" yaml:"pages" json:"pages"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
}

type FeaturesConfig struct {
	File string `mapstructure:"file" yaml:"file" json:"file"`
}

type RenderConfig struct {
	MaxPasses            int           `mapstructure:"max_passes" yaml:"max_passes" json:"max_passes"`
	MaxConditionalPasses int           `mapstructure:"max_conditional_passes" yaml:"max_conditional_passes" json:"max_conditional_passes"`
	SandboxTimeout       time.Duration `mapstructure:"sandbox_timeout" yaml:"sandbox_timeout" json:"sandbox_timeout"`
}

type ValidationConfig struct {
	Lenient bool `mapstructure:"lenient" yaml:"lenient" json:"lenient"`
}

type BuildConfig struct {
	Output string `mapstructure:"output" yaml:"output" json:"output"`
}

type WatchConfig struct {
	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	RecentWriteTTL time.Duration `mapstructure:"recent_write_ttl" yaml:"recent_write_ttl" json:"recent_write_ttl"`
	Ignore         []string      `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("templates.root", "./templates")
	v.SetDefault("templates.pages", []string{"pages"})
	v.SetDefault("templates.extensions", []string{".html"})
	v.SetDefault("features.file", "./features.yaml")
	v.SetDefault("render.max_passes", pipeline.DefaultMaxPasses)
	v.SetDefault("render.max_conditional_passes", pipeline.DefaultMaxConditionalPasses)
	v.SetDefault("render.sandbox_timeout", sandbox.DefaultTimeout)
	v.SetDefault("validation.lenient", false)
	v.SetDefault("build.output", "./dist")
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("watch.recent_write_ttl", engine.DefaultRecentWriteTTL)
	v.SetDefault("watch.ignore", []string{".git", "node_modules"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through flags or env arrive as a single comma-joined value.
	config.Templates.Pages = splitList(config.Templates.Pages)
	config.Templates.Extensions = splitList(config.Templates.Extensions)
	config.Watch.Ignore = splitList(config.Watch.Ignore)

	for i, ext := range config.Templates.Extensions {
		if !strings.HasPrefix(ext, ".") {
			config.Templates.Extensions[i] = "." + ext
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		return &result.Errors[0]
	}
	return nil
}

// EngineOptions translates the configuration into engine options.
func (c *Config) EngineOptions(logger logging.Logger) engine.Options {
	return engine.Options{
		Root:                 c.Templates.Root,
		FeaturesFile:         c.FeaturesPath(),
		MaxPasses:            c.Render.MaxPasses,
		MaxConditionalPasses: c.Render.MaxConditionalPasses,
		SandboxTimeout:       c.Render.SandboxTimeout,
		RecentWriteTTL:       c.Watch.RecentWriteTTL,
		Lenient:              c.Validation.Lenient,
		Logger:               logger,
	}
}

// CompileOptions translates the configuration into compile options.
func (c *Config) CompileOptions() engine.CompileOptions {
	return engine.CompileOptions{
		Pages:      c.Templates.Pages,
		Extensions: c.Templates.Extensions,
		OutputDir:  c.Build.Output,
	}
}

// FeaturesPath returns the features file as an absolute path, or "" when
// none is configured.
func (c *Config) FeaturesPath() string {
	if c.Features.File == "" {
		return ""
	}
	if abs, err := filepath.Abs(c.Features.File); err == nil {
		return abs
	}
	return c.Features.File
}

// LoggerConfig translates the log section into a logger configuration. The
// level has already been validated.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	return cfg
}
