package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/tessera/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(builder *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(builder, "  • %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(builder, "    💡 %s\n", suggestion)
		}
	}
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateTemplatesConfigDetails(&config.Templates, result)
	validateRenderConfigDetails(&config.Render, result)
	validateBuildConfigDetails(config, result)
	validateWatchConfigDetails(&config.Watch, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateTemplatesConfigDetails(config *TemplatesConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Root) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "templates.root",
			Value:   config.Root,
			Message: "template root cannot be empty",
			Suggestions: []string{
				"Use './templates' for the conventional layout",
				"Set TESSERA_TEMPLATES_ROOT to override it per environment",
			},
		})
	}

	for _, page := range config.Pages {
		if err := validatePath(page); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "templates.pages",
				Value:   page,
				Message: err.Error(),
				Suggestions: []string{
					"Page directories are relative to the template root",
					"Use '.' to treat every template as a page",
				},
			})
		}
	}

	if len(config.Extensions) == 0 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:       "templates.extensions",
			Value:       config.Extensions,
			Message:     "no extensions configured; only .html files are built",
			Suggestions: []string{"List extensions explicitly, e.g. [.html, .htm]"},
		})
	}
}

func validateRenderConfigDetails(config *RenderConfig, result *ValidationResult) {
	if config.MaxPasses <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "render.max_passes",
			Value:       config.MaxPasses,
			Message:     "must be positive",
			Suggestions: []string{"The default of 10 suits nested loops and includes"},
		})
	}

	if config.MaxConditionalPasses <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "render.max_conditional_passes",
			Value:       config.MaxConditionalPasses,
			Message:     "must be positive",
			Suggestions: []string{"The default of 20 supports 20 levels of nested conditionals"},
		})
	}

	if config.SandboxTimeout <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "render.sandbox_timeout",
			Value:       config.SandboxTimeout,
			Message:     "must be positive",
			Suggestions: []string{"Use a duration such as '1.5s'"},
		})
	} else if config.SandboxTimeout > 30*time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "render.sandbox_timeout",
			Value:   config.SandboxTimeout,
			Message: "a long timeout lets a single expression stall a render",
		})
	}
}

func validateBuildConfigDetails(config *Config, result *ValidationResult) {
	output := config.Build.Output
	if err := validatePath(output); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "build.output",
			Value:   output,
			Message: err.Error(),
			Suggestions: []string{
				"Use a directory inside the project, e.g. './dist'",
			},
		})
		return
	}

	root, rootErr := filepath.Abs(config.Templates.Root)
	out, outErr := filepath.Abs(output)
	if rootErr == nil && outErr == nil {
		if rel, err := filepath.Rel(root, out); err == nil && !strings.HasPrefix(rel, "..") {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   "build.output",
				Value:   output,
				Message: "output directory is inside the template root",
				Suggestions: []string{
					"Built pages will be picked up as templates on the next build",
				},
			})
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "cannot be negative",
		})
	}
	if config.RecentWriteTTL <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.recent_write_ttl",
			Value:   config.RecentWriteTTL,
			Message: "must be positive",
			Suggestions: []string{
				"It must outlast the debounce so the watcher ignores its own writes",
			},
		})
	} else if config.RecentWriteTTL < config.Debounce {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "watch.recent_write_ttl",
			Value:   config.RecentWriteTTL,
			Message: "shorter than the debounce; builds may retrigger themselves",
		})
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       config.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of: debug, info, warn, error"},
		})
	}
	if config.Format != "text" && config.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.format",
			Value:       config.Format,
			Message:     fmt.Sprintf("unknown log format '%s'", config.Format),
			Suggestions: []string{"Use 'text' or 'json'"},
		})
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
