package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/sandbox"
)

// VarsFlags collects request variables for a render.
type VarsFlags struct {
	Pairs []string
	JSON  string
	File  string
}

// addVarsFlags registers --var, --vars and --vars-file on cmd.
func addVarsFlags(cmd *cobra.Command) *VarsFlags {
	flags := &VarsFlags{}
	cmd.Flags().StringArrayVar(&flags.Pairs, "var", nil, "Variable as key=value; dotted keys nest (repeatable)")
	cmd.Flags().StringVar(&flags.JSON, "vars", "", "Variables as inline JSON or @file")
	cmd.Flags().StringVar(&flags.File, "vars-file", "", "Variables file (JSON or YAML)")
	return flags
}

// Parse merges the variable sources. Later sources win: the file, then the
// inline JSON, then each key=value pair.
func (f *VarsFlags) Parse() (map[string]any, error) {
	vars := make(map[string]any)

	if f.File != "" {
		if err := readVarsFile(f.File, vars); err != nil {
			return nil, err
		}
	}

	if strings.HasPrefix(f.JSON, "@") {
		if err := readVarsFile(strings.TrimPrefix(f.JSON, "@"), vars); err != nil {
			return nil, err
		}
	} else if strings.TrimSpace(f.JSON) != "" {
		var inline map[string]any
		if err := json.Unmarshal([]byte(f.JSON), &inline); err != nil {
			return nil, fmt.Errorf("invalid JSON in --vars: %w", err)
		}
		maps.Copy(vars, inline)
	}

	for _, pair := range f.Pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		if err := setPath(vars, key, parseScalar(value)); err != nil {
			return nil, err
		}
	}

	return vars, nil
}

func readVarsFile(path string, into map[string]any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read vars file %s: %w", path, err)
	}

	var loaded map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &loaded)
	default:
		err = json.Unmarshal(data, &loaded)
	}
	if err != nil {
		return fmt.Errorf("invalid vars file %s: %w", path, err)
	}

	maps.Copy(into, loaded)
	return nil
}

// setPath assigns value at a dotted key, creating maps along the way.
func setPath(vars map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	for _, part := range parts {
		if part == "" || sandbox.IsUnsafeKey(part) {
			return fmt.Errorf("invalid variable name %q", key)
		}
	}

	current := vars
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// parseScalar reads numbers, booleans, null and JSON literals; anything else
// stays a string.
func parseScalar(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	value   *string
	allowed []string
}

var _ pflag.Value = (*choiceValue)(nil)

func (c *choiceValue) String() string {
	return *c.value
}

func (c *choiceValue) Set(val string) error {
	if err := ValidateFormatWithSuggestion(val, c.allowed); err != nil {
		return err
	}
	*c.value = strings.ToLower(val)
	return nil
}

func (c *choiceValue) Type() string {
	return "string"
}

// addFormatFlag registers a --format/-f flag accepting only allowed.
func addFormatFlag(cmd *cobra.Command, target *string, def string, allowed ...string) {
	*target = def
	cmd.Flags().VarP(&choiceValue{value: target, allowed: allowed}, "format", "f",
		fmt.Sprintf("Output format (%s)", strings.Join(allowed, ", ")))
}

// ValidateFormatWithSuggestion rejects unknown formats, naming the closest
// allowed value when one shares a prefix.
func ValidateFormatWithSuggestion(format string, allowed []string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, candidate := range allowed {
		if format == candidate {
			return nil
		}
	}
	for _, candidate := range allowed {
		if format != "" && (strings.HasPrefix(candidate, format) || strings.HasPrefix(format, candidate)) {
			return fmt.Errorf("invalid format %q, did you mean %q?", format, candidate)
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(allowed, ", "))
}

// SetViperBindings returns a PreRunE that binds flags to configuration keys
// when the command runs. Commands may bind different flags to the same key.
func SetViperBindings(bindings map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for flagName, key := range bindings {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
				return fmt.Errorf("cannot bind --%s to %s: %w", flagName, key, err)
			}
		}
		return nil
	}
}

func bindFlag(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("cannot bind flag to %s: %v", key, err))
	}
}
