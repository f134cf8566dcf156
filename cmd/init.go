package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Scaffold a new Tessera project",
	Long: `Create a configuration file, a features file and a template tree with a
layout, a partial and a page. Without a directory the current one is used.
Existing files are left alone unless --force is given.

Examples:
  tessera init                 # Initialize in the current directory
  tessera init my-site         # Initialize in a new directory
  tessera init --minimal       # Configuration and directories only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initMinimal bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Skip the example templates")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

var exampleTemplates = map[string]string{
	"templates/layouts/base.html": `<!DOCTYPE html>
<html>
<head><title>[!title]{{ site.name }}[~title]</title></head>
<body>
[include /partials/nav.html]
<main>[!content][~content]</main>
</body>
</html>
`,
	"templates/partials/nav.html": `<nav>{{ for link in site.links }}<a href="/{{ link }}.html">{{ link }}</a> {{ endfor }}</nav>
`,
	"templates/pages/index.html": `[extends /layouts/base.html]
[!title]Home | {{ site.name }}[~title]
[!content]
<h1>{{ user: greet(site.owner) }}</h1>
{{ if site.links.length > 1 }}<p>{{ site.links.length }} pages</p>{{ endif }}
[~content]
`,
}

const exampleFeatures = `variables:
  site:
    name: My Site
    owner: world
    links: [index]
functions:
  greet: "'Hello, ' + arg0 + '!'"
`

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	fmt.Fprintf(out, "Initializing tessera project in %s\n", projectDir)

	for _, dir := range []string{"templates/layouts", "templates/partials", "templates/pages"} {
		if err := os.MkdirAll(filepath.Join(projectDir, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create directory structure: %w", err)
		}
	}

	configData, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}
	if err := writeProjectFile(out, projectDir, ".tessera.yml", configData); err != nil {
		return err
	}

	if !initMinimal {
		if err := writeProjectFile(out, projectDir, "features.yaml", []byte(exampleFeatures)); err != nil {
			return err
		}
		for _, name := range []string{
			"templates/layouts/base.html",
			"templates/partials/nav.html",
			"templates/pages/index.html",
		} {
			if err := writeProjectFile(out, projectDir, name, []byte(exampleTemplates[name])); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'tessera build' to render the pages into ./dist")
	fmt.Fprintln(out, "  2. Run 'tessera watch' to rebuild on every change")
	return nil
}

// defaultConfigYAML renders the default configuration as a config file.
func defaultConfigYAML() ([]byte, error) {
	cfg, err := config.LoadFrom(viper.New())
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(cfg)
}

func writeProjectFile(out io.Writer, projectDir, name string, data []byte) error {
	path := filepath.Join(projectDir, filepath.FromSlash(name))
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(out, "   skipped %s (exists)\n", name)
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check %s: %w", name, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	fmt.Fprintf(out, "   created %s\n", name)
	return nil
}
