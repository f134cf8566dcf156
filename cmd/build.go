package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/engine"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Render every page into the output directory",
	Long: `Render every page found under the configured page directories and write
the results to the output directory, keeping each page's relative path.

Files pulled in through [include] are collected into a dependency manifest.
A page that fails is reported and the rest are still written.

Examples:
  tessera build                         # Build to the configured output
  tessera build --output public         # Build to a specific directory
  tessera build --clean                 # Remove the output directory first
  tessera build --manifest build.yaml   # Also write the manifest to a file
  tessera build --format json           # Print the manifest as JSON`,
	PreRunE: SetViperBindings(map[string]string{"output": "build.output"}),
	RunE:    runBuild,
}

var (
	buildVars     *VarsFlags
	buildFormat   string
	buildManifest string
	buildClean    bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildVars = addVarsFlags(buildCmd)
	addFormatFlag(buildCmd, &buildFormat, "text", "text", "json", "yaml")
	buildCmd.Flags().StringP("output", "o", "", "Output directory")
	buildCmd.Flags().StringVar(&buildManifest, "manifest", "", "Write the build manifest to a file (.json or .yaml)")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "Remove the output directory before building")
}

func runBuild(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	vars, err := buildVars.Parse()
	if err != nil {
		return err
	}

	opts := s.config.CompileOptions()
	opts.Vars = vars

	if buildClean {
		if err := cleanOutput(s.engine.Root(), opts.OutputDir); err != nil {
			return err
		}
	}

	manifest, buildErr := s.engine.Compile(commandContext(cmd), opts)
	if manifest == nil {
		return buildErr
	}

	if err := writeManifest(cmd.OutOrStdout(), manifest, buildFormat); err != nil {
		return err
	}
	if buildManifest != "" {
		data, err := encodeManifest(manifest, manifestFormat(buildManifest))
		if err != nil {
			return err
		}
		if err := s.engine.WriteOutput(buildManifest, data); err != nil {
			return err
		}
	}

	return buildErr
}

// cleanOutput removes the output directory unless it would take the template
// root with it.
func cleanOutput(root, output string) error {
	abs, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}
	if rel, err := filepath.Rel(abs, root); err == nil && !strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to clean %s: it contains the template root", output)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("failed to clean output directory: %w", err)
	}
	return nil
}

func manifestFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func encodeManifest(manifest *engine.Manifest, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(manifest)
	default:
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

func writeManifest(w io.Writer, manifest *engine.Manifest, format string) error {
	if format == "json" || format == "yaml" {
		data, err := encodeManifest(manifest, format)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	failed := 0
	for _, page := range manifest.Pages {
		if page.Error != "" {
			failed++
			fmt.Fprintf(w, "❌ %s: %s\n", page.Source, page.Error)
			continue
		}
		fmt.Fprintf(w, "✅ %s → %s (%d bytes)\n", page.Source, page.Output, page.Bytes)
	}
	if len(manifest.Included) > 0 {
		fmt.Fprintf(w, "\nIncluded files:\n")
		for _, path := range manifest.Included {
			fmt.Fprintf(w, "   %s\n", path)
		}
	}
	fmt.Fprintf(w, "\n🔨 %d pages built, %d failed in %s\n",
		len(manifest.Pages)-failed, failed, manifest.Duration.Round(time.Millisecond))
	return nil
}
