package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:     "render <page|->",
	Aliases: []string{"r"},
	Short:   "Render a single template",
	Long: `Render one template and print the result, or write it with --output.

The page is a path relative to the template root, or a path to a file inside
it. Use "-" to render a template read from standard input as if it lived at
the template root.

Examples:
  tessera render pages/index.html
  tessera render pages/post.html --var title=Hello --var post.draft=false
  tessera render pages/post.html --vars-file post.yaml -o out/post.html
  echo '{{ 1 + 2 }}' | tessera render -`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var (
	renderVars   *VarsFlags
	renderOutput string
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderVars = addVarsFlags(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the result to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	vars, err := renderVars.Parse()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	var out string
	if args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		out, err = s.engine.RenderString(ctx, string(data), vars)
		if err != nil {
			return err
		}
	} else {
		out, err = s.engine.RenderFile(ctx, pageArgument(args[0]), vars)
		if err != nil {
			return err
		}
	}

	if renderOutput != "" {
		return s.engine.WriteOutput(renderOutput, []byte(out))
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

// pageArgument turns an existing file path into an absolute one. Anything
// else is left for the engine to resolve against the template root.
func pageArgument(arg string) string {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		if abs, err := filepath.Abs(arg); err == nil {
			return abs
		}
	}
	return arg
}
