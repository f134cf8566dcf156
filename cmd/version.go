package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tessera/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the tessera version, commit, build time, Go version and platform.

Examples:
  tessera version               # Show version details
  tessera version --short       # Show the version only
  tessera version --format json # Output as JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd, &versionFormat, "text", "text", "json")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch {
	case versionFormat == "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case versionShort:
		_, err := fmt.Fprintln(out, info.Short())
		return err
	default:
		if _, err := fmt.Fprintf(out, "tessera %s\n%s", info.Short(), info.String()); err != nil {
			return err
		}
		if !info.IsRelease() {
			_, err := fmt.Fprintln(out, "Development build")
			return err
		}
		return nil
	}
}
