package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/include"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the pages a build would render",
	Long: `List every page under the configured page directories with the layout it
extends and the file a build writes it to.

Examples:
  tessera list                    # Table output
  tessera list -f json            # Output as JSON
  tessera list --format yaml      # Output as YAML`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	addFormatFlag(listCmd, &listFormat, "table", "table", "json", "yaml")
}

// PageEntry describes one page.
type PageEntry struct {
	Page   string `json:"page" yaml:"page"`
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`
	Output string `json:"output" yaml:"output"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	pages, err := s.engine.FindPages(s.config.Templates.Pages, s.config.Templates.Extensions)
	if err != nil {
		return err
	}

	entries := make([]PageEntry, 0, len(pages))
	for _, page := range pages {
		entry := PageEntry{
			Page:   include.RootRelative(s.engine.Root(), page.Path),
			Output: filepath.Join(s.config.Build.Output, filepath.FromSlash(page.Rel)),
		}
		layout, err := s.engine.Layout(ctx, page.Path)
		if err != nil {
			entry.Error = err.Error()
		}
		entry.Layout = layout
		entries = append(entries, entry)
	}

	out := cmd.OutOrStdout()
	switch listFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(entries)
	default:
		return outputTable(out, entries)
	}
}

func outputTable(out io.Writer, entries []PageEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "PAGE\tLAYOUT\tOUTPUT")
	fmt.Fprintln(w, "----\t------\t------")
	for _, entry := range entries {
		layout := entry.Layout
		if entry.Error != "" {
			layout = "error: " + entry.Error
		} else if layout == "" {
			layout = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Page, layout, entry.Output)
	}
	fmt.Fprintf(w, "\nTotal: %d pages\n", len(entries))

	return w.Flush()
}
