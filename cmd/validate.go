package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tessera/internal/engine"
	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/include"
)

var (
	validateFormat string
	validateDeep   bool
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate [page...]",
	Short: "Check templates for block structure problems",
	Long: `Check templates for problems before building:

- Unclosed [!name] markers
- Stray [~name] markers
- Malformed block names
- Mismatched block names
- With --deep, anything that stops the page from rendering

Without arguments every page under the configured page directories is checked.

Examples:
  tessera validate                       # Validate all pages
  tessera validate pages/index.html      # Validate one page
  tessera validate --deep                # Also render each page
  tessera validate --format json         # Output results as JSON`,
	PreRunE: SetViperBindings(map[string]string{"lenient": "validation.lenient"}),
	RunE:    runValidateCommand,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	addFormatFlag(validateCmd, &validateFormat, "text", "text", "json")
	validateCmd.Flags().BoolVar(&validateDeep, "deep", false, "Render each page and report render errors")
	validateCmd.Flags().Bool("lenient", false, "Log structure problems instead of failing")
}

// Problem is a single issue found in a page.
type Problem struct {
	Line    int    `json:"line,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PageValidation is the outcome for one page.
type PageValidation struct {
	Page     string    `json:"page"`
	Valid    bool      `json:"valid"`
	Fatal    bool      `json:"fatal,omitempty"`
	Problems []Problem `json:"problems,omitempty"`
}

// ValidationSummary is the outcome for every checked page.
type ValidationSummary struct {
	Total   int              `json:"total"`
	Valid   int              `json:"valid"`
	Invalid int              `json:"invalid"`
	Results []PageValidation `json:"results"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	pages := make([]string, 0, len(args))
	if len(args) == 0 {
		found, err := s.engine.FindPages(s.config.Templates.Pages, s.config.Templates.Extensions)
		if err != nil {
			return err
		}
		for _, page := range found {
			pages = append(pages, page.Path)
		}
	} else {
		for _, arg := range args {
			pages = append(pages, pageArgument(arg))
		}
	}

	summary := ValidationSummary{
		Total:   len(pages),
		Results: make([]PageValidation, 0, len(pages)),
	}
	for _, page := range pages {
		result := validatePage(cmd, s.engine, page)
		if result.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		summary.Results = append(summary.Results, result)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch validateFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summary); err != nil {
			return err
		}
	default:
		writeValidationText(cmd.OutOrStdout(), summary)
	}

	if summary.Invalid > 0 {
		return fmt.Errorf("validation failed for %d of %d pages", summary.Invalid, summary.Total)
	}
	return nil
}

func validatePage(cmd *cobra.Command, eng *engine.Engine, page string) PageValidation {
	ctx := commandContext(cmd)
	result := PageValidation{Page: page, Valid: true}
	if include.Within(eng.Root(), page) {
		result.Page = include.RootRelative(eng.Root(), page)
	}

	err := eng.Validate(ctx, page)
	if err == nil && validateDeep {
		_, err = eng.RenderFile(ctx, page, nil)
	}
	if err == nil {
		return result
	}

	result.Valid = false
	var structure *tserrors.StructureErrors
	if errors.As(err, &structure) {
		result.Fatal = !tserrors.IsRecoverable(structure.ToError())
		for _, p := range structure.Errors {
			result.Problems = append(result.Problems, Problem{Line: p.Line, Kind: "structure", Message: p.Message})
		}
		return result
	}

	result.Fatal = !tserrors.IsRecoverable(err)
	problem := Problem{Kind: problemKind(err), Message: tserrors.FormatError(err)}
	var located *tserrors.Error
	if errors.As(err, &located) {
		problem.Line = located.Line
	}
	result.Problems = append(result.Problems, problem)
	return result
}

func problemKind(err error) string {
	switch {
	case tserrors.IsResolutionError(err):
		return "resolution"
	case tserrors.IsSecurityError(err):
		return "security"
	default:
		return "render"
	}
}

func writeValidationText(w io.Writer, summary ValidationSummary) {
	for _, result := range summary.Results {
		if result.Valid {
			fmt.Fprintf(w, "✅ %s\n", result.Page)
			continue
		}
		fmt.Fprintf(w, "❌ %s\n", result.Page)
		for _, problem := range result.Problems {
			if problem.Line > 0 {
				fmt.Fprintf(w, "   line %d: [%s] %s\n", problem.Line, problem.Kind, problem.Message)
			} else {
				fmt.Fprintf(w, "   [%s] %s\n", problem.Kind, problem.Message)
			}
		}
	}
	fmt.Fprintf(w, "\n%d pages, %d valid, %d invalid\n", summary.Total, summary.Valid, summary.Invalid)
}
