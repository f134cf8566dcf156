//go:build property
// +build property

package compose

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/tessera/internal/markup"
)

// genDocument builds documents mixing text with open and close markers
func genDocument() gopter.Gen {
	piece := gen.OneGenOf(
		gen.AlphaString(),
		gen.OneConstOf("a", "b", "main").Map(markup.OpenMarker),
		gen.OneConstOf("a", "b", "main").Map(markup.CloseMarker),
		gen.OneConstOf("[", "]", "!", "~", "[!", "[~"),
	)
	return gen.SliceOf(piece).Map(func(parts []string) string {
		return strings.Join(parts, "")
	})
}

// TestComposeProperties checks marker removal on composed output
func TestComposeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: composed output carries no markers
	properties.Property("no markers survive composition", prop.ForAll(
		func(base, child string) bool {
			out := ComposeTemplate(base, child)
			return len(markup.LocateBlocks(out)) == 0 &&
				out == markup.StripMarkers(out)
		},
		genDocument(),
		genDocument(),
	))

	// Property: stripping is idempotent
	properties.Property("strip is idempotent", prop.ForAll(
		func(base, child string) bool {
			once := markup.StripMarkers(ComposeTemplate(base, child))
			return once == markup.StripMarkers(once)
		},
		genDocument(),
		genDocument(),
	))

	// Property: an empty child leaves the base text intact
	properties.Property("empty child keeps base", prop.ForAll(
		func(base string) bool {
			return MergeBlocks(base, "", false) == base
		},
		genDocument(),
	))

	properties.TestingRun(t)
}
