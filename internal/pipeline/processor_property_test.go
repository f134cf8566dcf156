//go:build property
// +build property

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestLoopProperties checks loop bookkeeping for arbitrary lists
func TestLoopProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	p := New()

	// Property: every iteration sees its own index, in order
	properties.Property("loop indices are sequential", prop.ForAll(
		func(items []int) bool {
			list := make([]any, len(items))
			for i, v := range items {
				list[i] = v
			}

			got, err := p.Process(context.Background(),
				"{{for x in xs}}{{x_index}},{{endfor}}", map[string]any{"xs": list})
			if err != nil {
				return false
			}

			var want strings.Builder
			for i := range items {
				fmt.Fprintf(&want, "%d,", i)
			}
			return got == want.String()
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
	))

	// Property: exactly one iteration is first and one is last
	properties.Property("single first and last", prop.ForAll(
		func(n int) bool {
			list := make([]any, n)
			got, err := p.Process(context.Background(),
				"{{for x in xs}}{{if x_isFirst}}F{{endif}}{{if x_isLast}}L{{endif}}{{endfor}}",
				map[string]any{"xs": list})
			if err != nil {
				return false
			}
			return strings.Count(got, "F") == 1 && strings.Count(got, "L") == 1
		},
		gen.IntRange(1, 30),
	))

	properties.TestingRun(t)
}

// TestSubstitutionProperties checks that plain text survives processing
func TestSubstitutionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	p := New()

	// Property: text without tags is returned unchanged
	properties.Property("tag-free text is untouched", prop.ForAll(
		func(text string) bool {
			if strings.Contains(text, "{{") {
				return true
			}
			got, err := p.Process(context.Background(), text, nil)
			return err == nil && got == text
		},
		gen.AlphaString(),
	))

	// Property: a bound name always substitutes to its string value
	properties.Property("bare names substitute", prop.ForAll(
		func(value string) bool {
			got, err := p.Process(context.Background(), "<{{v}}>", map[string]any{"v": value})
			return err == nil && got == "<"+value+">"
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
