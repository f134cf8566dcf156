// Package compose implements template inheritance: a child document names a
// base with a leading [extends target] line and overrides the base's blocks
// by name.
package compose

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/tessera/internal/markup"
)

// Doctype is prepended to composed documents that lack one.
const Doctype = "<!DOCTYPE html>\n"

type replacement struct {
	start int
	end   int
	text  string
}

// ComposeTemplate overrides the blocks of base with the same-named blocks of
// child, strips all remaining markers and ensures a doctype.
func ComposeTemplate(base, child string) string {
	return finish(MergeBlocks(base, child, false))
}

// MergeBlocks pairs the i-th occurrence of every child block with the i-th
// occurrence of the same-named base block and replaces the base span, markers
// included, with the child's inner text. Only min(base, child) occurrences of
// a name are replaced; surplus blocks on either side are left alone. With
// keepMarkers the replacement is rewrapped in its markers so a further level
// of inheritance still sees the block.
//
// When two replaced spans overlap, the one starting first wins and the span
// inside it is skipped.
func MergeBlocks(base, child string, keepMarkers bool) string {
	if child == "" {
		return base
	}

	baseBlocks := markup.LocateBlocks(base)
	var reps []replacement
	for name, childBlocks := range markup.LocateBlocks(child) {
		baseOccurrences := baseBlocks[name]
		n := min(len(baseOccurrences), len(childBlocks))
		for i := 0; i < n; i++ {
			text := childBlocks[i].Inner
			if keepMarkers {
				text = markup.OpenMarker(name) + text + markup.CloseMarker(name)
			}
			reps = append(reps, replacement{
				start: baseOccurrences[i].Start,
				end:   baseOccurrences[i].End,
				text:  text,
			})
		}
	}
	if len(reps) == 0 {
		return base
	}

	sort.Slice(reps, func(i, j int) bool {
		if reps[i].start != reps[j].start {
			return reps[i].start < reps[j].start
		}
		return reps[i].end > reps[j].end
	})

	kept := reps[:0]
	reach := -1
	for _, r := range reps {
		if r.start < reach {
			continue
		}
		kept = append(kept, r)
		reach = r.end
	}

	// Descending start order keeps the remaining offsets valid.
	for i := len(kept) - 1; i >= 0; i-- {
		r := kept[i]
		base = base[:r.start] + r.text + base[r.end:]
	}
	return base
}

func finish(content string) string {
	content = markup.StripMarkers(content)
	if HasDoctype(content) {
		return content
	}
	return Doctype + content
}

// HasDoctype reports whether content, ignoring leading whitespace, opens with
// a doctype declaration.
func HasDoctype(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "<!") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(trimmed))
	return z.Next() == html.DoctypeToken
}
