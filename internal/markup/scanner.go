// Package markup locates and validates the block markers used for template
// inheritance.
//
// A block is a named region written as [!name] ... [~name]. The scanner is
// deliberately lenient: an open tag is paired with the first same-named close
// tag that follows it, whatever other tags sit in between. Nesting is not
// tracked. ValidateStructure is the strict counterpart and reports every
// imbalance with its line number.
package markup

import (
	"regexp"
	"strings"
)

// Block is one occurrence of a named block in a document.
type Block struct {
	Start int    // offset of the open marker
	End   int    // offset just past the close marker
	Inner string // text between the markers
}

// forbiddenNameChars may not appear in a block name.
const forbiddenNameChars = "[]{}~"

// namePattern matches a block name: at least one non-space character and
// nothing from forbiddenNameChars.
const namePattern = `[^\[\]{}~\n]*[^\[\]{}~\s][^\[\]{}~\n]*`

var (
	openMarkerPattern   = regexp.MustCompile(`\[!(` + namePattern + `)\]`)
	anyMarkerPattern    = regexp.MustCompile(`\[[!~]` + namePattern + `\]`)
	candidateTagPattern = regexp.MustCompile(`\[([!~])([^\]\n]*)\]`)
)

// OpenMarker returns the open marker for a block name.
func OpenMarker(name string) string {
	return "[!" + name + "]"
}

// CloseMarker returns the close marker for a block name.
func CloseMarker(name string) string {
	return "[~" + name + "]"
}

// ValidName reports whether name can be used as a block name.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return !strings.ContainsAny(name, forbiddenNameChars+"\n")
}

// LocateBlocks finds every matched [!name]...[~name] region in content,
// grouped by name in document order. Open tags without a following close tag
// are skipped.
func LocateBlocks(content string) map[string][]Block {
	blocks := make(map[string][]Block)

	for _, m := range openMarkerPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		if !ValidName(name) {
			continue
		}

		openEnd := m[1]
		closeMarker := CloseMarker(name)
		rel := strings.Index(content[openEnd:], closeMarker)
		if rel < 0 {
			continue
		}

		closeStart := openEnd + rel
		blocks[name] = append(blocks[name], Block{
			Start: m[0],
			End:   closeStart + len(closeMarker),
			Inner: content[openEnd:closeStart],
		})
	}

	return blocks
}

// StripMarkers removes every open and close marker and leaves all other text
// untouched. Removal is repeated until nothing changes, so markers assembled
// from the fragments of removed ones are stripped too.
func StripMarkers(content string) string {
	for {
		stripped := anyMarkerPattern.ReplaceAllString(content, "")
		if stripped == content {
			return stripped
		}
		content = stripped
	}
}
