package pipeline

import (
	"regexp"
	"strings"
)

type tagKind int

const (
	tagFor tagKind = iota
	tagEndFor
	tagEmpty
	tagIf
	tagElseIf
	tagElse
	tagEndIf
)

// controlTag is one structural tag found in a document.
type controlTag struct {
	kind  tagKind
	start int
	end   int
	arg   string // header text after the keyword, trimmed
}

var (
	controlTagPattern = regexp.MustCompile(`(?s)\{\{\s*(for|endfor|empty|if|else\s+if|else|endif)\b(.*?)\}\}`)
	ifTagPattern      = regexp.MustCompile(`\{\{\s*if\b`)
	anyTagPattern     = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)
	loopMarkerPattern = regexp.MustCompile(`\{\{\s*(break|continue)\s*\}\}`)
	breakPattern      = regexp.MustCompile(`\{\{\s*break\s*\}\}`)
	continuePattern   = regexp.MustCompile(`\{\{\s*continue\s*\}\}`)
)

// scanControlTags lists the structural tags in content in document order.
// Keywords that take no argument (else, endif, endfor, empty) only count when
// nothing follows them inside the tag.
func scanControlTags(content string) []controlTag {
	var tags []controlTag
	for _, m := range controlTagPattern.FindAllStringSubmatchIndex(content, -1) {
		keyword := strings.Join(strings.Fields(content[m[2]:m[3]]), " ")
		arg := strings.TrimSpace(content[m[4]:m[5]])

		tag := controlTag{start: m[0], end: m[1], arg: arg}
		switch keyword {
		case "for":
			tag.kind = tagFor
		case "if":
			tag.kind = tagIf
		case "else if":
			tag.kind = tagElseIf
		case "endfor":
			tag.kind = tagEndFor
		case "empty":
			tag.kind = tagEmpty
		case "else":
			tag.kind = tagElse
		case "endif":
			tag.kind = tagEndIf
		}

		switch tag.kind {
		case tagFor, tagIf, tagElseIf:
			if arg == "" {
				continue
			}
		default:
			if arg != "" {
				continue
			}
		}
		tags = append(tags, tag)
	}
	return tags
}

// structuralKeyword reports whether a tag body belongs to a later phase and
// must be left verbatim by substitution.
func structuralKeyword(body string) bool {
	body = strings.Join(strings.Fields(body), " ")
	switch body {
	case "else", "endif", "endfor", "empty", "break", "continue":
		return true
	}
	for _, prefix := range []string{"if ", "if(", "for ", "else if ", "else if("} {
		if strings.HasPrefix(body, prefix) {
			return true
		}
	}
	return false
}

// hasDynamicTags is the syntactic probe used by the fixpoint loop. Loop
// control markers alone do not count.
func hasDynamicTags(content string) bool {
	for _, m := range anyTagPattern.FindAllStringSubmatch(content, -1) {
		body := strings.TrimSpace(m[1])
		if body == "break" || body == "continue" {
			continue
		}
		return true
	}
	return false
}
