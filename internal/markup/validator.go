package markup

import (
	"fmt"
	"strings"

	tserrors "github.com/conneroisu/tessera/internal/errors"
)

type openTag struct {
	name string
	line int
}

// ValidateStructure checks that block markers are balanced and well formed.
// It never stops at the first problem: mismatched, unmatched and unclosed
// tags are all collected, as are malformed ones (blank names or names
// containing [ ] { } ~).
func ValidateStructure(content string) []tserrors.StructureError {
	var (
		problems []tserrors.StructureError
		stack    []openTag
		line     = 1
		lastPos  = 0
	)

	for _, m := range candidateTagPattern.FindAllStringSubmatchIndex(content, -1) {
		line += strings.Count(content[lastPos:m[0]], "\n")
		lastPos = m[0]

		kind := content[m[2]:m[3]]
		name := content[m[4]:m[5]]
		raw := content[m[0]:m[1]]

		if !ValidName(name) {
			problems = append(problems, tserrors.StructureError{
				Line:    line,
				Message: fmt.Sprintf("malformed tag %s", raw),
			})
			continue
		}

		if kind == "!" {
			stack = append(stack, openTag{name: name, line: line})
			continue
		}

		if len(stack) == 0 {
			problems = append(problems, tserrors.StructureError{
				Line:    line,
				Message: fmt.Sprintf("unmatched closing tag %s", raw),
			})
			continue
		}

		top := stack[len(stack)-1]
		if top.name == name {
			stack = stack[:len(stack)-1]
			continue
		}

		problems = append(problems, tserrors.StructureError{
			Line: line,
			Message: fmt.Sprintf("closing tag %s does not match %s opened on line %d",
				raw, OpenMarker(top.name), top.line),
		})

		// Resynchronise on the nearest open tag with this name so a single
		// mistake is not reported again for every enclosing block.
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].name == name {
				stack = stack[:i]
				break
			}
		}
	}

	for _, open := range stack {
		problems = append(problems, tserrors.StructureError{
			Line:    open.line,
			Message: fmt.Sprintf("unclosed tag %s", OpenMarker(open.name)),
		})
	}

	return problems
}
