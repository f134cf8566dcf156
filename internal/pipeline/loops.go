package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/sandbox"
)

var (
	loopHeaderPattern = regexp.MustCompile(`(?s)^(.+?)\s+in\s+(.+)$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// reservedNames cannot be used as loop bindings.
var reservedNames = map[string]struct{}{
	"for": {}, "in": {}, "if": {}, "else": {}, "endif": {}, "endfor": {},
	"empty": {}, "break": {}, "continue": {}, "user": {},
	"true": {}, "false": {}, "null": {}, "undefined": {},
}

// loopBlock is a matched {{for}} ... {{endfor}} region.
type loopBlock struct {
	header    string
	start     int
	end       int
	body      string
	emptyBody string
}

// matchLoop pairs the for tag at tags[i] with its endfor, counting nested
// loops. An {{empty}} at the loop's own depth splits off the empty branch.
func matchLoop(content string, tags []controlTag, i int) (loopBlock, bool) {
	open := tags[i]
	depth := 1
	emptyIdx := -1

	for j := i + 1; j < len(tags); j++ {
		switch tags[j].kind {
		case tagFor:
			depth++
		case tagEmpty:
			if depth == 1 && emptyIdx < 0 {
				emptyIdx = j
			}
		case tagEndFor:
			depth--
			if depth > 0 {
				continue
			}
			block := loopBlock{header: open.arg, start: open.start, end: tags[j].end}
			if emptyIdx >= 0 {
				block.body = content[open.end:tags[emptyIdx].start]
				block.emptyBody = content[tags[emptyIdx].end:tags[j].start]
			} else {
				block.body = content[open.end:tags[j].start]
			}
			return block, true
		}
	}
	return loopBlock{}, false
}

// processLoops expands every loop, outermost first, left to right.
func (p *Processor) processLoops(ctx context.Context, content string, vars map[string]any, depth int) (string, error) {
	var out strings.Builder
	rest := content

	for {
		tags := scanControlTags(rest)
		first := -1
		for i, tag := range tags {
			if tag.kind == tagFor {
				first = i
				break
			}
		}
		if first < 0 {
			out.WriteString(rest)
			return out.String(), nil
		}

		block, ok := matchLoop(rest, tags, first)
		if !ok {
			// Unterminated: keep the tag as text and look further on.
			out.WriteString(rest[:tags[first].end])
			rest = rest[tags[first].end:]
			continue
		}

		rendered, err := p.renderLoop(ctx, block, vars, depth)
		if err != nil {
			return "", err
		}
		out.WriteString(rest[:block.start])
		out.WriteString(rendered)
		rest = rest[block.end:]
	}
}

// renderLoop evaluates the loop source and renders each iteration through
// the full pipeline.
func (p *Processor) renderLoop(ctx context.Context, block loopBlock, vars map[string]any, depth int) (string, error) {
	if depth >= maxLoopDepth {
		p.logger.Warn(ctx, nil, "loop nesting too deep; loop skipped", "header", block.header)
		return "", nil
	}

	names, source, err := parseLoopHeader(block.header)
	if err != nil {
		p.logger.Warn(ctx, err, "invalid loop", "header", block.header)
		return "", nil
	}

	// A failed source is null and takes the empty branch.
	value := p.evaluator.Evaluate(ctx, source, vars)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if sandbox.IsEmpty(value) {
		if block.emptyBody == "" {
			return "", nil
		}
		return p.run(ctx, block.emptyBody, vars, depth+1)
	}

	keys, values, ok := iterationItems(value)
	if !ok {
		p.logger.Warn(ctx, nil, "loop source is not a list or map", "source", source)
		return "", nil
	}

	var out strings.Builder
	for i := range values {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		scope := iterationScope(vars, names, keys[i], values[i], i, len(values))
		rendered, err := p.run(ctx, block.body, scope, depth+1)
		if err != nil {
			return "", err
		}

		if breakPattern.MatchString(rendered) {
			out.WriteString(loopMarkerPattern.ReplaceAllString(rendered, ""))
			break
		}
		if continuePattern.MatchString(rendered) {
			continue
		}
		out.WriteString(rendered)
	}
	return out.String(), nil
}

// parseLoopHeader splits "x in expr" or "k, v in expr" into binding names and
// the source expression.
func parseLoopHeader(header string) ([]string, string, error) {
	m := loopHeaderPattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return nil, "", fmt.Errorf("expected \"name in expression\"")
	}

	var names []string
	for _, raw := range strings.Split(m[1], ",") {
		name := strings.TrimSpace(raw)
		if !identifierPattern.MatchString(name) {
			return nil, "", fmt.Errorf("invalid loop binding %q", name)
		}
		if _, reserved := reservedNames[name]; reserved || sandbox.IsUnsafeKey(name) || sandbox.IsBlockedIdentifier(name) {
			return nil, "", tserrors.ErrUnsafeName(name)
		}
		names = append(names, name)
	}
	if len(names) > 2 {
		return nil, "", fmt.Errorf("at most two loop bindings are allowed, got %d", len(names))
	}
	return names, strings.TrimSpace(m[2]), nil
}

// iterationItems flattens a list into (index, value) pairs and a map into
// (key, value) pairs in sorted key order.
func iterationItems(value any) ([]any, []any, bool) {
	switch v := sandbox.Normalize(value).(type) {
	case []any:
		keys := make([]any, len(v))
		for i := range v {
			keys[i] = float64(i)
		}
		return keys, v, true
	case map[string]any:
		sorted := sandbox.SortedKeys(v)
		keys := make([]any, len(sorted))
		values := make([]any, len(sorted))
		for i, k := range sorted {
			keys[i] = k
			values[i] = v[k]
		}
		return keys, values, true
	}
	return nil, nil, false
}

// iterationScope copies vars and adds the bindings for one iteration plus
// <name>_index, <name>_isFirst and <name>_isLast for every bound name.
func iterationScope(vars map[string]any, names []string, key, value any, index, count int) map[string]any {
	scope := make(map[string]any, len(vars)+len(names)*4)
	for k, v := range vars {
		scope[k] = v
	}

	if len(names) == 1 {
		scope[names[0]] = value
	} else {
		scope[names[0]] = key
		scope[names[1]] = value
	}

	for _, name := range names {
		scope[name+"_index"] = float64(index)
		scope[name+"_isFirst"] = index == 0
		scope[name+"_isLast"] = index == count-1
	}
	return scope
}
