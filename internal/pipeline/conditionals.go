package pipeline

import (
	"context"
	"strings"

	"github.com/conneroisu/tessera/internal/sandbox"
)

type branch struct {
	condition string // empty for the else branch
	body      string
}

type conditionalBlock struct {
	start    int
	end      int
	branches []branch
}

// matchConditional pairs the if tag at tags[i] with its endif and splits the
// region into branches at the else-if and else tags of the same depth. Tags
// after the else branch are part of its body.
func matchConditional(content string, tags []controlTag, i int) (conditionalBlock, bool) {
	open := tags[i]
	block := conditionalBlock{start: open.start}

	depth := 1
	condition := open.arg
	bodyStart := open.end
	seenElse := false

	for j := i + 1; j < len(tags); j++ {
		tag := tags[j]
		switch tag.kind {
		case tagIf:
			depth++
		case tagElseIf, tagElse:
			if depth != 1 || seenElse {
				continue
			}
			block.branches = append(block.branches, branch{condition: condition, body: content[bodyStart:tag.start]})
			condition = tag.arg
			seenElse = tag.kind == tagElse
			bodyStart = tag.end
		case tagEndIf:
			depth--
			if depth > 0 {
				continue
			}
			block.branches = append(block.branches, branch{condition: condition, body: content[bodyStart:tag.start]})
			block.end = tag.end
			return block, true
		}
	}
	return conditionalBlock{}, false
}

// processConditionals resolves conditionals, repeating while a kept branch
// exposes a nested conditional, up to the conditional pass cap.
func (p *Processor) processConditionals(ctx context.Context, content string, vars map[string]any) string {
	for i := 0; i < p.maxConditionalPasses; i++ {
		next := p.conditionalPass(ctx, content, vars)
		if next == content {
			return next
		}
		content = next
		if !ifTagPattern.MatchString(content) {
			return content
		}
	}
	return content
}

// conditionalPass resolves each outermost conditional once. The kept branch
// is inserted verbatim; conditionals inside it wait for the next pass.
func (p *Processor) conditionalPass(ctx context.Context, content string, vars map[string]any) string {
	var out strings.Builder
	rest := content

	for {
		tags := scanControlTags(rest)
		first := -1
		for i, tag := range tags {
			if tag.kind == tagIf {
				first = i
				break
			}
		}
		if first < 0 {
			out.WriteString(rest)
			return out.String()
		}

		block, ok := matchConditional(rest, tags, first)
		if !ok {
			out.WriteString(rest[:tags[first].end])
			rest = rest[tags[first].end:]
			continue
		}

		out.WriteString(rest[:block.start])
		out.WriteString(p.chooseBranch(ctx, block, vars))
		rest = rest[block.end:]
	}
}

func (p *Processor) chooseBranch(ctx context.Context, block conditionalBlock, vars map[string]any) string {
	for idx, br := range block.branches {
		if idx > 0 && br.condition == "" {
			return br.body
		}

		// A failed condition is null, so falsy.
		if sandbox.Truthy(p.evaluator.Evaluate(ctx, br.condition, vars)) {
			return br.body
		}
	}
	return ""
}
