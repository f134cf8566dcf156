package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/conneroisu/tessera/internal/sandbox"
)

var (
	escapedTagPattern = regexp.MustCompile("`(\\{\\{.*?\\}\\})`")
	dottedPathPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_$][\w$]*(?:\.[\w$]+)+)\s*\}\}`)
	bareNamePattern   = regexp.MustCompile(`\{\{\s*([^\s{}]+)\s*\}\}`)
)

// substitute runs the four substitution steps in order: restore escaped
// tags, resolve dotted paths, resolve bare names, evaluate what remains.
func (p *Processor) substitute(ctx context.Context, content string, vars map[string]any) string {
	content = escapedTagPattern.ReplaceAllString(content, "$1")
	content = substitutePaths(content, vars)
	content = substituteNames(content, vars)
	return p.substituteExpressions(ctx, content, vars)
}

// substitutePaths resolves {{a.b.c}} through own-property traversal. Paths
// that do not resolve are left for expression evaluation.
func substitutePaths(content string, vars map[string]any) string {
	return dottedPathPattern.ReplaceAllStringFunc(content, func(match string) string {
		path := dottedPathPattern.FindStringSubmatch(match)[1]
		value, found := sandbox.GetByPath(vars, path)
		if !found {
			return match
		}
		return sandbox.Stringify(value)
	})
}

// substituteNames replaces {{name}} when name is a key of vars. Unsafe keys
// and structural keywords are skipped.
func substituteNames(content string, vars map[string]any) string {
	return bareNamePattern.ReplaceAllStringFunc(content, func(match string) string {
		name := bareNamePattern.FindStringSubmatch(match)[1]
		if sandbox.IsUnsafeKey(name) || structuralKeyword(name) {
			return match
		}
		value, ok := vars[name]
		if !ok {
			return match
		}
		return sandbox.Stringify(value)
	})
}

// substituteExpressions evaluates every remaining tag in the sandbox, except
// empty tags (removed), user calls and structural keywords (kept).
func (p *Processor) substituteExpressions(ctx context.Context, content string, vars map[string]any) string {
	return anyTagPattern.ReplaceAllStringFunc(content, func(match string) string {
		body := strings.TrimSpace(match[2 : len(match)-2])
		switch {
		case body == "":
			return ""
		case strings.Contains(body, "user:"):
			return match
		case structuralKeyword(body):
			return match
		}
		return sandbox.Stringify(p.evaluator.Evaluate(ctx, body, vars))
	})
}
