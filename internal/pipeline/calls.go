package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/sandbox"
)

var (
	userCallPattern  = regexp.MustCompile(`\{\{\s*user:\s*([^\s(){}]+)\s*\((.*?)\)\s*\}\}`)
	embeddedRefRegex = regexp.MustCompile(`^\{\{\s*(.+?)\s*\}\}$`)
)

// processUserCalls replaces every {{user: name(args)}} with the stringified
// result of the registered function.
func (p *Processor) processUserCalls(ctx context.Context, content string, vars map[string]any) string {
	return userCallPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := userCallPattern.FindStringSubmatch(match)
		name, rawArgs := m[1], m[2]

		result, err := p.callUser(ctx, name, p.resolveArgs(rawArgs, vars))
		if err != nil {
			p.logger.Warn(ctx, err, "user function failed", "function", name)
			return ""
		}
		return sandbox.Stringify(result)
	})
}

func (p *Processor) callUser(ctx context.Context, name string, args []any) (result any, err error) {
	if sandbox.IsUnsafeKey(name) {
		return nil, tserrors.ErrUnsafeName(name)
	}
	if p.functions == nil {
		return nil, tserrors.ErrFunctionNotFound(name)
	}
	fn, ok := p.functions.Lookup(name)
	if !ok {
		return nil, tserrors.ErrFunctionNotFound(name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = tserrors.NewInternalError(tserrors.ErrCodeFunctionFailed,
				"user function "+name+" panicked", fmt.Errorf("%v", r))
		}
	}()

	result, err = fn(ctx, args...)
	if err != nil {
		return nil, tserrors.WrapEvaluation(err, tserrors.ErrCodeFunctionFailed, "user function "+name+" returned an error")
	}
	return result, nil
}

// resolveArgs splits the argument list on commas and classifies each piece:
// quoted literal, {{ref}}, keyword literal, number, then bare identifier.
// Arguments that name an unsafe key are dropped, shifting later positions.
func (p *Processor) resolveArgs(raw string, vars map[string]any) []any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var args []any
	for _, part := range strings.Split(raw, ",") {
		arg := strings.TrimSpace(part)
		if value, keep := classifyArg(arg, vars); keep {
			args = append(args, value)
		}
	}
	return args
}

func classifyArg(arg string, vars map[string]any) (any, bool) {
	if len(arg) >= 2 {
		first, last := arg[0], arg[len(arg)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return arg[1 : len(arg)-1], true
		}
	}

	if m := embeddedRefRegex.FindStringSubmatch(arg); m != nil {
		return lookupArg(m[1], vars)
	}

	switch arg {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "undefined":
		return nil, true
	}

	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f, true
	}

	value, keep := lookupArg(arg, vars)
	if !keep {
		return nil, false
	}
	if value == nil {
		if _, found := sandbox.GetByPath(vars, arg); !found {
			return arg, true
		}
	}
	return value, true
}

// lookupArg resolves a name or dotted path from vars. Paths touching an
// unsafe key are reported as not kept.
func lookupArg(name string, vars map[string]any) (any, bool) {
	for _, segment := range strings.Split(name, ".") {
		if sandbox.IsUnsafeKey(segment) {
			return nil, false
		}
	}
	value, _ := sandbox.GetByPath(vars, name)
	return value, true
}
