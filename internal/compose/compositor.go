package compose

import (
	"context"
	"regexp"
	"strings"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/include"
	"github.com/conneroisu/tessera/internal/logging"
)

var extendsPattern = regexp.MustCompile(`(?i)^\s*\[extends\s+([^\]\n]+?)\s*\]\s*$`)

// IncludeResolver expands include directives in a base template before it is
// merged.
type IncludeResolver interface {
	Resolve(ctx context.Context, content, currentPath string, visited map[string]struct{}) (string, error)
}

// existenceChecker is implemented by readers that can tell a missing base
// from one that cannot be read.
type existenceChecker interface {
	Exists(ctx context.Context, path string) bool
}

// Compositor resolves [extends] chains against the template root.
type Compositor struct {
	root     string
	files    include.FileReader
	includes IncludeResolver
	logger   logging.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithIncludes sets the resolver used on base templates. Without it bases are
// merged as read.
func WithIncludes(resolver IncludeResolver) Option {
	return func(c *Compositor) {
		c.includes = resolver
	}
}

// WithLogger sets the compositor logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Compositor) {
		if logger != nil {
			c.logger = logger.WithComponent("compose")
		}
	}
}

// New creates a Compositor reading bases under root.
func New(root string, files include.FileReader, opts ...Option) *Compositor {
	c := &Compositor{
		root:   root,
		files:  files,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseExtends looks for an [extends target] directive on the first non-blank
// line of content. It returns the target and the content with that line
// removed.
func ParseExtends(content string) (target, rest string, ok bool) {
	line, next, found := firstLine(content)
	if !found {
		return "", content, false
	}
	m := extendsPattern.FindStringSubmatch(line)
	if m == nil {
		return "", content, false
	}
	return m[1], content[next:], true
}

// firstLine returns the first non-blank line of content and the offset just
// past it.
func firstLine(content string) (line string, next int, found bool) {
	offset := 0
	for offset < len(content) {
		end := strings.IndexByte(content[offset:], '\n')
		lineEnd := len(content)
		next = len(content)
		if end >= 0 {
			lineEnd = offset + end
			next = lineEnd + 1
		}

		line = content[offset:lineEnd]
		if strings.TrimSpace(line) != "" {
			return line, next, true
		}
		offset = next
	}
	return "", len(content), false
}

// malformedExtends reports a first line that opens with [extends but is not a
// directive on its own line.
func malformedExtends(content string) (string, bool) {
	line, _, found := firstLine(content)
	if !found {
		return "", false
	}
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < len("[extends") || !strings.EqualFold(trimmed[:len("[extends")], "[extends") {
		return "", false
	}
	return trimmed, !extendsPattern.MatchString(line)
}

// Compose renders the inheritance chain of the document at path. Content is
// expected to have had its own includes resolved. A document without an
// [extends] line is its own base. A missing base, a base outside the root, or
// a cycle in the chain is fatal.
func (c *Compositor) Compose(ctx context.Context, content, path string) (string, error) {
	chain := map[string]struct{}{path: {}}
	merged, err := c.inherit(ctx, content, path, chain, false)
	if err != nil {
		return "", err
	}
	return finish(merged), nil
}

func (c *Compositor) inherit(ctx context.Context, content, path string, chain map[string]struct{}, keepMarkers bool) (string, error) {
	target, child, ok := ParseExtends(content)
	if !ok {
		if line, malformed := malformedExtends(content); malformed {
			c.logger.Warn(ctx, nil, "extends directive ignored: it must be alone on the first line",
				"file", path, "line", logging.Truncate(line, 80))
		}
		return content, nil
	}

	basePath, err := include.ResolvePath(c.root, path, target)
	if err != nil {
		return "", tserrors.ErrBaseNotFound(target, path).WithLocation(path, 1)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if checker, ok := c.files.(existenceChecker); ok && !checker.Exists(ctx, basePath) {
		return "", tserrors.ErrBaseNotFound(target, path).WithLocation(path, 1)
	}

	if _, seen := chain[basePath]; seen {
		return "", tserrors.NewResolutionError(tserrors.ErrCodeExtendsCycle, "extends cycle: "+target).
			WithContext("child", path).
			WithLocation(path, 1)
	}

	data, err := c.files.ReadFile(ctx, basePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		unreadable := tserrors.ErrBaseUnreadable(target, path).WithLocation(path, 1)
		unreadable.Cause = err
		return "", unreadable
	}

	c.logger.Debug(ctx, "extending base template", "child", path, "base", basePath)

	base := string(data)
	if c.includes != nil {
		base, err = c.includes.Resolve(ctx, base, basePath, map[string]struct{}{basePath: {}})
		if err != nil {
			return "", err
		}
	}

	next := make(map[string]struct{}, len(chain)+1)
	for p := range chain {
		next[p] = struct{}{}
	}
	next[basePath] = struct{}{}

	base, err = c.inherit(ctx, base, basePath, next, true)
	if err != nil {
		return "", err
	}
	return MergeBlocks(base, child, keepMarkers), nil
}
