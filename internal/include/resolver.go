// Package include splices [include path] directives with the content of the
// referenced files, recursively, keeping every path under the template root
// and refusing cycles.
package include

import (
	"context"
	"regexp"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/logging"
)

var directivePattern = regexp.MustCompile(`\[include\s+([^\]\n]+?)\s*\]`)

// FileReader reads template files.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// Recorder is told about every file that was successfully included, as a
// root-relative slash path.
type Recorder func(relPath string)

// Resolver expands include directives.
type Resolver struct {
	root   string
	files  FileReader
	record Recorder
	logger logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRecorder installs the callback used to track included files.
func WithRecorder(record Recorder) Option {
	return func(r *Resolver) {
		r.record = record
	}
}

// WithLogger sets the logger for dropped directives.
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger.WithComponent("include")
		}
	}
}

// NewResolver creates a Resolver for templates under root, which must be a
// cleaned absolute path.
func NewResolver(root string, files FileReader, opts ...Option) *Resolver {
	r := &Resolver{
		root:   root,
		files:  files,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the template root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve expands every include directive in content. currentPath is the
// file content came from; visited holds the files already being expanded
// further up the chain and is not modified. Directives that escape the root,
// close a cycle, or name an unreadable file are dropped with a warning. The
// only error is cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, content, currentPath string, visited map[string]struct{}) (string, error) {
	matches := directivePattern.FindAllStringSubmatchIndex(content, -1)

	// Back to front so earlier offsets stay valid while splicing.
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if quoted(content, m[0], m[1]) {
			continue
		}

		replacement, err := r.expand(ctx, content[m[2]:m[3]], currentPath, visited)
		if err != nil {
			return "", err
		}
		content = content[:m[0]] + replacement + content[m[1]:]
	}
	return content, nil
}

func (r *Resolver) expand(ctx context.Context, target, currentPath string, visited map[string]struct{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := ResolvePath(r.root, currentPath, target)
	if err != nil {
		r.logger.Warn(ctx, err, "include dropped: path escapes template root",
			"target", target, "from", currentPath)
		return "", nil
	}

	if _, seen := visited[path]; seen || path == currentPath {
		r.logger.Warn(ctx, tserrors.NewSecurityError(tserrors.ErrCodeIncludeCycle, "include cycle"),
			"include dropped: cycle detected",
			"target", target, "from", currentPath)
		return "", nil
	}

	data, err := r.files.ReadFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		r.logger.Warn(ctx, tserrors.WrapIO(err, tserrors.ErrCodeIncludeRead, "cannot read include"),
			"include dropped: file unreadable",
			"target", target, "from", currentPath)
		return "", nil
	}

	next := make(map[string]struct{}, len(visited)+1)
	for p := range visited {
		next[p] = struct{}{}
	}
	next[path] = struct{}{}

	expanded, err := r.Resolve(ctx, string(data), path, next)
	if err != nil {
		return "", err
	}

	if r.record != nil {
		r.record(RootRelative(r.root, path))
	}
	return expanded, nil
}

// quoted reports whether the directive at content[start:end] is wrapped in a
// matching pair of quotes.
func quoted(content string, start, end int) bool {
	if start == 0 || end >= len(content) {
		return false
	}
	before, after := content[start-1], content[end]
	return before == after && (before == '"' || before == '\'' || before == '`')
}
