// Package engine ties the template stages together. An Engine owns the state
// that outlives a single render: the feature registry, the included-files
// registry with its compilation flag, and the record of recently written
// outputs. Each render rebuilds everything else.
//
// A render of one document runs: read, validate structure (logged), resolve
// includes, compose the inheritance chain, process dynamic content. Only a
// broken inheritance chain, an unreadable page, or cancellation fail a render;
// every other problem degrades the affected fragment and is logged.
//
// Compilation passes must be serialized by the caller. The included-files
// registry is shared by every render that runs while compilation mode is on.
package engine

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/tessera/internal/compose"
	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/include"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/markup"
	"github.com/conneroisu/tessera/internal/pipeline"
	"github.com/conneroisu/tessera/internal/registry"
	"github.com/conneroisu/tessera/internal/sandbox"
)

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Root                 string
	Fs                   afero.Fs
	FeaturesFile         string
	MaxPasses            int
	MaxConditionalPasses int
	SandboxTimeout       time.Duration
	RecentWriteTTL       time.Duration
	Lenient              bool
	Logger               logging.Logger
}

// Engine renders documents under a template root.
type Engine struct {
	root         string
	fs           afero.Fs
	files        FileProvider
	featuresFile string
	lenient      bool

	features  *registry.Features
	included  *registry.IncludedFiles
	recent    *RecentWrites
	compiling atomic.Bool

	evaluator  *sandbox.Evaluator
	processor  *pipeline.Processor
	resolver   *include.Resolver
	compositor *compose.Compositor
	logger     logging.Logger
}

// New creates an Engine. The root is made absolute and must not be empty.
func New(opts Options) (*Engine, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, tserrors.NewConfigError(tserrors.ErrCodeConfigInvalid, "template root cannot be empty")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, tserrors.WrapConfig(err, tserrors.ErrCodeConfigInvalid, "cannot resolve template root")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	e := &Engine{
		root:         root,
		fs:           fs,
		files:        NewFileProvider(fs),
		featuresFile: opts.FeaturesFile,
		lenient:      opts.Lenient,
		included:     registry.NewIncludedFiles(),
		recent:       NewRecentWrites(opts.RecentWriteTTL),
		logger:       logger.WithComponent("engine"),
	}

	evalOpts := []sandbox.Option{sandbox.WithLogger(logger)}
	if opts.SandboxTimeout > 0 {
		evalOpts = append(evalOpts, sandbox.WithTimeout(opts.SandboxTimeout))
	}
	e.evaluator = sandbox.New(evalOpts...)
	e.features = registry.NewFeatures(e.evaluator)

	procOpts := []pipeline.Option{
		pipeline.WithEvaluator(e.evaluator),
		pipeline.WithFunctions(e.features),
		pipeline.WithLogger(logger),
	}
	if opts.MaxPasses > 0 {
		procOpts = append(procOpts, pipeline.WithMaxPasses(opts.MaxPasses))
	}
	if opts.MaxConditionalPasses > 0 {
		procOpts = append(procOpts, pipeline.WithMaxConditionalPasses(opts.MaxConditionalPasses))
	}
	e.processor = pipeline.New(procOpts...)

	e.resolver = include.NewResolver(root, e.files,
		include.WithLogger(logger),
		include.WithRecorder(e.recordInclude))
	e.compositor = compose.New(root, e.files,
		compose.WithIncludes(e.resolver),
		compose.WithLogger(logger))

	return e, nil
}

// Root returns the absolute template root.
func (e *Engine) Root() string {
	return e.root
}

// Features returns the global feature registry.
func (e *Engine) Features() *registry.Features {
	return e.features
}

// IncludedFiles returns the registry filled during compilation mode.
func (e *Engine) IncludedFiles() *registry.IncludedFiles {
	return e.included
}

// RecentWrites returns the record of outputs written by the engine.
func (e *Engine) RecentWrites() *RecentWrites {
	return e.recent
}

// BeginCompilation clears the included-files registry and starts recording.
func (e *Engine) BeginCompilation() {
	e.included.Clear()
	e.compiling.Store(true)
}

// EndCompilation stops recording and returns the included files, sorted.
func (e *Engine) EndCompilation() []string {
	e.compiling.Store(false)
	return e.included.Paths()
}

// Compiling reports whether compilation mode is on.
func (e *Engine) Compiling() bool {
	return e.compiling.Load()
}

// Reset returns the engine state to its initial form. Loaded features are
// kept.
func (e *Engine) Reset() {
	e.compiling.Store(false)
	e.included.Clear()
	e.recent.Clear()
	e.evaluator.ClearCache()
}

// ReloadFeatures rereads the features file. Without a configured file this is
// a no-op.
func (e *Engine) ReloadFeatures(ctx context.Context) error {
	if e.featuresFile == "" {
		return nil
	}
	if err := e.features.Load(e.fs, e.featuresFile); err != nil {
		return err
	}
	e.logger.Info(ctx, "features loaded",
		"file", e.featuresFile,
		"functions", len(e.features.Functions()))
	return nil
}

func (e *Engine) recordInclude(relPath string) {
	if e.compiling.Load() {
		e.included.Record(relPath)
	}
}

// resolvePage maps a page name to an absolute path under the root. Relative
// names are taken from the root.
func (e *Engine) resolvePage(page string) (string, error) {
	path := page
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.root, path)
	}
	path = filepath.Clean(path)
	if !include.Within(e.root, path) || path == e.root {
		return "", tserrors.ErrUnsafePath(page)
	}
	return path, nil
}

// RenderFile renders the page at path (absolute, or relative to the root)
// with vars layered over the global feature variables.
func (e *Engine) RenderFile(ctx context.Context, page string, vars map[string]any) (string, error) {
	path, content, err := e.readPage(ctx, page)
	if err != nil {
		return "", err
	}
	return e.render(ctx, content, path, vars)
}

func (e *Engine) readPage(ctx context.Context, page string) (string, string, error) {
	path, err := e.resolvePage(page)
	if err != nil {
		return "", "", err
	}

	data, err := e.files.ReadFile(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		return "", "", tserrors.WrapIO(err, tserrors.ErrCodeFileNotFound, "cannot read template").
			WithLocation(path, 0)
	}
	return path, string(data), nil
}

// RenderString renders content as if it were a file at the template root.
func (e *Engine) RenderString(ctx context.Context, content string, vars map[string]any) (string, error) {
	return e.render(ctx, content, "", vars)
}

func (e *Engine) render(ctx context.Context, content, path string, vars map[string]any) (string, error) {
	perf := logging.StartOperation(e.logger, "render")

	if problems := markup.ValidateStructure(content); len(problems) > 0 {
		e.logStructure(ctx, path, problems)
	}

	visited := map[string]struct{}{}
	if path != "" {
		visited[path] = struct{}{}
	}
	expanded, err := e.resolver.Resolve(ctx, content, path, visited)
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	composed, err := e.compositor.Compose(ctx, expanded, path)
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	out, err := e.processor.Process(ctx, composed, e.variables(vars))
	if err != nil {
		perf.EndWithError(ctx, err)
		return "", err
	}

	perf.End(ctx)
	return out, nil
}

// variables layers request values over a snapshot of the feature variables.
func (e *Engine) variables(vars map[string]any) map[string]any {
	merged := e.features.Variables()
	for k, v := range vars {
		if sandbox.IsUnsafeKey(k) {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Validate checks the block structure of the file at page. Problems are
// returned as a structure error, or only logged in lenient mode.
func (e *Engine) Validate(ctx context.Context, page string) error {
	path, content, err := e.readPage(ctx, page)
	if err != nil {
		return err
	}
	return e.ValidateContent(ctx, content, path)
}

// Layout returns the root-relative base template the page extends, or "" when
// it extends nothing.
func (e *Engine) Layout(ctx context.Context, page string) (string, error) {
	path, content, err := e.readPage(ctx, page)
	if err != nil {
		return "", err
	}
	target, _, ok := compose.ParseExtends(content)
	if !ok {
		return "", nil
	}
	base, err := include.ResolvePath(e.root, path, target)
	if err != nil {
		return "", err
	}
	return include.RootRelative(e.root, base), nil
}

// ValidateContent is Validate for content already in memory.
func (e *Engine) ValidateContent(ctx context.Context, content, path string) error {
	problems := markup.ValidateStructure(content)
	if len(problems) == 0 {
		return nil
	}
	if e.lenient {
		e.logStructure(ctx, path, problems)
		return nil
	}
	return &tserrors.StructureErrors{FilePath: path, Errors: problems}
}

func (e *Engine) logStructure(ctx context.Context, path string, problems []tserrors.StructureError) {
	for _, p := range problems {
		e.logger.Warn(ctx, p, "block structure problem", "file", path, "line", p.Line)
	}
}
