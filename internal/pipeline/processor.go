// Package pipeline expands the dynamic parts of a composed template: loops,
// conditionals, user function calls and variable or expression tags.
//
// The phases run in that order and the whole sequence repeats until the text
// stops changing, no dynamic tag is left, or the pass cap is reached. Nested
// constructs become resolvable only once their enclosing construct has been
// expanded, so repetition stands in for a recursive grammar. Failures inside
// a fragment are logged and the fragment renders empty; the rest of the
// document is unaffected.
package pipeline

import (
	"context"

	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/registry"
	"github.com/conneroisu/tessera/internal/sandbox"
)

const (
	// DefaultMaxPasses caps the outer fixpoint loop.
	DefaultMaxPasses = 10
	// DefaultMaxConditionalPasses caps the conditional-only passes used to
	// unwrap nested conditionals inside a single outer pass.
	DefaultMaxConditionalPasses = 20
	// maxLoopDepth bounds recursion into loop bodies.
	maxLoopDepth = 32
)

// Processor runs the dynamic-content pipeline. It holds no per-render state
// and may be shared between goroutines.
type Processor struct {
	evaluator            *sandbox.Evaluator
	functions            registry.FunctionRegistry
	logger               logging.Logger
	maxPasses            int
	maxConditionalPasses int
}

// Option configures a Processor.
type Option func(*Processor)

// WithEvaluator sets the sandbox used for loop sources, conditions and free
// expressions.
func WithEvaluator(e *sandbox.Evaluator) Option {
	return func(p *Processor) {
		if e != nil {
			p.evaluator = e
		}
	}
}

// WithFunctions sets the registry consulted by {{user: ...}} calls.
func WithFunctions(functions registry.FunctionRegistry) Option {
	return func(p *Processor) {
		p.functions = functions
	}
}

// WithLogger sets the logger for recoverable warnings.
func WithLogger(logger logging.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger.WithComponent("pipeline")
		}
	}
}

// WithMaxPasses overrides the outer pass cap.
func WithMaxPasses(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxPasses = n
		}
	}
}

// WithMaxConditionalPasses overrides the conditional pass cap.
func WithMaxConditionalPasses(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxConditionalPasses = n
		}
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		evaluator:            sandbox.New(),
		logger:               logging.Discard(),
		maxPasses:            DefaultMaxPasses,
		maxConditionalPasses: DefaultMaxConditionalPasses,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process expands every dynamic tag in content against vars and returns the
// result. Loop control markers that end up outside any loop are removed. The
// only error is cancellation of ctx.
func (p *Processor) Process(ctx context.Context, content string, vars map[string]any) (string, error) {
	out, err := p.run(ctx, content, vars, 0)
	if err != nil {
		return "", err
	}
	return loopMarkerPattern.ReplaceAllString(out, ""), nil
}

// run is the fixpoint loop. It is re-entered for every loop iteration body.
func (p *Processor) run(ctx context.Context, content string, vars map[string]any, depth int) (string, error) {
	if vars == nil {
		vars = map[string]any{}
	}

	current := content
	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		next, err := p.pass(ctx, current, vars, depth)
		if err != nil {
			return "", err
		}

		if next == current || !hasDynamicTags(next) {
			return next, nil
		}
		current = next

		if pass >= p.maxPasses {
			p.logger.Warn(ctx, nil, "dynamic content did not settle; returning partial output",
				"passes", pass,
				"depth", depth)
			return current, nil
		}
	}
}

// pass applies each phase once.
func (p *Processor) pass(ctx context.Context, content string, vars map[string]any, depth int) (string, error) {
	content, err := p.processLoops(ctx, content, vars, depth)
	if err != nil {
		return "", err
	}

	content = p.processConditionals(ctx, content, vars)
	content = p.processUserCalls(ctx, content, vars)
	content = p.substitute(ctx, content, vars)
	return content, nil
}
