// Package sandbox evaluates the small expression language used inside
// template tags.
//
// Expressions support literals, variable and member access, arithmetic,
// comparison, logical and ternary operators, and calls to a fixed set of
// helper functions and string/list methods. Nothing else is reachable:
// references to host capabilities such as process or require reject the
// whole expression, prototype-style keys are never resolved, and every
// evaluation runs under a deadline.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/logging"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 1500 * time.Millisecond

// maxCacheEntries caps the parsed expression cache; it is cleared when full.
const maxCacheEntries = 2048

// Evaluator parses and evaluates expressions. It is safe for concurrent use.
type Evaluator struct {
	timeout time.Duration
	logger  logging.Logger

	mu    sync.RWMutex
	cache map[string]node
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-evaluation deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used by Evaluate for failures.
func WithLogger(logger logging.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger.WithComponent("sandbox")
		}
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
		cache:   make(map[string]node),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-evaluation deadline.
func (e *Evaluator) Timeout() time.Duration {
	return e.timeout
}

// Check parses expr without evaluating it.
func (e *Evaluator) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

// Eval evaluates expr against vars. Parse failures, forbidden references,
// failed calls and timeouts are returned as errors. Unknown identifiers
// evaluate to nil.
func (e *Evaluator) Eval(ctx context.Context, expr string, vars map[string]any) (any, error) {
	prog, err := e.program(expr)
	if err != nil {
		if isForbidden(err) {
			return nil, tserrors.NewSecurityError(tserrors.ErrCodeForbiddenRef, err.Error()).
				WithContext("expression", logging.Truncate(expr, 120))
		}
		return nil, tserrors.NewEvaluationError(tserrors.ErrCodeEvalFailed, "cannot parse expression", err).
			WithContext("expression", logging.Truncate(expr, 120))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		v, err := prog.eval(&scope{ctx: ctx, vars: vars})
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if ctx.Err() != nil {
				return nil, e.timeoutError(expr)
			}
			return nil, tserrors.NewEvaluationError(tserrors.ErrCodeEvalFailed, "expression failed", r.err).
				WithContext("expression", logging.Truncate(expr, 120))
		}
		return r.value, nil
	case <-ctx.Done():
		return nil, e.timeoutError(expr)
	}
}

// Evaluate is the forgiving form of Eval: any failure is logged and yields
// nil.
func (e *Evaluator) Evaluate(ctx context.Context, expr string, vars map[string]any) any {
	v, err := e.Eval(ctx, expr, vars)
	if err != nil {
		e.logger.Warn(ctx, err, "expression evaluation failed",
			"expression", logging.Truncate(expr, 120))
		return nil
	}
	return v
}

func (e *Evaluator) timeoutError(expr string) error {
	return tserrors.NewEvaluationError(tserrors.ErrCodeEvalTimeout,
		fmt.Sprintf("expression exceeded %s", e.timeout), context.DeadlineExceeded).
		WithContext("expression", logging.Truncate(expr, 120))
}

// ClearCache drops every parsed expression.
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]node)
}

func (e *Evaluator) program(expr string) (node, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expr]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	prog, err := parse(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cache) >= maxCacheEntries {
		e.cache = make(map[string]node)
	}
	e.cache[expr] = prog
	return prog, nil
}

type forbiddenError interface{ forbidden() bool }

func isForbidden(err error) bool {
	f, ok := err.(forbiddenError)
	return ok && f.forbidden()
}
