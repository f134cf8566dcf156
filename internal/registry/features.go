// Package registry holds the long-lived state the engine consumes: the
// feature registry (global variables and user functions) and the set of
// files included during a compilation pass.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/sandbox"
)

// UserFunc is a function callable from templates as {{user: name(args)}}.
type UserFunc func(ctx context.Context, args ...any) (any, error)

// FunctionRegistry resolves user function names.
type FunctionRegistry interface {
	Lookup(name string) (UserFunc, bool)
}

// featureFile is the on-disk layout of a features file:
//
//	variables:
//	  site: {name: Example}
//	functions:
//	  greet: "'Hello, ' + args[0]"
//
// Function bodies are sandbox expressions; their arguments are bound as
// args (a list) and arg0, arg1, ...
type featureFile struct {
	Variables map[string]any    `yaml:"variables"`
	Functions map[string]string `yaml:"functions"`
}

// Features is the global feature registry. Rendering only reads it; Load and
// Reload replace its contents atomically.
type Features struct {
	mutex     sync.RWMutex
	variables map[string]any
	defined   map[string]UserFunc // registered from code, survive reloads
	loaded    map[string]UserFunc // built from the features file
	evaluator *sandbox.Evaluator
}

// NewFeatures creates an empty registry. File-defined functions run on
// evaluator; nil selects a default one.
func NewFeatures(evaluator *sandbox.Evaluator) *Features {
	if evaluator == nil {
		evaluator = sandbox.New()
	}
	return &Features{
		variables: make(map[string]any),
		defined:   make(map[string]UserFunc),
		loaded:    make(map[string]UserFunc),
		evaluator: evaluator,
	}
}

// RegisterFunction makes fn callable under name.
func (f *Features) RegisterFunction(name string, fn UserFunc) error {
	if name == "" || fn == nil {
		return tserrors.NewConfigError(tserrors.ErrCodeConfigInvalid, "function name and body are required")
	}
	if sandbox.IsUnsafeKey(name) {
		return tserrors.ErrUnsafeName(name)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.defined[name] = fn
	return nil
}

// Lookup implements FunctionRegistry. Functions registered from code win over
// file-defined ones.
func (f *Features) Lookup(name string) (UserFunc, bool) {
	if sandbox.IsUnsafeKey(name) {
		return nil, false
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if fn, ok := f.defined[name]; ok {
		return fn, true
	}
	fn, ok := f.loaded[name]
	return fn, ok
}

// Functions returns every callable name in lexical order.
func (f *Features) Functions() []string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	seen := make(map[string]struct{}, len(f.defined)+len(f.loaded))
	for name := range f.defined {
		seen[name] = struct{}{}
	}
	for name := range f.loaded {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetVariables replaces the global variables. Unsafe keys are dropped.
func (f *Features) SetVariables(vars map[string]any) {
	clean := cleanVariables(vars)

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.variables = clean
}

func cleanVariables(vars map[string]any) map[string]any {
	clean := make(map[string]any, len(vars))
	for k, v := range vars {
		if sandbox.IsUnsafeKey(k) {
			continue
		}
		clean[k] = v
	}
	return clean
}

// Variables returns a shallow copy of the global variables.
func (f *Features) Variables() map[string]any {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make(map[string]any, len(f.variables))
	for k, v := range f.variables {
		out[k] = v
	}
	return out
}

// Load reads a features file from fsys and swaps in its variables and
// functions. A missing file leaves an empty registry and is not an error.
func (f *Features) Load(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.swap(nil, nil)
			return nil
		}
		return tserrors.WrapIO(err, tserrors.ErrCodeFileNotFound, "cannot read features file").
			WithLocation(path, 0)
	}

	var file featureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return tserrors.WrapConfig(err, tserrors.ErrCodeConfigInvalid, "cannot parse features file").
			WithLocation(path, 0)
	}

	loaded := make(map[string]UserFunc, len(file.Functions))
	for name, body := range file.Functions {
		if sandbox.IsUnsafeKey(name) {
			return tserrors.ErrUnsafeName(name).WithLocation(path, 0)
		}
		if err := f.evaluator.Check(body); err != nil {
			return tserrors.WrapConfig(err, tserrors.ErrCodeConfigInvalid,
				fmt.Sprintf("function %s has an invalid body", name)).WithLocation(path, 0)
		}
		loaded[name] = f.expressionFunc(body)
	}

	f.swap(file.Variables, loaded)
	return nil
}

func (f *Features) swap(vars map[string]any, loaded map[string]UserFunc) {
	clean := cleanVariables(vars)
	if loaded == nil {
		loaded = make(map[string]UserFunc)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.variables = clean
	f.loaded = loaded
}

// expressionFunc turns a sandbox expression into a UserFunc.
func (f *Features) expressionFunc(body string) UserFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		vars := f.Variables()
		list := make([]any, len(args))
		for i, arg := range args {
			list[i] = arg
			vars["arg"+strconv.Itoa(i)] = arg
		}
		vars["args"] = list
		return f.evaluator.Eval(ctx, body, vars)
	}
}
