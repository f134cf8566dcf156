package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/afero"

	tserrors "github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/include"
)

// CompileOptions selects the pages built by Compile.
type CompileOptions struct {
	// Pages are directories, relative to the root, whose files are pages.
	Pages []string
	// Extensions filters page files; empty means ".html".
	Extensions []string
	// OutputDir receives the rendered pages, mirroring their paths below
	// the page directory.
	OutputDir string
	// Vars are layered over the feature variables for every page.
	Vars map[string]any
}

// PageResult describes one compiled page.
type PageResult struct {
	Source string `json:"source" yaml:"source"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
	Bytes  int    `json:"bytes" yaml:"bytes"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Manifest is the result of a compilation pass.
type Manifest struct {
	Pages       []PageResult  `json:"pages" yaml:"pages"`
	Included    []string      `json:"included" yaml:"included"`
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Compile renders every page in compilation mode and writes the results to
// the output directory. Pages that fail are listed in the manifest with their
// error and the combined failures are returned alongside it.
func (e *Engine) Compile(ctx context.Context, opts CompileOptions) (*Manifest, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, tserrors.NewConfigError(tserrors.ErrCodeConfigInvalid, "output directory cannot be empty")
	}

	start := time.Now()
	e.BeginCompilation()
	defer e.compiling.Store(false)

	pages, err := e.FindPages(opts.Pages, opts.Extensions)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{GeneratedAt: start}
	var failures []error
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := PageResult{Source: include.RootRelative(e.root, page.Path)}
		out, err := e.RenderFile(ctx, page.Path, opts.Vars)
		if err == nil {
			target := filepath.Join(opts.OutputDir, filepath.FromSlash(page.Rel))
			err = e.WriteOutput(target, []byte(out))
			result.Output = target
			result.Bytes = len(out)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logger.Error(ctx, err, "page failed",
				"page", result.Source,
				"details", tserrors.GetErrorContext(err))
			result.Output = ""
			result.Bytes = 0
			result.Error = err.Error()
			failures = append(failures, err)
		}
		manifest.Pages = append(manifest.Pages, result)
	}

	manifest.Included = e.EndCompilation()
	manifest.Duration = time.Since(start)

	e.logger.Info(ctx, "compilation finished",
		"pages", len(manifest.Pages),
		"failed", len(failures),
		"included", len(manifest.Included),
		"duration", manifest.Duration)

	return manifest, tserrors.CombineErrors(failures...)
}

// Page is a page file found by FindPages.
type Page struct {
	Path string // absolute
	Rel  string // slash path below its page directory
}

// FindPages lists page files under the given root-relative directories in
// lexical order. Missing directories are skipped.
func (e *Engine) FindPages(dirs, extensions []string) ([]Page, error) {
	if len(extensions) == 0 {
		extensions = []string{".html"}
	}
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	seen := make(map[string]struct{})
	var pages []Page
	for _, dir := range dirs {
		base, err := include.ResolvePath(e.root, "", "/"+filepath.ToSlash(dir))
		if err != nil {
			return nil, err
		}
		if exists, _ := afero.DirExists(e.fs, base); !exists {
			continue
		}

		err = afero.Walk(e.fs, base, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !hasExtension(path, extensions) {
				return nil
			}
			if _, dup := seen[path]; dup {
				return nil
			}
			seen[path] = struct{}{}
			pages = append(pages, Page{Path: path, Rel: include.RootRelative(base, path)})
			return nil
		})
		if err != nil {
			return nil, tserrors.WrapIO(err, tserrors.ErrCodeFileNotFound, "cannot list pages").
				WithLocation(base, 0)
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages, nil
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, want := range extensions {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// WriteOutput atomically writes data to path on the OS filesystem and records
// the write so watchers can ignore it.
func (e *Engine) WriteOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrCodeWriteFailed, "cannot create output directory").
			WithLocation(path, 0)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return tserrors.WrapIO(err, tserrors.ErrCodeWriteFailed, "cannot write output").
			WithLocation(path, 0)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	e.recent.Record(path)
	return nil
}
