package engine

import (
	"context"

	"github.com/spf13/afero"
)

// FileProvider is the engine's view of the template tree.
type FileProvider interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}

// aferoProvider serves templates from an afero filesystem.
type aferoProvider struct {
	fs afero.Fs
}

// NewFileProvider wraps fs as a FileProvider. A nil fs means the OS
// filesystem.
func NewFileProvider(fs afero.Fs) FileProvider {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &aferoProvider{fs: fs}
}

func (p *aferoProvider) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return afero.ReadFile(p.fs, path)
}

func (p *aferoProvider) Exists(ctx context.Context, path string) bool {
	if ctx.Err() != nil {
		return false
	}
	info, err := p.fs.Stat(path)
	return err == nil && !info.IsDir()
}
