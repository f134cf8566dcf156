//go:build integration
// +build integration

package integration_tests

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tessera/internal/engine"
	"github.com/conneroisu/tessera/internal/testutils"
)

const testRecentWriteTTL = 2 * time.Second

// siteTemplates is a three-level layout chain with an include and a loop.
var siteTemplates = map[string]string{
	"templates/layouts/root.html": `<!DOCTYPE html>
<html><head><title>[!title]Site[~title]</title></head>
<body>[!body][~body]</body></html>`,
	"templates/layouts/page.html": `[extends /layouts/root.html]
[!body][include /partials/nav.html]<main>[!content][~content]</main>[~body]`,
	"templates/partials/nav.html": `<nav>{{ for link in links }}<a>{{ link }}</a>{{ endfor }}</nav>`,
	"templates/pages/index.html": `[extends /layouts/page.html]
[!title]Home[~title]
[!content]<h1>{{ user: greet(owner) }}</h1>[~content]`,
	"templates/pages/docs/intro.html": `[extends /layouts/page.html]
[!title]Intro[~title]
[!content]{{ if links.length > 1 }}many{{ else }}one{{ endif }}[~content]`,
	"features.yaml": `variables:
  owner: world
  links: [index, intro]
functions:
  greet: "'Hello, ' + arg0 + '!'"
`,
}

// testSite is a site on disk with an engine rooted at its templates.
type testSite struct {
	Dir    string
	Output string
	Engine *engine.Engine
	Logs   *testutils.SyncBuffer
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()

	dir := testutils.CreateTempSite(t, siteTemplates)
	logger, logs := testutils.BufferLogger()
	eng, err := engine.New(engine.Options{
		Root:           filepath.Join(dir, "templates"),
		Fs:             afero.NewOsFs(),
		FeaturesFile:   filepath.Join(dir, "features.yaml"),
		RecentWriteTTL: testRecentWriteTTL,
		Logger:         logger.With("test", t.Name()),
	})
	require.NoError(t, err)
	require.NoError(t, eng.ReloadFeatures(t.Context()))

	return &testSite{
		Dir:    dir,
		Output: filepath.Join(dir, "dist"),
		Engine: eng,
		Logs:   logs,
	}
}

func (s *testSite) compileOptions() engine.CompileOptions {
	return engine.CompileOptions{
		Pages:     []string{"pages"},
		OutputDir: s.Output,
	}
}
