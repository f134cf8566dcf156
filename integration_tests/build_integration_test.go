//go:build integration
// +build integration

package integration_tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Build_MultiLevelLayouts(t *testing.T) {
	site := newTestSite(t)

	manifest, err := site.Engine.Compile(t.Context(), site.compileOptions())
	require.NoError(t, err)
	require.Len(t, manifest.Pages, 2)
	assert.Equal(t, []string{"partials/nav.html"}, manifest.Included)
	assert.False(t, site.Engine.Compiling())

	index, err := os.ReadFile(filepath.Join(site.Output, "index.html"))
	require.NoError(t, err)
	html := string(index)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Equal(t, 1, strings.Count(strings.ToLower(html), "<!doctype"))
	assert.Contains(t, html, "<title>Home</title>")
	assert.Contains(t, html, "<nav><a>index</a><a>intro</a></nav>")
	assert.Contains(t, html, "<main><h1>Hello, world!</h1></main>")
	assert.NotContains(t, html, "[!")
	assert.NotContains(t, html, "[~")
	assert.NotContains(t, html, "{{")

	intro, err := os.ReadFile(filepath.Join(site.Output, "docs", "intro.html"))
	require.NoError(t, err)
	assert.Contains(t, string(intro), "<title>Intro</title>")
	assert.Contains(t, string(intro), "<main>many</main>")
}

func TestIntegration_Build_RecordsOwnWrites(t *testing.T) {
	site := newTestSite(t)

	manifest, err := site.Engine.Compile(t.Context(), site.compileOptions())
	require.NoError(t, err)

	for _, page := range manifest.Pages {
		abs, err := filepath.Abs(page.Output)
		require.NoError(t, err)
		assert.True(t, site.Engine.RecentWrites().Contains(abs), page.Output)
	}
	assert.False(t, site.Engine.RecentWrites().Contains(filepath.Join(site.Dir, "templates", "pages", "index.html")))
}

func TestIntegration_Build_FailedPageDoesNotStopOthers(t *testing.T) {
	site := newTestSite(t)
	broken := filepath.Join(site.Dir, "templates", "pages", "broken.html")
	require.NoError(t, os.WriteFile(broken, []byte("[extends /layouts/gone.html]\n[!content]x[~content]"), 0o644))

	manifest, err := site.Engine.Compile(t.Context(), site.compileOptions())
	require.Error(t, err)
	require.NotNil(t, manifest)
	require.Len(t, manifest.Pages, 3)

	failed := 0
	for _, page := range manifest.Pages {
		if page.Error != "" {
			failed++
			assert.Equal(t, "pages/broken.html", page.Source)
			assert.Empty(t, page.Output)
		}
	}
	assert.Equal(t, 1, failed)
	assert.FileExists(t, filepath.Join(site.Output, "index.html"))
	assert.NoFileExists(t, filepath.Join(site.Output, "broken.html"))
	assert.Contains(t, site.Logs.String(), "page failed")
}

func TestIntegration_Build_IncludeCycleIsDropped(t *testing.T) {
	site := newTestSite(t)
	partials := filepath.Join(site.Dir, "templates", "partials")
	require.NoError(t, os.WriteFile(filepath.Join(partials, "a.html"), []byte("A[include b.html]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(partials, "b.html"), []byte("B[include a.html]"), 0o644))

	out, err := site.Engine.RenderString(t.Context(), "[include /partials/a.html]", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "AB")
	assert.NotContains(t, out, "[include")
}

func TestIntegration_Build_ReloadFeatures(t *testing.T) {
	site := newTestSite(t)

	features := filepath.Join(site.Dir, "features.yaml")
	require.NoError(t, os.WriteFile(features, []byte(`variables:
  owner: tessera
  links: [index]
functions:
  greet: "'Hi ' + arg0"
`), 0o644))

	before, err := site.Engine.RenderFile(t.Context(), "pages/index.html", nil)
	require.NoError(t, err)
	assert.Contains(t, before, "Hello, world!")

	require.NoError(t, site.Engine.ReloadFeatures(t.Context()))

	after, err := site.Engine.RenderFile(t.Context(), "pages/index.html", nil)
	require.NoError(t, err)
	assert.Contains(t, after, "<h1>Hi tessera</h1>")
	assert.Contains(t, after, "<nav><a>index</a></nav>")
}
