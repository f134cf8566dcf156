package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateBlocks(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected map[string][]string
	}{
		{
			name:     "single block",
			content:  "<main>[!content]Hello[~content]</main>",
			expected: map[string][]string{"content": {"Hello"}},
		},
		{
			name:    "repeated blocks keep document order",
			content: "[!a]one[~a] middle [!a]two[~a] [!b]bee[~b]",
			expected: map[string][]string{
				"a": {"one", "two"},
				"b": {"bee"},
			},
		},
		{
			name:     "unmatched open tag produces no entry",
			content:  "[!header]never closed [!footer]f[~footer]",
			expected: map[string][]string{"footer": {"f"}},
		},
		{
			name:     "close before open is ignored",
			content:  "[~x] stray [!x]body[~x]",
			expected: map[string][]string{"x": {"body"}},
		},
		{
			name:     "multiline inner content is preserved",
			content:  "[!nav]\n<ul>\n  <li>Home</li>\n</ul>\n[~nav]",
			expected: map[string][]string{"nav": {"\n<ul>\n  <li>Home</li>\n</ul>\n"}},
		},
		{
			name:     "names may contain dashes and dots",
			content:  "[!page-title.main]T[~page-title.main]",
			expected: map[string][]string{"page-title.main": {"T"}},
		},
		{
			name:     "no blocks",
			content:  "<p>plain [link] text</p>",
			expected: map[string][]string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			blocks := LocateBlocks(tc.content)
			require.Len(t, blocks, len(tc.expected))
			for name, inners := range tc.expected {
				require.Len(t, blocks[name], len(inners), "block %s", name)
				for i, inner := range inners {
					assert.Equal(t, inner, blocks[name][i].Inner)
				}
			}
		})
	}
}

func TestLocateBlocksSpans(t *testing.T) {
	content := "ab[!x]inner[~x]cd"
	blocks := LocateBlocks(content)
	require.Len(t, blocks["x"], 1)

	b := blocks["x"][0]
	assert.Equal(t, 2, b.Start)
	assert.Equal(t, len("ab[!x]inner[~x]"), b.End)
	assert.Equal(t, "[!x]inner[~x]", content[b.Start:b.End])
}

// Nesting is not tracked: an open tag pairs with the first same-named close
// that follows it.
func TestLocateBlocksIgnoresNesting(t *testing.T) {
	content := "[!a]outer [!a]inner[~a] tail[~a]"
	blocks := LocateBlocks(content)

	require.Len(t, blocks["a"], 2)
	assert.Equal(t, "outer [!a]inner", blocks["a"][0].Inner)
	assert.Equal(t, "inner", blocks["a"][1].Inner)
}

func TestLocateBlocksCountMatchesPairs(t *testing.T) {
	for n := 0; n < 6; n++ {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString("<div>[!item]x[~item]</div>")
		}
		assert.Len(t, LocateBlocks(b.String())["item"], n)
	}
}

func TestStripMarkers(t *testing.T) {
	testCases := []struct {
		name     string
		content  string
		expected string
	}{
		{"open and close", "a[!x]b[~x]c", "abc"},
		{"orphans", "[~gone]text[!also]", "text"},
		{"non markers untouched", "[link] [ x ] [!] [~]", "[link] [ x ] [!] [~]"},
		{"nested fragments", "[![!a]a]", ""},
		{"include directive untouched", "[include nav.html]", "[include nav.html]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StripMarkers(tc.content))
		})
	}
}

func TestStripMarkersIdempotent(t *testing.T) {
	inputs := []string{
		"[!a][!b]x[~b][~a]",
		"[~[!a]a]",
		"plain",
		"[!x[~x]]",
	}
	for _, in := range inputs {
		once := StripMarkers(in)
		assert.Equal(t, once, StripMarkers(once))
		assert.NotContains(t, once, "[!a]")
	}
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("content"))
	assert.True(t, ValidName("side bar"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("   "))
	assert.False(t, ValidName("a{b"))
	assert.False(t, ValidName("a~b"))
	assert.False(t, ValidName("a]b"))
}

func FuzzLocateBlocks(f *testing.F) {
	f.Add("[!a]x[~a]")
	f.Add("[!a][!a][~a][~a]")
	f.Add("[~a][!a")
	f.Add("[![!a]a][~~]")

	f.Fuzz(func(t *testing.T, content string) {
		for name, blocks := range LocateBlocks(content) {
			for _, b := range blocks {
				if b.Start < 0 || b.End > len(content) || b.Start >= b.End {
					t.Fatalf("invalid span %d..%d for %q", b.Start, b.End, name)
				}
				if !strings.HasPrefix(content[b.Start:], OpenMarker(name)) {
					t.Fatalf("span for %q does not start with its open marker", name)
				}
				if !strings.HasSuffix(content[:b.End], CloseMarker(name)) {
					t.Fatalf("span for %q does not end with its close marker", name)
				}
			}
		}

		stripped := StripMarkers(content)
		if StripMarkers(stripped) != stripped {
			t.Fatalf("StripMarkers not idempotent for %q", content)
		}
	})
}
