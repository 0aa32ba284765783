package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pboueri/assetc/src"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T) (string, *Resolver) {
	t.Helper()
	root := t.TempDir()
	source := filepath.Join(root, "src")

	writeFile(t, filepath.Join(source, "main.js"), "")
	writeFile(t, filepath.Join(source, "lib", "foo.js"), "")
	writeFile(t, filepath.Join(source, "lib", "util", "index.js"), "")
	writeFile(t, filepath.Join(source, "data.json"), "{}")
	writeFile(t, filepath.Join(source, "css", "main.css"), "")
	writeFile(t, filepath.Join(source, "css", "shared.css"), "")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "package.json"), `{"name":"pkg","version":"1.2.0","main":"lib/pkg"}`)
	writeFile(t, filepath.Join(root, "node_modules", "pkg", "lib", "pkg.js"), "")
	writeFile(t, filepath.Join(root, "node_modules", "server-only", "package.json"), `{"name":"server-only","browser":false}`)
	writeFile(t, filepath.Join(root, "node_modules", "server-only", "index.js"), "")
	writeFile(t, filepath.Join(root, "node_modules", "@scope", "ui", "package.json"), `{"name":"@scope/ui","version":"0.1.0","browser":"browser.js"}`)
	writeFile(t, filepath.Join(root, "node_modules", "@scope", "ui", "browser.js"), "")

	r, err := New(Options{Root: root, Sources: []string{source}})
	require.NoError(t, err)
	return root, r
}

func TestResolve(t *testing.T) {
	root, r := newFixture(t)
	source := filepath.Join(root, "src")
	main := filepath.Join(source, "main.js")

	tests := []struct {
		name     string
		from     string
		literal  string
		expected string
	}{
		{"relative with extension", main, "./lib/foo.js", filepath.Join(source, "lib", "foo.js")},
		{"relative without extension", main, "./lib/foo", filepath.Join(source, "lib", "foo.js")},
		{"directory index", main, "./lib/util", filepath.Join(source, "lib", "util", "index.js")},
		{"source root", filepath.Join(source, "lib", "foo.js"), "data.json", filepath.Join(source, "data.json")},
		{"bare sibling css", filepath.Join(source, "css", "main.css"), "shared", filepath.Join(source, "css", "shared.css")},
		{"package main", main, "pkg", filepath.Join(root, "node_modules", "pkg", "lib", "pkg.js")},
		{"package browser entry", main, "@scope/ui", filepath.Join(root, "node_modules", "@scope", "ui", "browser.js")},
		{"browser disabled", main, "server-only", ""},
		{"native module", main, "fs", ""},
		{"missing relative", main, "./nope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, ok := r.Resolve(tt.from, tt.literal)
			assert.Equal(t, tt.expected != "", ok)
			assert.Equal(t, tt.expected, resolved)
		})
	}
}

func TestResolveCache(t *testing.T) {
	root, r := newFixture(t)
	main := filepath.Join(root, "src", "main.js")

	_, ok := r.Resolve(main, "./late")
	assert.False(t, ok)

	writeFile(t, filepath.Join(root, "src", "late.js"), "")
	_, ok = r.Resolve(main, "./late")
	assert.False(t, ok, "cached miss")

	r.Clear()
	resolved, ok := r.Resolve(main, "./late")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src", "late.js"), resolved)
}

func TestIdentify(t *testing.T) {
	root, r := newFixture(t)

	assert.Equal(t, "lib/foo.js", r.Identify(filepath.Join(root, "src", "lib", "foo.js")))
	assert.Equal(t, "pkg/lib/pkg.js#1.2.0", r.Identify(filepath.Join(root, "node_modules", "pkg", "lib", "pkg.js")))
	assert.Equal(t, "@scope/ui/browser.js#0.1.0", r.Identify(filepath.Join(root, "node_modules", "@scope", "ui", "browser.js")))
	assert.Equal(t, "server-only/index.js", r.Identify(filepath.Join(root, "node_modules", "server-only", "index.js")))
	assert.Equal(t, "other/x.js", r.Identify(filepath.Join(root, "other", "x.js")))
}

func TestHasMultipleVersions(t *testing.T) {
	root, r := newFixture(t)
	nested := filepath.Join(root, "node_modules", "other", "node_modules", "pkg")
	writeFile(t, filepath.Join(nested, "package.json"), `{"name":"pkg","version":"2.0.0"}`)
	writeFile(t, filepath.Join(nested, "lib", "pkg.js"), "")

	first := r.Identify(filepath.Join(root, "node_modules", "pkg", "lib", "pkg.js"))
	assert.False(t, r.HasMultipleVersions(first))

	second := r.Identify(filepath.Join(nested, "lib", "pkg.js"))
	assert.Equal(t, "pkg/lib/pkg.js#2.0.0", second)
	assert.True(t, r.HasMultipleVersions(first))
	assert.Equal(t, "pkg", PackageName(second))
	assert.Equal(t, "@scope/ui", PackageName("@scope/ui/browser.js#0.1.0"))
}

func TestType(t *testing.T) {
	r, err := New(Options{FileExtensions: map[src.FileType][]string{src.FileTypeJS: {"js", "coffee"}}})
	require.NoError(t, err)

	assert.Equal(t, src.FileTypeJS, r.Type("a.coffee"))
	assert.Equal(t, src.FileTypeCSS, r.Type("a.css"))
	assert.Equal(t, src.FileTypeJSON, r.Type("a.json"))
	assert.Equal(t, src.FileTypeAsset, r.Type("a.png"))
	assert.Contains(t, r.Extensions(), "coffee")
}
