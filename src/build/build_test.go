package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/processor"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/pboueri/assetc/src/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	root     string
	resolver *resolve.Resolver
	procs    *processor.Set
	env      *processor.MapEnvironment
	cache    *file.Cache
	sink     *logger.MemorySink
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	sink := logger.NewMemorySink()
	logger.Initialize(sink)
	logger.SetLevel(logger.InfoLevel)

	r, err := resolve.New(resolve.Options{Root: root, Sources: []string{root}})
	require.NoError(t, err)

	env := processor.NewMapEnvironment(nil)
	procs := processor.Defaults()
	procs.Env = env

	return &fixture{root: root, resolver: r, procs: procs, env: env, cache: file.NewCache(r, procs), sink: sink}
}

func (fx *fixture) builds(t *testing.T, runtime config.RuntimeOptions, builds ...config.BuildConfig) []*Build {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.SetRoot(fx.root)
	cfg.Build = builds

	targets, err := cfg.Targets(fx.resolver)
	require.NoError(t, err)

	out := make([]*Build, len(targets))
	for i, target := range targets {
		out[i] = New(target, fx.cache, nil, runtime)
	}
	return out
}

func (fx *fixture) path(name string) string {
	return filepath.Join(fx.root, name)
}

func (fx *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(fx.path(name))
	require.NoError(t, err)
	return string(data)
}

func in(paths ...string) config.StringList { return config.StringList(paths) }

func assertReset(t *testing.T, b *Build) {
	t.Helper()
	b.Walk(func(d *Build) {
		for _, f := range d.ReferencedFiles() {
			assert.Empty(t, f.Workflow(), "%s still has a workflow", f.Relpath())
			assert.False(t, f.IsLocked(), "%s still locked", f.Relpath())
			assert.False(t, f.IsDependency(), "%s still a dependency", f.Relpath())
		}
	})
}

func TestBundleDependencyOrder(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"foo.js": "var foo = this;",
		"bar.js": "var foo = require('./foo');\nvar bar = foo;",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Input: in("bar.js"), Output: in("www/bar.js")})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fx.path("www/bar.js"), results[0].Filepath)

	out := fx.read(t, "www/bar.js")
	assert.True(t, strings.HasPrefix(out, "/* generated by assetc */\n\n"))
	assert.Equal(t, 2, strings.Count(out, "require.register("))
	fooAt := strings.Index(out, "require.register('foo.js'")
	barAt := strings.Index(out, "require.register('bar.js'")
	require.NotEqual(t, -1, fooAt)
	require.NotEqual(t, -1, barAt)
	assert.Less(t, fooAt, barAt, "dependency must come first")
	assert.Contains(t, out, "require('foo.js')", "reference rewritten to id")

	assert.Len(t, b.ReferencedFiles(), 2)
	assertReset(t, b)
}

func TestSingleModuleRoundTrip(t *testing.T) {
	fx := newFixture(t, map[string]string{"foo.js": "var foo = this;"})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Input: in("foo.js"), Output: in("www/foo.js")})[0]

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	foo, err := fx.cache.File(fx.path("foo.js"))
	require.NoError(t, err)
	assert.Equal(t, "var foo = this;", foo.Content(), "soft reset restores loaded content")

	foo.Reset(true)
	assert.Empty(t, foo.Content())

	_, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, fx.read(t, "www/foo.js"), "var foo = this;")
}

func TestChildCannotClaimParentFiles(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"shared.js": "var shared = 1;",
		"a.js":      "require('./shared');",
		"b.js":      "require('./shared');",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{
		Input:  in("a.js"),
		Output: in("www/a.js"),
		Build: []config.BuildConfig{
			{Input: in("b.js"), Output: in("www/b.js")},
		},
	})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	var written []string
	for _, res := range results {
		written = append(written, res.Filepath)
	}
	if diff := cmp.Diff([]string{fx.path("www/a.js"), fx.path("www/b.js")}, written); diff != "" {
		t.Errorf("written paths mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, fx.read(t, "www/a.js"), "require.register('shared.js'")
	child := fx.read(t, "www/b.js")
	assert.NotContains(t, child, "require.register('shared.js'", "locked file must not be bundled by the child")
	assert.Contains(t, child, "require('shared.js')")

	assert.Len(t, b.Builds()[0].ReferencedFiles(), 1)
	assert.True(t, b.HasFile(fx.path("b.js")))
	assert.True(t, b.HasFile(fx.path("shared.js")))
	assert.False(t, b.Builds()[0].HasFile(fx.path("shared.js")))
	assertReset(t, b)
}

func TestParentExcludesChildInputs(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"css/one.css": ".one {}",
		"css/two.css": ".two {}",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{
		Input:  in("css"),
		Output: in("www"),
		Build: []config.BuildConfig{
			{Input: in("css/two.css"), Output: in("www/special/two.css")},
		},
	})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.FileExists(t, fx.path("www/one.css"))
	assert.NoFileExists(t, fx.path("www/two.css"))
	assert.FileExists(t, fx.path("www/special/two.css"))
}

func TestSharedGeneratedBuild(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"shared.css": ".shared { color: red; }",
		"a.css":      "@import 'shared.css';",
		"b.css":      "@import 'shared.css';",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{
		Output:   in("www/shared.css"),
		Generate: &config.Generate{Mode: config.GenerateShared},
		Build: []config.BuildConfig{
			{Input: in("a.css"), Output: in("www/a.css")},
			{Input: in("b.css"), Output: in("www/b.css")},
		},
	})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	a := fx.read(t, "www/a.css")
	bOut := fx.read(t, "www/b.css")
	assert.Equal(t, a, bOut, "outputs must be byte-identical")
	assert.Equal(t, 1, strings.Count(a, ".shared"))

	shared := fx.read(t, "www/shared.css")
	assert.Equal(t, 1, strings.Count(shared, ".shared { color: red; }"))
	assert.True(t, b.HasFile(fx.path("shared.css")))
	assertReset(t, b)
}

func TestPatternGeneratedBuild(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"Vendor-lib.js": "var lib = 1;",
		"util.js":       "var util = 2;",
		"app1.js":       "require('./Vendor-lib'); require('./util');",
		"app2.js":       "require('./util');",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{
		Output:   in("www/vendor.js"),
		Generate: &config.Generate{Mode: config.GeneratePattern, Pattern: "vendor-*"},
		Build: []config.BuildConfig{
			{Input: in("app1.js"), Output: in("www/app1.js")},
			{Input: in("app2.js"), Output: in("www/app2.js")},
		},
	})[0]

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	vendor := fx.read(t, "www/vendor.js")
	assert.Contains(t, vendor, "require.register('Vendor-lib.js'")
	assert.NotContains(t, vendor, "require.register('util.js'")
}

func TestWatchOnlyBuild(t *testing.T) {
	fx := newFixture(t, map[string]string{"dev.js": "var dev = true;"})
	cfg := config.BuildConfig{Input: in("dev.js"), Output: in("www/dev.js"), WatchOnly: true}

	b := fx.builds(t, config.RuntimeOptions{}, cfg)[0]
	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoFileExists(t, fx.path("www/dev.js"))

	b = fx.builds(t, config.RuntimeOptions{Watch: true}, cfg)[0]
	results, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
	want := "∙ watching " + util.RelativeToCwd(fx.path("dev.js")) + " to " + util.RelativeToCwd(fx.path("www/dev.js"))
	assert.Contains(t, fx.sink.Messages(), want)
}

func TestUniqueOutputReplacesPrevious(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"main.css":            ".main {}",
		"www/main-stale.css":  "old",
		"www/other-stale.css": "keep",
	})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Input: in("main.css"), Output: in("www/main-%hash%.css")})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.NoFileExists(t, fx.path("www/main-stale.css"))
	assert.FileExists(t, fx.path("www/other-stale.css"))
	assert.Equal(t, fx.path("www/main-"+util.Hash(results[0].Content)+".css"), results[0].Filepath)
	assert.FileExists(t, results[0].Filepath)
}

func TestUniqueOutputChangesWhileWatching(t *testing.T) {
	fx := newFixture(t, map[string]string{"main.css": ".main { color: red; }"})
	b := fx.builds(t, config.RuntimeOptions{Watch: true}, config.BuildConfig{Label: "styles", Input: in("main.css"), Output: in("www/main-%hash%.css")})[0]

	first, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, fx.path("www/main-"+util.Hash(first[0].Content)+".css"), first[0].Filepath)

	require.NoError(t, os.WriteFile(fx.path("main.css"), []byte(".main { color: blue; }"), 0644))
	f, ok := fx.cache.Get(fx.path("main.css"))
	require.True(t, ok)
	f.Reset(true)

	second, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].Filepath, second[0].Filepath)
	assert.Equal(t, fx.path("www/main-"+util.Hash(second[0].Content)+".css"), second[0].Filepath)
	assert.Equal(t, util.Hash(second[0].Content), fx.env.Vars()["ASSETC_STYLES_OUTPUT_HASH"])

	matches, err := filepath.Glob(fx.path("www/main-*.css"))
	require.NoError(t, err)
	assert.Equal(t, []string{second[0].Filepath}, matches)
}

func TestBuildExposesEnvironment(t *testing.T) {
	fx := newFixture(t, map[string]string{"main.css": ".main {}"})
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Label: "styles", Input: in("main.css"), Output: in("www/main.css")})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)

	vars := fx.env.Vars()
	assert.Equal(t, util.RelativeToCwd(fx.path("main.css")), vars["ASSETC_STYLES_INPUT"])
	assert.Equal(t, util.Hash(".main {}"), vars["ASSETC_STYLES_INPUT_HASH"])
	assert.Equal(t, util.RelativeToCwd(fx.path("www/main.css")), vars["ASSETC_STYLES_OUTPUT"])
	assert.Equal(t, util.Hash(results[0].Content), vars["ASSETC_STYLES_OUTPUT_HASH"])
	assert.Equal(t, vars["ASSETC_STYLES_OUTPUT"], vars["ASSETC_OUTPUT"])
	assert.True(t, strings.HasPrefix(vars["ASSETC_STYLES_OUTPUT_URL"], "/"))
	assert.NotEmpty(t, vars["ASSETC_STYLES_OUTPUT_DATE"])
}

func TestBuildErrorNamesTarget(t *testing.T) {
	fx := newFixture(t, map[string]string{
		"ok.js":  "var ok = 1;",
		"bad.js": "require('./ok');",
	})
	compileErr := errors.New("unexpected token")
	registry := processor.NewRegistry()
	registry.Register("js", func(ctx context.Context, path, content string, opts processor.CompileOptions) (string, error) {
		if strings.HasSuffix(path, "bad.js") {
			return "", compileErr
		}
		return content, nil
	})
	fx.procs.Compiler = registry

	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Label: "app", Input: in("bad.js"), Output: in("www/bad.js")})[0]
	_, err := b.Run(context.Background())
	require.Error(t, err)

	var buildErr *Error
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "app", buildErr.BuildID)
	assert.Contains(t, buildErr.Path, "bad.js")
	assert.True(t, errors.Is(err, compileErr))
	assert.NoFileExists(t, fx.path("www/bad.js"))
	assertReset(t, b)
}

func TestMissingInputWarns(t *testing.T) {
	fx := newFixture(t, nil)
	b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Input: in("missing.js"), Output: in("www/missing.js")})[0]

	results, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)

	warnings := fx.sink.MessagesAt(logger.WarnLevel)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "not found in project source")
}

func TestEmptyInputWarns(t *testing.T) {
	fx := newFixture(t, map[string]string{"empty/notes.txt": "not a source"})
	require.NoError(t, os.MkdirAll(fx.path("assets"), 0755))

	tests := []struct {
		name  string
		input string
	}{
		{"empty directory", "assets"},
		{"directory without sources", "empty"},
		{"glob without matches", "src/**/*.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := fx.builds(t, config.RuntimeOptions{}, config.BuildConfig{Input: in(tt.input), Output: in("www")})[0]

			results, err := b.Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, results)
			assert.Contains(t, fx.sink.MessagesAt(logger.WarnLevel), tt.input+" matched no source files")
		})
	}
}

func TestDeployReportsSize(t *testing.T) {
	fx := newFixture(t, map[string]string{"main.js": "var answer = 40 + 2;\nconsole.log(answer);"})
	b := fx.builds(t, config.RuntimeOptions{Deploy: true}, config.BuildConfig{Input: in("main.js"), Output: in("www/main.js")})[0]

	_, err := b.Run(context.Background())
	require.NoError(t, err)

	var found bool
	for _, msg := range fx.sink.Messages() {
		if strings.Contains(msg, "built and compressed") && strings.Contains(msg, "gzipped") {
			found = true
		}
	}
	assert.True(t, found, "messages: %v", fx.sink.Messages())
}

func TestGzipSize(t *testing.T) {
	small, err := GzipSize("a")
	require.NoError(t, err)
	large, err := GzipSize(strings.Repeat("abcdefghij", 1000))
	require.NoError(t, err)
	assert.Greater(t, small, uint64(0))
	assert.Less(t, large, uint64(10000))
}
