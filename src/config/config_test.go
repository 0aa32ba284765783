package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newResolver(t *testing.T, root string) *resolve.Resolver {
	t.Helper()
	r, err := resolve.New(resolve.Options{Root: root, Sources: []string{root}})
	require.NoError(t, err)
	return r
}

func boolPtr(v bool) *bool { return &v }

func TestMergeConfig(t *testing.T) {
	base := GetDefaultConfig()
	base.Sources = []string{"src"}
	base.Compilers = map[string]string{"ts": "tsc --stdin"}

	override := &Config{
		Compilers: map[string]string{"scss": "sass --stdin"},
		Script:    "npm test",
		Server:    ServerConfig{Command: "node server.js"},
		Build:     []BuildConfig{{Input: StringList{"a.js"}}},
		Logging:   LoggingConfig{Level: "debug"},
	}

	merged := MergeConfig(base, override)

	assert.Equal(t, 1, merged.Version)
	assert.Equal(t, []string{"src"}, merged.Sources) // Should keep base value
	assert.Equal(t, map[string]string{"ts": "tsc --stdin", "scss": "sass --stdin"}, merged.Compilers)
	assert.Equal(t, "npm test", merged.Script)
	assert.Equal(t, "node server.js", merged.Server.Command)
	assert.Equal(t, DefaultReloadPort, merged.Server.ReloadPort) // Should keep base value
	assert.Len(t, merged.Build, 1)
	assert.Equal(t, "debug", merged.Logging.Level)
	assert.Equal(t, base.Logging.Sinks, merged.Logging.Sinks) // Should keep base value
}

func TestMergeConfigNilCases(t *testing.T) {
	base := &Config{Script: "make"}

	merged := MergeConfig(base, nil)
	assert.Equal(t, base, merged)

	override := &Config{Script: "npm test"}
	merged = MergeConfig(nil, override)
	assert.Equal(t, override, merged)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "assetc.yaml")

	configContent := `version: 1
sources: [src]
compilers:
  ts: tsc --stdin
workflows:
  json: [[load, compress:compress]]
build:
  - label: app
    input: src/main.js
    output: www/main.js
  - input: [src/a.css, src/b.css]
    output: www
    build:
      - input: src/nested.css
logging:
  level: debug`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	cfg, err := LoadConfigFromFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"src"}, cfg.Sources)
	assert.Equal(t, "tsc --stdin", cfg.Compilers["ts"])
	require.Len(t, cfg.Build, 2)
	assert.Equal(t, "app", cfg.Build[0].Label)
	assert.Equal(t, StringList{"src/main.js"}, cfg.Build[0].Input)
	assert.Equal(t, StringList{"src/a.css", "src/b.css"}, cfg.Build[1].Input)
	require.Len(t, cfg.Build[1].Build, 1)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFromFileError(t *testing.T) {
	_, err := LoadConfigFromFile("/non/existent/file.yaml")
	assert.Error(t, err)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("invalid: yaml: content:"), 0644))
	_, err = LoadConfigFromFile(configFile)
	assert.Error(t, err)
}

func TestLoadConfigFromFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing build", "version: 1\n"},
		{"unknown build key", "build:\n  - input: a.js\n    outptu: b.js\n"},
		{"bad generate mode", "build:\n  - output: a.css\n    generate: {mode: common}\n"},
		{"bad workflow type", "workflows:\n  ts: [[load]]\nbuild: []\n"},
		{"bad log level", "build: []\nlogging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "assetc.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfigFromFile(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json": `{"name": "site", "assetc": {"build": [{"input": "index.js", "output": "www/index.js"}]}}`,
	})

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root())
	assert.Equal(t, filepath.Join(root, "package.json"), cfg.Path())
	require.Len(t, cfg.Build, 1)
	assert.Equal(t, StringList{"index.js"}, cfg.Build[0].Input)
	assert.Equal(t, "info", cfg.Logging.Level) // default
}

func TestLoadConfigSearch(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":  `{"name": "site"}`,
		"assetc.json":   `{"build": [{"input": "a.css"}]}`,
		"src/deep/x.js": "",
	})

	cfg, err := Find(filepath.Join(root, "src", "deep"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "assetc.json"), cfg.Path())

	_, err = LoadConfig(filepath.Join(root, "src"))
	assert.True(t, errors.Is(err, ErrNoConfig))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "assetc.yaml")
	cfg := GetDefaultConfig()
	cfg.Build = []BuildConfig{{Input: StringList{"src/index.js"}, Output: StringList{"www/index.js"}, Bundle: boolPtr(true)}}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Build, loaded.Build)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}

func TestFileWorkflows(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Workflows = map[string][][]string{"json": {{"load", "compress:compress"}}}

	workflows, err := cfg.FileWorkflows()
	require.NoError(t, err)
	assert.Equal(t, file.DefaultWorkflows[src.FileTypeJS], workflows[src.FileTypeJS])
	require.Len(t, workflows[src.FileTypeJSON], 1)
	assert.Equal(t, "load,compress", file.StepsKey(workflows[src.FileTypeJSON][0].Steps(file.Options{Compress: true})))

	cfg.Workflows = map[string][][]string{"json": {{"minify"}}}
	_, err = cfg.FileWorkflows()
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestTargets(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/main.js":        "",
		"src/pages/a.html":   "",
		"src/pages/b/c.html": "",
		"src/pages/b/d.png":  "",
		"src/css/one.css":    "",
		"src/css/two.css":    "",
		"src/vendor.js":      "",
	})

	cfg := GetDefaultConfig()
	cfg.SetRoot(root)
	cfg.Build = []BuildConfig{
		{Label: "app", Input: StringList{"src/main.js"}, Output: StringList{"www/main-%hash%.js"}},
		{Input: StringList{"src/pages"}, Output: StringList{"www"}},
		{Input: StringList{"src/css/*.css"}, Output: StringList{"www/css"}},
		{
			Input:  StringList{"src/css"},
			Output: StringList{"www/all"},
			Build:  []BuildConfig{{Input: StringList{"src/css/two.css"}}},
		},
		{Input: StringList{"src/vendor.js"}, WatchOnly: true, Bundle: boolPtr(false)},
	}

	targets, err := cfg.Targets(newResolver(t, root))
	require.NoError(t, err)
	require.Len(t, targets, 5)

	app := targets[0]
	assert.Equal(t, "app", app.ID)
	assert.Equal(t, 1, app.Level)
	assert.Equal(t, []string{filepath.Join(root, "src/main.js")}, app.Inputs)
	assert.Equal(t, []string{filepath.Join(root, "www/main-%hash%.js")}, app.Outputs)
	assert.True(t, app.Bundle)
	assert.False(t, app.Batch)

	pages := targets[1]
	assert.Equal(t, "1", pages.ID)
	assert.True(t, pages.Batch)
	assert.False(t, pages.Bundle)
	assert.Equal(t, []string{
		filepath.Join(root, "src/pages/a.html"),
		filepath.Join(root, "src/pages/b/c.html"),
	}, pages.Inputs)
	assert.Equal(t, []string{
		filepath.Join(root, "www/a.html"),
		filepath.Join(root, "www/b/c.html"),
	}, pages.Outputs)

	globbed := targets[2]
	assert.True(t, globbed.Batch)
	assert.Equal(t, filepath.Join(root, "www/css/one.css"), globbed.OutputFor(filepath.Join(root, "src/css/one.css")))

	parent := targets[3]
	require.Len(t, parent.Targets, 1)
	child := parent.Targets[0]
	assert.Equal(t, "3-0", child.ID)
	assert.Equal(t, 2, child.Level)
	assert.Equal(t, []string{""}, child.Outputs)
	assert.False(t, child.HasOutput())
	assert.Equal(t, []string{filepath.Join(root, "src/css/two.css")}, parent.ChildInputs)
	assert.Equal(t, []string{filepath.Join(root, "src/css/one.css")}, parent.Inputs)

	vendor := targets[4]
	assert.True(t, vendor.WatchOnly)
	assert.False(t, vendor.Bundle)
}

func TestTargetsErrors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.js": "", "b.js": "", "c.js": ""})

	tests := []struct {
		name  string
		build BuildConfig
	}{
		{"outputs mismatch", BuildConfig{Input: StringList{"a.js", "b.js", "c.js"}, Output: StringList{"x.js", "y.js"}}},
		{"many inputs one file", BuildConfig{Input: StringList{"a.js", "b.js"}, Output: StringList{"out.js"}}},
		{"generate without children", BuildConfig{Output: StringList{"shared.js"}, Generate: &Generate{Mode: GenerateShared}}},
		{"generate without pattern", BuildConfig{
			Output:   StringList{"vendor.js"},
			Generate: &Generate{Mode: GeneratePattern},
			Build:    []BuildConfig{{Input: StringList{"a.js"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.SetRoot(root)
			cfg.Build = []BuildConfig{tt.build}
			_, err := cfg.Targets(newResolver(t, root))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestGeneratedTarget(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.css": "", "b.css": ""})

	cfg := GetDefaultConfig()
	cfg.SetRoot(root)
	cfg.Build = []BuildConfig{{
		Output:   StringList{"www/shared.css"},
		Generate: &Generate{Mode: GenerateShared},
		Build: []BuildConfig{
			{Input: StringList{"a.css"}, Output: StringList{"www/a.css"}},
			{Input: StringList{"b.css"}, Output: StringList{"www/b.css"}},
		},
	}}

	targets, err := cfg.Targets(newResolver(t, root))
	require.NoError(t, err)
	require.Len(t, targets, 1)

	gen := targets[0]
	assert.Equal(t, src.FileTypeCSS, gen.Type)
	assert.Equal(t, []string{filepath.Join(root, "www/shared.css")}, gen.Inputs)
	assert.Equal(t, gen.Inputs, gen.Outputs)
	assert.False(t, gen.Bundle)
	assert.Len(t, gen.ChildInputs, 2)
}

func TestFilterTargets(t *testing.T) {
	targets := []*Target{
		{ID: "app", Label: "app", Inputs: []string{"/p/src/main.js"}},
		{ID: "1", Inputs: []string{"/p/src/styles/main.css"}},
		{ID: "2", Inputs: []string{"/p/src/pages/index.html"}},
	}

	ids := func(ts []*Target) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	assert.Equal(t, []string{"app", "1", "2"}, ids(FilterTargets(targets, nil, false)))
	assert.Equal(t, []string{"app"}, ids(FilterTargets(targets, []string{"app"}, false)))
	assert.Equal(t, []string{"1"}, ids(FilterTargets(targets, []string{"**/*.css"}, false)))
	assert.Equal(t, []string{"app", "2"}, ids(FilterTargets(targets, []string{"**/*.css"}, true)))
}

func TestStringList(t *testing.T) {
	cfg := GetDefaultConfig()
	path := filepath.Join(t.TempDir(), "assetc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build:\n  - input: a.js\n    output: [x.js]\n"), 0644))

	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, StringList{"a.js"}, loaded.Build[0].Input)
	assert.Equal(t, StringList{"x.js"}, loaded.Build[0].Output)
	assert.NotNil(t, cfg)
}

func TestRuntimeLogLevel(t *testing.T) {
	assert.Equal(t, "INFO", RuntimeOptions{}.LogLevel().String())
	assert.Equal(t, "DEBUG", RuntimeOptions{Verbose: 2}.LogLevel().String())
}
