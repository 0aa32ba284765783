package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pboueri/assetc/src/builder"
	"github.com/pboueri/assetc/src/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectConfig = `version: 1
sources: [src]
build:
  - label: scripts
    input: src/index.js
    output: www/index.js
  - label: styles
    input: src/index.css
    output: www/index.css
logging:
  level: warn
  sinks:
    - type: file
      filename: assetc.log
`

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"assetc.yaml":   projectConfig,
		"src/index.js":  "var lib = require('./lib');",
		"src/lib.js":    "module.exports = 1;",
		"src/index.css": "body { color: red; }",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	chdir(t, root)
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buildFlags.compress, buildFlags.lazy, buildFlags.script, buildFlags.invert = false, false, false, false
	cleanDryRun, cleanInvert, treeFiles = false, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetOut(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	root := setupProject(t)

	_, err := execute(t, "build")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "www/index.js"))
	assert.FileExists(t, filepath.Join(root, "www/index.css"))

	out, err := execute(t, "clean")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed: ")
	assert.NoFileExists(t, filepath.Join(root, "www/index.js"))
	assert.NoFileExists(t, filepath.Join(root, "www/index.css"))
}

func TestBuildCommandSelectsTargets(t *testing.T) {
	root := setupProject(t)

	_, err := execute(t, "build", "styles")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "www/index.css"))
	assert.NoFileExists(t, filepath.Join(root, "www/index.js"))

	_, err = execute(t, "build", "--invert", "styles")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "www/index.js"))

	_, err = execute(t, "build", "missing")
	assert.True(t, errors.Is(err, builder.ErrNoBuilds))
}

func TestDeployCommand(t *testing.T) {
	root := setupProject(t)

	_, err := execute(t, "deploy")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "www/index.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "body{color:red}")
}

func TestTreeCommand(t *testing.T) {
	setupProject(t)

	out, err := execute(t, "tree", "--files")
	require.NoError(t, err)
	assert.Contains(t, out, "└── scripts src/index.js → www/index.js (bundle)\n")
	assert.Contains(t, out, "    └── src/index.css → www/index.css\n")
}

func TestCommandWithoutProject(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := execute(t, "build")
	assert.ErrorIs(t, err, config.ErrNoConfig)
}
