package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pboueri/assetc/src/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(originalWD) })
}

func TestInitCommand(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)

	var out bytes.Buffer
	initCmd.SetOut(&out)
	defer initCmd.SetOut(nil)

	require.NoError(t, runInit(initCmd, []string{}))
	assert.Contains(t, out.String(), "Created assetc.yaml")

	cfg, err := config.LoadConfig(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "assetc.yaml"), cfg.Path())
	assert.Equal(t, []string{"src"}, cfg.Sources)
	require.Len(t, cfg.Build, 2)
	assert.Equal(t, "scripts", cfg.Build[0].Label)
	assert.Equal(t, config.StringList{"src/index.js"}, cfg.Build[0].Input)
	assert.Equal(t, config.StringList{"www/index.css"}, cfg.Build[1].Output)
}

func TestInitCommand_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "assetc.json"), []byte(`{"build": []}`), 0644))

	err := runInit(initCmd, []string{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}
