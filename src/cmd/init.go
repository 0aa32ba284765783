package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/util"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new assetc project",
	Long:  `Initialize a new assetc project by writing a starter assetc.yaml in the current directory.`,
	RunE:  runInit,
}

// starterConfig builds src/index.js and src/index.css into www/.
func starterConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Sources = []string{"src"}
	cfg.Build = []config.BuildConfig{
		{
			Label:  "scripts",
			Input:  config.StringList{"src/index.js"},
			Output: config.StringList{"www/index.js"},
		},
		{
			Label:  "styles",
			Input:  config.StringList{"src/index.css"},
			Output: config.StringList{"www/index.css"},
		},
	}
	return cfg
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	for _, name := range util.ConfigFilenames {
		if name == "package.json" {
			continue
		}
		if util.FileExists(filepath.Join(cwd, name)) {
			return fmt.Errorf("project already initialized (%s exists)", name)
		}
	}

	configFile := filepath.Join(cwd, "assetc.yaml")
	if err := config.SaveConfig(configFile, starterConfig()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Created assetc.yaml")
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the build section of assetc.yaml to list your inputs and outputs")
	fmt.Fprintln(out, "2. Run 'assetc build' to build once, or 'assetc watch' while developing")
	return nil
}
