package cmd

import (
	"fmt"
	"os"

	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/logger"
	"github.com/spf13/cobra"
)

// Version is stamped into generated file headers. Set with -ldflags.
var Version = "dev"

var (
	verboseCount int
)

var rootCmd = &cobra.Command{
	Use:   "assetc",
	Short: "Build, bundle and watch js, css and html assets",
	Long: `assetc resolves the dependencies of declared build targets, runs each file
through its workflow of steps and writes bundled, optionally compressed output.
In watch mode only the builds affected by a change are rebuilt.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetLevel(runtimeOptions().LogLevel())
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verboseCount, "verbose", "v", "Increase verbosity (-v for debug output)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(configCmd)
}

// runtimeOptions collects the flags shared by every command.
func runtimeOptions() config.RuntimeOptions {
	return config.RuntimeOptions{
		Compress: buildFlags.compress,
		Lazy:     buildFlags.lazy,
		Reload:   buildFlags.reload,
		Serve:    buildFlags.serve,
		Script:   buildFlags.script,
		Verbose:  verboseCount,
		Invert:   buildFlags.invert,
		Version:  Version,
	}
}

// loadProject finds the config from the working directory and applies its
// logging settings. Verbose flags win over the configured level.
func loadProject() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	cfg, err := config.Find(cwd)
	if err != nil {
		return nil, err
	}
	if err := config.InitializeLogger(cfg, cfg.Root()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verboseCount > 0 {
		logger.SetLevel(logger.DebugLevel)
	}
	return cfg, nil
}
