package cmd

import (
	"fmt"

	"github.com/pboueri/assetc/src/cleaner"
	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/spf13/cobra"
)

var (
	cleanDryRun bool
	cleanInvert bool
)

func init() {
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Show what would be cleaned without actually cleaning")
	cleanCmd.Flags().BoolVarP(&cleanInvert, "invert", "i", false, "Clean every target except the ones named")
}

var cleanCmd = &cobra.Command{
	Use:   "clean [target...]",
	Short: "Remove built files",
	Long:  `Remove the output files of every target, or only of the targets matching the given globs.`,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return err
	}
	targets, err := projectTargets(cfg)
	if err != nil {
		return err
	}
	targets = config.FilterTargets(targets, args, cleanInvert)

	clnr := cleaner.NewCleaner(targets, cmd.OutOrStdout())
	_, err = clnr.Clean(cmd.Context(), cleaner.CleanOptions{DryRun: cleanDryRun})
	return err
}

// projectTargets normalises the configured builds without running them.
func projectTargets(cfg *config.Config) ([]*config.Target, error) {
	exts, err := cfg.TypeExtensions()
	if err != nil {
		return nil, err
	}
	r, err := resolve.New(resolve.Options{
		Root:           cfg.Root(),
		Sources:        cfg.SourceDirs(),
		FileExtensions: exts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	return cfg.Targets(r)
}
