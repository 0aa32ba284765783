package cmd

import (
	"fmt"

	"github.com/pboueri/assetc/src/graph"
	"github.com/spf13/cobra"
)

var treeFiles bool

func init() {
	treeCmd.Flags().BoolVarP(&treeFiles, "files", "f", false, "List the input files of each build")
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the build tree",
	Long:  `Display the configured builds, their children and optionally the files each one reads and writes.`,
	RunE:  runTree,
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadProject()
	if err != nil {
		return err
	}
	targets, err := projectTargets(cfg)
	if err != nil {
		return err
	}

	nodes := graph.FromTargets(targets, graph.Options{Files: treeFiles, Root: cfg.Root()})
	fmt.Fprint(cmd.OutOrStdout(), graph.Visualize(nodes))
	return nil
}
