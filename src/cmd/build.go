package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pboueri/assetc/src/builder"
	"github.com/spf13/cobra"
)

var buildFlags struct {
	compress bool
	lazy     bool
	reload   bool
	serve    bool
	script   bool
	invert   bool
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, watchCmd, deployCmd} {
		c.Flags().BoolVarP(&buildFlags.compress, "compress", "c", false, "Compress output")
		c.Flags().BoolVarP(&buildFlags.lazy, "lazy", "l", false, "Register js modules as strings evaluated on first require")
		c.Flags().BoolVarP(&buildFlags.script, "script", "s", false, "Run the configured script after each build")
		c.Flags().BoolVarP(&buildFlags.invert, "invert", "i", false, "Build every target except the ones named")
	}
	watchCmd.Flags().BoolVarP(&buildFlags.reload, "reload", "r", false, "Start a live-reload server")
	watchCmd.Flags().BoolVar(&buildFlags.serve, "serve", false, "Start and restart the configured app server")
}

var buildCmd = &cobra.Command{
	Use:   "build [target...]",
	Short: "Build targets",
	Long: `Build every configured target, or only the targets whose label or input
matches one of the given globs.`,
	RunE: runBuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch [target...]",
	Short: "Build targets and rebuild them on change",
	Long:  `Build targets, then rebuild the builds affected by each source change until interrupted.`,
	RunE:  runWatch,
}

var deployCmd = &cobra.Command{
	Use:   "deploy [target...]",
	Short: "Build compressed targets for deployment",
	Long:  `Build compressed targets and report the gzipped size of each script and stylesheet.`,
	RunE:  runDeploy,
}

func newBuilder(targets []string) (*builder.Builder, error) {
	cfg, err := loadProject()
	if err != nil {
		return nil, err
	}
	opts := runtimeOptions()
	opts.Targets = targets
	return builder.NewBuilder(cfg, opts)
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, err := newBuilder(args)
	if err != nil {
		return err
	}
	defer b.Destroy()

	_, err = b.Build(cmd.Context())
	return err
}

func runDeploy(cmd *cobra.Command, args []string) error {
	b, err := newBuilder(args)
	if err != nil {
		return err
	}
	defer b.Destroy()

	_, err = b.Deploy(cmd.Context())
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	b, err := newBuilder(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return b.Watch(ctx)
}
