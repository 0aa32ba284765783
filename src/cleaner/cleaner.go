// Package cleaner removes the files written by configured builds.
package cleaner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/util"
)

type Cleaner struct {
	targets []*config.Target
	out     io.Writer
}

type CleanOptions struct {
	DryRun bool
}

func NewCleaner(targets []*config.Target, out io.Writer) *Cleaner {
	return &Cleaner{
		targets: targets,
		out:     out,
	}
}

// Clean removes every output of the targets and their children. Tokenised
// output names remove every previously generated variant.
func (c *Cleaner) Clean(ctx context.Context, opts CleanOptions) ([]string, error) {
	paths := c.outputs()

	if opts.DryRun {
		fmt.Fprintln(c.out, "Files to clean:")
		for _, path := range paths {
			fmt.Fprintf(c.out, "  - %s\n", util.RelativeToCwd(path))
		}
		return paths, nil
	}

	var removed []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			logger.Warn("failed to remove %s: %v", util.RelativeToCwd(path), err)
			continue
		}
		fmt.Fprintf(c.out, "Removed: %s\n", util.RelativeToCwd(path))
		removed = append(removed, path)
	}
	logger.Debug("cleaned %d files", len(removed))
	return removed, nil
}

// outputs returns the existing output files, sorted.
func (c *Cleaner) outputs() []string {
	seen := make(map[string]bool)
	var add func(t *config.Target)
	add = func(t *config.Target) {
		for _, out := range t.Outputs {
			if out == "" {
				continue
			}
			if util.IsUniqueFilepath(out) {
				for _, match := range util.FindUniqueFilepaths(out) {
					seen[match] = true
				}
				continue
			}
			if util.FileExists(out) && !util.IsDirectory(out) {
				seen[out] = true
			}
		}
		for _, child := range t.Targets {
			add(child)
		}
	}
	for _, t := range c.targets {
		add(t)
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
