// Package build runs one configured target and its child targets through
// the process, write and reset phases.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/util"
	"golang.org/x/sync/errgroup"
)

const (
	stageProcess = 0
	stageWrite   = 1
)

// Build is the runtime state of one target. Phases are strictly sequential:
// process, write, reset. Files referenced by a build are locked while its
// children run so a child cannot claim them.
type Build struct {
	target    *config.Target
	cache     *file.Cache
	workflows map[src.FileType]file.Workflow
	runtime   config.RuntimeOptions
	parent    *Build
	builds    []*Build
	prefix    string

	inputString  string
	outputString string

	// dummy is the synthesised input of a generated build.
	dummy *file.File

	opts            file.Options
	skipped         bool
	started         time.Time
	inputFiles      []*file.File
	referencedFiles []*file.File
	outputFiles     []*file.File
	results         []src.WriteResult
}

// New creates the build tree for target. A nil workflows map uses
// file.DefaultWorkflows.
func New(target *config.Target, cache *file.Cache, workflows map[src.FileType]file.Workflow, runtime config.RuntimeOptions) *Build {
	if workflows == nil {
		workflows = file.DefaultWorkflows
	}
	return newBuild(target, cache, workflows, runtime, nil)
}

func newBuild(target *config.Target, cache *file.Cache, workflows map[src.FileType]file.Workflow, runtime config.RuntimeOptions, parent *Build) *Build {
	b := &Build{
		target:    target,
		cache:     cache,
		workflows: workflows,
		runtime:   runtime,
		parent:    parent,
		prefix:    logger.Prefix(target.Level),
	}

	var inputs, outputs []string
	for i, in := range target.Inputs {
		if target.Generate == nil {
			inputs = append(inputs, util.RelativeToCwd(in))
		}
		if out := target.Outputs[i]; out != "" {
			outputs = append(outputs, util.RelativeToCwd(out))
		}
	}
	b.inputString = util.PathString(inputs)
	b.outputString = util.PathString(outputs)

	if target.Generate != nil && len(target.Inputs) > 0 {
		path := target.Inputs[0]
		b.dummy = cache.NewVirtual(cache.Resolver().Identify(path), path, target.Type)
	}

	for _, child := range target.Targets {
		b.builds = append(b.builds, newBuild(child, cache, workflows, runtime, b))
	}
	return b
}

func (b *Build) ID() string                 { return b.target.ID }
func (b *Build) Target() *config.Target     { return b.target }
func (b *Build) Parent() *Build             { return b.parent }
func (b *Build) Builds() []*Build           { return b.builds }
func (b *Build) Options() file.Options      { return b.opts }
func (b *Build) Results() []src.WriteResult { return b.results }

// IsAppServer reports whether outputs of this build are run by the app
// server, so a change requires a restart.
func (b *Build) IsAppServer() bool {
	return b.target.AppServer
}

// ReferencedFiles returns every file touched by the last run, inputs first.
func (b *Build) ReferencedFiles() []*file.File {
	return append([]*file.File(nil), b.referencedFiles...)
}

// HasFile reports whether the last run of this build or a descendant
// referenced path.
func (b *Build) HasFile(path string) bool {
	for _, f := range b.referencedFiles {
		if f.Filepath() == path {
			return true
		}
	}
	for _, child := range b.builds {
		if child.HasFile(path) {
			return true
		}
	}
	return false
}

// Walk calls fn for b and every descendant, depth first.
func (b *Build) Walk(fn func(*Build)) {
	fn(b)
	for _, child := range b.builds {
		child.Walk(fn)
	}
}

// Run processes, writes and resets the build tree and returns the written
// results of every build in it. Files are reset even when a phase fails.
func (b *Build) Run(ctx context.Context) ([]src.WriteResult, error) {
	if err := b.runProcess(ctx); err != nil {
		b.runReset()
		return nil, err
	}
	if err := b.runWrite(ctx); err != nil {
		b.runReset()
		return nil, err
	}
	results := b.runReset()
	if b.parent == nil {
		b.printWriteProgress(results)
	}
	return results, nil
}

func (b *Build) runProcess(ctx context.Context) error {
	b.init()
	if b.skipped {
		return nil
	}
	if err := b.processFiles(ctx); err != nil {
		return err
	}
	b.preProcessWriteFiles()
	b.printProcessProgress()
	if err := b.runProcessForChildren(ctx); err != nil {
		return err
	}
	return b.processGeneratedBuild(ctx)
}

func (b *Build) runWrite(ctx context.Context) error {
	if b.skipped {
		return nil
	}
	if err := b.writeFiles(ctx); err != nil {
		return err
	}
	return b.runWriteForChildren(ctx)
}

// runReset soft resets referenced files and returns the results of the
// subtree.
func (b *Build) runReset() []src.WriteResult {
	if b.skipped {
		return nil
	}
	for _, f := range b.referencedFiles {
		f.Reset(false)
	}
	results := append([]src.WriteResult(nil), b.results...)
	for _, child := range b.builds {
		results = append(results, child.runReset()...)
	}
	return results
}

func (b *Build) init() {
	b.started = time.Now()
	b.inputFiles = nil
	b.referencedFiles = nil
	b.outputFiles = nil
	b.results = nil

	b.skipped = b.target.WatchOnly && !b.runtime.Watch
	if b.skipped {
		logger.Debug("skipping watch-only build %s", b.ID())
		return
	}

	t := b.target
	b.opts = file.Options{
		Batch:        !t.Bundle && t.Batch,
		Boilerplate:  t.Boilerplate,
		Bootstrap:    t.Bootstrap,
		Bundle:       t.Bundle,
		Compress:     b.runtime.Compress || b.runtime.Deploy,
		Lazy:         b.runtime.Lazy,
		Watch:        b.runtime.Watch,
		IgnoredFiles: t.ChildInputs,
		Version:      b.runtime.Version,
	}

	action := "building"
	if b.runtime.Watch {
		action = "watching"
	}
	subject := b.inputString
	if subject == "" {
		subject = t.Input
	}
	if b.dummy != nil {
		subject = b.outputString
	} else if b.outputString != "" {
		subject += " to " + b.outputString
	}
	logger.Progress(b.prefix, action, subject)

	if b.dummy != nil {
		b.inputFiles = []*file.File{b.dummy}
		return
	}
	if len(t.Inputs) == 0 && t.Input != "" {
		logger.Warn("%s matched no source files", logger.Strong(t.Input))
		return
	}
	for _, path := range t.Inputs {
		f, err := b.cache.File(path)
		if err != nil {
			logger.Warn("%s not found in project source", logger.Strong(util.RelativeToCwd(path)))
			continue
		}
		b.inputFiles = append(b.inputFiles, f)
	}
}

// processFiles runs stage 0 to a fixed point over inputs and every
// discovered dependency, then stage 1 over the writeable files.
func (b *Build) processFiles(ctx context.Context) error {
	b.exposeInputEnv()

	files, err := b.runStage(ctx, b.inputFiles, stageProcess, true)
	b.referencedFiles = files
	if err != nil {
		return err
	}

	var writeable []*file.File
	for _, f := range files {
		if f.IsWriteable(b.opts.Batch) {
			writeable = append(writeable, f)
		}
	}
	_, err = b.runStage(ctx, writeable, stageWrite, false)
	return err
}

// runStage runs the stage on files in parallel batches. With expand, the
// dependencies returned by each batch form the next batch until no new
// files are found. All files seen so far are returned, even on error.
func (b *Build) runStage(ctx context.Context, files []*file.File, stage int, expand bool) ([]*file.File, error) {
	seen := make(map[*file.File]bool, len(files))
	var all []*file.File
	for _, f := range files {
		if !seen[f] {
			seen[f] = true
			all = append(all, f)
		}
	}

	batch := all
	for len(batch) > 0 {
		deps := make([][]*file.File, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, f := range batch {
			i, f := i, f
			g.Go(func() error {
				found, err := f.Run(gctx, b.steps(f, stage), b.opts)
				if err != nil {
					return &Error{BuildID: b.ID(), Path: f.Relpath(), Err: err}
				}
				deps[i] = found
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return all, err
		}
		if !expand {
			break
		}

		var next []*file.File
		for _, found := range deps {
			for _, f := range found {
				if !seen[f] {
					seen[f] = true
					next = append(next, f)
				}
			}
		}
		all = append(all, next...)
		batch = next
	}
	return all, nil
}

func (b *Build) steps(f *file.File, stage int) []file.Step {
	workflow := b.workflows[f.Type()]
	if stage >= len(workflow) {
		return nil
	}
	return workflow[stage].Steps(b.opts)
}

// preProcessWriteFiles prepares output paths for writeable inputs and
// removes outputs of earlier runs with unique names.
func (b *Build) preProcessWriteFiles() {
	for _, f := range b.inputFiles {
		out := b.target.OutputFor(f.Filepath())
		if out == "" || !f.IsWriteable(b.opts.Batch) {
			continue
		}
		if util.IsUniqueFilepath(out) {
			for _, old := range util.FindUniqueFilepaths(out) {
				if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
					logger.Warn("unable to remove %s: %v", util.RelativeToCwd(old), err)
				}
			}
		}
		f.PrepareForWrite(out)
		b.outputFiles = append(b.outputFiles, f)
	}
}

func (b *Build) printProcessProgress() {
	logger.Info("%s[processed %d %s in %s]", b.prefix, len(b.referencedFiles),
		plural(len(b.referencedFiles), "file"), elapsed(b.started))
}

func (b *Build) runProcessForChildren(ctx context.Context) error {
	if len(b.builds) == 0 {
		return nil
	}
	setLocked(b.referencedFiles, true)
	defer setLocked(b.referencedFiles, false)

	for _, child := range b.builds {
		if err := child.runProcess(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Build) writeFiles(ctx context.Context) error {
	results := make([]src.WriteResult, len(b.outputFiles))
	g, _ := errgroup.WithContext(ctx)
	for i, f := range b.outputFiles {
		i, f := i, f
		g.Go(func() error {
			res, err := f.Write(b.opts)
			if err != nil {
				return &Error{BuildID: b.ID(), Path: f.Relpath(), Err: fmt.Errorf("write: %w", err)}
			}
			res.PrintPrefix = b.prefix
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	b.results = results
	b.exposeOutputEnv()
	return nil
}

func (b *Build) runWriteForChildren(ctx context.Context) error {
	if len(b.builds) == 0 {
		return nil
	}
	setLocked(b.referencedFiles, true)
	defer setLocked(b.referencedFiles, false)

	for _, child := range b.builds {
		if err := child.runWrite(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Build) exposeInputEnv() {
	env := b.cache.Processors().Env
	var (
		paths   []string
		content strings.Builder
		latest  int64
	)
	for _, f := range b.inputFiles {
		paths = append(paths, f.Relpath())
		info, err := os.Stat(f.Filepath())
		if err != nil {
			continue
		}
		if ms := info.ModTime().UnixMilli(); ms > latest {
			latest = ms
		}
		if data, err := os.ReadFile(f.Filepath()); err == nil {
			content.Write(data)
		}
	}
	util.ExposeEnv(env, util.EnvInput, b.ID(), strings.Join(paths, ","))
	util.ExposeEnv(env, util.EnvInputHash, b.ID(), util.Hash(content.String()))
	util.ExposeEnv(env, util.EnvInputDate, b.ID(), fmt.Sprint(latest))
}

func (b *Build) exposeOutputEnv() {
	if len(b.results) == 0 {
		return
	}
	env := b.cache.Processors().Env
	var (
		paths   []string
		urls    []string
		content strings.Builder
	)
	for _, res := range b.results {
		rel := util.RelativeToCwd(res.Filepath)
		paths = append(paths, rel)
		url := filepath.ToSlash(rel)
		if !strings.HasPrefix(url, "/") {
			url = "/" + url
		}
		urls = append(urls, url)
		content.WriteString(res.Content)
	}
	util.ExposeEnv(env, util.EnvOutput, b.ID(), strings.Join(paths, ","))
	util.ExposeEnv(env, util.EnvOutputHash, b.ID(), util.Hash(content.String()))
	util.ExposeEnv(env, util.EnvOutputDate, b.ID(), fmt.Sprint(time.Now().UnixMilli()))
	util.ExposeEnv(env, util.EnvOutputURL, b.ID(), strings.Join(urls, ","))
}

func setLocked(files []*file.File, locked bool) {
	for _, f := range files {
		f.SetLocked(locked)
	}
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.3fs", time.Since(start).Seconds())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
