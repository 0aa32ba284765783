// Package builder runs the configured build tree: one-shot builds, deploys
// and watch mode with selective rebuilds.
package builder

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/build"
	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/livereload"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/processor"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/pboueri/assetc/src/script"
	"github.com/pboueri/assetc/src/util"
	"github.com/pboueri/assetc/src/watcher"
)

// ErrNoBuilds is returned when no configured build matches the selection.
var ErrNoBuilds = errors.New("no builds to run")

// Reloader refreshes connected browsers.
type Reloader interface {
	Start() error
	Refresh(path string)
	Close() error
}

// AppServer is the application process restarted when server code changes.
type AppServer interface {
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	Close() error
}

// Script runs after each completed build.
type Script interface {
	SetEnv(vars map[string]string)
	Run(ctx context.Context) error
}

type Builder struct {
	cfg       *config.Config
	runtime   config.RuntimeOptions
	cache     *file.Cache
	workflows map[src.FileType]file.Workflow
	targets   []*config.Target
	builds    []*build.Build

	reloader Reloader
	server   AppServer
	script   Script
	watcher  file.Watcher

	mu       sync.Mutex
	idle     *sync.Cond
	building bool
	closing  bool
}

// NewBuilder prepares the build tree for cfg with the default processors.
func NewBuilder(cfg *config.Config, runtime config.RuntimeOptions) (*Builder, error) {
	return NewBuilderWithProcessors(cfg, runtime, nil)
}

// NewBuilderWithProcessors prepares the build tree using procs, which
// defaults to processor.Defaults when nil.
func NewBuilderWithProcessors(cfg *config.Config, runtime config.RuntimeOptions, procs *processor.Set) (*Builder, error) {
	exts, err := cfg.TypeExtensions()
	if err != nil {
		return nil, err
	}
	resolver, err := resolve.New(resolve.Options{
		Root:           cfg.Root(),
		Sources:        cfg.SourceDirs(),
		FileExtensions: exts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	if procs == nil {
		procs = processor.Defaults()
	}
	if registry, ok := procs.Compiler.(*processor.Registry); ok {
		for ext, command := range cfg.Compilers {
			if err := registry.RegisterCommand(ext, command); err != nil {
				return nil, err
			}
		}
	}
	if err := processor.LoadDotenv(cfg.EnvFiles()...); err != nil {
		return nil, err
	}

	workflows, err := cfg.FileWorkflows()
	if err != nil {
		return nil, err
	}
	targets, err := cfg.Targets(resolver)
	if err != nil {
		return nil, err
	}
	targets = config.FilterTargets(targets, runtime.Targets, runtime.Invert)
	if len(targets) == 0 {
		return nil, ErrNoBuilds
	}

	b := &Builder{
		cfg:       cfg,
		runtime:   runtime,
		cache:     file.NewCache(resolver, procs),
		workflows: workflows,
		targets:   targets,
	}
	b.idle = sync.NewCond(&b.mu)
	b.builds = b.newBuilds()

	if cfg.Script != "" {
		runner, err := script.NewRunner(cfg.Script, cfg.Root())
		if err != nil {
			return nil, err
		}
		b.script = runner
	}
	if runtime.Serve && cfg.Server.Command != "" {
		server, err := script.NewServer(cfg.Server.Command, cfg.Root(), cfg.Server.Env)
		if err != nil {
			return nil, err
		}
		b.server = server
	}
	if runtime.Reload {
		b.reloader = livereload.NewForPort(cfg.Server.ReloadPort)
	}
	return b, nil
}

func (b *Builder) newBuilds() []*build.Build {
	builds := make([]*build.Build, len(b.targets))
	for i, target := range b.targets {
		builds[i] = build.New(target, b.cache, b.workflows, b.runtime)
	}
	return builds
}

func (b *Builder) SetReloader(r Reloader)         { b.reloader = r }
func (b *Builder) SetServer(s AppServer)          { b.server = s }
func (b *Builder) SetScript(s Script)             { b.script = s }
func (b *Builder) SetWatcher(w file.Watcher)      { b.watcher = w }
func (b *Builder) Cache() *file.Cache             { return b.cache }
func (b *Builder) Builds() []*build.Build         { return b.builds }
func (b *Builder) Config() *config.Config         { return b.cfg }
func (b *Builder) Runtime() config.RuntimeOptions { return b.runtime }

// Build runs every root build in order and returns the written paths.
func (b *Builder) Build(ctx context.Context) ([]string, error) {
	if !b.begin() {
		return nil, fmt.Errorf("build already running")
	}
	start := time.Now()
	b.cache.Resolver().Clear()
	paths, err := b.run(ctx, b.builds)
	b.end()
	if err != nil {
		return paths, err
	}

	logger.Info("completed build in %s", logger.Strong(elapsed(start)))
	if err := b.runScript(ctx); err != nil {
		return paths, err
	}
	return paths, nil
}

// Deploy builds with compression and size reporting.
func (b *Builder) Deploy(ctx context.Context) ([]string, error) {
	b.runtime.Deploy = true
	b.runtime.Compress = true
	b.idle = sync.NewCond(&b.mu)
	b.builds = b.newBuilds()
	return b.Build(ctx)
}

// Watch builds, then rebuilds affected builds on every source change until
// ctx is cancelled.
func (b *Builder) Watch(ctx context.Context) error {
	b.runtime.Watch = true
	b.idle = sync.NewCond(&b.mu)
	b.builds = b.newBuilds()

	if _, err := b.Build(ctx); err != nil {
		logger.Error("%v", err)
	}

	if b.runtime.Reload || b.runtime.Serve {
		if err := b.startServers(ctx); err != nil {
			b.Destroy()
			return err
		}
	} else {
		logger.Info("watching files for changes:")
		for _, dir := range b.cache.Dirs() {
			logger.Info("%s%s", logger.Prefix(1), util.RelativeToCwd(dir))
		}
	}

	b.cache.OnChange(func(f *file.File) {
		b.onFileCacheChange(ctx, f)
	})
	if b.watcher == nil {
		w, err := watcher.New(b.cache.Notify)
		if err != nil {
			b.Destroy()
			return err
		}
		b.watcher = w
	}
	b.cache.Watch(b.watcher)

	<-ctx.Done()
	b.wait()
	return b.Destroy()
}

func (b *Builder) startServers(ctx context.Context) error {
	if b.reloader != nil && b.runtime.Reload {
		if err := b.reloader.Start(); err != nil {
			logger.Warn("live reload unavailable, continuing without it: %v", err)
			b.reloader = nil
		}
	}
	if b.server != nil && b.runtime.Serve {
		if err := b.server.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Destroy stops the servers and flushes the file cache.
func (b *Builder) Destroy() error {
	var errs []error
	if b.reloader != nil {
		errs = append(errs, b.reloader.Close())
	}
	if b.server != nil {
		errs = append(errs, b.server.Close())
	}
	errs = append(errs, b.cache.Flush())
	return errors.Join(errs...)
}

// onFileCacheChange rebuilds the root builds referencing f. Changes arriving
// while a build runs are dropped.
func (b *Builder) onFileCacheChange(ctx context.Context, f *file.File) {
	if ctx.Err() != nil {
		return
	}
	if !b.begin() {
		logger.Debug("ignoring change to %s while building", f.Relpath())
		return
	}

	var affected []*build.Build
	restart := false
	for _, root := range b.builds {
		if !root.HasFile(f.Filepath()) {
			continue
		}
		affected = append(affected, root)
		root.Walk(func(d *build.Build) {
			if d.IsAppServer() && d.HasFile(f.Filepath()) {
				restart = true
			}
		})
	}
	if len(affected) == 0 {
		b.end()
		return
	}

	cycle := uuid.Must(uuid.NewV7()).String()
	logger.Debug("watch cycle %s: %d builds affected by %s", cycle, len(affected), f.Relpath())
	logger.Info("[%s] changed %s", time.Now().Format("15:04:05"), logger.Strong(f.Relpath()))

	start := time.Now()
	f.Reset(true)
	b.cache.Resolver().Clear()
	paths, err := b.run(ctx, affected)
	b.end()
	if err != nil {
		logger.Error("%v", err)
		return
	}

	if restart && b.server != nil {
		if err := b.server.Restart(ctx); err != nil {
			logger.Error("%v", err)
		}
	}
	if b.reloader != nil {
		b.reloader.Refresh(refreshPath(paths))
	}

	logger.Info("completed build in %s", logger.Strong(elapsed(start)))
	if err := b.runScript(ctx); err != nil {
		logger.Error("%v", err)
	}
}

func (b *Builder) run(ctx context.Context, builds []*build.Build) ([]string, error) {
	var paths []string
	for _, root := range builds {
		results, err := root.Run(ctx)
		for _, r := range results {
			paths = append(paths, r.Filepath)
		}
		if err != nil {
			return paths, err
		}
	}
	return paths, nil
}

func (b *Builder) runScript(ctx context.Context) error {
	if !b.runtime.Script || b.script == nil {
		return nil
	}
	if env, ok := b.cache.Processors().Env.(interface{ Vars() map[string]string }); ok {
		b.script.SetEnv(env.Vars())
	}
	return b.script.Run(ctx)
}

func (b *Builder) begin() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.building || b.closing {
		return false
	}
	b.building = true
	return true
}

func (b *Builder) end() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.building = false
	b.idle.Broadcast()
}

// wait blocks until a running rebuild finishes and refuses new ones.
func (b *Builder) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closing = true
	for b.building {
		b.idle.Wait()
	}
}

// refreshPath returns the stylesheet name when a single stylesheet was
// written, "" (full reload) otherwise.
func refreshPath(paths []string) string {
	if len(paths) == 1 && strings.EqualFold(filepath.Ext(paths[0]), ".css") {
		return filepath.Base(paths[0])
	}
	return ""
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.3fs", time.Since(start).Seconds())
}
