package file

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/processor"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/pboueri/assetc/src/util"
)

var (
	// ErrNotFound is returned when a path does not exist on disk.
	ErrNotFound = errors.New("file not found")
)

// Watcher observes files on disk and reports changes to the cache.
type Watcher interface {
	Add(path string) error
	Close() error
}

// ChangeFunc receives files changed on disk.
type ChangeFunc func(f *File)

// Cache owns every File of a process, keyed by absolute path and by
// "type:id". Lookup-or-create is atomic.
type Cache struct {
	mu        sync.RWMutex
	byPath    map[string]*File
	byKey     map[string]*File
	listeners []ChangeFunc
	watcher   Watcher

	resolver *resolve.Resolver
	procs    *processor.Set
}

// NewCache creates an empty cache. A nil procs uses processor.Defaults.
func NewCache(resolver *resolve.Resolver, procs *processor.Set) *Cache {
	if procs == nil {
		procs = processor.Defaults()
	}
	return &Cache{
		byPath:   make(map[string]*File),
		byKey:    make(map[string]*File),
		resolver: resolver,
		procs:    procs,
	}
}

// Resolver returns the path resolver.
func (c *Cache) Resolver() *resolve.Resolver {
	return c.resolver
}

// Processors returns the capability set.
func (c *Cache) Processors() *processor.Set {
	return c.procs
}

func cacheKey(typ src.FileType, id string) string {
	return string(typ) + ":" + id
}

// File returns the cached File for path, creating it when the path exists.
// The file type is derived from the extension.
func (c *Cache) File(path string) (*File, error) {
	path = filepath.Clean(path)

	c.mu.RLock()
	f, ok := c.byPath[path]
	c.mu.RUnlock()
	typ := c.resolver.Type(path)
	if ok {
		f.SetType(typ)
		return f, nil
	}

	if !util.FileExists(path) || util.IsDirectory(path) {
		return nil, ErrNotFound
	}

	id := c.resolver.Identify(path)
	key := cacheKey(typ, id)

	c.mu.Lock()
	if f, ok := c.byPath[path]; ok {
		c.mu.Unlock()
		f.SetType(typ)
		return f, nil
	}
	if f, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		f.SetType(typ)
		return f, nil
	}
	f = newFile(c, id, path, typ)
	c.byPath[path] = f
	c.byKey[key] = f
	watcher := c.watcher
	c.mu.Unlock()

	if c.resolver.HasMultipleVersions(id) {
		logger.Warn("more than one version of %s exists (%s)",
			logger.Strong(resolve.PackageName(id)), logger.Strong(f.relpath))
	}
	if watcher != nil {
		if err := watcher.Add(path); err != nil {
			logger.Warn("unable to watch %s: %v", f.relpath, err)
		}
	}
	return f, nil
}

// Resolve resolves literal from the file at from and returns its File, or
// nil when it cannot be resolved.
func (c *Cache) Resolve(from, literal string) *File {
	path, ok := c.resolver.Resolve(from, literal)
	if !ok {
		return nil
	}
	f, err := c.File(path)
	if err != nil {
		return nil
	}
	return f
}

// Get returns the cached File for path without creating it.
func (c *Cache) Get(path string) (*File, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.byPath[filepath.Clean(path)]
	return f, ok
}

// NewVirtual creates an uncached File with no backing source, used as the
// input of synthesised builds.
func (c *Cache) NewVirtual(id, path string, typ src.FileType) *File {
	f := newFile(c, id, path, typ)
	f.virtual = true
	f.loaded = true
	return f
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byPath)
}

// Dirs returns the sorted set of directories containing cached files.
func (c *Cache) Dirs() []string {
	c.mu.RLock()
	seen := make(map[string]bool)
	for path := range c.byPath {
		seen[filepath.Dir(path)] = true
	}
	c.mu.RUnlock()

	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Watch attaches a watcher. Files already cached are added immediately,
// later files as they are created.
func (c *Cache) Watch(w Watcher) {
	c.mu.Lock()
	c.watcher = w
	paths := make([]string, 0, len(c.byPath))
	for path := range c.byPath {
		paths = append(paths, path)
	}
	c.mu.Unlock()

	for _, path := range paths {
		if err := w.Add(path); err != nil {
			logger.Warn("unable to watch %s: %v", util.RelativeToCwd(path), err)
		}
	}
}

// OnChange registers fn for change notifications.
func (c *Cache) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Notify reports that path changed on disk. Unknown paths are ignored.
func (c *Cache) Notify(path string) {
	f, ok := c.Get(path)
	if !ok {
		return
	}
	c.mu.RLock()
	listeners := append([]ChangeFunc(nil), c.listeners...)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(f)
	}
}

// Flush hard resets and drops every file, and closes the watcher.
func (c *Cache) Flush() error {
	c.mu.Lock()
	files := make([]*File, 0, len(c.byPath))
	for _, f := range c.byPath {
		files = append(files, f)
	}
	c.byPath = make(map[string]*File)
	c.byKey = make(map[string]*File)
	c.listeners = nil
	watcher := c.watcher
	c.watcher = nil
	c.mu.Unlock()

	for _, f := range files {
		f.Reset(true)
	}
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
