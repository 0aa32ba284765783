// Package resolve maps literal dependency paths to files on disk and derives
// stable logical ids for them.
package resolve

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/util"
)

// VersionDelimiter separates a package id from its version.
const VersionDelimiter = "#"

const defaultCacheSize = 4096

// DefaultFileExtensions maps each type to the source extensions it accepts.
var DefaultFileExtensions = map[src.FileType][]string{
	src.FileTypeJS:   {"js", "mjs", "cjs"},
	src.FileTypeCSS:  {"css"},
	src.FileTypeHTML: {"html", "htm", "tmpl"},
	src.FileTypeJSON: {"json"},
}

// Options configure a Resolver.
type Options struct {
	// Root is the project directory. Ids of files outside every source
	// are made relative to it.
	Root string
	// Sources are directories searched for bare paths, in order.
	Sources []string
	// FileExtensions overrides DefaultFileExtensions per type.
	FileExtensions map[src.FileType][]string
	CacheSize      int
}

// Resolver resolves literal paths relative to a referencing file.
type Resolver struct {
	root       string
	sources    []string
	extensions map[src.FileType][]string
	byExt      map[string]src.FileType
	cache      *lru.Cache[string, string]

	mu       sync.Mutex
	versions map[string]map[string]bool
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}

	extensions := make(map[src.FileType][]string, len(DefaultFileExtensions))
	for typ, exts := range DefaultFileExtensions {
		extensions[typ] = exts
	}
	for typ, exts := range opts.FileExtensions {
		extensions[typ] = exts
	}

	byExt := make(map[string]src.FileType)
	for _, typ := range src.FileTypes {
		for _, ext := range extensions[typ] {
			ext = strings.TrimPrefix(ext, ".")
			if _, taken := byExt[ext]; !taken {
				byExt[ext] = typ
			}
		}
	}

	root := opts.Root
	if root == "" {
		root, _ = os.Getwd()
	}

	return &Resolver{
		root:       root,
		sources:    opts.Sources,
		extensions: extensions,
		byExt:      byExt,
		cache:      cache,
		versions:   make(map[string]map[string]bool),
	}, nil
}

// Sources returns the configured source directories.
func (r *Resolver) Sources() []string {
	return r.sources
}

// Extensions returns every known source extension, sorted.
func (r *Resolver) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Type returns the file type for path based on its extension. Unknown
// extensions are assets.
func (r *Resolver) Type(path string) src.FileType {
	if typ, ok := r.byExt[util.Extension(path)]; ok {
		return typ
	}
	return src.FileTypeAsset
}

// Clear drops cached resolutions.
func (r *Resolver) Clear() {
	r.cache.Purge()
}

// Resolve returns the absolute path literal refers to from the file at
// from, or false when nothing matches.
func (r *Resolver) Resolve(from, literal string) (string, bool) {
	if literal == "" {
		return "", false
	}
	key := from + "\x00" + literal
	if resolved, ok := r.cache.Get(key); ok {
		return resolved, resolved != ""
	}

	resolved := r.resolve(from, literal)
	r.cache.Add(key, resolved)
	return resolved, resolved != ""
}

func (r *Resolver) resolve(from, literal string) string {
	dir := filepath.Dir(from)
	candidates := r.candidateExtensions(r.Type(from))

	if isRelative(literal) || filepath.IsAbs(literal) {
		base := literal
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, literal)
		}
		return r.tryPath(base, candidates)
	}

	// Style and template references are commonly written bare but relative.
	if found := r.tryPath(filepath.Join(dir, literal), candidates); found != "" {
		return found
	}
	for _, source := range r.sources {
		if found := r.tryPath(filepath.Join(source, literal), candidates); found != "" {
			return found
		}
	}
	for current := dir; ; {
		if found := r.tryPath(filepath.Join(current, "node_modules", literal), candidates); found != "" {
			return found
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return ""
}

// candidateExtensions orders extensions with the referencing type's first.
func (r *Resolver) candidateExtensions(typ src.FileType) []string {
	var exts []string
	seen := make(map[string]bool)
	add := func(list []string) {
		for _, ext := range list {
			ext = strings.TrimPrefix(ext, ".")
			if !seen[ext] {
				seen[ext] = true
				exts = append(exts, ext)
			}
		}
	}
	add(r.extensions[typ])
	for _, t := range src.FileTypes {
		add(r.extensions[t])
	}
	return exts
}

func (r *Resolver) tryPath(base string, exts []string) string {
	if info, err := os.Stat(base); err == nil && !info.IsDir() {
		return base
	}
	for _, ext := range exts {
		candidate := base + "." + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	if !util.IsDirectory(base) {
		return ""
	}

	if pkg, err := readPackage(base); err == nil {
		if pkg.disabled {
			return ""
		}
		if pkg.entry != "" {
			if found := r.tryPath(filepath.Join(base, pkg.entry), exts); found != "" {
				return found
			}
		}
	}
	for _, ext := range exts {
		candidate := filepath.Join(base, "index."+ext)
		if util.FileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func isRelative(literal string) bool {
	return literal == "." || literal == ".." ||
		strings.HasPrefix(literal, "./") || strings.HasPrefix(literal, "../")
}

type packageInfo struct {
	name     string
	version  string
	entry    string
	disabled bool
}

type packageJSON struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Browser json.RawMessage `json:"browser"`
}

func readPackage(dir string) (*packageInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	var raw packageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	info := &packageInfo{name: raw.Name, version: raw.Version, entry: raw.Main}
	switch browser := strings.TrimSpace(string(raw.Browser)); {
	case browser == "false":
		info.disabled = true
	case strings.HasPrefix(browser, `"`):
		var entry string
		if err := json.Unmarshal(raw.Browser, &entry); err == nil && entry != "" {
			info.entry = entry
		}
	}
	return info, nil
}
