package resolve

import (
	"path/filepath"
	"strings"

	"github.com/pboueri/assetc/src/util"
)

const nodeModules = "node_modules"

// Identify returns the logical id for an absolute path: the forward-slash
// path relative to the first containing source directory, or for installed
// packages "name/rel#version".
func (r *Resolver) Identify(path string) string {
	if id, ok := r.identifyPackage(path); ok {
		return id
	}
	for _, source := range r.sources {
		if util.IsInDir(source, path) {
			if rel, err := filepath.Rel(source, path); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	if rel, err := filepath.Rel(r.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(filepath.Base(path))
}

func (r *Resolver) identifyPackage(path string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(path), "/")
	idx := -1
	for i, part := range parts {
		if part == nodeModules {
			idx = i
		}
	}
	if idx < 0 || idx+1 >= len(parts) {
		return "", false
	}

	nameParts := 1
	if strings.HasPrefix(parts[idx+1], "@") && idx+2 < len(parts) {
		nameParts = 2
	}
	pkgEnd := idx + 1 + nameParts
	pkgDir := filepath.FromSlash(strings.Join(parts[:pkgEnd], "/"))

	id := strings.Join(parts[idx+1:], "/")
	version := ""
	if pkg, err := readPackage(pkgDir); err == nil {
		version = pkg.version
	}
	if version == "" {
		return id, true
	}

	r.mu.Lock()
	if r.versions[id] == nil {
		r.versions[id] = make(map[string]bool)
	}
	r.versions[id][version] = true
	r.mu.Unlock()

	return id + VersionDelimiter + version, true
}

// HasMultipleVersions reports whether more than one version of the package
// file behind id has been identified.
func (r *Resolver) HasMultipleVersions(id string) bool {
	base := StripVersion(id)
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.versions[base]) > 1
}

// StripVersion removes the version suffix from id.
func StripVersion(id string) string {
	if idx := strings.Index(id, VersionDelimiter); idx >= 0 {
		return id[:idx]
	}
	return id
}

// PackageName returns the package portion of a package id.
func PackageName(id string) string {
	parts := strings.Split(StripVersion(id), "/")
	if strings.HasPrefix(parts[0], "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
