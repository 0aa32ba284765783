package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ConfigFilenames are the project config names searched for, in order.
var ConfigFilenames = []string{"assetc.yaml", "assetc.yml", "assetc.json", "package.json"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// EnsureFileDir ensures the directory for a file path exists
func EnsureFileDir(filePath string) error {
	return EnsureDir(filepath.Dir(filePath))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDirectory checks if a path is a directory
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// MakeAbsolute converts a relative path to absolute based on a root directory
func MakeAbsolute(path, root string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// Extension returns the extension of filename without the leading dot.
func Extension(filename string) string {
	return strings.TrimPrefix(filepath.Ext(filename), ".")
}

// RemoveExtension removes the file extension from a filename
func RemoveExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext != "" {
		return filename[:len(filename)-len(ext)]
	}
	return filename
}

// SwapExtension replaces the extension of filename with ext (no dot).
func SwapExtension(filename, ext string) string {
	if ext == "" {
		return filename
	}
	return RemoveExtension(filename) + "." + ext
}

// IsInDir reports whether path is dir or lies beneath it.
func IsInDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// FindFiles recursively lists regular files under root whose extension is in
// extensions. An empty extension list matches everything. Results are sorted.
func FindFiles(root string, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.TrimPrefix(ext, ".")] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(allowed) == 0 || allowed[Extension(path)] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// FindProjectRoot walks up from startPath looking for a project config file.
// It returns the directory and the config file found there.
func FindProjectRoot(startPath string) (string, string, error) {
	current := startPath

	for {
		for _, name := range ConfigFilenames {
			candidate := filepath.Join(current, name)
			if !FileExists(candidate) {
				continue
			}
			if name == "package.json" && !hasPackageConfig(candidate) {
				continue
			}
			return current, candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", "", fmt.Errorf("no assetc config found in %s or any parent directory", startPath)
}

func hasPackageConfig(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), `"assetc"`)
}

// RelativeToCwd returns path relative to the working directory when possible.
func RelativeToCwd(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
