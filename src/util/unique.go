package util

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar"
)

// Tokens recognised in output filenames.
const (
	HashToken = "%hash%"
	DateToken = "%date%"
)

// IsUniqueFilepath reports whether filepath contains a hash or date token.
func IsUniqueFilepath(filepath string) bool {
	return strings.Contains(filepath, HashToken) || strings.Contains(filepath, DateToken)
}

// UniquePattern turns a tokenised filepath into a glob matching any
// previously generated variant.
func UniquePattern(path string) string {
	dir, base := filepath.Split(path)
	base = strings.NewReplacer("*", "\\*", "?", "\\?", "[", "\\[", "{", "\\{").Replace(base)
	base = strings.NewReplacer(HashToken, "*", DateToken, "*").Replace(base)
	return dir + base
}

// FindUniqueFilepath returns the first existing file generated from the
// tokenised path, or "" if none exists.
func FindUniqueFilepath(path string) string {
	matches := FindUniqueFilepaths(path)
	if len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// FindUniqueFilepaths returns every existing file generated from the
// tokenised path.
func FindUniqueFilepaths(path string) []string {
	matches, err := doublestar.Glob(UniquePattern(path))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// GenerateUniqueFilepath replaces tokens in path. %hash% becomes the md5 of
// content and %date% the current unix time in milliseconds.
func GenerateUniqueFilepath(path, content string) string {
	if strings.Contains(path, HashToken) {
		path = strings.ReplaceAll(path, HashToken, Hash(content))
	}
	if strings.Contains(path, DateToken) {
		path = strings.ReplaceAll(path, DateToken, strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	return path
}

// Hash returns the hex md5 digest of content.
func Hash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}
