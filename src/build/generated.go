package build

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/pboueri/assetc/src/config"
	"github.com/pboueri/assetc/src/file"
	"github.com/pboueri/assetc/src/logger"
)

// processGeneratedBuild fills the dummy input of a generated build with
// files collected from the child builds, then reruns its write stage.
func (b *Build) processGeneratedBuild(ctx context.Context) error {
	if b.dummy == nil {
		return nil
	}

	var files []*file.File
	switch b.target.Generate.Mode {
	case config.GeneratePattern:
		files = b.patternFiles(b.target.Generate.Pattern)
	default:
		files = b.sharedFiles()
	}
	logger.Debug("generated build %s collected %d files", b.ID(), len(files))
	if len(files) == 0 {
		return nil
	}

	b.dummy.AddDependencies(files)
	b.dummy.ClearWorkflow()
	if _, err := b.dummy.Run(ctx, b.steps(b.dummy, stageWrite), b.opts); err != nil {
		return &Error{BuildID: b.ID(), Path: b.dummy.Relpath(), Err: err}
	}

	seen := make(map[*file.File]bool, len(b.referencedFiles))
	for _, f := range b.referencedFiles {
		seen[f] = true
	}
	for _, f := range b.dummy.GetAllDependencies() {
		if !seen[f] {
			seen[f] = true
			b.referencedFiles = append(b.referencedFiles, f)
		}
	}
	return nil
}

// childReferences returns, per input of every descendant build, the files
// its references resolved to.
func (b *Build) childReferences() [][]*file.File {
	var out [][]*file.File
	for _, child := range b.builds {
		child.Walk(func(d *Build) {
			for _, in := range d.inputFiles {
				var refs []*file.File
				for _, ref := range in.References() {
					if f, ok := ref.Source.(*file.File); ok && f != nil {
						refs = append(refs, f)
					}
				}
				out = append(out, refs)
			}
		})
	}
	return out
}

// sharedFiles returns files referenced by more than one child input, in
// the order the second reference was seen.
func (b *Build) sharedFiles() []*file.File {
	counts := make(map[string]int)
	var shared []*file.File
	for _, refs := range b.childReferences() {
		seen := make(map[string]bool, len(refs))
		for _, f := range refs {
			if seen[f.ID()] {
				continue
			}
			seen[f.ID()] = true
			counts[f.ID()]++
			if counts[f.ID()] == 2 {
				shared = append(shared, f)
			}
		}
	}
	return shared
}

// patternFiles returns unique referenced files whose path matches pattern.
// Matching ignores case; patterns without a separator match base names.
func (b *Build) patternFiles(pattern string) []*file.File {
	pattern = strings.ToLower(filepath.ToSlash(pattern))
	baseOnly := !strings.Contains(pattern, "/")

	seen := make(map[*file.File]bool)
	var matched []*file.File
	for _, refs := range b.childReferences() {
		for _, f := range refs {
			if seen[f] {
				continue
			}
			seen[f] = true
			path := strings.ToLower(filepath.ToSlash(f.Filepath()))
			if baseOnly {
				path = filepath.Base(path)
			}
			if ok, _ := doublestar.Match(pattern, path); ok {
				matched = append(matched, f)
			}
		}
	}
	return matched
}
