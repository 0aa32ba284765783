// Package processor holds the pluggable capabilities a File runs through its
// workflow (compile, parse, inline, lint, compress, write) together with the
// pure text transforms (replace, wrap, escape, concat).
package processor

import (
	"context"
	"errors"

	"github.com/pboueri/assetc/src"
)

var (
	// ErrNoCompressor is returned when no minifier handles a file type.
	ErrNoCompressor = errors.New("no compressor for file type")
)

// Source is the read-only view of a processed file that capabilities need.
type Source interface {
	ID() string
	Filepath() string
	Type() src.FileType
	Content() string
	References() []*Reference
}

// Reference is one literal dependency occurrence in a file's content.
// Context is the exact text span, Path the literal path it names.
// Source is nil when the path could not be resolved.
type Reference struct {
	Context string
	Path    string
	Source  Source
}

// ID returns the resolved id, or "" when unresolved.
func (r *Reference) ID() string {
	if r.Source == nil {
		return ""
	}
	return r.Source.ID()
}

// Include is a template dependency exposed to compilers.
type Include struct {
	ID       string
	Content  string
	Filepath string
}

// CompileOptions are passed to compilers.
type CompileOptions struct {
	ID       string
	Type     src.FileType
	Includes []Include
	Paths    []string
	Data     map[string]interface{}
}

// Compiler transforms source content into its type's target language.
type Compiler interface {
	Compile(ctx context.Context, path, content string, opts CompileOptions) (string, error)
}

// Parser extracts dependency references from content.
type Parser interface {
	Parse(path string, typ src.FileType, content string) ([]*Reference, error)
}

// Inliner substitutes references with referenced content.
type Inliner interface {
	Inline(path string, typ src.FileType, content string, refs []*Reference) (string, error)
}

// Linter reports findings for content. A nil result means no findings.
type Linter interface {
	Lint(typ src.FileType, content string) []src.LintItem
}

// Compressor minifies content.
type Compressor interface {
	Compress(typ src.FileType, content string) (string, error)
}

// Writer persists output content.
type Writer interface {
	Write(path, content string) error
}

// Environment reads and writes variables visible to builds and scripts.
type Environment interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Set bundles the capabilities used by files.
type Set struct {
	Compiler   Compiler
	Parser     Parser
	Inliner    Inliner
	Linter     Linter
	Compressor Compressor
	Writer     Writer
	Env        Environment
}

// Defaults returns a Set wired with the built-in implementations.
func Defaults() *Set {
	return &Set{
		Compiler:   NewRegistry(),
		Parser:     NewRegexParser(),
		Inliner:    NewInliner(),
		Linter:     NewRuleLinter(),
		Compressor: NewMinifier(),
		Writer:     NewFileWriter(),
		Env:        NewOSEnvironment(),
	}
}
