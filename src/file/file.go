// Package file implements the File entity: one source artifact with its
// content layers, dependency edges and workflow state, plus the cache that
// owns every File of a build process.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/logger"
	"github.com/pboueri/assetc/src/processor"
	"github.com/pboueri/assetc/src/resolve"
	"github.com/pboueri/assetc/src/util"
)

// HeaderPrefix starts the comment stamped on generated output.
const HeaderPrefix = "generated by assetc"

var (
	reSelfBuilt = regexp.MustCompile(`/\* ` + HeaderPrefix)
	rePeerBuilt = regexp.MustCompile(`\[function\(require,\s?module,\s?exports\)`)
)

// File is a single source artifact. Fields are guarded by mu; runMu
// serialises workflow runs. A File never holds mu while calling into
// another File.
type File struct {
	runMu sync.Mutex
	mu    sync.RWMutex
	cache *Cache

	id        string
	filepath  string
	relpath   string
	extension string
	name      string
	virtual   bool

	typ             src.FileType
	content         string
	fileContent     string
	compiledContent string
	loaded          bool
	parsed          bool
	writepath       string

	dependencies []*File
	references   []*processor.Reference
	workflow     string

	isDependency bool
	isLocked     bool
	isSelfBuilt  bool
	isPeerBuilt  bool
}

func newFile(cache *Cache, id, path string, typ src.FileType) *File {
	f := &File{
		cache:     cache,
		id:        id,
		filepath:  path,
		relpath:   util.RelativeToCwd(path),
		extension: util.Extension(path),
		name:      filepath.Base(path),
		typ:       typ,
	}
	logger.Debug("created File instance %s", f.relpath)
	return f
}

func (f *File) ID() string       { return f.id }
func (f *File) Filepath() string { return f.filepath }
func (f *File) Relpath() string  { return f.relpath }
func (f *File) Name() string     { return f.name }

func (f *File) Type() src.FileType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.typ
}

// SetType assigns the type when the file has none (after a reset).
func (f *File) SetType(typ src.FileType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.typ == "" {
		f.typ = typ
	}
}

func (f *File) Content() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.content
}

// SetContent replaces the working content.
func (f *File) SetContent(content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content = content
}

// References returns the raw dependency references in source order.
func (f *File) References() []*processor.Reference {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*processor.Reference(nil), f.references...)
}

// Dependencies returns the direct dependencies.
func (f *File) Dependencies() []*File {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*File(nil), f.dependencies...)
}

// Workflow returns the key of the last step list run, "" after reset.
func (f *File) Workflow() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.workflow
}

func (f *File) IsDependency() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isDependency
}

func (f *File) SetDependency(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isDependency = v
}

func (f *File) IsLocked() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isLocked
}

func (f *File) SetLocked(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isLocked = v
}

// IsBuilt reports whether the loaded content was generated by this tool or
// a known peer bundler.
func (f *File) IsBuilt() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isSelfBuilt || f.isPeerBuilt
}

// IsWriteable reports whether the file produces its own output. Batch
// builds write every input, dependency or not.
func (f *File) IsWriteable(batch bool) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return batch || !f.isDependency
}

// Run executes steps in order and returns the file's dependencies. Running
// the same step list twice without a reset does nothing.
func (f *File) Run(ctx context.Context, steps []Step, opts Options) ([]*File, error) {
	f.runMu.Lock()
	defer f.runMu.Unlock()

	key := StepsKey(steps)
	f.mu.Lock()
	if len(steps) == 0 || f.workflow == key {
		f.mu.Unlock()
		return nil, nil
	}
	f.workflow = key
	f.mu.Unlock()

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := f.runStep(ctx, step, opts); err != nil {
			return nil, fmt.Errorf("%s %s: %w", step, f.relpath, err)
		}
	}
	return f.Dependencies(), nil
}

func (f *File) runStep(ctx context.Context, step Step, opts Options) error {
	switch step {
	case StepLoad:
		return f.Load()
	case StepCompile:
		return f.Compile(ctx)
	case StepParse:
		return f.Parse(opts)
	case StepInline:
		return f.Inline()
	case StepReplaceReferences:
		f.ReplaceReferences()
	case StepReplaceEnvironment:
		f.ReplaceEnvironment()
	case StepLint:
		f.Lint()
	case StepEscape:
		f.Escape()
	case StepCompress:
		return f.Compress()
	case StepWrap:
		f.Wrap(opts.Lazy)
	case StepConcat:
		f.Concat()
	default:
		return fmt.Errorf("unknown step %s", step)
	}
	return nil
}

// ClearWorkflow forgets the last step list so it can be run again.
func (f *File) ClearWorkflow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workflow = ""
}

// Load reads content from disk once; later calls restore the loaded text.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded || f.virtual {
		f.content = f.fileContent
		return nil
	}

	data, err := os.ReadFile(f.filepath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.relpath, err)
	}
	f.content = string(data)
	f.fileContent = f.content
	f.loaded = true
	f.isSelfBuilt = f.typ == src.FileTypeJS && reSelfBuilt.MatchString(f.content)
	f.isPeerBuilt = f.typ == src.FileTypeJS && rePeerBuilt.MatchString(f.content)
	logger.Debug("load: %s", f.relpath)
	return nil
}

// Compile runs the compiler once and caches the result.
func (f *File) Compile(ctx context.Context) error {
	f.mu.RLock()
	compiled, content, typ := f.compiledContent, f.content, f.typ
	f.mu.RUnlock()

	if compiled != "" {
		f.SetContent(compiled)
		return nil
	}

	opts := processor.CompileOptions{ID: f.id, Type: typ}
	switch typ {
	case src.FileTypeHTML:
		for _, dep := range f.GetAllDependencies() {
			opts.Includes = append(opts.Includes, processor.Include{
				ID:       resolve.StripVersion(dep.ID()),
				Content:  dep.Content(),
				Filepath: dep.Filepath(),
			})
		}
		opts.Data = f.sidecarData()
	case src.FileTypeCSS:
		opts.Paths = f.cache.Dirs()
	}

	out, err := f.cache.procs.Compiler.Compile(ctx, f.filepath, content, opts)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.content = out
	f.compiledContent = out
	f.mu.Unlock()
	logger.Debug("compile: %s", f.relpath)
	return nil
}

// sidecarData loads a same-named .json file next to the source, if any.
func (f *File) sidecarData() map[string]interface{} {
	path := util.SwapExtension(f.filepath, "json")
	if path == f.filepath || !util.FileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		logger.Warn("ignoring invalid template data %s: %v", util.RelativeToCwd(path), err)
		return nil
	}
	return out
}

// Parse extracts references, resolves them through the cache and adopts
// unlocked targets as dependencies. Built files are skipped.
func (f *File) Parse(opts Options) error {
	f.mu.RLock()
	skip := f.parsed || f.isSelfBuilt || f.isPeerBuilt
	content, typ := f.content, f.typ
	f.mu.RUnlock()
	if skip {
		return nil
	}

	refs, err := f.cache.procs.Parser.Parse(f.filepath, typ, content)
	if err != nil {
		return err
	}

	var (
		references   []*processor.Reference
		dependencies []*File
	)
	seen := make(map[*File]bool)
	for _, ref := range refs {
		dep := f.cache.Resolve(f.filepath, ref.Path)
		if dep == nil {
			if filepath.Ext(ref.Path) == ".json" {
				references = append(references, ref)
			}
			if !(typ == src.FileTypeJS && processor.IsNativeModule(ref.Path)) {
				logger.Warn("dependency %s for %s not found", logger.Strong(ref.Path), logger.Strong(f.id))
			}
			continue
		}

		ref.Source = dep
		references = append(references, ref)

		// Locked files belong to a parent build; check before adopting.
		if dep == f || dep.IsLocked() || opts.ignores(dep.Filepath()) || seen[dep] {
			continue
		}
		seen[dep] = true
		dep.SetDependency(true)
		dependencies = append(dependencies, dep)
	}

	f.mu.Lock()
	f.references = append(f.references, references...)
	for _, dep := range dependencies {
		if !containsFile(f.dependencies, dep) {
			f.dependencies = append(f.dependencies, dep)
		}
	}
	f.parsed = true
	f.mu.Unlock()

	logger.Debug("parse: %s", f.relpath)
	return nil
}

// AddDependencies adopts files directly, recording a placeholder reference
// for each. Used for synthesised files.
func (f *File) AddDependencies(deps []*File) {
	var placeholders []string
	var refs []*processor.Reference
	for _, dep := range deps {
		if dep == f {
			continue
		}
		placeholder := placeholderFor(f.Type(), dep.ID())
		refs = append(refs, &processor.Reference{Context: placeholder, Path: dep.Filepath(), Source: dep})
		if placeholder != "" {
			placeholders = append(placeholders, placeholder)
		}
		dep.SetDependency(true)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i, dep := range deps {
		if dep != f && !containsFile(f.dependencies, dep) {
			f.dependencies = append(f.dependencies, deps[i])
		}
	}
	f.references = append(f.references, refs...)
	f.content = strings.Join(placeholders, "\n")
	f.fileContent = f.content
}

func placeholderFor(typ src.FileType, id string) string {
	if typ == src.FileTypeCSS {
		return "@import '" + id + "';"
	}
	return ""
}

// Inline substitutes inlineable references. Html inlines the full
// reference closure, other types their direct references.
func (f *File) Inline() error {
	f.mu.RLock()
	content, typ := f.content, f.typ
	f.mu.RUnlock()

	var refs []*processor.Reference
	if typ == src.FileTypeHTML {
		refs = f.GetAllReferences()
	} else {
		refs = f.References()
	}

	out, err := f.cache.procs.Inliner.Inline(f.filepath, typ, content, refs)
	if err != nil {
		return err
	}
	f.SetContent(out)
	logger.Debug("inline: %s", f.relpath)
	return nil
}

// ReplaceReferences rewrites literal paths to resolved ids.
func (f *File) ReplaceReferences() {
	refs := f.References()
	f.mu.Lock()
	f.content = processor.ReplaceReferences(f.content, f.typ, refs)
	f.mu.Unlock()
	logger.Debug("replace dependency references: %s", f.relpath)
}

// ReplaceEnvironment inlines process.env values.
func (f *File) ReplaceEnvironment() {
	f.mu.Lock()
	f.content = processor.ReplaceEnvironment(f.content, f.cache.procs.Env)
	f.mu.Unlock()
	logger.Debug("replace environment vars: %s", f.relpath)
}

// Lint reports findings as warnings. Compiled sources, installed packages
// and built files are not linted.
func (f *File) Lint() []src.LintItem {
	f.mu.RLock()
	skip := f.extension != string(f.typ) ||
		strings.Contains(f.filepath, "node_modules") ||
		f.isSelfBuilt || f.isPeerBuilt
	content, typ := f.content, f.typ
	f.mu.RUnlock()
	if skip {
		return nil
	}

	items := f.cache.procs.Linter.Lint(typ, content)
	if len(items) == 0 {
		logger.Debug("lint: %s", f.relpath)
		return nil
	}

	logger.Warn("linting %s", logger.Strong(f.relpath))
	for _, item := range items {
		logger.Warn("  [line %d:%d] %s:", item.Line, item.Col, item.Reason)
		if item.Evidence != "" {
			logger.Warn("    %s", logger.Strong(item.Evidence))
		}
	}
	return items
}

// Escape quotes content as a string literal.
func (f *File) Escape() {
	f.mu.Lock()
	f.content = processor.Escape(f.content)
	f.mu.Unlock()
	logger.Debug("escape: %s", f.relpath)
}

// Compress minifies content.
func (f *File) Compress() error {
	f.mu.RLock()
	content, typ := f.content, f.typ
	f.mu.RUnlock()

	out, err := f.cache.procs.Compressor.Compress(typ, content)
	if err != nil {
		return err
	}
	f.SetContent(out)
	logger.Debug("compressed: %s", f.relpath)
	return nil
}

// Wrap registers content as a module. Content generated by this tool is
// already wrapped.
func (f *File) Wrap(lazy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isSelfBuilt {
		return
	}
	f.content = processor.Wrap(f.id, f.content, lazy)
	logger.Debug("wrap: %s", f.relpath)
}

// Concat prepends dependency content, deepest first.
func (f *File) Concat() {
	deps := f.GetAllDependencies()
	sources := make([]processor.Source, 0, len(deps))
	for i := len(deps) - 1; i >= 0; i-- {
		sources = append(sources, deps[i])
	}

	f.mu.Lock()
	f.content = processor.Concat(f.typ, f.content, sources)
	f.mu.Unlock()
	logger.Debug("concat: %s", f.relpath)
}

// PrepareForWrite records the output path used by Write.
func (f *File) PrepareForWrite(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writepath = path
}

// Writepath returns the prepared output path.
func (f *File) Writepath() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.writepath
}

// Write decorates content with optional boilerplate, header and bootstrap
// call and writes it to the prepared path.
func (f *File) Write(opts Options) (src.WriteResult, error) {
	f.mu.Lock()
	path := f.writepath
	if path == "" {
		f.mu.Unlock()
		return src.WriteResult{}, fmt.Errorf("no output path prepared for %s", f.relpath)
	}

	content := f.content
	if opts.Boilerplate {
		content = processor.Boilerplate + "\n" + content
	}
	if f.typ != src.FileTypeHTML {
		if header := processor.Comment(strings.TrimSpace(HeaderPrefix+" "+opts.Version), f.typ); header != "" {
			content = header + "\n\n" + content
		}
	}
	if opts.Bootstrap {
		content += "\nrequire('" + f.id + "');"
	}
	f.content = content
	typ := f.typ
	f.mu.Unlock()

	if util.IsUniqueFilepath(path) {
		path = util.GenerateUniqueFilepath(path, content)
	}

	if err := f.cache.procs.Writer.Write(path, content); err != nil {
		return src.WriteResult{}, err
	}
	logger.Debug("write: %s", util.RelativeToCwd(path))

	return src.WriteResult{Filepath: path, Content: content, Type: typ}, nil
}

// Reset clears per-run state. A soft reset keeps the loaded layers so the
// file can be reused; a hard reset forgets everything read from disk.
func (f *File) Reset(hard bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.workflow = ""
	f.isLocked = false
	f.isDependency = false
	f.dependencies = nil
	f.references = nil
	f.parsed = false
	f.writepath = ""
	if f.typ != src.FileTypeJS {
		// Non-script compilation depends on includes and paths.
		f.compiledContent = ""
		f.content = f.fileContent
	} else if f.compiledContent != "" {
		f.content = f.compiledContent
	} else {
		f.content = f.fileContent
	}
	if hard && !f.virtual {
		f.content = ""
		f.fileContent = ""
		f.compiledContent = ""
		f.loaded = false
		f.isSelfBuilt = false
		f.isPeerBuilt = false
	}
	if f.virtual {
		f.content = ""
		f.fileContent = ""
	} else {
		f.typ = ""
	}

	if hard {
		logger.Debug("reset (hard): %s", f.relpath)
	} else {
		logger.Debug("reset: %s", f.relpath)
	}
}

// GetAllDependencies returns the transitive dependency closure in discovery
// order, excluding the file itself.
func (f *File) GetAllDependencies() []*File {
	var out []*File
	visited := map[*File]bool{f: true}

	var add func(dep, ancestor *File)
	add = func(dep, ancestor *File) {
		if visited[dep] {
			return
		}
		visited[dep] = true
		out = append(out, dep)
		for _, child := range dep.Dependencies() {
			if child != ancestor {
				add(child, dep)
			}
		}
	}
	for _, dep := range f.Dependencies() {
		add(dep, f)
	}
	return out
}

// GetAllReferences returns the transitive reference closure in discovery
// order. Repeated references are kept; no file is descended twice.
func (f *File) GetAllReferences() []*processor.Reference {
	var out []*processor.Reference
	descended := map[*File]bool{f: true}

	var add func(refs []*processor.Reference)
	add = func(refs []*processor.Reference) {
		for _, ref := range refs {
			out = append(out, ref)
			dep, ok := ref.Source.(*File)
			if !ok || descended[dep] {
				continue
			}
			descended[dep] = true
			add(dep.References())
		}
	}
	add(f.References())
	return out
}

func containsFile(files []*File, f *File) bool {
	for _, existing := range files {
		if existing == f {
			return true
		}
	}
	return false
}
