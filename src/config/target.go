package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/util"
)

// GenerateMode selects which files a generated build collects from its
// child builds.
type GenerateMode string

const (
	// GenerateShared collects files referenced by more than one child input.
	GenerateShared GenerateMode = "shared"
	// GeneratePattern collects referenced files matching a glob.
	GeneratePattern GenerateMode = "pattern"
)

type Generate struct {
	Mode    GenerateMode `yaml:"mode"`
	Pattern string       `yaml:"pattern,omitempty"`
}

// Target is a normalised build definition: absolute input paths paired
// with output paths, resolved flags and child targets.
type Target struct {
	ID    string
	Label string
	Index int
	Level int

	// Input and Output as written in the config, for display.
	Input  string
	Output string

	// Inputs are absolute; Outputs[i] is the output of Inputs[i], "" when
	// the input is processed but not written.
	Inputs  []string
	Outputs []string

	Type        src.FileType // generated builds only
	Batch       bool
	Bundle      bool
	Boilerplate bool
	Bootstrap   bool
	AppServer   bool
	WatchOnly   bool
	Generate    *Generate

	// ChildInputs are the inputs of every descendant target.
	ChildInputs []string
	Targets     []*Target
}

// OutputFor returns the output path paired with input.
func (t *Target) OutputFor(input string) string {
	for i, in := range t.Inputs {
		if in == input {
			return t.Outputs[i]
		}
	}
	return ""
}

// HasOutput reports whether any input is written.
func (t *Target) HasOutput() bool {
	for _, out := range t.Outputs {
		if out != "" {
			return true
		}
	}
	return false
}

// Walk calls fn for t and every descendant, depth first.
func (t *Target) Walk(fn func(*Target)) {
	fn(t)
	for _, child := range t.Targets {
		child.Walk(fn)
	}
}

// Typer maps paths to file types and lists known source extensions.
type Typer interface {
	Type(path string) src.FileType
	Extensions() []string
}

// Targets normalises the configured builds into a target tree.
func (c *Config) Targets(types Typer) ([]*Target, error) {
	return c.normalizeBuilds(c.Build, nil, types)
}

func (c *Config) normalizeBuilds(builds []BuildConfig, parent *Target, types Typer) ([]*Target, error) {
	targets := make([]*Target, 0, len(builds))
	for i, bc := range builds {
		t, err := c.normalizeBuild(bc, i, parent, types)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (c *Config) normalizeBuild(bc BuildConfig, index int, parent *Target, types Typer) (*Target, error) {
	t := &Target{
		ID:          bc.Label,
		Label:       bc.Label,
		Index:       index,
		Level:       1,
		Input:       strings.Join(bc.Input, ", "),
		Output:      strings.Join(bc.Output, ", "),
		Boilerplate: bc.Boilerplate,
		Bootstrap:   bc.Bootstrap,
		AppServer:   bc.AppServer,
		WatchOnly:   bc.WatchOnly,
		Generate:    bc.Generate,
	}
	if parent != nil {
		t.Level = parent.Level + 1
	}
	if t.ID == "" {
		t.ID = strconv.Itoa(index)
		if parent != nil {
			t.ID = parent.ID + "-" + t.ID
		}
	}

	children, err := c.normalizeBuilds(bc.Build, t, types)
	if err != nil {
		return nil, err
	}
	t.Targets = children
	for _, child := range children {
		t.ChildInputs = append(t.ChildInputs, child.Inputs...)
		t.ChildInputs = append(t.ChildInputs, child.ChildInputs...)
	}

	if bc.Generate != nil {
		if err := c.normalizeGenerated(t, bc, types); err != nil {
			return nil, err
		}
		return t, nil
	}

	if len(bc.Output) > 1 && len(bc.Output) != len(bc.Input) {
		return nil, fmt.Errorf("%w: build %s has %d inputs but %d outputs", ErrInvalidConfig, t.ID, len(bc.Input), len(bc.Output))
	}

	for i, in := range bc.Input {
		files, base, batch, err := c.expandInput(in, types.Extensions(), t.ChildInputs)
		if err != nil {
			return nil, fmt.Errorf("%w: build %s: %v", ErrInvalidConfig, t.ID, err)
		}
		t.Batch = t.Batch || batch

		out := ""
		switch {
		case len(bc.Output) == 1:
			out = c.Abs(bc.Output[0])
		case len(bc.Output) > 1:
			out = c.Abs(bc.Output[i])
		}
		for _, f := range files {
			t.Inputs = append(t.Inputs, f)
			t.Outputs = append(t.Outputs, outputPath(f, base, out, types))
		}
	}
	if len(bc.Input) > 1 {
		t.Batch = true
	}

	if len(bc.Output) == 1 && isFileOutput(c.Abs(bc.Output[0])) && len(t.Inputs) > 1 {
		return nil, fmt.Errorf("%w: build %s writes %d inputs to the single file %s", ErrInvalidConfig, t.ID, len(t.Inputs), bc.Output[0])
	}

	if bc.Bundle != nil {
		t.Bundle = *bc.Bundle
	} else {
		t.Bundle = !t.Batch && len(t.Inputs) == 1 && types.Type(t.Inputs[0]) == src.FileTypeJS
	}
	return t, nil
}

func (c *Config) normalizeGenerated(t *Target, bc BuildConfig, types Typer) error {
	switch bc.Generate.Mode {
	case GenerateShared:
	case GeneratePattern:
		if bc.Generate.Pattern == "" {
			return fmt.Errorf("%w: generated build %s needs a pattern", ErrInvalidConfig, t.ID)
		}
		if _, err := doublestar.Match(bc.Generate.Pattern, bc.Generate.Pattern); err != nil {
			return fmt.Errorf("%w: generated build %s has an invalid pattern %q", ErrInvalidConfig, t.ID, bc.Generate.Pattern)
		}
	default:
		return fmt.Errorf("%w: generated build %s has unknown mode %q", ErrInvalidConfig, t.ID, bc.Generate.Mode)
	}
	if len(bc.Input) > 0 {
		return fmt.Errorf("%w: generated build %s cannot declare inputs", ErrInvalidConfig, t.ID)
	}
	if len(bc.Output) != 1 || !isFileOutput(c.Abs(bc.Output[0])) {
		return fmt.Errorf("%w: generated build %s needs a single output file", ErrInvalidConfig, t.ID)
	}
	if len(t.Targets) == 0 {
		return fmt.Errorf("%w: generated build %s has no child builds", ErrInvalidConfig, t.ID)
	}

	out := c.Abs(bc.Output[0])
	typ := types.Type(out)
	if bc.Type != "" {
		parsed, err := parseType(bc.Type)
		if err != nil {
			return err
		}
		typ = parsed
	}
	t.Inputs = []string{out}
	t.Outputs = []string{out}
	t.Type = typ
	t.Bundle = typ == src.FileTypeJS
	return nil
}

// expandInput returns the files an input names, the directory their output
// paths are made relative to, and whether the input is a batch.
func (c *Config) expandInput(input string, exts []string, exclude []string) ([]string, string, bool, error) {
	path := c.Abs(input)

	if hasMeta(input) {
		matches, err := doublestar.Glob(path)
		if err != nil {
			return nil, "", false, fmt.Errorf("invalid input pattern %q: %w", input, err)
		}
		allowed := make(map[string]bool, len(exts))
		for _, ext := range exts {
			allowed[ext] = true
		}
		var files []string
		for _, m := range matches {
			if util.IsDirectory(m) || !allowed[util.Extension(m)] || contains(exclude, m) {
				continue
			}
			files = append(files, m)
		}
		return files, globBase(path), true, nil
	}

	if util.IsDirectory(path) {
		found, err := util.FindFiles(path, exts)
		if err != nil {
			return nil, "", false, err
		}
		var files []string
		for _, f := range found {
			if !contains(exclude, f) {
				files = append(files, f)
			}
		}
		return files, path, true, nil
	}

	// Missing files are kept so the build can report them.
	return []string{path}, filepath.Dir(path), false, nil
}

func outputPath(input, base, output string, types Typer) string {
	if output == "" {
		return ""
	}
	if isFileOutput(output) {
		return output
	}
	rel, err := filepath.Rel(base, input)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(input)
	}
	if ext := types.Type(input).Extension(); ext != "" {
		rel = util.SwapExtension(rel, ext)
	}
	return filepath.Join(output, rel)
}

func isFileOutput(path string) bool {
	return util.Extension(path) != "" && !util.IsDirectory(path)
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

func globBase(pattern string) string {
	dir := pattern
	for hasMeta(dir) {
		dir = filepath.Dir(dir)
	}
	return dir
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FilterTargets selects root targets by label or by input glob. With
// invert, the unmatched targets are returned instead.
func FilterTargets(targets []*Target, patterns []string, invert bool) []*Target {
	if len(patterns) == 0 {
		return targets
	}
	var out []*Target
	for _, t := range targets {
		if matchesTarget(t, patterns) != invert {
			out = append(out, t)
		}
	}
	return out
}

func matchesTarget(t *Target, patterns []string) bool {
	for _, pattern := range patterns {
		if t.Label != "" && t.Label == pattern {
			return true
		}
		for _, in := range t.Inputs {
			rel := filepath.ToSlash(util.RelativeToCwd(in))
			if ok, _ := doublestar.Match(pattern, rel); ok {
				return true
			}
			if ok, _ := doublestar.Match(pattern, filepath.ToSlash(in)); ok {
				return true
			}
		}
	}
	return false
}
