package processor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/kballard/go-shellquote"
	"github.com/pboueri/assetc/src"
	"github.com/pboueri/assetc/src/util"
)

// CompilerFunc compiles a single file.
type CompilerFunc func(ctx context.Context, path, content string, opts CompileOptions) (string, error)

// Registry dispatches compilation by source extension, falling back to the
// file type. Unregistered sources pass through unchanged.
type Registry struct {
	mu     sync.RWMutex
	byExt  map[string]CompilerFunc
	byType map[src.FileType]CompilerFunc
}

func NewRegistry() *Registry {
	r := &Registry{
		byExt:  make(map[string]CompilerFunc),
		byType: make(map[src.FileType]CompilerFunc),
	}
	r.byType[src.FileTypeHTML] = CompileTemplate
	return r
}

// Register binds fn to a source extension (without dot).
func (r *Registry) Register(ext string, fn CompilerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byExt[strings.TrimPrefix(ext, ".")] = fn
}

// RegisterCommand binds an external command to a source extension. The
// command receives content on stdin and must print the result on stdout.
func (r *Registry) RegisterCommand(ext, command string) error {
	args, err := shellquote.Split(command)
	if err != nil {
		return fmt.Errorf("failed to parse compiler command %q: %w", command, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("empty compiler command for .%s", ext)
	}
	r.Register(ext, commandCompiler(args))
	return nil
}

func (r *Registry) Compile(ctx context.Context, path, content string, opts CompileOptions) (string, error) {
	r.mu.RLock()
	fn, ok := r.byExt[util.Extension(path)]
	if !ok {
		fn, ok = r.byType[opts.Type]
	}
	r.mu.RUnlock()

	if !ok {
		return content, nil
	}
	return fn(ctx, path, content, opts)
}

func commandCompiler(args []string) CompilerFunc {
	return func(ctx context.Context, path, content string, opts CompileOptions) (string, error) {
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Dir = filepath.Dir(path)
		cmd.Stdin = strings.NewReader(content)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("failed to compile %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), nil
	}
}

// CompileTemplate renders html sources as text templates. Templates may call
// {{ include "path" }} for any resolved include and read sidecar data as dot.
func CompileTemplate(ctx context.Context, path, content string, opts CompileOptions) (string, error) {
	dir := filepath.Dir(path)
	funcs := template.FuncMap{
		"include": func(name string) (string, error) {
			for _, inc := range opts.Includes {
				if inc.ID == name || inc.Filepath == filepath.Join(dir, name) || util.RemoveExtension(inc.ID) == name {
					return inc.Content, nil
				}
			}
			return "", fmt.Errorf("include %q not found", name)
		},
	}

	tmpl, err := template.New(filepath.Base(path)).Funcs(funcs).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", path, err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, opts.Data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", path, err)
	}
	return buf.String(), nil
}
