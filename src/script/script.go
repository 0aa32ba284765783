// Package script runs the post-build script and the app server process.
package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/pboueri/assetc/src/logger"
)

// Bell rings the terminal when a script writes to stderr.
const Bell = "\x07"

// Runner executes a configured command after each build.
type Runner struct {
	command string
	args    []string
	dir     string
	env     []string
	stdout  io.Writer
	stderr  io.Writer
}

// NewRunner splits command with shell quoting rules.
func NewRunner(command, dir string) (*Runner, error) {
	args, err := split(command)
	if err != nil {
		return nil, err
	}
	return &Runner{
		command: command,
		args:    args,
		dir:     dir,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}, nil
}

// SetOutput redirects the script's stdout and stderr.
func (r *Runner) SetOutput(stdout, stderr io.Writer) {
	r.stdout = stdout
	r.stderr = stderr
}

// SetEnv adds variables to the inherited environment.
func (r *Runner) SetEnv(vars map[string]string) {
	r.env = envList(vars)
}

// Run executes the script and waits for it. Output on stderr rings the bell
// once the script exits.
func (r *Runner) Run(ctx context.Context) error {
	logger.Info("executing script...")
	logger.Debug("execute: %s", logger.Strong(r.command))

	cmd := exec.CommandContext(ctx, r.args[0], r.args[1:]...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdout = r.stdout
	stderr := &flagWriter{w: r.stderr}
	cmd.Stderr = stderr

	err := cmd.Run()
	if stderr.wrote() {
		fmt.Fprint(r.stderr, Bell)
	}
	if err != nil {
		return fmt.Errorf("script %q failed: %w", r.command, err)
	}
	return nil
}

// flagWriter records whether anything was written.
type flagWriter struct {
	mu      sync.Mutex
	w       io.Writer
	written bool
}

func (f *flagWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(p) > 0 {
		f.written = true
	}
	return f.w.Write(p)
}

func (f *flagWriter) wrote() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func split(command string) ([]string, error) {
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

func envList(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
