package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pboueri/assetc/src/logger"
)

const stopTimeout = 5 * time.Second

// Server supervises a long running app server process.
type Server struct {
	command string
	args    []string
	dir     string
	env     []string
	stdout  io.Writer
	stderr  io.Writer

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewServer(command, dir string, env map[string]string) (*Server, error) {
	args, err := split(command)
	if err != nil {
		return nil, err
	}
	return &Server{
		command: command,
		args:    args,
		dir:     dir,
		env:     envList(env),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}, nil
}

// SetOutput redirects the process output.
func (s *Server) SetOutput(stdout, stderr io.Writer) {
	s.stdout = stdout
	s.stderr = stderr
}

// Start launches the process unless it is already running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	cmd.Dir = s.dir
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server %q: %w", s.command, err)
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Debug("server %s exited: %v", s.command, err)
		}
		close(done)
	}()

	s.cmd = cmd
	s.done = done
	logger.Info("started server %s", logger.Strong(s.command))
	return nil
}

// Restart stops the running process and starts a new one.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(ctx)
}

// Stop interrupts the process, killing it if it does not exit in time.
func (s *Server) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd, s.done = nil, nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	select {
	case <-done:
	case <-time.After(stopTimeout):
		if err := cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to stop server %q: %w", s.command, err)
		}
		<-done
	}
	return nil
}

// Running reports whether the process is alive.
func (s *Server) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// PID returns the process id, 0 when not running.
func (s *Server) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *Server) Close() error {
	return s.Stop()
}
