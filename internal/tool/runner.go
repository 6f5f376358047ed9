package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/nao1215/scantpaper/internal/model"
)

// Command is one external tool invocation.
type Command struct {
	// Tool is the logical tool name, e.g. "tesseract". It is mapped to an
	// executable through the runner's tool paths.
	Tool string

	// Args is the argument vector, without the program name.
	Args []string

	// Dir is the working directory, normally the session directory.
	Dir string

	// Env is appended to the current environment.
	Env []string

	// Stdin is connected to the process if set.
	Stdin io.Reader
}

// Result is the captured output of a successful run.
type Result struct {
	Stdout   []byte
	Stderr   string
	Duration time.Duration
}

// Runner executes external tools.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Exec is the Runner that starts real processes.
type Exec struct {
	paths    map[string]string
	timeout  time.Duration
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// Option configures an Exec.
type Option func(*Exec)

// WithTimeout bounds every run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Exec) {
		e.timeout = d
	}
}

// WithToolPaths maps logical tool names to executables.
func WithToolPaths(paths map[string]string) Option {
	return func(e *Exec) {
		for k, v := range paths {
			e.paths[k] = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exec) {
		e.logger = logger
	}
}

// NewExec creates an Exec. Without WithTimeout runs are not bounded.
func NewExec(opts ...Option) *Exec {
	e := &Exec{
		paths:    make(map[string]string),
		logger:   slog.Default(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Executable resolves a logical tool name to an executable path.
func (e *Exec) Executable(tool string) (string, error) {
	name := tool
	if p, ok := e.paths[tool]; ok && p != "" {
		name = p
	}
	path, err := e.lookPath(name)
	if err != nil {
		return "", &model.DependencyError{Tool: tool}
	}
	return path, nil
}

// Run starts the tool, waits for it and classifies the outcome.
func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	path, err := e.Executable(c.Tool)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("running tool", "tool", c.Tool, "path", path, "args", c.Args, "dir", c.Dir)
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		// the parent context decides between cancel and timeout
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%s: %w: %w", c.Tool, model.ErrCancelled, ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%s did not finish within %s: %w", c.Tool, e.timeout, model.ErrTimeout)
		}
		return nil, subprocessError(c, err, stderr.String())
	}

	e.logger.Debug("tool finished", "tool", c.Tool, "duration", elapsed)
	return &Result{Stdout: stdout.Bytes(), Stderr: stderr.String(), Duration: elapsed}, nil
}

func subprocessError(c Command, err error, stderr string) error {
	se := &model.SubprocessError{Tool: c.Tool, Args: c.Args, ExitCode: -1, Stderr: stderr}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// start failure: permissions, bad working directory
		se.Stderr = err.Error()
		return se
	}
	se.ExitCode = exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		se.Signal = ws.Signal().String()
	}
	return se
}
