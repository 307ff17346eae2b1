// Package runner executes external commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/deploy"
)

// Runner executes a command and returns its captured output
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// Result describes a completed command
type Result struct {
	Args      []string
	ExitCode  int
	Stdout    string
	Stderr    string
	Simulated bool
}

// Options configures an ExecRunner
type Options struct {
	// Dir is the working directory for commands. Empty means the current one.
	Dir string

	// Env is added on top of the current process environment
	Env map[string]string

	// Simulate skips execution and returns empty successful results
	Simulate bool

	Logger *slog.Logger

	// Secrets are replaced with "***" wherever a command line is logged
	Secrets []string
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	dir      string
	env      []string
	simulate bool
	logger   *slog.Logger
	redactor *strings.Replacer
}

// New returns a new ExecRunner
func New(opts Options) *ExecRunner {
	if opts.Logger == nil {
		opts.Logger = deploy.NewDiscardLogger()
	}
	var env []string
	if len(opts.Env) > 0 {
		keys := make([]string, 0, len(opts.Env))
		for key := range opts.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		env = os.Environ()
		for _, key := range keys {
			env = append(env, fmt.Sprintf("%s=%s", key, opts.Env[key]))
		}
	}
	return &ExecRunner{
		dir:      opts.Dir,
		env:      env,
		simulate: opts.Simulate,
		logger:   opts.Logger,
		redactor: newRedactor(opts.Secrets),
	}
}

// Redact masks configured secrets in s
func (r *ExecRunner) Redact(s string) string {
	return r.redactor.Replace(s)
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("command cannot be empty")
	}
	line := r.Redact(strings.Join(args, " "))

	if r.simulate {
		r.logger.Info("[dry run] would execute", "command", line)
		return &Result{Args: args, Simulated: true}, nil
	}
	r.logger.Debug("running command", "command", line)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.dir
	if r.env != nil {
		cmd.Env = r.env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &Result{
		Args:   args,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command %q: %w", line, err)
		}
		result.ExitCode = exitErr.ExitCode()
		perr := &ProcessError{
			Command:  line,
			ExitCode: result.ExitCode,
			Stdout:   r.Redact(result.Stdout),
			Stderr:   r.Redact(result.Stderr),
		}
		r.logger.Error("command failed",
			"command", line,
			"exit_code", perr.ExitCode,
			"stdout", perr.Stdout,
			"stderr", perr.Stderr)
		return result, deploy.WrapError(deploy.ErrorKindProcess, perr)
	}
	return result, nil
}

// ProcessError reports a command that exited non-zero
type ProcessError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + lastLine(stderr)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func newRedactor(secrets []string) *strings.Replacer {
	var pairs []string
	for _, secret := range secrets {
		if secret != "" {
			pairs = append(pairs, secret, "***")
		}
	}
	return strings.NewReplacer(pairs...)
}

var _ Runner = (*ExecRunner)(nil)
