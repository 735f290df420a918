package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/ports"
)

// Local runs snippets as a python subprocess in a scratch directory with a
// minimal environment. It is a fallback for hosts without Docker and gives
// no isolation beyond the timeout.
type Local struct {
	python  string
	timeout time.Duration
}

// Ensure Local implements CodeSandbox
var _ ports.CodeSandbox = (*Local)(nil)

// NewLocal creates a local sandbox using the given interpreter.
func NewLocal(python string, timeout time.Duration) *Local {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Local{python: python, timeout: timeout}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Run(ctx context.Context, code string) (domain.ExecResult, error) {
	workDir, err := os.MkdirTemp("", "localagent-exec-")
	if err != nil {
		return domain.ExecResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	execCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, l.python, "-c", code)
	cmd.Dir = workDir
	cmd.Env = []string{
		fmt.Sprintf("HOME=%s", workDir),
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"LANG=en_US.UTF-8",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := domain.ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return res, nil
	}
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.Duration = l.timeout
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return domain.ExecResult{}, fmt.Errorf("run %s: %w", l.python, runErr)
}
