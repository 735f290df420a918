package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/ports"
)

const (
	maxStdout = 8192
	maxStderr = 4096
)

var (
	fenceOpenRe = regexp.MustCompile("^(\\s|`)*(?i:python\\b)?\\s*")
	fenceEndRe  = regexp.MustCompile("(\\s|`)*$")
)

// sanitizeCode strips whitespace, backticks and a leading "python" tag that
// models wrap around code.
func sanitizeCode(code string) string {
	code = fenceOpenRe.ReplaceAllString(code, "")
	return fenceEndRe.ReplaceAllString(code, "")
}

// NewCodeExecutionTool creates the python_repl tool backed by the given sandbox.
func NewCodeExecutionTool(sandbox ports.CodeSandbox) *domain.Tool {
	execType := domain.ExecLocal
	if sandbox.Name() == "docker" {
		execType = domain.ExecDocker
	}
	return &domain.Tool{
		Name: "python_repl",
		Description: "Useful for executing Python code. " +
			"Input should be valid Python code. " +
			"If you want to see the output of a value, you should print it out with `print(...)`. " +
			"Each call runs in a fresh interpreter, so include any definitions the code needs.",
		ExecutionType: execType,
		Execute: func(ctx context.Context, input string) (string, error) {
			code := sanitizeCode(input)
			if code == "" {
				return "", fmt.Errorf("no code provided")
			}

			res, err := sandbox.Run(ctx, code)
			if err != nil {
				return "", fmt.Errorf("Error executing code: %w", err)
			}
			if res.TimedOut {
				return "", fmt.Errorf("Error: execution timed out after %.0fs", res.Duration.Seconds())
			}
			return formatExecResult(res), nil
		},
	}
}

// formatExecResult renders stdout and stderr into a single observation.
// A failing script is a normal observation: the traceback is what the model
// needs to fix its code.
func formatExecResult(res domain.ExecResult) string {
	var b strings.Builder
	if res.Stdout != "" {
		out := res.Stdout
		if len(out) > maxStdout {
			out = out[:maxStdout] + "\n... (output truncated at 8KB)"
		}
		b.WriteString(out)
	}
	if res.Stderr != "" {
		errStr := res.Stderr
		if len(errStr) > maxStderr {
			errStr = errStr[:maxStderr] + "\n... (stderr truncated at 4KB)"
		}
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
		b.WriteString("STDERR: ")
		b.WriteString(errStr)
	}
	if b.Len() == 0 {
		if res.ExitCode != 0 {
			return fmt.Sprintf("(no output, exit code %d)", res.ExitCode)
		}
		return "(no output)"
	}
	return strings.TrimRight(b.String(), "\n")
}
