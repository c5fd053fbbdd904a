package reviewer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/harrison/tetrad/internal/models"
)

// probeTimeout bounds --version availability checks.
const probeTimeout = 5 * time.Second

// Invoker executes one reviewer CLI command.
type Invoker struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// InvocationResult captures one subprocess run. Exit codes are recorded but
// not authoritative; some reviewers exit zero with error text.
type InvocationResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Invoke runs the command with the configured argv plus the prompt as the
// final positional argument, bounded by the invoker's timeout.
//
// Error mapping: deadline expiry returns ErrExecutorTimeout, a missing
// binary returns ErrExecutorNotFound, and any other spawn failure returns
// ErrExecutorFailed. A non-zero exit is NOT an error.
func (inv *Invoker) Invoke(ctx context.Context, name, prompt string) (*InvocationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	args := make([]string, 0, len(inv.Args)+1)
	args = append(args, inv.Args...)
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, inv.Command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	result := &InvocationResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return nil, models.TimeoutError(name, inv.Timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if isNotFound(err) {
			return nil, models.ErrExecutorNotFound
		}
		return nil, models.ExecutorError(name, err)
	}

	return result, nil
}

// IsAvailable reports whether `<command> --version` exits zero within the
// probe timeout.
func (inv *Invoker) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	return exec.CommandContext(ctx, inv.Command, "--version").Run() == nil
}

// VersionString returns the first line of `<command> --version` stdout.
func (inv *Invoker) VersionString(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, inv.Command, "--version").Output()
	if err != nil {
		if isNotFound(err) {
			return "", models.ErrExecutorNotFound
		}
		return "", err
	}

	line := string(output)
	if idx := bytes.IndexByte(output, '\n'); idx >= 0 {
		line = string(output[:idx])
	}
	if line == "" {
		line = "unknown"
	}
	return line, nil
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return errors.Is(execErr.Err, exec.ErrNotFound)
	}
	return errors.Is(err, exec.ErrNotFound)
}
