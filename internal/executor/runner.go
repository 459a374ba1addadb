package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Runner dispatches one command to the host (or pretends to).
type Runner interface {
	// Run executes cmd in dir under the persona's identity and
	// returns combined output. A non-nil error means the command
	// failed (non-zero exit, timeout, or host error).
	Run(ctx context.Context, username, cmd, dir string) (string, error)
}

// HostRunner executes commands for real through the shell, with a
// hard per-command timeout. When sudo is enabled the command runs
// under the persona's own uid so artifacts carry believable
// ownership.
type HostRunner struct {
	timeout time.Duration
	sudo    bool
	log     *zap.Logger
}

// NewHostRunner creates a real runner.
func NewHostRunner(timeout time.Duration, sudo bool, log *zap.Logger) *HostRunner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HostRunner{timeout: timeout, sudo: sudo, log: log.Named("host")}
}

// Run implements Runner.
func (h *HostRunner) Run(ctx context.Context, username, cmd, dir string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	shellCmd := fmt.Sprintf("cd %s && %s", dir, cmd)
	var c *exec.Cmd
	if h.sudo {
		c = exec.CommandContext(execCtx, "sudo", "-u", username, "sh", "-c", shellCmd)
	} else {
		c = exec.CommandContext(execCtx, "sh", "-c", shellCmd)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}
	if len(output) > 50000 {
		output = output[:50000] + "\n...[truncated]"
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return output, fmt.Errorf("command timed out after %s", h.timeout)
		}
		return output, fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}

// DryRunner logs instead of touching the host. Every command
// "succeeds" so dry runs exercise the full decision path without side
// effects.
type DryRunner struct {
	log *zap.Logger
}

// NewDryRunner creates a log-only runner.
func NewDryRunner(log *zap.Logger) *DryRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &DryRunner{log: log.Named("dryrun")}
}

// Run implements Runner.
func (d *DryRunner) Run(_ context.Context, username, cmd, dir string) (string, error) {
	d.log.Info("simulated command",
		zap.String("user", username),
		zap.String("cmd", cmd),
		zap.String("cwd", dir))
	return "Simulated Output", nil
}
