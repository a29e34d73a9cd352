// Package execx runs external tools and maps their outcome onto
// schema.CommandResult. Launch failures, timeouts, and cancellation surface
// as schema.ExecutionFailure; a non-zero exit code is data for the caller.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Config controls executor defaults.
type Config struct {
	// Shell wraps UseShell commands; e.g. "cmd" with "/c" on Windows hosts.
	Shell     string
	ShellArgs []string
	// DefaultTimeout applies when a command carries no timeout of its own.
	DefaultTimeout time.Duration
}

// Executor implements core.Runner over os/exec.
type Executor struct {
	cfg Config
}

const defaultTimeout = 2 * time.Minute

// New constructs an executor.
func New(cfg Config) *Executor {
	if cfg.Shell == "" {
		cfg.Shell = "cmd"
		cfg.ShellArgs = []string{"/c"}
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	return &Executor{cfg: cfg}
}

// Run executes the command, waiting for completion or timeout.
func (e *Executor) Run(ctx context.Context, cmd schema.Command) (schema.CommandResult, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := cmd.Name
	args := cmd.Args
	if cmd.UseShell {
		name = e.cfg.Shell
		args = append(append([]string{}, e.cfg.ShellArgs...), append([]string{cmd.Name}, cmd.Args...)...)
	}

	log := pslog.Ctx(ctx).With("cmd", cmd.Name, "args", strings.Join(cmd.Args, " "))
	log.Debug("exec start", "shell", cmd.UseShell, "timeout", timeout)

	outbuf, errbuf := &bytes.Buffer{}, &bytes.Buffer{}
	proc := exec.CommandContext(runCtx, name, args...)
	proc.Stdout = outbuf
	proc.Stderr = errbuf

	err := proc.Run()
	result := schema.CommandResult{
		Stdout: outbuf.String(),
		Stderr: errbuf.String(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		log.Warn("exec timeout", "timeout", timeout)
		return schema.CommandResult{}, &schema.ExecutionFailure{
			Name:   cmd.Name,
			Reason: schema.FailureTimeout,
			Err:    runCtx.Err(),
		}
	}

	// A canceled parent context kills the process; its -1 exit code is not
	// an outcome the caller may act on.
	if runCtx.Err() == context.Canceled {
		log.Warn("exec canceled")
		return schema.CommandResult{}, &schema.ExecutionFailure{
			Name:   cmd.Name,
			Reason: schema.FailureCanceled,
			Err:    runCtx.Err(),
		}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			log.Debug("exec done", "exit_code", result.ExitCode)
			return result, nil
		}
		reason := schema.FailureUnlaunchable
		if errors.Is(err, exec.ErrNotFound) {
			reason = schema.FailureNotFound
		}
		log.Warn("exec launch failed", "err", err)
		return schema.CommandResult{}, &schema.ExecutionFailure{
			Name:   cmd.Name,
			Reason: reason,
			Err:    err,
		}
	}

	log.Debug("exec done", "exit_code", 0)
	return result, nil
}
