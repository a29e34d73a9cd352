// Package installer performs the best-effort package-manager install of a
// missing backend. It reports the outcome and never mutates session state.
package installer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Runner is the command execution dependency.
type Runner interface {
	Run(ctx context.Context, cmd schema.Command) (schema.CommandResult, error)
}

// Config names the package manager and the backend package.
type Config struct {
	Manager string
	Package string
	// Timeout bounds the install invocation.
	Timeout time.Duration
}

// DefaultConfig installs ImDisk through chocolatey.
func DefaultConfig() Config {
	return Config{Manager: "choco", Package: "imdisk"}
}

// Install runs the package manager non-interactively, accepting agreements.
func Install(ctx context.Context, runner Runner, cfg Config) error {
	log := pslog.Ctx(ctx).With("manager", cfg.Manager, "package", cfg.Package)
	log.Info("backend install start")
	result, err := runner.Run(ctx, schema.Command{
		Name:    cfg.Manager,
		Args:    []string{"install", cfg.Package, "-y"},
		Timeout: cfg.Timeout,
	})
	if err != nil {
		log.Warn("backend install failed", "err", err)
		return err
	}
	if !result.Success() {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		log.Warn("backend install failed", "exit_code", result.ExitCode, "output", detail)
		return fmt.Errorf("%s install %s exited %d: %s", cfg.Manager, cfg.Package, result.ExitCode, detail)
	}
	log.Info("backend install ok")
	return nil
}
