// Package backend describes the ImDisk virtual-disk backend: the
// locate-on-path detection probe and the command lines for allocating,
// deallocating, and formatting volumes.
package backend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Runner is the command execution dependency.
type Runner interface {
	Run(ctx context.Context, cmd schema.Command) (schema.CommandResult, error)
}

// Config names the backend tooling.
type Config struct {
	// Binary is the backend's controlling executable.
	Binary string
	// ProbeCommand locates Binary on the search path; exit 0 means present.
	ProbeCommand string
	// Diskpart is the primary partition/format tool.
	Diskpart string
	// Powershell drives the volume-management API as the format fallback.
	Powershell string
}

// DefaultConfig returns the stock ImDisk tool names.
func DefaultConfig() Config {
	return Config{
		Binary:       "imdisk",
		ProbeCommand: "where",
		Diskpart:     "diskpart",
		Powershell:   "powershell",
	}
}

// Detect probes the host for the backend. Probe failure of any kind yields
// the none-descriptor; detection is idempotent and cheap to re-run, so
// callers re-invoke explicitly instead of the detector retrying.
func Detect(ctx context.Context, runner Runner, cfg Config, timeout time.Duration) schema.BackendDescriptor {
	log := pslog.Ctx(ctx).With("binary", cfg.Binary)
	result, err := runner.Run(ctx, schema.Command{
		Name:    cfg.ProbeCommand,
		Args:    []string{cfg.Binary},
		Timeout: timeout,
	})
	if err != nil {
		log.Warn("backend probe failed", "err", err)
		return schema.BackendDescriptor{Kind: schema.BackendNone, Available: false}
	}
	if !result.Success() {
		log.Debug("backend not on path", "exit_code", result.ExitCode)
		return schema.BackendDescriptor{Kind: schema.BackendNone, Available: false}
	}
	log.Debug("backend detected")
	return schema.BackendDescriptor{Kind: schema.BackendImDisk, Available: true}
}

// AllocateArgs builds the imdisk arguments for a new RAM disk of the given
// size mounted at the letter, without formatting.
func AllocateArgs(sizeBytes int64, letter schema.DriveLetter) []string {
	return []string{"-a", "-s", strconv.FormatInt(sizeBytes, 10), "-m", Mount(letter)}
}

// DeallocateArgs builds the imdisk arguments to remove the disk.
func DeallocateArgs(letter schema.DriveLetter) []string {
	return []string{"-d", "-m", Mount(letter)}
}

// ForceDeallocateArgs builds the forced variant for busy volumes.
func ForceDeallocateArgs(letter schema.DriveLetter) []string {
	return []string{"-D", "-m", Mount(letter)}
}

// DiskpartScript renders the non-interactive format script for the volume.
func DiskpartScript(letter schema.DriveLetter, label string) string {
	return fmt.Sprintf("select volume %s\r\nformat fs=ntfs quick label=%s\r\nexit\r\n", letter, label)
}

// DiskpartArgs builds the diskpart invocation for a script file.
func DiskpartArgs(scriptPath string) []string {
	return []string{"/s", scriptPath}
}

// FormatFallbackArgs builds the PowerShell Format-Volume fallback. The
// ErrorAction guard makes it a silent no-op when the volume is not visible.
func FormatFallbackArgs(letter schema.DriveLetter, label string) []string {
	command := fmt.Sprintf(
		"Get-Volume -DriveLetter %s -ErrorAction SilentlyContinue | Format-Volume -FileSystem NTFS -NewFileSystemLabel %s -Confirm:$false",
		letter, label,
	)
	return []string{"-NoProfile", "-NonInteractive", "-Command", command}
}

// Mount renders the mount-target argument for a drive letter.
func Mount(letter schema.DriveLetter) string {
	return string(letter) + ":"
}
