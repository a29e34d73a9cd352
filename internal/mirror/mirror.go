// Package mirror maps drive letters to per-letter backup directories and
// synchronizes them with the copy tool. Restore is an additive mirror onto
// the disk; save is a destructive mirror into the backup, so the backup
// exactly reflects the disk afterwards. Host reserved paths are excluded in
// both directions.
package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Runner is the command execution dependency.
type Runner interface {
	Run(ctx context.Context, cmd schema.Command) (schema.CommandResult, error)
}

// Reserved directories and files never copied in either direction.
var (
	excludedDirs  = []string{"$RECYCLE.BIN", "System Volume Information"}
	excludedFiles = []string{"pagefile.sys", "hiberfil.sys", "swapfile.sys"}
)

// The copy tool reports outcome classes, not plain success: codes 0-7 cover
// the copied / extra / mismatched combinations, 8 and above are failures.
const maxSuccessExitCode = 7

// Config controls the backup store.
type Config struct {
	// Root is the base backup directory; one subdirectory per drive letter.
	Root string
	// Tool is the mirror copy tool.
	Tool string
	// Timeout bounds each mirror invocation.
	Timeout time.Duration
}

// Store is the backup store for RAM disk contents.
type Store struct {
	cfg    Config
	runner Runner
	log    pslog.Logger
}

// DefaultRoot returns the per-user backup root directory.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ramvault"), nil
}

// NewStore constructs a backup store.
func NewStore(cfg Config, runner Runner, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("backup root is required")
	}
	if cfg.Tool == "" {
		cfg.Tool = "robocopy"
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{cfg: cfg, runner: runner, log: logger.With("backup_root", cfg.Root)}, nil
}

// Location returns the backup directory for a drive letter. Letters never
// share a location.
func (s *Store) Location(letter schema.DriveLetter) string {
	return filepath.Join(s.cfg.Root, string(letter))
}

// Exists reports whether a backup directory exists for the letter. Contents
// are not inspected.
func (s *Store) Exists(letter schema.DriveLetter) bool {
	info, err := os.Stat(s.Location(letter))
	return err == nil && info.IsDir()
}

// Restore mirrors the backup onto the disk, creating what the disk is
// missing without deleting what the backup lacks. A missing backup is a
// trivial success. Any execution failure of the tool yields false;
// persistence failures are recoverable, never fatal.
func (s *Store) Restore(ctx context.Context, letter schema.DriveLetter) bool {
	location := s.Location(letter)
	log := s.log.With("drive", letter, "location", location)
	if !s.Exists(letter) {
		log.Debug("mirror restore skipped, no backup")
		return true
	}
	args := append([]string{location, driveRoot(letter), "/E"}, exclusionArgs()...)
	return s.mirror(ctx, log, "restore", args)
}

// Save mirrors the disk into the backup, deleting backup entries no longer
// on the disk. The location is created when absent.
func (s *Store) Save(ctx context.Context, letter schema.DriveLetter) bool {
	location := s.Location(letter)
	log := s.log.With("drive", letter, "location", location)
	if err := os.MkdirAll(location, 0o700); err != nil {
		log.Warn("mirror save failed", "err", err)
		return false
	}
	args := append([]string{driveRoot(letter), location, "/MIR"}, exclusionArgs()...)
	return s.mirror(ctx, log, "save", args)
}

func (s *Store) mirror(ctx context.Context, log pslog.Logger, op string, args []string) bool {
	result, err := s.runner.Run(ctx, schema.Command{
		Name:    s.cfg.Tool,
		Args:    args,
		Timeout: s.cfg.Timeout,
	})
	if err != nil {
		log.Warn("mirror "+op+" failed", "err", err)
		return false
	}
	// Negative codes mean the tool was killed before reporting an outcome.
	if result.ExitCode < 0 || result.ExitCode > maxSuccessExitCode {
		log.Warn("mirror "+op+" failed", "exit_code", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		return false
	}
	log.Info("mirror "+op+" ok", "exit_code", result.ExitCode)
	return true
}

func exclusionArgs() []string {
	args := append([]string{"/XD"}, excludedDirs...)
	args = append(args, "/XF")
	args = append(args, excludedFiles...)
	// Retry knobs kept tight; a stuck mirror must not hang the session.
	return append(args, "/R:1", "/W:1", "/NFL", "/NDL", "/NP")
}

func driveRoot(letter schema.DriveLetter) string {
	return string(letter) + `:\`
}
