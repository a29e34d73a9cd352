package schema

import "time"

// ServiceConfig controls core session behavior: grace intervals, readiness
// polling, the volume label, and per-command timeouts.
type ServiceConfig struct {
	// VolumeLabel is the filesystem label applied when formatting.
	VolumeLabel string
	// SettleDelay is the grace interval after allocation before formatting;
	// hosts do not always expose a fresh block device synchronously.
	SettleDelay time.Duration
	// FormatSettleDelay is the grace interval after formatting before the
	// readiness poll begins.
	FormatSettleDelay time.Duration
	// ReadinessAttempts bounds the readiness poll.
	ReadinessAttempts int
	// ReadinessDelay is the fixed backoff between readiness attempts.
	ReadinessDelay time.Duration
	// InstallSettleDelay is the grace interval after a backend install
	// before re-detection.
	InstallSettleDelay time.Duration
	// CommandTimeout bounds probe, allocate, deallocate, and format commands.
	CommandTimeout time.Duration
	// MirrorTimeout bounds backup save and restore commands.
	MirrorTimeout time.Duration
	// InstallTimeout bounds the package-manager install command.
	InstallTimeout time.Duration
}

// Defaults for ServiceConfig fields.
const (
	DefaultVolumeLabel        = "RamVault"
	DefaultSettleDelay        = 2 * time.Second
	DefaultFormatSettleDelay  = 2 * time.Second
	DefaultReadinessAttempts  = 5
	DefaultReadinessDelay     = time.Second
	DefaultInstallSettleDelay = 3 * time.Second
	DefaultCommandTimeout     = 2 * time.Minute
	DefaultMirrorTimeout      = 30 * time.Minute
	DefaultInstallTimeout     = 10 * time.Minute
)

// DefaultSessionConfig returns the stock session config used until the user
// edits it: a persistent 1 GiB disk at R.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		DriveLetter: "R",
		SizeBytes:   1 << 30,
		Persistence: true,
	}
}

// NormalizeServiceConfig fills zero fields with defaults.
func NormalizeServiceConfig(cfg ServiceConfig) ServiceConfig {
	if cfg.VolumeLabel == "" {
		cfg.VolumeLabel = DefaultVolumeLabel
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.FormatSettleDelay <= 0 {
		cfg.FormatSettleDelay = DefaultFormatSettleDelay
	}
	if cfg.ReadinessAttempts <= 0 {
		cfg.ReadinessAttempts = DefaultReadinessAttempts
	}
	if cfg.ReadinessDelay <= 0 {
		cfg.ReadinessDelay = DefaultReadinessDelay
	}
	if cfg.InstallSettleDelay <= 0 {
		cfg.InstallSettleDelay = DefaultInstallSettleDelay
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.MirrorTimeout <= 0 {
		cfg.MirrorTimeout = DefaultMirrorTimeout
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = DefaultInstallTimeout
	}
	return cfg
}
