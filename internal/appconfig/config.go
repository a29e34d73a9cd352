package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/ramvault/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	BackupRoot    string          `mapstructure:"backup_root" yaml:"backup_root"`
	Session       SessionConfig   `mapstructure:"session" yaml:"session"`
	Service       ServiceConfig   `mapstructure:"service" yaml:"service"`
	Backend       BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Mirror        MirrorConfig    `mapstructure:"mirror" yaml:"mirror"`
	Installer     InstallerConfig `mapstructure:"installer" yaml:"installer"`
	HTTP          HTTPConfig      `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// SessionConfig is the initial disk config; prefs saved at runtime take
// precedence once they exist.
type SessionConfig struct {
	DriveLetter string `mapstructure:"drive_letter" yaml:"drive_letter"`
	SizeMB      int64  `mapstructure:"size_mb" yaml:"size_mb"`
	Persistence bool   `mapstructure:"persistence" yaml:"persistence"`
}

// ServiceConfig controls core session behavior.
type ServiceConfig struct {
	VolumeLabel               string `mapstructure:"volume_label" yaml:"volume_label"`
	SettleDelaySeconds        int    `mapstructure:"settle_delay_seconds" yaml:"settle_delay_seconds"`
	FormatSettleDelaySeconds  int    `mapstructure:"format_settle_delay_seconds" yaml:"format_settle_delay_seconds"`
	ReadinessAttempts         int    `mapstructure:"readiness_attempts" yaml:"readiness_attempts"`
	ReadinessDelaySeconds     int    `mapstructure:"readiness_delay_seconds" yaml:"readiness_delay_seconds"`
	InstallSettleDelaySeconds int    `mapstructure:"install_settle_delay_seconds" yaml:"install_settle_delay_seconds"`
	CommandTimeoutSeconds     int    `mapstructure:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	MirrorTimeoutMinutes      int    `mapstructure:"mirror_timeout_minutes" yaml:"mirror_timeout_minutes"`
	InstallTimeoutMinutes     int    `mapstructure:"install_timeout_minutes" yaml:"install_timeout_minutes"`
}

// BackendConfig names the virtual-disk backend tooling.
type BackendConfig struct {
	Binary       string `mapstructure:"binary" yaml:"binary"`
	ProbeCommand string `mapstructure:"probe_command" yaml:"probe_command"`
	Diskpart     string `mapstructure:"diskpart" yaml:"diskpart"`
	Powershell   string `mapstructure:"powershell" yaml:"powershell"`
}

// MirrorConfig names the backup copy tool.
type MirrorConfig struct {
	Tool string `mapstructure:"tool" yaml:"tool"`
}

// InstallerConfig names the package manager used to install a missing
// backend.
type InstallerConfig struct {
	Manager string `mapstructure:"manager" yaml:"manager"`
	Package string `mapstructure:"package" yaml:"package"`
}

// HTTPConfig configures the local HTTP API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".ramvault", "state"),
		BackupRoot:    filepath.Join(home, ".ramvault"),
		Session: SessionConfig{
			DriveLetter: "R",
			SizeMB:      1024,
			Persistence: true,
		},
		Service: ServiceConfig{
			VolumeLabel:               schema.DefaultVolumeLabel,
			SettleDelaySeconds:        int(schema.DefaultSettleDelay / time.Second),
			FormatSettleDelaySeconds:  int(schema.DefaultFormatSettleDelay / time.Second),
			ReadinessAttempts:         schema.DefaultReadinessAttempts,
			ReadinessDelaySeconds:     int(schema.DefaultReadinessDelay / time.Second),
			InstallSettleDelaySeconds: int(schema.DefaultInstallSettleDelay / time.Second),
			CommandTimeoutSeconds:     int(schema.DefaultCommandTimeout / time.Second),
			MirrorTimeoutMinutes:      int(schema.DefaultMirrorTimeout / time.Minute),
			InstallTimeoutMinutes:     int(schema.DefaultInstallTimeout / time.Minute),
		},
		Backend: BackendConfig{
			Binary:       "imdisk",
			ProbeCommand: "where",
			Diskpart:     "diskpart",
			Powershell:   "powershell",
		},
		Mirror: MirrorConfig{
			Tool: "robocopy",
		},
		Installer: InstallerConfig{
			Manager: "choco",
			Package: "imdisk",
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:27490",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ramvault", "config.yaml"), nil
}

// SessionSchema converts the configured session to the schema form.
func (c SessionConfig) SessionSchema() (schema.SessionConfig, error) {
	return schema.NormalizeSessionConfig(schema.SessionConfig{
		DriveLetter: schema.DriveLetter(c.DriveLetter),
		SizeBytes:   c.SizeMB << 20,
		Persistence: c.Persistence,
	})
}

// ServiceSchema converts the configured service knobs to the schema form;
// zero fields fall back to the schema defaults.
func (c ServiceConfig) ServiceSchema() schema.ServiceConfig {
	return schema.NormalizeServiceConfig(schema.ServiceConfig{
		VolumeLabel:        c.VolumeLabel,
		SettleDelay:        time.Duration(c.SettleDelaySeconds) * time.Second,
		FormatSettleDelay:  time.Duration(c.FormatSettleDelaySeconds) * time.Second,
		ReadinessAttempts:  c.ReadinessAttempts,
		ReadinessDelay:     time.Duration(c.ReadinessDelaySeconds) * time.Second,
		InstallSettleDelay: time.Duration(c.InstallSettleDelaySeconds) * time.Second,
		CommandTimeout:     time.Duration(c.CommandTimeoutSeconds) * time.Second,
		MirrorTimeout:      time.Duration(c.MirrorTimeoutMinutes) * time.Minute,
		InstallTimeout:     time.Duration(c.InstallTimeoutMinutes) * time.Minute,
	})
}
