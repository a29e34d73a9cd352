package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/ramvault/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("backup_root", cfg.BackupRoot)
	v.SetDefault("session.drive_letter", cfg.Session.DriveLetter)
	v.SetDefault("session.size_mb", cfg.Session.SizeMB)
	v.SetDefault("session.persistence", cfg.Session.Persistence)
	v.SetDefault("service.volume_label", cfg.Service.VolumeLabel)
	v.SetDefault("service.settle_delay_seconds", cfg.Service.SettleDelaySeconds)
	v.SetDefault("service.format_settle_delay_seconds", cfg.Service.FormatSettleDelaySeconds)
	v.SetDefault("service.readiness_attempts", cfg.Service.ReadinessAttempts)
	v.SetDefault("service.readiness_delay_seconds", cfg.Service.ReadinessDelaySeconds)
	v.SetDefault("service.install_settle_delay_seconds", cfg.Service.InstallSettleDelaySeconds)
	v.SetDefault("service.command_timeout_seconds", cfg.Service.CommandTimeoutSeconds)
	v.SetDefault("service.mirror_timeout_minutes", cfg.Service.MirrorTimeoutMinutes)
	v.SetDefault("service.install_timeout_minutes", cfg.Service.InstallTimeoutMinutes)
	v.SetDefault("backend.binary", cfg.Backend.Binary)
	v.SetDefault("backend.probe_command", cfg.Backend.ProbeCommand)
	v.SetDefault("backend.diskpart", cfg.Backend.Diskpart)
	v.SetDefault("backend.powershell", cfg.Backend.Powershell)
	v.SetDefault("mirror.tool", cfg.Mirror.Tool)
	v.SetDefault("installer.manager", cfg.Installer.Manager)
	v.SetDefault("installer.package", cfg.Installer.Package)
	v.SetDefault("http.addr", cfg.HTTP.Addr)

	// A missing file means defaults; anything else is fatal.
	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if _, err := schema.NormalizeDriveLetter(cfg.Session.DriveLetter); err != nil {
		return fmt.Errorf("session.drive_letter %q: %w", cfg.Session.DriveLetter, err)
	}
	if cfg.Session.SizeMB <= 0 {
		return fmt.Errorf("session.size_mb must be positive, got %d", cfg.Session.SizeMB)
	}
	if strings.TrimSpace(cfg.BackupRoot) == "" {
		return fmt.Errorf("backup_root is required")
	}
	if strings.TrimSpace(cfg.StateDir) == "" {
		return fmt.Errorf("state_dir is required")
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.BackupRoot = expandEnv(cfg.BackupRoot)
	cfg.Backend.Binary = expandEnv(cfg.Backend.Binary)
	cfg.Backend.Diskpart = expandEnv(cfg.Backend.Diskpart)
	cfg.Backend.Powershell = expandEnv(cfg.Backend.Powershell)
	cfg.Mirror.Tool = expandEnv(cfg.Mirror.Tool)
	cfg.Installer.Manager = expandEnv(cfg.Installer.Manager)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
