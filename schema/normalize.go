package schema

import "strings"

// AllowedDriveLetters is the fixed allow-list for RAM disk mount letters.
// A and B are historically floppy letters; C and D stay reserved for the
// system and optical drives.
const AllowedDriveLetters = "EFGHIJKLMNOPQRSTUVWXYZ"

// NormalizeDriveLetter validates a drive letter against the allow-list,
// accepting lowercase input and a trailing colon.
func NormalizeDriveLetter(letter string) (DriveLetter, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(letter), ":")
	if len(trimmed) != 1 {
		return "", ErrInvalidDriveLetter
	}
	upper := strings.ToUpper(trimmed)
	if !strings.Contains(AllowedDriveLetters, upper) {
		return "", ErrInvalidDriveLetter
	}
	return DriveLetter(upper), nil
}

// NormalizeSessionConfig validates and normalizes a session config.
func NormalizeSessionConfig(cfg SessionConfig) (SessionConfig, error) {
	letter, err := NormalizeDriveLetter(string(cfg.DriveLetter))
	if err != nil {
		return SessionConfig{}, err
	}
	if cfg.SizeBytes <= 0 {
		return SessionConfig{}, ErrInvalidSize
	}
	cfg.DriveLetter = letter
	return cfg, nil
}
