package schema

// DriveLetter is the single uppercase letter the RAM disk mounts at.
type DriveLetter string

// BackendKind identifies the virtual-disk backend.
type BackendKind string

const (
	// BackendNone indicates no backend is available on the host.
	BackendNone BackendKind = "none"
	// BackendImDisk is the ImDisk virtual disk driver.
	BackendImDisk BackendKind = "imdisk"
)

// BackendDescriptor reports the outcome of a backend detection cycle.
// It is immutable; re-detection replaces it wholesale.
type BackendDescriptor struct {
	Kind      BackendKind `json:"kind"`
	Available bool        `json:"available"`
}

// SessionState is the lifecycle state of the RAM disk session.
type SessionState string

const (
	// StateDetecting means backend detection is in progress.
	StateDetecting SessionState = "detecting"
	// StateNoBackend means no virtual-disk backend was found.
	StateNoBackend SessionState = "no-backend"
	// StateIdle means the backend is available and no disk is mounted.
	StateIdle SessionState = "idle"
	// StateCreating means the create sequence is in progress.
	StateCreating SessionState = "creating"
	// StateActive means the RAM disk is mounted and presumed usable.
	StateActive SessionState = "active"
	// StateStopping means the stop sequence is in progress.
	StateStopping SessionState = "stopping"
	// StateInstalling means a backend install is in progress.
	StateInstalling SessionState = "installing"
)

// IsBusy reports whether the state rejects re-entrant lifecycle calls.
func (s SessionState) IsBusy() bool {
	switch s {
	case StateDetecting, StateCreating, StateStopping, StateInstalling:
		return true
	default:
		return false
	}
}

// SessionConfig holds the user-editable disk parameters. It may only be
// changed while the session is in a rest state.
type SessionConfig struct {
	DriveLetter DriveLetter `json:"drive_letter"`
	SizeBytes   int64       `json:"size_bytes"`
	Persistence bool        `json:"persistence"`
}

// SessionSnapshot is the read-only view published to collaborators at each
// transition.
type SessionSnapshot struct {
	State          SessionState      `json:"state"`
	Status         string            `json:"status"`
	Backend        BackendDescriptor `json:"backend"`
	Config         SessionConfig     `json:"config"`
	InstallOffered bool              `json:"install_offered,omitempty"`
}
