package schema

// Lifecycle operations.

// DetectRequest asks the session to re-probe the backend and settle.
type DetectRequest struct{}

// DetectResponse reports the settled session snapshot.
type DetectResponse struct {
	Snapshot SessionSnapshot
}

// CreateRequest asks the session to allocate, format, and mount the disk.
// Config, when non-nil, replaces the session config before the sequence.
type CreateRequest struct {
	Config *SessionConfig
}

// CreateResponse reports the final snapshot and whether a backup was restored.
type CreateResponse struct {
	Snapshot SessionSnapshot
	Restored bool
}

// StopRequest asks the session to save the mirror and unmount the disk.
type StopRequest struct{}

// StopResponse reports the final snapshot and whether the mirror was saved.
type StopResponse struct {
	Snapshot SessionSnapshot
	Saved    bool
}

// InstallRequest asks the session to install the missing backend.
type InstallRequest struct{}

// InstallResponse reports the snapshot after install and re-detection.
type InstallResponse struct {
	Snapshot SessionSnapshot
}

// Configuration and observation.

// SetConfigRequest replaces the session config while at rest.
type SetConfigRequest struct {
	Config SessionConfig
}

// SetConfigResponse reports the normalized applied config.
type SetConfigResponse struct {
	Snapshot SessionSnapshot
}

// StatusRequest asks for the current snapshot.
type StatusRequest struct{}

// StatusResponse carries the current snapshot.
type StatusResponse struct {
	Snapshot SessionSnapshot
}
