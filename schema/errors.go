package schema

import "errors"

var (
	// ErrBusy indicates a lifecycle operation is already in flight.
	ErrBusy = errors.New("session is busy")
	// ErrActive indicates the disk is already mounted.
	ErrActive = errors.New("ramdisk already active")
	// ErrNotActive indicates stop was requested without an active disk.
	ErrNotActive = errors.New("ramdisk not active")
	// ErrNoBackend indicates no virtual-disk backend is available.
	ErrNoBackend = errors.New("no ramdisk backend available")
	// ErrBackendAvailable indicates install was requested although a backend exists.
	ErrBackendAvailable = errors.New("backend already available")
	// ErrInvalidDriveLetter indicates a drive letter outside the allow-list.
	ErrInvalidDriveLetter = errors.New("invalid drive letter")
	// ErrInvalidSize indicates a non-positive disk size.
	ErrInvalidSize = errors.New("invalid disk size")
	// ErrConfigLocked indicates a config change while the session is active or busy.
	ErrConfigLocked = errors.New("config locked while session is active or busy")
	// ErrCreateFailed indicates the create sequence aborted before the disk mounted.
	ErrCreateFailed = errors.New("ramdisk create failed")
	// ErrStopFailed indicates both deallocate attempts failed; the disk stays active.
	ErrStopFailed = errors.New("ramdisk stop failed")
	// ErrInstallFailed indicates the backend install did not complete.
	ErrInstallFailed = errors.New("backend install failed")
)
