package logx

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/schema"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithDrive annotates the logger with the drive letter if present.
func WithDrive(ctx context.Context, letter schema.DriveLetter) pslog.Logger {
	log := pslog.Ctx(ctx)
	if letter != "" {
		log = log.With("drive", letter)
	}
	return log
}

// WithState annotates the logger with the session state.
func WithState(log pslog.Logger, state schema.SessionState) pslog.Logger {
	if state != "" {
		log = log.With("state", state)
	}
	return log
}
