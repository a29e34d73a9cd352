package core

import (
	"context"

	"pkt.systems/ramvault/schema"
)

// Runner executes external commands and reports their exit status. A non-zero
// exit code is returned as data in the result; the error is reserved for
// commands that could not be launched or timed out (schema.ExecutionFailure).
type Runner interface {
	Run(ctx context.Context, cmd schema.Command) (schema.CommandResult, error)
}
