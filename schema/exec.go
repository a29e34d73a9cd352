package schema

import (
	"errors"
	"fmt"
	"time"
)

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	// UseShell wraps the invocation in the configured shell for tools that
	// need shell features (pipes, environment expansion).
	UseShell bool
	// Timeout bounds the invocation; zero means the executor default.
	Timeout time.Duration
}

// CommandResult is the outcome of a command that ran to completion.
// A non-zero exit code is data for the caller, not an error.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the exit code is zero.
func (r CommandResult) Success() bool { return r.ExitCode == 0 }

// FailureReason classifies why a command produced no exit code at all.
type FailureReason string

const (
	// FailureNotFound means the program was not found on the search path.
	FailureNotFound FailureReason = "not-found"
	// FailureUnlaunchable means the program exists but could not be started.
	FailureUnlaunchable FailureReason = "unlaunchable"
	// FailureTimeout means the command exceeded its timeout and was killed.
	FailureTimeout FailureReason = "timeout"
	// FailureCanceled means the caller's context was canceled mid-run and
	// the command was killed before reporting an outcome.
	FailureCanceled FailureReason = "canceled"
)

// ExecutionFailure reports a command that could not be launched or timed out.
type ExecutionFailure struct {
	Name   string
	Reason FailureReason
	Err    error
}

func (e *ExecutionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exec %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("exec %s: %s", e.Name, e.Reason)
}

// Unwrap exposes the underlying launch error.
func (e *ExecutionFailure) Unwrap() error { return e.Err }

// IsExecutionFailure reports whether err is an ExecutionFailure, returning it.
func IsExecutionFailure(err error) (*ExecutionFailure, bool) {
	var failure *ExecutionFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
