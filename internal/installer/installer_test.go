package installer

import (
	"context"
	"strings"
	"testing"

	"pkt.systems/ramvault/schema"
)

type fakeRunner struct {
	result schema.CommandResult
	err    error
	calls  []schema.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd schema.Command) (schema.CommandResult, error) {
	f.calls = append(f.calls, cmd)
	return f.result, f.err
}

func TestInstallSuccess(t *testing.T) {
	runner := &fakeRunner{result: schema.CommandResult{ExitCode: 0}}

	if err := Install(context.Background(), runner, DefaultConfig()); err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(runner.calls))
	}
	call := runner.calls[0]
	if call.Name != "choco" {
		t.Fatalf("unexpected manager %q", call.Name)
	}
	joined := strings.Join(call.Args, " ")
	if joined != "install imdisk -y" {
		t.Fatalf("unexpected install args %q", joined)
	}
}

func TestInstallNonZeroExit(t *testing.T) {
	runner := &fakeRunner{result: schema.CommandResult{ExitCode: 1, Stderr: "package not found"}}

	err := Install(context.Background(), runner, DefaultConfig())
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "package not found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestInstallExecutionFailure(t *testing.T) {
	runner := &fakeRunner{err: &schema.ExecutionFailure{Name: "choco", Reason: schema.FailureNotFound}}

	err := Install(context.Background(), runner, DefaultConfig())
	if _, ok := schema.IsExecutionFailure(err); !ok {
		t.Fatalf("expected ExecutionFailure, got %v", err)
	}
}
