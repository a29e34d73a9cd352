package logx

import (
	"context"
	"testing"
)

func TestCtxReturnsLogger(t *testing.T) {
	if Ctx(context.Background()) == nil {
		t.Fatalf("expected logger from bare context")
	}
}

func TestWithDriveHandlesEmptyLetter(t *testing.T) {
	if WithDrive(context.Background(), "") == nil {
		t.Fatalf("expected logger without drive")
	}
	if WithDrive(context.Background(), "R") == nil {
		t.Fatalf("expected logger with drive")
	}
}

func TestWithStateHandlesEmptyState(t *testing.T) {
	log := Ctx(context.Background())
	if WithState(log, "") == nil {
		t.Fatalf("expected logger without state")
	}
	if WithState(log, "active") == nil {
		t.Fatalf("expected logger with state")
	}
}
