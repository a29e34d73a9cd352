package main

import (
	"strings"
	"testing"

	"pkt.systems/ramvault/schema"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "up", "down", "status", "detect", "install", "config", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected root command to include %q", name)
		}
	}
}

func TestRenderSnapshot(t *testing.T) {
	var buf strings.Builder
	renderSnapshot(&buf, schema.SessionSnapshot{
		State:   schema.StateNoBackend,
		Status:  "ramdisk driver missing",
		Backend: schema.BackendDescriptor{Kind: schema.BackendNone},
		Config: schema.SessionConfig{
			DriveLetter: "R",
			SizeBytes:   1 << 30,
			Persistence: true,
		},
		InstallOffered: true,
	})
	out := buf.String()
	if !strings.Contains(out, "state:   no-backend") {
		t.Fatalf("missing state line: %q", out)
	}
	if !strings.Contains(out, "R: 1024 MB persistence=true") {
		t.Fatalf("missing config line: %q", out)
	}
	if !strings.Contains(out, "ramvault install") {
		t.Fatalf("missing install hint: %q", out)
	}
}

func TestRenderSnapshotEmpty(t *testing.T) {
	var buf strings.Builder
	renderSnapshot(&buf, schema.SessionSnapshot{})
	if buf.Len() != 0 {
		t.Fatalf("expected no output for empty snapshot, got %q", buf.String())
	}
}
