package appconfig

import (
	"strings"
	"testing"
	"time"

	"pkt.systems/ramvault/schema"
)

func TestDefaultConfigSession(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	session, err := cfg.Session.SessionSchema()
	if err != nil {
		t.Fatalf("session schema: %v", err)
	}
	if session.DriveLetter != "R" || session.SizeBytes != 1<<30 || !session.Persistence {
		t.Fatalf("unexpected default session %+v", session)
	}
	if !strings.HasSuffix(cfg.BackupRoot, ".ramvault") {
		t.Fatalf("unexpected backup root %q", cfg.BackupRoot)
	}
}

func TestServiceSchemaFillsZeroFields(t *testing.T) {
	svc := ServiceConfig{CommandTimeoutSeconds: 30}.ServiceSchema()
	if svc.CommandTimeout != 30*time.Second {
		t.Fatalf("expected configured timeout, got %v", svc.CommandTimeout)
	}
	if svc.VolumeLabel != schema.DefaultVolumeLabel {
		t.Fatalf("expected default label, got %q", svc.VolumeLabel)
	}
	if svc.ReadinessAttempts != schema.DefaultReadinessAttempts {
		t.Fatalf("expected default attempts, got %d", svc.ReadinessAttempts)
	}
}
