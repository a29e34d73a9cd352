package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/internal/backend"
	"pkt.systems/ramvault/internal/installer"
	"pkt.systems/ramvault/internal/logx"
	"pkt.systems/ramvault/internal/mirror"
	"pkt.systems/ramvault/internal/persist"
	"pkt.systems/ramvault/schema"
)

// service implements the RAM disk session state machine. It owns the state
// exclusively; collaborators only see snapshots and events.
type service struct {
	cfg       schema.ServiceConfig
	runner    Runner
	backend   backend.Config
	installer installer.Config
	store     *mirror.Store
	sink      EventSink
	prefs     *persist.Store
	logger    pslog.Logger

	mu             sync.Mutex
	busy           bool
	state          schema.SessionState
	status         string
	descriptor     schema.BackendDescriptor
	config         schema.SessionConfig
	installOffered bool
}

// Test seams for the grace intervals and host volume probes; no event-based
// notification is available from the backend, so readiness is polled.
var (
	sleep     = time.Sleep
	statDrive = func(letter schema.DriveLetter) error {
		_, err := os.Stat(string(letter) + `:\`)
		return err
	}
	probeMarker = func(letter schema.DriveLetter) error {
		path := filepath.Join(string(letter)+`:\`, ".ramvault-write-test")
		if err := os.WriteFile(path, []byte("ok"), 0o600); err != nil {
			return err
		}
		return os.Remove(path)
	}
)

// ServiceDeps captures dependencies for the core service.
type ServiceDeps struct {
	Runner    Runner
	Backend   backend.Config
	Installer installer.Config
	Mirror    *mirror.Store
	EventSink EventSink
	Prefs     *persist.Store
	Logger    pslog.Logger
}

// NewService constructs the core service implementation. The session starts
// in the detecting state; callers run Detect to settle it.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	if deps.Runner == nil {
		return nil, errors.New("runner is required")
	}
	if deps.Mirror == nil {
		return nil, errors.New("mirror store is required")
	}
	cfg = schema.NormalizeServiceConfig(cfg)
	if deps.Backend.Binary == "" {
		deps.Backend = backend.DefaultConfig()
	}
	if deps.Installer.Manager == "" {
		deps.Installer = installer.DefaultConfig()
	}
	if deps.Installer.Timeout <= 0 {
		deps.Installer.Timeout = cfg.InstallTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	config := schema.DefaultSessionConfig()
	if deps.Prefs != nil {
		if prefs, ok, err := deps.Prefs.Load(); err == nil && ok {
			if normalized, err := schema.NormalizeSessionConfig(prefs.Config); err == nil {
				config = normalized
			} else {
				logger.Warn("stored session config invalid, using defaults", "err", err)
			}
		}
	}

	return &service{
		cfg:        cfg,
		runner:     deps.Runner,
		backend:    deps.Backend,
		installer:  deps.Installer,
		store:      deps.Mirror,
		sink:       deps.EventSink,
		prefs:      deps.Prefs,
		logger:     logger,
		state:      schema.StateDetecting,
		status:     "detecting backend",
		descriptor: schema.BackendDescriptor{Kind: schema.BackendNone},
		config:     config,
	}, nil
}

// Detect probes the backend and settles into Idle or NoBackend.
func (s *service) Detect(ctx context.Context, req schema.DetectRequest) (schema.DetectResponse, error) {
	_ = req
	if ctx == nil {
		return schema.DetectResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		log.Warn("session detect rejected", "err", schema.ErrBusy)
		return schema.DetectResponse{}, schema.ErrBusy
	}
	if s.state == schema.StateActive {
		s.mu.Unlock()
		log.Warn("session detect rejected", "err", schema.ErrActive)
		return schema.DetectResponse{}, schema.ErrActive
	}
	s.busy = true
	s.state = schema.StateDetecting
	s.status = "detecting backend"
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.clearBusy()
	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Snapshot: snap})

	log.Info("session detect start")
	snap = s.detectAndSettle(ctx)
	logx.WithState(log, snap.State).Info("session detect settled", "available", snap.Backend.Available)
	return schema.DetectResponse{Snapshot: snap}, nil
}

// Create allocates, formats, and mounts the RAM disk, restoring the backup
// mirror when persistence is enabled. Allocation failure aborts; every later
// step downgrades to a warning.
func (s *service) Create(ctx context.Context, req schema.CreateRequest) (schema.CreateResponse, error) {
	if ctx == nil {
		return schema.CreateResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.busy || s.state.IsBusy() {
		s.mu.Unlock()
		log.Warn("session create rejected", "err", schema.ErrBusy)
		return schema.CreateResponse{}, schema.ErrBusy
	}
	switch s.state {
	case schema.StateActive:
		s.mu.Unlock()
		log.Warn("session create rejected", "err", schema.ErrActive)
		return schema.CreateResponse{}, schema.ErrActive
	case schema.StateNoBackend:
		s.mu.Unlock()
		log.Warn("session create rejected", "err", schema.ErrNoBackend)
		return schema.CreateResponse{}, schema.ErrNoBackend
	}
	if !s.descriptor.Available {
		s.mu.Unlock()
		log.Warn("session create rejected", "err", schema.ErrNoBackend)
		return schema.CreateResponse{}, schema.ErrNoBackend
	}
	if req.Config != nil {
		normalized, err := schema.NormalizeSessionConfig(*req.Config)
		if err != nil {
			s.mu.Unlock()
			log.Warn("session create rejected", "err", err)
			return schema.CreateResponse{}, err
		}
		s.config = normalized
	}
	cfg := s.config
	s.busy = true
	s.state = schema.StateCreating
	s.status = fmt.Sprintf("allocating ramdisk at %s", backend.Mount(cfg.DriveLetter))
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.clearBusy()
	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Snapshot: snap})
	s.persistPrefs(log, cfg)

	log = logx.WithDrive(ctx, cfg.DriveLetter)
	log.Info("session create start", "size_bytes", cfg.SizeBytes, "persistence", cfg.Persistence)

	// Step 1: allocate. The only fatal step of the sequence.
	result, err := s.runner.Run(ctx, schema.Command{
		Name:    s.backend.Binary,
		Args:    backend.AllocateArgs(cfg.SizeBytes, cfg.DriveLetter),
		Timeout: s.cfg.CommandTimeout,
	})
	if err != nil {
		log.Warn("session create allocate failed", "err", err)
		snap = s.transition(schema.StateIdle, fmt.Sprintf("allocate failed: %v", err), true)
		return schema.CreateResponse{Snapshot: snap}, schema.ErrCreateFailed
	}
	if !result.Success() {
		detail := statusFromResult(result, "allocate")
		log.Warn("session create allocate failed", "exit_code", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		snap = s.transition(schema.StateIdle, detail, true)
		return schema.CreateResponse{Snapshot: snap}, schema.ErrCreateFailed
	}

	// Step 2: the host does not always expose a fresh block device
	// synchronously.
	sleep(s.cfg.SettleDelay)

	// Steps 3-4: primary format, then the best-effort fallback.
	warning := false
	if !s.formatPrimary(ctx, log, cfg.DriveLetter) {
		s.progress("primary format failed, trying fallback", true)
		if !s.formatFallback(ctx, log, cfg.DriveLetter) {
			log.Warn("session create format fallback failed")
			s.progress("format fallback failed, volume may already be usable", true)
			warning = true
		}
	}

	// Step 5: bounded readiness poll, then one direct write probe.
	sleep(s.cfg.FormatSettleDelay)
	if !s.awaitReadiness(log, cfg.DriveLetter) {
		log.Warn("session create readiness unconfirmed", "attempts", s.cfg.ReadinessAttempts)
		s.progress("volume readiness unconfirmed, presuming usable", true)
		warning = true
	}

	// Step 6: restore is additive and never a rollback trigger.
	restored := false
	status := "ramdisk active"
	if cfg.Persistence {
		if s.store.Exists(cfg.DriveLetter) {
			s.progress("restoring backup", false)
			restored = s.store.Restore(ctx, cfg.DriveLetter)
			if restored {
				status = "ramdisk active, data restored"
			} else {
				status = "ramdisk active, restore failed"
				warning = true
			}
		} else {
			status = "ramdisk active, no backup to restore"
		}
	}

	snap = s.transition(schema.StateActive, status, warning)
	log.Info("session create done", "restored", restored, "warning", warning)
	return schema.CreateResponse{Snapshot: snap, Restored: restored}, nil
}

// Stop saves the mirror when persistence is enabled and deallocates the
// disk, retrying once with the forced variant. A double deallocate failure
// leaves the session active; the backend still holds the disk.
func (s *service) Stop(ctx context.Context, req schema.StopRequest) (schema.StopResponse, error) {
	_ = req
	if ctx == nil {
		return schema.StopResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.busy || s.state.IsBusy() {
		s.mu.Unlock()
		log.Warn("session stop rejected", "err", schema.ErrBusy)
		return schema.StopResponse{}, schema.ErrBusy
	}
	if s.state != schema.StateActive {
		s.mu.Unlock()
		log.Warn("session stop rejected", "err", schema.ErrNotActive)
		return schema.StopResponse{}, schema.ErrNotActive
	}
	cfg := s.config
	s.busy = true
	s.state = schema.StateStopping
	s.status = "stopping ramdisk"
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.clearBusy()
	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Snapshot: snap})

	log = logx.WithDrive(ctx, cfg.DriveLetter)
	log.Info("session stop start", "persistence", cfg.Persistence)

	// Step 1: save before unmounting; a failed save is surfaced, never a
	// reason to keep the disk mounted.
	saved := false
	warning := false
	if cfg.Persistence {
		s.progress("saving ramdisk contents", false)
		saved = s.store.Save(ctx, cfg.DriveLetter)
		if !saved {
			log.Warn("session stop save failed")
			s.progress("backup save failed, data may be lost", true)
			warning = true
		}
	}

	// Step 2: deallocate, forced variant on busy volumes.
	if !s.deallocate(ctx, log, cfg.DriveLetter, false) {
		s.progress("unmount failed, forcing", true)
		if !s.deallocate(ctx, log, cfg.DriveLetter, true) {
			log.Warn("session stop deallocate failed twice")
			snap = s.transition(schema.StateActive, "unmount failed, ramdisk still active", true)
			return schema.StopResponse{Snapshot: snap, Saved: saved}, schema.ErrStopFailed
		}
	}

	status := "stopped"
	if cfg.Persistence {
		if saved {
			status = "stopped, data saved"
		} else {
			status = "stopped, save failed"
		}
	}
	snap = s.transition(schema.StateIdle, status, warning)
	log.Info("session stop done", "saved", saved, "warning", warning)
	return schema.StopResponse{Snapshot: snap, Saved: saved}, nil
}

// InstallBackend installs the missing backend and re-detects.
func (s *service) InstallBackend(ctx context.Context, req schema.InstallRequest) (schema.InstallResponse, error) {
	_ = req
	if ctx == nil {
		return schema.InstallResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	s.mu.Lock()
	if s.busy || s.state.IsBusy() {
		s.mu.Unlock()
		log.Warn("session install rejected", "err", schema.ErrBusy)
		return schema.InstallResponse{}, schema.ErrBusy
	}
	if s.state != schema.StateNoBackend {
		s.mu.Unlock()
		log.Warn("session install rejected", "err", schema.ErrBackendAvailable)
		return schema.InstallResponse{}, schema.ErrBackendAvailable
	}
	s.busy = true
	s.state = schema.StateInstalling
	s.status = fmt.Sprintf("installing %s", s.installer.Package)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	defer s.clearBusy()
	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Snapshot: snap})

	log.Info("session install start", "package", s.installer.Package)
	if err := installer.Install(ctx, s.runner, s.installer); err != nil {
		s.mu.Lock()
		s.installOffered = true
		s.mu.Unlock()
		snap = s.transition(schema.StateNoBackend, fmt.Sprintf("install failed: %v", err), true)
		return schema.InstallResponse{Snapshot: snap}, schema.ErrInstallFailed
	}

	s.progress("install ok, re-detecting backend", false)
	sleep(s.cfg.InstallSettleDelay)
	snap = s.detectAndSettle(ctx)
	logx.WithState(log, snap.State).Info("session install done", "available", snap.Backend.Available)
	return schema.InstallResponse{Snapshot: snap}, nil
}

// SetConfig replaces the session config; only allowed at rest.
func (s *service) SetConfig(ctx context.Context, req schema.SetConfigRequest) (schema.SetConfigResponse, error) {
	if ctx == nil {
		return schema.SetConfigResponse{}, errors.New("missing context")
	}
	log := logx.Ctx(ctx)

	normalized, err := schema.NormalizeSessionConfig(req.Config)
	if err != nil {
		log.Warn("session config rejected", "err", err)
		return schema.SetConfigResponse{}, err
	}

	s.mu.Lock()
	if s.busy || s.state.IsBusy() || s.state == schema.StateActive {
		s.mu.Unlock()
		log.Warn("session config rejected", "err", schema.ErrConfigLocked)
		return schema.SetConfigResponse{}, schema.ErrConfigLocked
	}
	s.config = normalized
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(schema.SessionEvent{Type: schema.SessionEventStatus, Snapshot: snap})
	s.persistPrefs(log, normalized)
	log.Info("session config updated", "drive", normalized.DriveLetter, "size_bytes", normalized.SizeBytes, "persistence", normalized.Persistence)
	return schema.SetConfigResponse{Snapshot: snap}, nil
}

// Status returns the current snapshot.
func (s *service) Status(ctx context.Context, req schema.StatusRequest) (schema.StatusResponse, error) {
	_, _ = ctx, req
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return schema.StatusResponse{Snapshot: snap}, nil
}

func (s *service) detectAndSettle(ctx context.Context) schema.SessionSnapshot {
	desc := backend.Detect(ctx, s.runner, s.backend, s.cfg.CommandTimeout)

	s.mu.Lock()
	s.descriptor = desc
	if desc.Available {
		s.state = schema.StateIdle
		s.status = "ready"
		s.installOffered = false
	} else {
		s.state = schema.StateNoBackend
		s.status = "ramdisk driver missing"
		s.installOffered = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Warning: !desc.Available, Snapshot: snap})
	return snap
}

func (s *service) formatPrimary(ctx context.Context, log pslog.Logger, letter schema.DriveLetter) bool {
	script := backend.DiskpartScript(letter, s.cfg.VolumeLabel)
	scriptPath, err := writeFormatScript(script)
	if err != nil {
		log.Warn("session create format script failed", "err", err)
		return false
	}
	defer func() { _ = os.Remove(scriptPath) }()

	result, err := s.runner.Run(ctx, schema.Command{
		Name:    s.backend.Diskpart,
		Args:    backend.DiskpartArgs(scriptPath),
		Timeout: s.cfg.CommandTimeout,
	})
	if err != nil {
		log.Warn("session create format failed", "err", err)
		return false
	}
	if !result.Success() {
		log.Warn("session create format failed", "exit_code", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		return false
	}
	return true
}

func (s *service) formatFallback(ctx context.Context, log pslog.Logger, letter schema.DriveLetter) bool {
	result, err := s.runner.Run(ctx, schema.Command{
		Name:    s.backend.Powershell,
		Args:    backend.FormatFallbackArgs(letter, s.cfg.VolumeLabel),
		Timeout: s.cfg.CommandTimeout,
	})
	if err != nil {
		log.Warn("session create format fallback failed", "err", err)
		return false
	}
	if !result.Success() {
		log.Warn("session create format fallback failed", "exit_code", result.ExitCode)
		return false
	}
	return true
}

func (s *service) awaitReadiness(log pslog.Logger, letter schema.DriveLetter) bool {
	for attempt := 1; attempt <= s.cfg.ReadinessAttempts; attempt++ {
		if err := statDrive(letter); err == nil {
			log.Debug("session create volume ready", "attempt", attempt)
			return true
		}
		sleep(s.cfg.ReadinessDelay)
	}
	if err := probeMarker(letter); err == nil {
		log.Debug("session create volume ready via marker probe")
		return true
	}
	return false
}

func (s *service) deallocate(ctx context.Context, log pslog.Logger, letter schema.DriveLetter, forced bool) bool {
	args := backend.DeallocateArgs(letter)
	if forced {
		args = backend.ForceDeallocateArgs(letter)
	}
	result, err := s.runner.Run(ctx, schema.Command{
		Name:    s.backend.Binary,
		Args:    args,
		Timeout: s.cfg.CommandTimeout,
	})
	if err != nil {
		log.Warn("session stop deallocate failed", "forced", forced, "err", err)
		return false
	}
	if !result.Success() {
		log.Warn("session stop deallocate failed", "forced", forced, "exit_code", result.ExitCode, "stderr", strings.TrimSpace(result.Stderr))
		return false
	}
	return true
}

func (s *service) transition(state schema.SessionState, status string, warning bool) schema.SessionSnapshot {
	s.mu.Lock()
	s.state = state
	s.status = status
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(schema.SessionEvent{Type: schema.SessionEventState, Warning: warning, Snapshot: snap})
	return snap
}

func (s *service) progress(status string, warning bool) {
	s.mu.Lock()
	s.status = status
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(schema.SessionEvent{Type: schema.SessionEventStatus, Warning: warning, Snapshot: snap})
}

func (s *service) snapshotLocked() schema.SessionSnapshot {
	return schema.SessionSnapshot{
		State:          s.state,
		Status:         s.status,
		Backend:        s.descriptor,
		Config:         s.config,
		InstallOffered: s.installOffered,
	}
}

func (s *service) emit(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func (s *service) clearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *service) persistPrefs(log pslog.Logger, cfg schema.SessionConfig) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.Save(persist.Prefs{Config: cfg}); err != nil {
		log.Warn("session prefs save failed", "err", err)
	}
}

func statusFromResult(result schema.CommandResult, step string) string {
	detail := strings.TrimSpace(result.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(result.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("%s exited %d", step, result.ExitCode)
	}
	return detail
}

func writeFormatScript(script string) (string, error) {
	f, err := os.CreateTemp("", "ramvault-format-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(script); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
