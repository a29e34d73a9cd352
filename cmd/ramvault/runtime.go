package main

import (
	"context"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/core"
	"pkt.systems/ramvault/internal/appconfig"
	"pkt.systems/ramvault/internal/backend"
	"pkt.systems/ramvault/internal/execx"
	"pkt.systems/ramvault/internal/installer"
	"pkt.systems/ramvault/internal/mirror"
	"pkt.systems/ramvault/internal/persist"
	"pkt.systems/ramvault/schema"
)

// buildServiceDeps wires the external tool executor, backup store, and prefs
// store from the loaded config.
func buildServiceDeps(cfg appconfig.Config, logger pslog.Logger) (schema.ServiceConfig, core.ServiceDeps, error) {
	serviceCfg := cfg.Service.ServiceSchema()

	runner := execx.New(execx.Config{DefaultTimeout: serviceCfg.CommandTimeout})

	store, err := mirror.NewStore(mirror.Config{
		Root:    cfg.BackupRoot,
		Tool:    cfg.Mirror.Tool,
		Timeout: serviceCfg.MirrorTimeout,
	}, runner, logger)
	if err != nil {
		return schema.ServiceConfig{}, core.ServiceDeps{}, err
	}

	prefs, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return schema.ServiceConfig{}, core.ServiceDeps{}, err
	}

	deps := core.ServiceDeps{
		Runner: runner,
		Backend: backend.Config{
			Binary:       cfg.Backend.Binary,
			ProbeCommand: cfg.Backend.ProbeCommand,
			Diskpart:     cfg.Backend.Diskpart,
			Powershell:   cfg.Backend.Powershell,
		},
		Installer: installer.Config{
			Manager: cfg.Installer.Manager,
			Package: cfg.Installer.Package,
			Timeout: serviceCfg.InstallTimeout,
		},
		Mirror: store,
		Prefs:  prefs,
		Logger: logger,
	}
	return serviceCfg, deps, nil
}

// buildService loads config and constructs a detected, ready-to-use service
// for one-shot commands.
func buildService(ctx context.Context, cfgPath string) (core.Service, error) {
	logger := pslog.Ctx(ctx)
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	serviceCfg, deps, err := buildServiceDeps(cfg, logger)
	if err != nil {
		return nil, err
	}
	service, err := core.NewService(serviceCfg, deps)
	if err != nil {
		return nil, err
	}
	if _, err := service.Detect(ctx, schema.DetectRequest{}); err != nil {
		return nil, err
	}
	return service, nil
}
