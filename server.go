// Package ramvault composes the RAM disk session service with the local
// HTTP API and event stream.
package ramvault

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/core"
	"pkt.systems/ramvault/httpapi"
	"pkt.systems/ramvault/internal/eventbus"
	"pkt.systems/ramvault/schema"
)

// Server composes the session service and the HTTP API.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service schema.ServiceConfig
	HTTP    httpapi.Config
	// SkipDetect suppresses the backend detection normally run on start.
	SkipDetect bool
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// New constructs a ramvault server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	serviceDeps := deps.ServiceDeps
	bus := eventbus.New(serviceDeps.Logger)

	if serviceDeps.EventSink == nil {
		serviceDeps.EventSink = bus
	} else {
		serviceDeps.EventSink = eventFanout{sinks: []core.EventSink{serviceDeps.EventSink, bus}}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	return &compositeServer{
		cfg:     cfg,
		service: service,
		httpSrv: httpapi.NewServer(cfg.HTTP, service, bus),
		bus:     bus,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	service core.Service
	httpSrv *httpapi.Server
	bus     *eventbus.Bus
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info("server start", "http_addr", s.cfg.HTTP.Addr)

	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()

	if !s.cfg.SkipDetect {
		go func() {
			if _, err := s.service.Detect(s.ctx, schema.DetectRequest{}); err != nil {
				log.Warn("initial detect failed", "err", err)
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}

func (s *compositeServer) Service() core.Service {
	return s.service
}
