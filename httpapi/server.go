// Package httpapi serves the local control API: lifecycle operations, config,
// and an event stream for UIs tailing session transitions.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pkt.systems/ramvault/core"
	"pkt.systems/ramvault/internal/eventbus"
	"pkt.systems/ramvault/internal/logx"
	"pkt.systems/ramvault/schema"
)

const streamKeepalive = 30 * time.Second

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	service core.Service
	bus     *eventbus.Bus
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, bus *eventbus.Bus) *Server {
	return &Server{cfg: cfg, service: service, bus: bus}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/detect", s.handleDetect)
	mux.HandleFunc("/api/create", s.handleCreate)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/install", s.handleInstall)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stream", s.handleStream)
	return withRequestLogging(mux)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.Status(r.Context(), schema.StatusRequest{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Snapshot)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.service.Detect(r.Context(), schema.DetectRequest{})
	if err != nil {
		writeSessionError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, resp.Snapshot)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))

	req := schema.CreateRequest{}
	if r.ContentLength != 0 {
		var payload struct {
			Config *schema.SessionConfig `json:"config"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("create request rejected", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Config = payload.Config
	}

	resp, err := s.service.Create(r.Context(), req)
	if err != nil {
		log.Warn("create failed", "err", err)
		writeSessionError(w, err, &resp.Snapshot)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": resp.Snapshot,
		"restored": resp.Restored,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))

	resp, err := s.service.Stop(r.Context(), schema.StopRequest{})
	if err != nil {
		log.Warn("stop failed", "err", err)
		writeSessionError(w, err, &resp.Snapshot)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": resp.Snapshot,
		"saved":    resp.Saved,
	})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))

	resp, err := s.service.InstallBackend(r.Context(), schema.InstallRequest{})
	if err != nil {
		log.Warn("install failed", "err", err)
		writeSessionError(w, err, &resp.Snapshot)
		return
	}
	writeJSON(w, http.StatusOK, resp.Snapshot)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := s.service.Status(r.Context(), schema.StatusRequest{})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp.Snapshot.Config)
	case http.MethodPut, http.MethodPost:
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		var payload schema.SessionConfig
		if err := decodeJSON(r.Body, &payload); err != nil {
			log.Warn("config request rejected", "err", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := s.service.SetConfig(r.Context(), schema.SetConfigRequest{Config: payload})
		if err != nil {
			log.Warn("config update failed", "err", err)
			writeSessionError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, resp.Snapshot.Config)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	if s.bus == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("stream unavailable"))
		return
	}
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.bus.Subscribe()
	defer cancel()

	// Prime the stream with the current snapshot so late subscribers do not
	// wait for the next transition.
	status, err := s.service.Status(r.Context(), schema.StatusRequest{})
	if err == nil {
		initial := schema.SessionEvent{Type: schema.SessionEventStatus, Snapshot: status.Snapshot}
		if err := writeSSEvent(w, initial); err != nil {
			return
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	log.Debug("stream subscribed")
	for {
		select {
		case <-r.Context().Done():
			log.Debug("stream closed")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEvent(w, event); err != nil {
				log.Warn("stream write failed", "err", err)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSessionError maps session sentinels to HTTP statuses, attaching the
// final snapshot when the operation ran far enough to produce one.
func writeSessionError(w http.ResponseWriter, err error, snapshot *schema.SessionSnapshot) {
	payload := map[string]any{"error": err.Error()}
	if snapshot != nil && snapshot.State != "" {
		payload["snapshot"] = snapshot
	}
	writeJSON(w, statusForError(err), payload)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, schema.ErrBusy),
		errors.Is(err, schema.ErrActive),
		errors.Is(err, schema.ErrNotActive),
		errors.Is(err, schema.ErrConfigLocked),
		errors.Is(err, schema.ErrBackendAvailable):
		return http.StatusConflict
	case errors.Is(err, schema.ErrNoBackend):
		return http.StatusPreconditionFailed
	case errors.Is(err, schema.ErrInvalidDriveLetter),
		errors.Is(err, schema.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrCreateFailed),
		errors.Is(err, schema.ErrStopFailed),
		errors.Is(err, schema.ErrInstallFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event schema.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return err
}
