package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/ramvault/internal/eventbus"
	"pkt.systems/ramvault/schema"
)

type fakeService struct {
	snapshot  schema.SessionSnapshot
	createErr error
	stopErr   error
	configErr error
	restored  bool
	saved     bool
}

func (f *fakeService) Detect(_ context.Context, _ schema.DetectRequest) (schema.DetectResponse, error) {
	return schema.DetectResponse{Snapshot: f.snapshot}, nil
}

func (f *fakeService) Create(_ context.Context, _ schema.CreateRequest) (schema.CreateResponse, error) {
	if f.createErr != nil {
		return schema.CreateResponse{Snapshot: f.snapshot}, f.createErr
	}
	return schema.CreateResponse{Snapshot: f.snapshot, Restored: f.restored}, nil
}

func (f *fakeService) Stop(_ context.Context, _ schema.StopRequest) (schema.StopResponse, error) {
	if f.stopErr != nil {
		return schema.StopResponse{Snapshot: f.snapshot}, f.stopErr
	}
	return schema.StopResponse{Snapshot: f.snapshot, Saved: f.saved}, nil
}

func (f *fakeService) InstallBackend(_ context.Context, _ schema.InstallRequest) (schema.InstallResponse, error) {
	return schema.InstallResponse{Snapshot: f.snapshot}, nil
}

func (f *fakeService) SetConfig(_ context.Context, req schema.SetConfigRequest) (schema.SetConfigResponse, error) {
	if f.configErr != nil {
		return schema.SetConfigResponse{}, f.configErr
	}
	snap := f.snapshot
	snap.Config = req.Config
	return schema.SetConfigResponse{Snapshot: snap}, nil
}

func (f *fakeService) Status(_ context.Context, _ schema.StatusRequest) (schema.StatusResponse, error) {
	return schema.StatusResponse{Snapshot: f.snapshot}, nil
}

func newTestServer(t *testing.T, service *fakeService, bus *eventbus.Bus) *httptest.Server {
	t.Helper()
	server := NewServer(Config{Addr: "127.0.0.1:0"}, service, bus)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func activeSnapshot() schema.SessionSnapshot {
	return schema.SessionSnapshot{
		State:   schema.StateActive,
		Status:  "ramdisk active",
		Backend: schema.BackendDescriptor{Kind: schema.BackendImDisk, Available: true},
		Config:  schema.SessionConfig{DriveLetter: "R", SizeBytes: 1 << 30, Persistence: true},
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot()}, nil)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var snap schema.SessionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != schema.StateActive || snap.Config.DriveLetter != "R" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestStatusRejectsPost(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot()}, nil)

	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestCreateEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot(), restored: true}, nil)

	resp, err := http.Post(ts.URL+"/api/create", "application/json", strings.NewReader(`{"config":{"drive_letter":"R","size_bytes":1073741824,"persistence":true}}`))
	if err != nil {
		t.Fatalf("post create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		Snapshot schema.SessionSnapshot `json:"snapshot"`
		Restored bool                   `json:"restored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Restored || payload.Snapshot.State != schema.StateActive {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCreateBusyMapsToConflict(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot(), createErr: schema.ErrBusy}, nil)

	resp, err := http.Post(ts.URL+"/api/create", "application/json", nil)
	if err != nil {
		t.Fatalf("post create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCreateNoBackendMapsToPreconditionFailed(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot(), createErr: schema.ErrNoBackend}, nil)

	resp, err := http.Post(ts.URL+"/api/create", "application/json", nil)
	if err != nil {
		t.Fatalf("post create: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", resp.StatusCode)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot()}, nil)

	resp, err := http.Post(ts.URL+"/api/config", "application/json", strings.NewReader(`{"drive_letter":"S","size_bytes":268435456,"persistence":false}`))
	if err != nil {
		t.Fatalf("post config: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var config schema.SessionConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if config.DriveLetter != "S" || config.SizeBytes != 268435456 {
		t.Fatalf("unexpected config %+v", config)
	}
}

func TestConfigLockedMapsToConflict(t *testing.T) {
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot(), configErr: schema.ErrConfigLocked}, nil)

	resp, err := http.Post(ts.URL+"/api/config", "application/json", strings.NewReader(`{"drive_letter":"S","size_bytes":1}`))
	if err != nil {
		t.Fatalf("post config: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	bus := eventbus.New(nil)
	ts := newTestServer(t, &fakeService{snapshot: activeSnapshot()}, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readSSE(t, reader)
	if first.Type != schema.SessionEventStatus {
		t.Fatalf("expected initial status event, got %+v", first)
	}

	published := schema.SessionEvent{
		Type:     schema.SessionEventState,
		Warning:  true,
		Snapshot: schema.SessionSnapshot{State: schema.StateIdle, Status: "stopped, save failed"},
	}
	// The subscriber registers before the handler writes the initial event,
	// so publishing after reading it cannot race the subscription.
	bus.OnSessionEvent(published)

	second := readSSE(t, reader)
	if second.Type != schema.SessionEventState || !second.Warning {
		t.Fatalf("unexpected event %+v", second)
	}
	if second.Snapshot.Status != "stopped, save failed" {
		t.Fatalf("unexpected snapshot %+v", second.Snapshot)
	}
}

func readSSE(t *testing.T, reader *bufio.Reader) schema.SessionEvent {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event schema.SessionEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return event
	}
}
