package core

import (
	"context"

	"pkt.systems/ramvault/schema"
)

// Service is the transport-agnostic API for the RAM disk session lifecycle.
// Lifecycle methods block the calling goroutine until the external command
// sequence completes; collaborators call from their own goroutines and
// observe progress through the event sink.
type Service interface {
	Detect(ctx context.Context, req schema.DetectRequest) (schema.DetectResponse, error)
	Create(ctx context.Context, req schema.CreateRequest) (schema.CreateResponse, error)
	Stop(ctx context.Context, req schema.StopRequest) (schema.StopResponse, error)
	InstallBackend(ctx context.Context, req schema.InstallRequest) (schema.InstallResponse, error)
	SetConfig(ctx context.Context, req schema.SetConfigRequest) (schema.SetConfigResponse, error)
	Status(ctx context.Context, req schema.StatusRequest) (schema.StatusResponse, error)
}
