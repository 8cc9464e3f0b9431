package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/rolltrack/internal/manifest"
)

const (
	// BuildManifestTask is scheduled each time exposed rolls are shipped.
	BuildManifestTask = "manifest:build"
)

// ManifestPayload carries the shipped rolls so the worker never has to read
// the ledger, which may have moved on by the time the task runs.
type ManifestPayload = manifest.Shipment

// NewManifestTask encodes a shipment as an asynq task.
func NewManifestTask(payload ManifestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(BuildManifestTask, data, asynq.MaxRetry(5), asynq.TaskID(payload.ID)), nil
}

// DecodeManifestPayload is the inverse of NewManifestTask.
func DecodeManifestPayload(task *asynq.Task) (ManifestPayload, error) {
	var payload ManifestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ManifestPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

// Enqueuer schedules manifest builds on an asynq client.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// EnqueueManifest enqueues a manifest build job.
func (e *Enqueuer) EnqueueManifest(ctx context.Context, payload ManifestPayload) error {
	task, err := NewManifestTask(payload)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue manifest task: %w", err)
	}
	return nil
}
