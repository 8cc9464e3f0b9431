package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/rolltrack/internal/logger"
	"github.com/dharsanguruparan/rolltrack/internal/manifest"
	"github.com/dharsanguruparan/rolltrack/internal/queue"
)

// ManifestUploader stores rendered manifests.
type ManifestUploader interface {
	UploadManifest(ctx context.Context, project, shipmentID string, data []byte) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	uploader ManifestUploader
	log      *logger.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(uploader ManifestUploader, log *logger.Logger) *Processor {
	return &Processor{uploader: uploader, log: log}
}

// Handler registers the manifest job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.BuildManifestTask, p.handleBuildManifest)
	return mux
}

func (p *Processor) handleBuildManifest(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeManifestPayload(task)
	if err != nil {
		// A payload that cannot be decoded will never succeed.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	ctx = p.log.WithFields(ctx, map[string]any{
		"project":     payload.Project,
		"shipment_id": payload.ID,
		"rolls":       len(payload.Rolls),
	})
	data, err := manifest.Build(payload)
	if err != nil {
		p.log.Error(ctx, "render manifest failed", err)
		return err
	}
	if err := p.uploader.UploadManifest(ctx, payload.Project, payload.ID, data); err != nil {
		p.log.Error(ctx, "upload manifest failed", err)
		return err
	}
	p.log.Info(ctx, fmt.Sprintf("manifest uploaded (%d bytes)", len(data)))
	return nil
}
