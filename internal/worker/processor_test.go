package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/rolltrack/internal/logger"
	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/queue"
)

type recordingUploader struct {
	project, shipment string
	data              []byte
	err               error
}

func (r *recordingUploader) UploadManifest(_ context.Context, project, shipmentID string, data []byte) error {
	r.project, r.shipment, r.data = project, shipmentID, data
	return r.err
}

func TestHandleBuildManifestUploadsWorkbook(t *testing.T) {
	up := &recordingUploader{}
	p := NewProcessor(up, logger.Nop())

	task, err := queue.NewManifestTask(queue.ManifestPayload{
		ID:        "s-1",
		Project:   "coburg",
		ShippedAt: time.Date(2026, 5, 15, 7, 0, 0, 0, time.UTC),
		Rolls:     []model.Roll{{RollID: "A1_01", LengthFt: 350, Status: model.StatusSentToLab}},
	})
	require.NoError(t, err)

	require.NoError(t, p.Handler().ProcessTask(context.Background(), task))
	assert.Equal(t, "coburg", up.project)
	assert.Equal(t, "s-1", up.shipment)
	assert.Equal(t, []byte("PK"), up.data[:2], "xlsx is a zip archive")
}

func TestHandleBuildManifestErrors(t *testing.T) {
	up := &recordingUploader{err: errors.New("bucket gone")}
	p := NewProcessor(up, logger.Nop())

	task, err := queue.NewManifestTask(queue.ManifestPayload{ID: "s-2", Project: "coburg"})
	require.NoError(t, err)
	require.ErrorContains(t, p.Handler().ProcessTask(context.Background(), task), "bucket gone")

	bad := asynq.NewTask(queue.BuildManifestTask, []byte("{"))
	err = p.Handler().ProcessTask(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
