package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/centralpricelist/pricelist/internal/jobs"
	"github.com/centralpricelist/pricelist/internal/pricelist"
	"github.com/centralpricelist/pricelist/internal/pricing"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// UploadTracker imports a document under an upload id.
type UploadTracker interface {
	Track(ctx context.Context, id string, doc pricelist.Document, opts pricelist.Options) (pricelist.Summary, error)
}

// UploadSpool gives the worker access to spooled files.
type UploadSpool interface {
	Load(path string) ([]byte, error)
	Remove(path string) error
}

// ProcessUploadJob imports spooled uploads.
type ProcessUploadJob struct {
	Service UploadTracker
	Spool   UploadSpool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewProcessUploadJob wires dependencies for the upload handler.
func NewProcessUploadJob(service UploadTracker, spool UploadSpool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProcessUploadJob {
	return &ProcessUploadJob{Service: service, Spool: spool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskProcessUpload tasks. Content failures are final and
// drop the spooled file; infrastructure failures keep it for the retry.
func (j *ProcessUploadJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil || j.Spool == nil {
		return errors.New("process upload: handler not configured")
	}
	var upload pricelist.Upload
	if err := json.Unmarshal(t.Payload(), &upload); err != nil {
		return asynq.SkipRetry
	}
	if upload.ID == "" || upload.Path == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskProcessUpload)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("upload_id", upload.ID),
		slog.String("file", upload.Filename),
	)

	data, err := j.Spool.Load(upload.Path)
	if err != nil {
		resultErr = err
		logger.Error("spooled upload unreadable", slog.Any("error", err))
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, pricelist.ErrOutsideSpool) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return resultErr
	}

	summary, err := j.Service.Track(ctx, upload.ID, pricelist.Document{Filename: upload.Filename, Data: data}, upload.Options)
	if err != nil {
		resultErr = err
		if permanent(err) {
			logger.Warn("upload rejected", slog.Any("error", err))
			j.remove(logger, upload.Path)
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		logger.Error("upload failed", slog.Any("error", err))
		return resultErr
	}

	j.remove(logger, upload.Path)
	logger.Info("upload processed",
		slog.Int("saved", summary.SavedCount),
		slog.Int("failed", summary.FailedCount),
		slog.Int("rejected", summary.RejectedCount),
	)
	return resultErr
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, pricelist.ErrValidation) ||
		errors.Is(err, pricelist.ErrUnsupportedFormat) ||
		errors.Is(err, pricelist.ErrEmptyFile) ||
		errors.Is(err, pricelist.ErrFileTooLarge) ||
		errors.Is(err, pricelist.ErrUnreadable) ||
		errors.Is(err, pricing.ErrUnknownPriceType) ||
		errors.Is(err, pricing.ErrInvalidMarkup)
}

func (j *ProcessUploadJob) remove(logger *slog.Logger, path string) {
	if err := j.Spool.Remove(path); err != nil {
		logger.Warn("spooled upload not removed", slog.Any("error", err))
	}
}

func (j *ProcessUploadJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskProcessUpload))
	}
	return slog.Default().With(slog.String("job", TaskProcessUpload))
}

func (j *ProcessUploadJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
