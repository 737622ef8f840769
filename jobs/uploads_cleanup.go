package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/centralpricelist/pricelist/internal/jobs"
)

// StatusPurger drops upload statuses older than a cutoff.
type StatusPurger interface {
	PurgeUploads(ctx context.Context, before time.Time) (int, error)
}

// SpoolSweeper drops spooled files older than a cutoff.
type SpoolSweeper interface {
	Sweep(before time.Time) (int, error)
}

// CleanupUploadsJob enforces the upload retention window.
type CleanupUploadsJob struct {
	Statuses StatusPurger
	Spool    SpoolSweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewCleanupUploadsJob initialises the retention handler. spool may be nil.
func NewCleanupUploadsJob(statuses StatusPurger, spool SpoolSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CleanupUploadsJob {
	return &CleanupUploadsJob{
		Statuses: statuses,
		Spool:    spool,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskCleanupUploads tasks.
func (j *CleanupUploadsJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Statuses == nil {
		return errors.New("cleanup uploads: handler not configured")
	}
	var payload CleanupUploadsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 72
	}

	tracker := j.metrics().Track(TaskCleanupUploads)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	cutoff := j.now().Add(-time.Duration(payload.RetentionHours) * time.Hour)
	logger := j.logger().With(slog.Time("cutoff", cutoff))

	purged, err := j.Statuses.PurgeUploads(ctx, cutoff)
	if err != nil {
		resultErr = err
		logger.Error("purge upload statuses", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddPurged(purged)

	swept := 0
	if j.Spool != nil {
		if swept, err = j.Spool.Sweep(cutoff); err != nil {
			logger.Warn("sweep upload spool", slog.Any("error", err))
		}
	}

	logger.Info("completed upload cleanup",
		slog.Int("statuses", purged),
		slog.Int("files", swept),
	)
	return resultErr
}

func (j *CleanupUploadsJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCleanupUploads))
	}
	return slog.Default().With(slog.String("job", TaskCleanupUploads))
}

func (j *CleanupUploadsJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CleanupUploadsJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
