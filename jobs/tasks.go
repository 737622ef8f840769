package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/centralpricelist/pricelist/internal/pricelist"
)

const (
	// QueueDefault is the queue for housekeeping jobs.
	QueueDefault = "default"
	// QueueUploads is the queue for spooled pricelist uploads.
	QueueUploads = "uploads"

	// TaskProcessUpload imports one spooled document.
	TaskProcessUpload = "pricelist:process"
	// TaskCleanupUploads purges expired upload statuses and spool files.
	TaskCleanupUploads = "uploads:cleanup"
)

// ErrInvalidPayload is returned when a task payload cannot be built.
var ErrInvalidPayload = errors.New("jobs: invalid payload")

// NewProcessUploadTask constructs the task for a spooled upload.
func NewProcessUploadTask(upload pricelist.Upload) (*asynq.Task, error) {
	if upload.ID == "" || upload.Path == "" {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(upload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessUpload, data), nil
}

// CleanupUploadsPayload configures a cleanup run.
type CleanupUploadsPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewCleanupUploadsTask constructs the retention task.
func NewCleanupUploadsTask(retention time.Duration) (*asynq.Task, error) {
	hours := int(retention / time.Hour)
	if hours <= 0 {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(CleanupUploadsPayload{RetentionHours: hours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCleanupUploads, data), nil
}
