package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// Terminal reports whether the status can no longer change without
// external intervention.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed
}

type JobType string

const (
	JobTypeDownload      JobType = "download"
	JobTypeIngest        JobType = "ingest"
	JobTypeTranscription JobType = "transcription"
	JobTypeAnalysis      JobType = "analysis"
	JobTypeGenerateClips JobType = "generate_clips"
)

// CancelledMessage is the sentinel error_message written when a job is
// cancelled from outside. The orchestrator stops retrying a stage whose
// job carries this message and never overwrites it.
const CancelledMessage = "stopped by user"

// MaxErrorMessageLen bounds what gets persisted in error_message.
const MaxErrorMessageLen = 2000

// TruncateError bounds a failure description for storage.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLen {
		return msg
	}
	return msg[:MaxErrorMessageLen]
}

// Job is one stage invocation. A fresh row is created per stage; the
// orchestrator's retries re-invoke the stage against the same row.
type Job struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VideoID      uuid.UUID `gorm:"type:uuid;not null;index" json:"video_id"`
	JobType      JobType   `gorm:"column:job_type;not null" json:"job_type"`
	Status       JobStatus `gorm:"column:status;not null;default:PENDING" json:"status"`
	Step         string    `gorm:"column:step" json:"step,omitempty"`
	Progress     float64   `gorm:"column:progress;not null;default:0" json:"progress"`
	ErrorMessage string    `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

// Cancelled reports whether the job was externally forced to FAILED.
func (j *Job) Cancelled() bool {
	return j.Status == JobFailed && j.ErrorMessage == CancelledMessage
}
