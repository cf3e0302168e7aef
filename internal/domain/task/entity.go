package task

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TranscriptionTask tracks one scheduled pipeline run for a recording.
// Generation equals the recording's retry_count at enqueue time; a task
// whose generation trails the recording's current retry_count is stale
// and must be a no-op.
type TranscriptionTask struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecordingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_tasks_recording_generation"`
	Generation  int       `gorm:"not null;uniqueIndex:idx_tasks_recording_generation"`

	Status       Status `gorm:"size:20;default:'pending';index"`
	ErrorMessage string `gorm:"type:text"`

	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TranscriptionTask) TableName() string {
	return "transcription_tasks"
}
