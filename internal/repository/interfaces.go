package repository

import (
	"context"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"

	"github.com/google/uuid"
)

type RecordingRepository interface {
	Create(ctx context.Context, r *recording.Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (recording.Recording, error)
	// TransitionStatus performs a single atomic compare-and-set on the
	// status column. Returns true only for the caller that won the
	// transition; racing duplicates see false with a nil error.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to recording.Status) (bool, error)
	// TransitionForRetry re-enters processing from failed and increments
	// retry_count in the same statement, bounded by maxRetries.
	TransitionForRetry(ctx context.Context, id uuid.UUID, maxRetries int) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errorType, message string) error
	// SetCompleted finishes a processing recording. Returns false when
	// the recording is gone or no longer processing, so a late-finishing
	// job cannot resurrect deleted data.
	SetCompleted(ctx context.Context, id uuid.UUID, durationSeconds int) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetStaleUploading(ctx context.Context, olderThan time.Duration) ([]recording.Recording, error)
}

type SegmentRepository interface {
	CreateBatch(ctx context.Context, segments []recording.TranscriptSegment) error
	ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]recording.TranscriptSegment, error)
	DeleteByRecording(ctx context.Context, recordingID uuid.UUID) error
	CountByRecording(ctx context.Context, recordingID uuid.UUID) (int64, error)
}

type TaskRepository interface {
	Create(ctx context.Context, t *task.TranscriptionTask) error
	GetByID(ctx context.Context, id uuid.UUID) (task.TranscriptionTask, error)
	// Claim flips pending → running. Exactly one of several racing
	// workers gets true.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, message string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	DeleteByRecording(ctx context.Context, recordingID uuid.UUID) error
}

type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *recording.ProcessingLog) error
	ListByRecording(ctx context.Context, recordingID uuid.UUID) ([]recording.ProcessingLog, error)
}
