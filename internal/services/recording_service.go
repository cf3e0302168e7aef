package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/storage"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"
)

// RecordingService covers the post-upload lifecycle: reads for the
// transcript consumers, deletion, and the explicit bounded retry that is
// the only path back into processing.
type RecordingService struct {
	recordings repository.RecordingRepository
	segments   repository.SegmentRepository
	tasks      repository.TaskRepository
	logs       repository.ProcessingLogRepository
	store      *storage.ChunkStore
	queue      queue.Queue
	log        *logger.Logger

	maxRetries int
}

func NewRecordingService(
	recordings repository.RecordingRepository,
	segments repository.SegmentRepository,
	tasks repository.TaskRepository,
	logs repository.ProcessingLogRepository,
	store *storage.ChunkStore,
	q queue.Queue,
	log *logger.Logger,
	maxRetries int,
) *RecordingService {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &RecordingService{
		recordings: recordings,
		segments:   segments,
		tasks:      tasks,
		logs:       logs,
		store:      store,
		queue:      q,
		log:        log,
		maxRetries: maxRetries,
	}
}

// Get returns the recording with its segments ordered by start time. A
// processing recording legitimately returns a partial (prefix) list.
func (s *RecordingService) Get(ctx context.Context, id uuid.UUID) (recording.Recording, []recording.TranscriptSegment, error) {
	rec, err := s.recordings.GetByID(ctx, id)
	if err != nil {
		return recording.Recording{}, nil, err
	}
	segs, err := s.segments.ListByRecording(ctx, id)
	if err != nil {
		return recording.Recording{}, nil, err
	}
	return rec, segs, nil
}

// Logs returns the append-only processing trail for a recording.
func (s *RecordingService) Logs(ctx context.Context, id uuid.UUID) ([]recording.ProcessingLog, error) {
	if _, err := s.recordings.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.logs.ListByRecording(ctx, id)
}

// Delete removes the recording row, its segments and tasks, and the
// audio file. An in-flight pipeline run observes the missing row at its
// next chunk boundary and abandons the job.
func (s *RecordingService) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.recordings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.recordings.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Remove(rec.FilePath); err != nil {
		s.log.Warnf("remove audio file %s: %v", rec.FilePath, err)
	}
	s.log.InfofCtx(ctx, "recording %s deleted", id)
	return nil
}

// Retry re-enters processing from failed with a fresh generation. The
// transition and the retry-count increment happen in one statement, so
// concurrent retries produce one winner; segments of the failed attempt
// are discarded before the new task is enqueued.
func (s *RecordingService) Retry(ctx context.Context, id uuid.UUID) (recording.Recording, error) {
	rec, err := s.recordings.GetByID(ctx, id)
	if err != nil {
		return recording.Recording{}, err
	}
	if rec.Status != recording.StatusFailed {
		return recording.Recording{}, fmt.Errorf("%w: only failed recordings can be retried, status is %s",
			maxmeet_errors.ErrConflict, rec.Status)
	}
	if rec.RetryCount >= s.maxRetries {
		return recording.Recording{}, fmt.Errorf("%w: %d of %d attempts used",
			maxmeet_errors.ErrRetryExhausted, rec.RetryCount, s.maxRetries)
	}

	won, err := s.recordings.TransitionForRetry(ctx, id, s.maxRetries)
	if err != nil {
		return recording.Recording{}, err
	}
	if !won {
		return recording.Recording{}, fmt.Errorf("%w: recording changed concurrently", maxmeet_errors.ErrConflict)
	}

	rec, err = s.recordings.GetByID(ctx, id)
	if err != nil {
		return recording.Recording{}, err
	}

	// Segments of the failed attempt would otherwise interleave with the
	// new transcript.
	if err := s.segments.DeleteByRecording(ctx, id); err != nil {
		return recording.Recording{}, err
	}

	t := task.TranscriptionTask{
		ID:          uuid.New(),
		RecordingID: id,
		Generation:  rec.RetryCount,
		Status:      task.StatusPending,
	}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return recording.Recording{}, fmt.Errorf("create retry task: %w", err)
	}
	if err := s.queue.Enqueue(ctx, queue.Job{
		TaskID:      t.ID,
		RecordingID: id,
		Generation:  rec.RetryCount,
	}); err != nil {
		return recording.Recording{}, fmt.Errorf("enqueue retry task: %w", err)
	}

	s.log.InfofCtx(ctx, "recording %s retried as task %s (generation %d)", id, t.ID, rec.RetryCount)
	return rec, nil
}
