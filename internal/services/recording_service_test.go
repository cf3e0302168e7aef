package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/storage"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingFixture struct {
	service    *RecordingService
	recordings repository.RecordingRepository
	segments   repository.SegmentRepository
	tasks      repository.TaskRepository
	queue      *memQueue
	dir        string
}

func newRecordingFixture(t *testing.T) recordingFixture {
	db := newTestDB(t)
	q := &memQueue{}
	recordings := repository.NewRecordingRepository(db)
	segments := repository.NewSegmentRepository(db)
	tasks := repository.NewTaskRepository(db)
	logs := repository.NewProcessingLogRepository(db)
	service := NewRecordingService(
		recordings, segments, tasks, logs,
		storage.NewChunkStore(), q, logger.NewNop(), 2)
	return recordingFixture{
		service:    service,
		recordings: recordings,
		segments:   segments,
		tasks:      tasks,
		queue:      q,
		dir:        t.TempDir(),
	}
}

func (f recordingFixture) seed(t *testing.T, status recording.Status, retryCount int) recording.Recording {
	t.Helper()
	id := uuid.New()
	path := filepath.Join(f.dir, id.String()+".webm")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	rec := recording.Recording{
		ID:           id,
		MeetingID:    uuid.New(),
		FilePath:     path,
		SafeFilename: id.String() + ".webm",
		MimeType:     "audio/webm",
		TotalBytes:   5,
		Checksum:     "00",
		Status:       status,
		RetryCount:   retryCount,
	}
	require.NoError(t, f.recordings.Create(context.Background(), &rec))
	return rec
}

func TestGetReturnsOrderedSegments(t *testing.T) {
	f := newRecordingFixture(t)
	ctx := context.Background()
	rec := f.seed(t, recording.StatusCompleted, 0)

	require.NoError(t, f.segments.CreateBatch(ctx, []recording.TranscriptSegment{
		{RecordingID: rec.ID, MeetingID: rec.MeetingID, ChunkIndex: 1, StartSeconds: 600, EndSeconds: 601, Text: "b"},
		{RecordingID: rec.ID, MeetingID: rec.MeetingID, ChunkIndex: 0, StartSeconds: 0, EndSeconds: 1, Text: "a"},
	}))

	got, segs, err := f.service.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	require.Len(t, segs, 2)
	assert.Equal(t, "a", segs[0].Text)

	// A recording with no segments yet is not an error.
	empty := f.seed(t, recording.StatusProcessing, 0)
	_, segs, err = f.service.Get(ctx, empty.ID)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	f := newRecordingFixture(t)
	ctx := context.Background()
	rec := f.seed(t, recording.StatusCompleted, 0)

	require.NoError(t, f.service.Delete(ctx, rec.ID))

	_, err := f.recordings.GetByID(ctx, rec.ID)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrNotFound))
	_, err = os.Stat(rec.FilePath)
	assert.True(t, os.IsNotExist(err))

	// Deleting again reports not found.
	err = f.service.Delete(ctx, rec.ID)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrNotFound))
}

func TestRetryEnqueuesNextGeneration(t *testing.T) {
	f := newRecordingFixture(t)
	ctx := context.Background()
	rec := f.seed(t, recording.StatusFailed, 0)

	// Leftover segments of the failed attempt.
	require.NoError(t, f.segments.CreateBatch(ctx, []recording.TranscriptSegment{
		{RecordingID: rec.ID, MeetingID: rec.MeetingID, ChunkIndex: 0, StartSeconds: 0, EndSeconds: 1, Text: "stale"},
	}))

	got, err := f.service.Retry(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusProcessing, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	count, err := f.segments.CountByRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.Equal(t, 1, f.queue.len())
	job, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, job.RecordingID)
	assert.Equal(t, 1, job.Generation)

	tsk, err := f.tasks.GetByID(ctx, job.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 1, tsk.Generation)
	assert.Equal(t, task.StatusPending, tsk.Status)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	f := newRecordingFixture(t)
	ctx := context.Background()

	for _, status := range []recording.Status{
		recording.StatusUploading,
		recording.StatusProcessing,
		recording.StatusCompleted,
	} {
		rec := f.seed(t, status, 0)
		_, err := f.service.Retry(ctx, rec.ID)
		assert.True(t, errors.Is(err, maxmeet_errors.ErrConflict), "status %s", status)
	}
	assert.Equal(t, 0, f.queue.len())
}

func TestRetryExhaustion(t *testing.T) {
	f := newRecordingFixture(t)
	ctx := context.Background()
	// maxRetries is 2 in the fixture.
	rec := f.seed(t, recording.StatusFailed, 2)

	_, err := f.service.Retry(ctx, rec.ID)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrRetryExhausted))
	assert.Equal(t, 0, f.queue.len())

	got, err := f.recordings.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusFailed, got.Status)
}
