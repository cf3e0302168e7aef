package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/storage"
	"github.com/seanyjeong/max-meeting-sub000/pkg/database"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memQueue is an in-memory queue.Queue for tests.
type memQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *memQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Dequeue(_ context.Context) (queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return queue.Job{}, queue.ErrEmpty
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// failQueue rejects every enqueue.
type failQueue struct{}

func (failQueue) Enqueue(context.Context, queue.Job) error {
	return errors.New("redis gone")
}

func (failQueue) Dequeue(context.Context) (queue.Job, error) {
	return queue.Job{}, queue.ErrEmpty
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New())
	db, err := database.ConnectSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type uploadFixture struct {
	service    *UploadService
	recordings repository.RecordingRepository
	tasks      repository.TaskRepository
	queue      *memQueue
}

func newUploadFixture(t *testing.T) uploadFixture {
	db := newTestDB(t)
	q := &memQueue{}
	recordings := repository.NewRecordingRepository(db)
	tasks := repository.NewTaskRepository(db)
	service := NewUploadService(
		recordings, tasks, storage.NewChunkStore(), q,
		logger.NewNop(), t.TempDir(), 1024)
	return uploadFixture{service: service, recordings: recordings, tasks: tasks, queue: q}
}

func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestInitUploadValidation(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	valid := InitUploadInput{
		MeetingID:        uuid.New(),
		OriginalFilename: "standup.webm",
		MimeType:         "audio/webm",
		TotalBytes:       10,
		Checksum:         checksumOf([]byte("0123456789")),
	}

	_, err := f.service.InitUpload(ctx, valid)
	assert.NoError(t, err)

	bad := valid
	bad.MimeType = "application/zip"
	_, err = f.service.InitUpload(ctx, bad)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))

	bad = valid
	bad.TotalBytes = 0
	_, err = f.service.InitUpload(ctx, bad)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))

	bad = valid
	bad.Checksum = "not-a-checksum"
	_, err = f.service.InitUpload(ctx, bad)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))

	bad = valid
	bad.MeetingID = uuid.Nil
	_, err = f.service.InitUpload(ctx, bad)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))
}

func TestUploadChunkResumeFlow(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox jumps over the lazy dog")

	init, err := f.service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: int64(len(payload)),
		Checksum:   checksumOf(payload),
	})
	require.NoError(t, err)

	res, err := f.service.UploadChunk(ctx, init.RecordingID, 0, payload[:10])
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.BytesReceived)
	assert.False(t, res.IsComplete)

	// Replaying the first chunk conflicts but reports where to resume.
	res, err = f.service.UploadChunk(ctx, init.RecordingID, 0, payload[:10])
	assert.True(t, errors.Is(err, maxmeet_errors.ErrUploadConflict))
	assert.Equal(t, int64(10), res.BytesReceived)

	// The status query agrees.
	status, err := f.service.Status(ctx, init.RecordingID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), status.BytesReceived)
	assert.False(t, status.IsComplete)

	res, err = f.service.UploadChunk(ctx, init.RecordingID, 10, payload[10:])
	require.NoError(t, err)
	assert.True(t, res.IsComplete)

	rec, err := f.recordings.GetByID(ctx, init.RecordingID)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusProcessing, rec.Status)
	assert.Equal(t, 1, f.queue.len())
}

func TestUploadChunkBounds(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	init, err := f.service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: 8,
		Checksum:   checksumOf([]byte("12345678")),
	})
	require.NoError(t, err)

	_, err = f.service.UploadChunk(ctx, init.RecordingID, 0, nil)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))

	_, err = f.service.UploadChunk(ctx, init.RecordingID, 0, make([]byte, 2048))
	assert.True(t, errors.Is(err, maxmeet_errors.ErrTooLarge))

	// Write past the declared size.
	_, err = f.service.UploadChunk(ctx, init.RecordingID, 0, []byte("123456789"))
	assert.True(t, errors.Is(err, maxmeet_errors.ErrInvalidInput))
}

func TestCompletingChunkEnqueuesExactlyOnce(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	payload := []byte("audio-bytes")

	init, err := f.service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: int64(len(payload)),
		Checksum:   checksumOf(payload),
	})
	require.NoError(t, err)

	res, err := f.service.UploadChunk(ctx, init.RecordingID, 0, payload)
	require.NoError(t, err)
	require.True(t, res.IsComplete)

	// A duplicate of the completing chunk arrives after the handoff.
	_, err = f.service.UploadChunk(ctx, init.RecordingID, 0, payload)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrUploadClosed))

	assert.Equal(t, 1, f.queue.len())
	job, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, init.RecordingID, job.RecordingID)
	assert.Equal(t, 0, job.Generation)

	got, err := f.tasks.GetByID(ctx, job.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)
}

func TestEnqueueFailureMarksRecordingFailed(t *testing.T) {
	db := newTestDB(t)
	recordings := repository.NewRecordingRepository(db)
	tasks := repository.NewTaskRepository(db)
	service := NewUploadService(
		recordings, tasks, storage.NewChunkStore(), failQueue{},
		logger.NewNop(), t.TempDir(), 1024)

	ctx := context.Background()
	payload := []byte("audio-bytes")
	init, err := service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: int64(len(payload)),
		Checksum:   checksumOf(payload),
	})
	require.NoError(t, err)

	_, err = service.UploadChunk(ctx, init.RecordingID, 0, payload)
	require.Error(t, err)

	// The recording must not be stuck in processing with no task behind
	// it; failed keeps the retry endpoint available.
	rec, err := recordings.GetByID(ctx, init.RecordingID)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusFailed, rec.Status)
	assert.Equal(t, "enqueue_failed", rec.ErrorType)
}

func TestChecksumMismatchFailsWithoutEnqueue(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()
	payload := []byte("actual bytes on the wire")

	init, err := f.service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: int64(len(payload)),
		Checksum:   checksumOf([]byte("what the client promised")),
	})
	require.NoError(t, err)

	_, err = f.service.UploadChunk(ctx, init.RecordingID, 0, payload)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrChecksumMismatch))

	rec, err := f.recordings.GetByID(ctx, init.RecordingID)
	require.NoError(t, err)
	assert.Equal(t, recording.StatusFailed, rec.Status)
	assert.Equal(t, "checksum_mismatch", rec.ErrorType)
	assert.Equal(t, 0, f.queue.len())
}

func TestCleanupStaleUploads(t *testing.T) {
	f := newUploadFixture(t)
	ctx := context.Background()

	init, err := f.service.InitUpload(ctx, InitUploadInput{
		MeetingID:  uuid.New(),
		MimeType:   "audio/webm",
		TotalBytes: 100,
		Checksum:   checksumOf([]byte("x")),
	})
	require.NoError(t, err)

	// Fresh uploads survive.
	removed, err := f.service.CleanupStaleUploads(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	removed, err = f.service.CleanupStaleUploads(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.recordings.GetByID(ctx, init.RecordingID)
	assert.True(t, errors.Is(err, maxmeet_errors.ErrNotFound))
}
