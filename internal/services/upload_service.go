package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/storage"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"
)

// allowedFormats maps accepted mime types to the on-disk extension. The
// client's filename is never trusted for path construction.
var allowedFormats = map[string]string{
	"audio/webm":  "webm",
	"video/webm":  "webm",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/ogg":   "ogg",
}

var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type InitUploadInput struct {
	MeetingID        uuid.UUID
	OriginalFilename string
	MimeType         string
	TotalBytes       int64
	Checksum         string
}

type InitUploadResult struct {
	RecordingID  uuid.UUID
	MaxChunkSize int64
}

type ChunkResult struct {
	BytesReceived int64
	TotalBytes    int64
	IsComplete    bool
}

// UploadService owns the resumable upload session: one append-only file
// per recording, strict offsets, and the single atomic handoff into
// processing when the declared size is reached.
type UploadService struct {
	recordings repository.RecordingRepository
	tasks      repository.TaskRepository
	store      *storage.ChunkStore
	queue      queue.Queue
	log        *logger.Logger

	basePath     string
	maxChunkSize int64
}

func NewUploadService(
	recordings repository.RecordingRepository,
	tasks repository.TaskRepository,
	store *storage.ChunkStore,
	q queue.Queue,
	log *logger.Logger,
	basePath string,
	maxChunkSize int64,
) *UploadService {
	if maxChunkSize <= 0 {
		maxChunkSize = 5 << 20
	}
	return &UploadService{
		recordings:   recordings,
		tasks:        tasks,
		store:        store,
		queue:        q,
		log:          log,
		basePath:     basePath,
		maxChunkSize: maxChunkSize,
	}
}

func (s *UploadService) MaxChunkSize() int64 {
	return s.maxChunkSize
}

// InitUpload registers a new recording in uploading state and reserves a
// server-chosen on-disk name for it.
func (s *UploadService) InitUpload(ctx context.Context, in InitUploadInput) (InitUploadResult, error) {
	if in.MeetingID == uuid.Nil {
		return InitUploadResult{}, fmt.Errorf("%w: meeting_id is required", maxmeet_errors.ErrInvalidInput)
	}
	if in.TotalBytes <= 0 {
		return InitUploadResult{}, fmt.Errorf("%w: total_bytes must be positive", maxmeet_errors.ErrInvalidInput)
	}
	if !checksumPattern.MatchString(in.Checksum) {
		return InitUploadResult{}, fmt.Errorf("%w: checksum must be 64 hex characters", maxmeet_errors.ErrInvalidInput)
	}
	ext, ok := allowedFormats[in.MimeType]
	if !ok {
		return InitUploadResult{}, fmt.Errorf("%w: unsupported mime type %q", maxmeet_errors.ErrInvalidInput, in.MimeType)
	}

	id := uuid.New()
	safeName := fmt.Sprintf("%s.%s", id, ext)
	rec := recording.Recording{
		ID:               id,
		MeetingID:        in.MeetingID,
		FilePath:         filepath.Join(s.basePath, in.MeetingID.String(), safeName),
		OriginalFilename: in.OriginalFilename,
		SafeFilename:     safeName,
		MimeType:         in.MimeType,
		Format:           ext,
		TotalBytes:       in.TotalBytes,
		Checksum:         in.Checksum,
		Status:           recording.StatusUploading,
	}
	if err := s.recordings.Create(ctx, &rec); err != nil {
		return InitUploadResult{}, err
	}

	s.log.InfofCtx(ctx, "upload %s initialized for meeting %s (%d bytes, %s)",
		rec.ID, rec.MeetingID, rec.TotalBytes, rec.MimeType)
	return InitUploadResult{RecordingID: rec.ID, MaxChunkSize: s.maxChunkSize}, nil
}

// UploadChunk appends one chunk at the given offset. A wrong offset
// returns ErrUploadConflict together with the current committed offset
// so the client can resume. The chunk that reaches total_bytes verifies
// the checksum and performs the handoff into processing; only the caller
// that wins the status transition creates and enqueues the task.
func (s *UploadService) UploadChunk(ctx context.Context, recordingID uuid.UUID, offset int64, data []byte) (ChunkResult, error) {
	if len(data) == 0 {
		return ChunkResult{}, fmt.Errorf("%w: empty chunk", maxmeet_errors.ErrInvalidInput)
	}
	if int64(len(data)) > s.maxChunkSize {
		return ChunkResult{}, fmt.Errorf("%w: chunk of %d bytes exceeds limit %d",
			maxmeet_errors.ErrTooLarge, len(data), s.maxChunkSize)
	}

	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		return ChunkResult{}, err
	}
	if rec.Status != recording.StatusUploading {
		return ChunkResult{TotalBytes: rec.TotalBytes}, fmt.Errorf("%w: recording is %s",
			maxmeet_errors.ErrUploadClosed, rec.Status)
	}
	if offset < 0 || offset+int64(len(data)) > rec.TotalBytes {
		return ChunkResult{TotalBytes: rec.TotalBytes}, fmt.Errorf("%w: chunk would exceed declared size %d",
			maxmeet_errors.ErrInvalidInput, rec.TotalBytes)
	}

	size, err := s.store.Append(rec.FilePath, offset, data)
	if err != nil {
		// On a conflict the store reports the committed size; surface it
		// so the client can resume from there.
		return ChunkResult{BytesReceived: size, TotalBytes: rec.TotalBytes}, err
	}

	res := ChunkResult{BytesReceived: size, TotalBytes: rec.TotalBytes, IsComplete: size == rec.TotalBytes}
	if !res.IsComplete {
		return res, nil
	}
	if err := s.finalize(ctx, rec); err != nil {
		return res, err
	}
	return res, nil
}

// finalize runs once per recording: checksum verification and the
// uploading → processing handoff. Losing the transition means a racing
// duplicate already finalized; that is a success for this caller too.
func (s *UploadService) finalize(ctx context.Context, rec recording.Recording) error {
	sum, err := s.store.Checksum(rec.FilePath)
	if err != nil {
		return fmt.Errorf("compute checksum: %w", err)
	}
	if sum != rec.Checksum {
		msg := fmt.Sprintf("declared %s, computed %s", rec.Checksum, sum)
		if markErr := s.recordings.MarkFailed(ctx, rec.ID, "checksum_mismatch", msg); markErr != nil {
			s.log.Errorf("mark recording %s failed: %v", rec.ID, markErr)
		}
		return fmt.Errorf("%w: %s", maxmeet_errors.ErrChecksumMismatch, msg)
	}

	won, err := s.recordings.TransitionStatus(ctx, rec.ID, recording.StatusUploading, recording.StatusProcessing)
	if err != nil {
		return err
	}
	if !won {
		s.log.InfofCtx(ctx, "recording %s already finalized, skipping enqueue", rec.ID)
		return nil
	}
	if err := s.enqueueTask(ctx, rec.ID, rec.RetryCount); err != nil {
		// The transition already happened, so without compensation the
		// recording would sit in processing with no task behind it. Mark
		// it failed so the retry endpoint can re-enqueue.
		if markErr := s.recordings.MarkFailed(ctx, rec.ID, "enqueue_failed", err.Error()); markErr != nil {
			s.log.Errorf("mark recording %s failed after enqueue error: %v", rec.ID, markErr)
		}
		return err
	}
	return nil
}

func (s *UploadService) enqueueTask(ctx context.Context, recordingID uuid.UUID, generation int) error {
	t := task.TranscriptionTask{
		ID:          uuid.New(),
		RecordingID: recordingID,
		Generation:  generation,
		Status:      task.StatusPending,
	}
	if err := s.tasks.Create(ctx, &t); err != nil {
		return fmt.Errorf("create transcription task: %w", err)
	}
	if err := s.queue.Enqueue(ctx, queue.Job{
		TaskID:      t.ID,
		RecordingID: recordingID,
		Generation:  generation,
	}); err != nil {
		return fmt.Errorf("enqueue transcription task: %w", err)
	}
	s.log.InfofCtx(ctx, "recording %s enqueued as task %s (generation %d)", recordingID, t.ID, generation)
	return nil
}

// Status reports committed bytes for a resuming client. Side-effect free.
func (s *UploadService) Status(ctx context.Context, recordingID uuid.UUID) (ChunkResult, error) {
	rec, err := s.recordings.GetByID(ctx, recordingID)
	if err != nil {
		return ChunkResult{}, err
	}
	size, err := s.store.Size(rec.FilePath)
	if err != nil {
		return ChunkResult{}, err
	}
	return ChunkResult{
		BytesReceived: size,
		TotalBytes:    rec.TotalBytes,
		IsComplete:    rec.Status != recording.StatusUploading || size == rec.TotalBytes,
	}, nil
}

// CleanupStaleUploads removes recordings stuck in uploading past the
// cutoff, along with their partial files. Returns how many were removed.
func (s *UploadService) CleanupStaleUploads(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.recordings.GetStaleUploading(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range stale {
		if err := s.store.Remove(rec.FilePath); err != nil {
			s.log.Warnf("remove stale upload file %s: %v", rec.FilePath, err)
			continue
		}
		if err := s.recordings.Delete(ctx, rec.ID); err != nil {
			s.log.Warnf("delete stale recording %s: %v", rec.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Infof("removed %d stale uploads older than %s", removed, olderThan)
	}
	return removed, nil
}
