package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/domain/task"
	"github.com/seanyjeong/max-meeting-sub000/internal/media"
	"github.com/seanyjeong/max-meeting-sub000/internal/progress"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/stt"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"
)

// Prober measures the true duration of the source audio.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Extractor cuts one chunk of the source into a decodable artifact.
type Extractor interface {
	Extract(ctx context.Context, src string, c media.Chunk, dir string) (string, error)
}

// FileArchiver optionally copies a completed recording to object storage.
type FileArchiver interface {
	Archive(ctx context.Context, key, path, contentType string) error
}

// Pipeline turns one uploaded recording into transcript segments:
// split → transcribe → diarize → merge, strictly in chunk-index order.
// Chunks of one recording are processed sequentially inside a single
// run; concurrency lives across recordings in the worker pool. The
// per-chunk temporary artifacts are owned by this run alone and removed
// on every exit path.
type Pipeline struct {
	recordings  repository.RecordingRepository
	segments    repository.SegmentRepository
	logs        repository.ProcessingLogRepository
	engine      stt.Engine
	diarizer    stt.Diarizer
	broadcaster progress.Broadcaster
	prober      Prober
	extractor   Extractor
	archiver    FileArchiver
	log         *logger.Logger

	chunkSeconds float64
	language     string
}

type Options struct {
	ChunkSeconds float64
	Language     string
	// Archiver may be nil; archiving is best effort.
	Archiver FileArchiver
}

func New(
	recordings repository.RecordingRepository,
	segments repository.SegmentRepository,
	logs repository.ProcessingLogRepository,
	engine stt.Engine,
	diarizer stt.Diarizer,
	broadcaster progress.Broadcaster,
	prober Prober,
	extractor Extractor,
	log *logger.Logger,
	opts Options,
) *Pipeline {
	chunkSeconds := opts.ChunkSeconds
	if chunkSeconds <= 0 {
		chunkSeconds = 600
	}
	return &Pipeline{
		recordings:   recordings,
		segments:     segments,
		logs:         logs,
		engine:       engine,
		diarizer:     diarizer,
		broadcaster:  broadcaster,
		prober:       prober,
		extractor:    extractor,
		archiver:     opts.Archiver,
		log:          log,
		chunkSeconds: chunkSeconds,
		language:     opts.Language,
	}
}

// Run executes the pipeline for one claimed task. A task whose recording
// is gone or already terminal is a no-op; ErrCancelled is returned when
// the recording disappears mid-flight.
func (p *Pipeline) Run(ctx context.Context, t task.TranscriptionTask) error {
	started := time.Now()

	rec, err := p.recordings.GetByID(ctx, t.RecordingID)
	if err != nil {
		if errors.Is(err, maxmeet_errors.ErrNotFound) {
			p.log.Infof("task %s: recording %s gone before start, skipping", t.ID, t.RecordingID)
			return maxmeet_errors.ErrCancelled
		}
		return err
	}
	if rec.Status != recording.StatusProcessing || rec.RetryCount != t.Generation {
		// Stale or duplicate task; the recording moved on without us.
		p.log.Infof("task %s: recording %s in status %s generation %d, task generation %d: no-op",
			t.ID, rec.ID, rec.Status, rec.RetryCount, t.Generation)
		return nil
	}

	duration, err := p.prober.Duration(ctx, rec.FilePath)
	if err != nil {
		p.fail(ctx, rec, t.ID, "media_decode", fmt.Sprintf("could not determine audio duration: %v", err), 0)
		return err
	}

	chunks := media.PlanChunks(duration, p.chunkSeconds)
	if len(chunks) == 0 {
		err := fmt.Errorf("%w: zero-length audio", maxmeet_errors.ErrMediaDecode)
		p.fail(ctx, rec, t.ID, "media_decode", err.Error(), 0)
		return err
	}

	tempDir, err := os.MkdirTemp("", "stt-job-*")
	if err != nil {
		p.fail(ctx, rec, t.ID, "temp_dir", err.Error(), 0)
		return err
	}
	defer os.RemoveAll(tempDir)

	fileSize := int64(0)
	if info, statErr := os.Stat(rec.FilePath); statErr == nil {
		fileSize = info.Size()
	}

	total := len(chunks)
	p.appendLog(ctx, &recording.ProcessingLog{
		RecordingID:          rec.ID,
		TaskID:               t.ID,
		EventType:            recording.LogEventStart,
		TotalChunks:          &total,
		AudioDurationSeconds: duration,
		AudioFileSizeBytes:   fileSize,
	})
	p.publish(ctx, progress.Start(rec.ID, total))

	var (
		segmentCount int
		wordCount    int
		degraded     bool
	)

	for _, chunk := range chunks {
		if err := p.checkAlive(ctx, rec.ID, t.Generation); err != nil {
			p.log.Infof("task %s: recording %s cancelled at chunk %d", t.ID, rec.ID, chunk.Index)
			if errors.Is(err, maxmeet_errors.ErrCancelled) {
				// The delete cascade may have raced with the previous
				// chunk's insert; discard anything that slipped in.
				p.discardSegments(ctx, rec.ID, t.ID)
			}
			return err
		}

		chunkStarted := time.Now()
		rows, words, wasDegraded, err := p.processChunk(ctx, rec, chunk, tempDir)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return fmt.Errorf("%w: %v", maxmeet_errors.ErrCancelled, err)
			}
			errType := "transcription_model"
			if errors.Is(err, maxmeet_errors.ErrMediaDecode) {
				errType = "media_decode"
			}
			percent := progress.PercentFor(chunk.Index, total)
			p.fail(ctx, rec, t.ID, errType, fmt.Sprintf("chunk %d failed: %v", chunk.Index, err), percent)
			return err
		}
		if wasDegraded && !degraded {
			degraded = true
			p.appendLog(ctx, &recording.ProcessingLog{
				RecordingID:  rec.ID,
				TaskID:       t.ID,
				EventType:    recording.LogEventError,
				ErrorType:    "diarization_unavailable",
				ErrorMessage: "continuing without speaker labels",
			})
		}

		segmentCount += len(rows)
		wordCount += words

		idx := chunk.Index
		chunkDuration := time.Since(chunkStarted).Seconds()
		p.appendLog(ctx, &recording.ProcessingLog{
			RecordingID:     rec.ID,
			TaskID:          t.ID,
			EventType:       recording.LogEventChunkComplete,
			ChunkIndex:      &idx,
			TotalChunks:     &total,
			DurationSeconds: chunkDuration,
		})

		msg := fmt.Sprintf("transcribed chunk %d/%d", chunk.Index+1, total)
		if degraded {
			msg += " (speaker labels unavailable)"
		}
		p.publish(ctx, progress.ChunkComplete(rec.ID, chunk.Index+1, total, msg))
	}

	// Finalize. The guarded update refuses to resurrect a recording that
	// was deleted while the last chunk was in flight.
	ok, err := p.recordings.SetCompleted(ctx, rec.ID, int(duration+0.5))
	if err != nil {
		return err
	}
	if !ok {
		p.log.Infof("task %s: recording %s gone at finalize, discarding results", t.ID, rec.ID)
		p.discardSegments(ctx, rec.ID, t.ID)
		return maxmeet_errors.ErrCancelled
	}

	if p.archiver != nil {
		key := path.Join(rec.MeetingID.String(), rec.SafeFilename)
		if aerr := p.archiver.Archive(ctx, key, rec.FilePath, rec.MimeType); aerr != nil {
			p.log.Warnf("task %s: archive recording %s: %v", t.ID, rec.ID, aerr)
		}
	}

	p.appendLog(ctx, &recording.ProcessingLog{
		RecordingID:          rec.ID,
		TaskID:               t.ID,
		EventType:            recording.LogEventComplete,
		TotalChunks:          &total,
		DurationSeconds:      time.Since(started).Seconds(),
		AudioDurationSeconds: duration,
		TranscriptLength:     segmentCount,
		WordCount:            wordCount,
	})
	p.publish(ctx, progress.Complete(rec.ID, progress.Metrics{
		SegmentCount:    segmentCount,
		WordCount:       wordCount,
		DurationSeconds: duration,
	}))

	p.log.Infof("task %s: recording %s complete, %d segments, %d words, %.1fs audio",
		t.ID, rec.ID, segmentCount, wordCount, duration)
	return nil
}

// processChunk extracts, transcribes and diarizes one chunk, persists its
// segments, and removes the chunk artifact before returning.
func (p *Pipeline) processChunk(ctx context.Context, rec recording.Recording, chunk media.Chunk, tempDir string) (rows []recording.TranscriptSegment, words int, degraded bool, err error) {
	artifact, err := p.extractor.Extract(ctx, rec.FilePath, chunk, tempDir)
	if err != nil {
		return nil, 0, false, fmt.Errorf("%w: %v", maxmeet_errors.ErrMediaDecode, err)
	}
	defer os.Remove(artifact)

	result, err := p.engine.Transcribe(ctx, artifact, p.language)
	if err != nil {
		return nil, 0, false, err
	}

	segs := result.Segments
	// A diarizer that is configured off is normal operation; only a
	// configured diarizer failing counts as degradation.
	if p.diarizer != nil && p.diarizer.Available() {
		turns, derr := p.diarizer.Diarize(ctx, artifact)
		if derr != nil {
			// Degraded but successful: continue without speaker labels.
			p.log.Warnf("recording %s chunk %d: diarization skipped: %v", rec.ID, chunk.Index, derr)
			degraded = true
		} else {
			segs = stt.AssignSpeakers(segs, turns)
		}
	}

	boundary := chunk.StartSeconds + chunk.LengthSeconds
	for _, s := range segs {
		start := chunk.StartSeconds + s.StartSeconds
		end := chunk.StartSeconds + s.EndSeconds
		// Exact abutment: a segment overrunning its chunk is clamped to
		// the boundary so neighbors never overlap.
		if end > boundary {
			end = boundary
		}
		if end <= start {
			continue
		}
		rows = append(rows, recording.TranscriptSegment{
			RecordingID:  rec.ID,
			MeetingID:    rec.MeetingID,
			ChunkIndex:   chunk.Index,
			StartSeconds: start,
			EndSeconds:   end,
			Text:         s.Text,
			SpeakerLabel: s.Speaker,
			Confidence:   s.Confidence,
		})
		words += len(strings.Fields(s.Text))
	}

	if err := p.segments.CreateBatch(ctx, rows); err != nil {
		return nil, 0, degraded, fmt.Errorf("persist segments for chunk %d: %w", chunk.Index, err)
	}
	return rows, words, degraded, nil
}

// discardSegments removes every segment persisted for a recording that
// was deleted or superseded mid-run, so nothing outlives the cascade.
func (p *Pipeline) discardSegments(ctx context.Context, recordingID, taskID uuid.UUID) {
	if err := p.segments.DeleteByRecording(ctx, recordingID); err != nil {
		p.log.Warnf("task %s: cleanup segments for %s: %v", taskID, recordingID, err)
	}
}

// checkAlive verifies between chunk boundaries that the recording still
// exists and the task generation is still current.
func (p *Pipeline) checkAlive(ctx context.Context, id uuid.UUID, generation int) error {
	rec, err := p.recordings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, maxmeet_errors.ErrNotFound) {
			return maxmeet_errors.ErrCancelled
		}
		return err
	}
	if rec.Status != recording.StatusProcessing || rec.RetryCount != generation {
		return maxmeet_errors.ErrCancelled
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, rec recording.Recording, taskID uuid.UUID, errType, message string, percent int) {
	if err := p.recordings.MarkFailed(ctx, rec.ID, errType, message); err != nil {
		p.log.Errorf("mark recording %s failed: %v", rec.ID, err)
	}
	p.appendLog(ctx, &recording.ProcessingLog{
		RecordingID:  rec.ID,
		TaskID:       taskID,
		EventType:    recording.LogEventError,
		ErrorType:    errType,
		ErrorMessage: message,
	})
	p.publish(ctx, progress.Error(rec.ID, errType, message, percent))
}

func (p *Pipeline) appendLog(ctx context.Context, entry *recording.ProcessingLog) {
	if err := p.logs.Append(ctx, entry); err != nil {
		p.log.Warnf("append processing log for %s: %v", entry.RecordingID, err)
	}
}

func (p *Pipeline) publish(ctx context.Context, event progress.Event) {
	if err := p.broadcaster.Publish(ctx, event); err != nil {
		p.log.Warnf("publish %s event for %s: %v", event.Kind, event.RecordingID, err)
	}
}
