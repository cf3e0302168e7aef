package progress

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindConnected     Kind = "connected"
	KindStart         Kind = "start"
	KindChunkComplete Kind = "chunk_complete"
	KindComplete      Kind = "complete"
	KindError         Kind = "error"
)

// Metrics is attached to complete events only.
type Metrics struct {
	SegmentCount    int     `json:"segment_count"`
	WordCount       int     `json:"word_count"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Event is the closed union of progress notifications for one recording.
// Build events with the constructors below; they enforce the per-kind
// schema, in particular that progress_percent reaches 100 only on the
// terminal complete event.
type Event struct {
	Kind        Kind      `json:"kind"`
	RecordingID uuid.UUID `json:"recording_id"`
	Status      string    `json:"status"`
	Percent     int       `json:"progress_percent"`
	Message     string    `json:"message"`
	ErrorType   string    `json:"error_type,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Terminal reports whether the gateway should close the channel after
// relaying this event.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// PercentFor computes floor(done/total*100) clamped to 99 while any chunk
// remains. 100 is reserved for the finalize step.
func PercentFor(done, total int) int {
	if total <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > 99 {
		p = 99
	}
	if p < 0 {
		p = 0
	}
	return p
}

func Connected(recordingID uuid.UUID) Event {
	return Event{
		Kind:        KindConnected,
		RecordingID: recordingID,
		Status:      "connected",
		Message:     "subscribed to progress",
		Timestamp:   time.Now().UTC(),
	}
}

func Start(recordingID uuid.UUID, totalChunks int) Event {
	return Event{
		Kind:        KindStart,
		RecordingID: recordingID,
		Status:      "processing",
		Percent:     0,
		Message:     startMessage(totalChunks),
		Timestamp:   time.Now().UTC(),
	}
}

func ChunkComplete(recordingID uuid.UUID, done, total int, message string) Event {
	return Event{
		Kind:        KindChunkComplete,
		RecordingID: recordingID,
		Status:      "transcribing",
		Percent:     PercentFor(done, total),
		Message:     message,
		Timestamp:   time.Now().UTC(),
	}
}

func Complete(recordingID uuid.UUID, m Metrics) Event {
	return Event{
		Kind:        KindComplete,
		RecordingID: recordingID,
		Status:      "completed",
		Percent:     100,
		Message:     "transcription complete",
		Metrics:     &m,
		Timestamp:   time.Now().UTC(),
	}
}

func Error(recordingID uuid.UUID, errorType, message string, percent int) Event {
	return Event{
		Kind:        KindError,
		RecordingID: recordingID,
		Status:      "failed",
		Percent:     percent,
		Message:     message,
		ErrorType:   errorType,
		Timestamp:   time.Now().UTC(),
	}
}

func startMessage(totalChunks int) string {
	if totalChunks == 1 {
		return "transcribing 1 chunk"
	}
	return fmt.Sprintf("transcribing %d chunks", totalChunks)
}
