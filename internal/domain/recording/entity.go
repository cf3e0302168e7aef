package recording

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are expected from the
// status, short of an explicit retry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Recording represents one uploaded meeting audio file and its lifecycle.
// Status moves strictly forward (uploading → processing → completed/failed);
// the only re-entry is an explicit retry of a failed recording.
type Recording struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MeetingID uuid.UUID `gorm:"type:uuid;not null;index"`

	FilePath string `gorm:"size:500;not null"`
	// OriginalFilename is what the client claimed. Never used to build
	// paths; SafeFilename is the server-chosen on-disk name.
	OriginalFilename string `gorm:"size:200"`
	SafeFilename     string `gorm:"size:100;not null"`
	MimeType         string `gorm:"size:50;not null"`
	Format           string `gorm:"size:20;default:webm"`

	DurationSeconds int    `gorm:"default:0"`
	TotalBytes      int64  `gorm:"not null"`
	Checksum        string `gorm:"size:64;not null"`

	Status       Status `gorm:"size:20;default:'uploading';index"`
	ErrorType    string `gorm:"size:100"`
	ErrorMessage string `gorm:"type:text"`
	RetryCount   int    `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Recording) TableName() string {
	return "recordings"
}

// TranscriptSegment is one transcribed span on the recording's global
// timeline. Segments of a recording are totally ordered by StartSeconds
// and, while processing, always form a prefix of the final transcript.
type TranscriptSegment struct {
	ID          uint      `gorm:"primaryKey"`
	RecordingID uuid.UUID `gorm:"type:uuid;not null;index:idx_segments_recording"`
	MeetingID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ChunkIndex  int       `gorm:"not null;index:idx_segments_recording"`

	StartSeconds float64 `gorm:"not null"`
	EndSeconds   float64 `gorm:"not null"`
	Text         string  `gorm:"type:text;not null"`
	// SpeakerLabel is empty when diarization was unavailable.
	SpeakerLabel string  `gorm:"size:50"`
	Confidence   float64 `gorm:"default:0"`

	CreatedAt time.Time
}

func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}

// Processing log event types.
const (
	LogEventStart         = "start"
	LogEventChunkComplete = "chunk_complete"
	LogEventComplete      = "complete"
	LogEventError         = "error"
)

// ProcessingLog is an append-only audit trail of pipeline events. Rows are
// never mutated after insert.
type ProcessingLog struct {
	ID          uint      `gorm:"primaryKey"`
	RecordingID uuid.UUID `gorm:"type:uuid;not null;index"`
	TaskID      uuid.UUID `gorm:"type:uuid"`

	EventType   string `gorm:"size:50;not null;index"`
	ChunkIndex  *int
	TotalChunks *int

	DurationSeconds      float64
	AudioDurationSeconds float64
	AudioFileSizeBytes   int64

	TranscriptLength int
	WordCount        int

	ErrorType    string `gorm:"size:100"`
	ErrorMessage string `gorm:"type:text"`
	ErrorContext string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index"`
}

func (ProcessingLog) TableName() string {
	return "processing_logs"
}
