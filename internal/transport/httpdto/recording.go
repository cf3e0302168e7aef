package httpdto

// RecordingDTO represents a recording in API responses
type RecordingDTO struct {
	ID               string `json:"id"`
	MeetingID        string `json:"meeting_id"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	Format           string `json:"format"`
	DurationSeconds  int    `json:"duration_seconds"`
	TotalBytes       int64  `json:"total_bytes"`
	Status           string `json:"status"`
	ErrorType        string `json:"error_type,omitempty"`
	ErrorMessage     string `json:"error_message,omitempty"`
	RetryCount       int    `json:"retry_count"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SegmentDTO is one transcript span on the recording's global timeline
type SegmentDTO struct {
	ChunkIndex   int     `json:"chunk_index"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
	SpeakerLabel string  `json:"speaker_label,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// GetRecordingResponse is returned for GET /v1/recordings/:id
type GetRecordingResponse struct {
	Recording RecordingDTO `json:"recording"`
	Segments  []SegmentDTO `json:"segments"`
}

// ProcessingLogDTO is one row of the append-only processing trail
type ProcessingLogDTO struct {
	EventType       string  `json:"event_type"`
	ChunkIndex      *int    `json:"chunk_index,omitempty"`
	TotalChunks     *int    `json:"total_chunks,omitempty"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	ErrorType       string  `json:"error_type,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
}
