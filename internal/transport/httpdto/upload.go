package httpdto

// InitUploadRequest is used for POST /v1/meetings/:meeting_id/recordings
type InitUploadRequest struct {
	OriginalFilename string `json:"original_filename" binding:"required"`
	MimeType         string `json:"mime_type" binding:"required"`
	TotalBytes       int64  `json:"total_bytes" binding:"required"`
	Checksum         string `json:"checksum" binding:"required"`
}

// InitUploadResponse is returned after creating an upload session
type InitUploadResponse struct {
	RecordingID  string `json:"recording_id"`
	MaxChunkSize int64  `json:"max_chunk_size"`
}

// ChunkResponse is returned for every accepted chunk and for the upload
// status query. On an offset conflict the same shape is returned with
// HTTP 409 so the client can resume from bytes_received.
type ChunkResponse struct {
	BytesReceived int64 `json:"bytes_received"`
	TotalBytes    int64 `json:"total_bytes"`
	IsComplete    bool  `json:"is_complete"`
}
