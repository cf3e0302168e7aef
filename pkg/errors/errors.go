package maxmeet_errors

import (
	"errors"
)

// Common errors
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTooLarge       = errors.New("chunk too large")
	ErrAlreadyExists  = errors.New("already exists")
	ErrUploadClosed   = errors.New("upload is no longer accepting chunks")
	ErrRetryExhausted = errors.New("retry limit reached")
)

// Upload and pipeline errors
var (
	// ErrUploadConflict means the chunk offset does not match the bytes
	// already on disk. The client must re-query status and resume from
	// the reported offset.
	ErrUploadConflict = errors.New("upload offset mismatch")

	// ErrChecksumMismatch means the assembled file does not hash to the
	// client-declared checksum. The recording never reaches processing.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrMediaDecode means neither the container metadata nor a full
	// decode pass could determine the audio duration.
	ErrMediaDecode = errors.New("media is not decodable")

	// ErrTranscriptionModel covers inference failures, including
	// resource exhaustion inside the model runtime.
	ErrTranscriptionModel = errors.New("transcription model failure")

	// ErrDiarizationUnavailable is soft: the pipeline continues without
	// speaker labels instead of failing.
	ErrDiarizationUnavailable = errors.New("diarization unavailable")

	// ErrCancelled means the recording was deleted while its job was
	// queued or in flight.
	ErrCancelled = errors.New("recording cancelled")
)
