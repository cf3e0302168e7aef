package handler

import (
	"net/http"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/domain/recording"
	"github.com/seanyjeong/max-meeting-sub000/internal/services"
	"github.com/seanyjeong/max-meeting-sub000/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecordingHandler struct {
	service *services.RecordingService
}

func NewRecordingHandler(service *services.RecordingService) *RecordingHandler {
	return &RecordingHandler{service: service}
}

// Get handles GET /v1/recordings/:id. Segments are ordered by start
// time; a recording still processing returns the transcribed prefix.
func (h *RecordingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	rec, segs, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	out := httpdto.GetRecordingResponse{
		Recording: toRecordingDTO(rec),
		Segments:  make([]httpdto.SegmentDTO, 0, len(segs)),
	}
	for _, s := range segs {
		out.Segments = append(out.Segments, httpdto.SegmentDTO{
			ChunkIndex:   s.ChunkIndex,
			StartSeconds: s.StartSeconds,
			EndSeconds:   s.EndSeconds,
			Text:         s.Text,
			SpeakerLabel: s.SpeakerLabel,
			Confidence:   s.Confidence,
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

// Logs handles GET /v1/recordings/:id/logs
func (h *RecordingHandler) Logs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	entries, err := h.service.Logs(c.Request.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	out := make([]httpdto.ProcessingLogDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, httpdto.ProcessingLogDTO{
			EventType:       e.EventType,
			ChunkIndex:      e.ChunkIndex,
			TotalChunks:     e.TotalChunks,
			DurationSeconds: e.DurationSeconds,
			ErrorType:       e.ErrorType,
			ErrorMessage:    e.ErrorMessage,
			CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"logs": out}))
}

// Delete handles DELETE /v1/recordings/:id
func (h *RecordingHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Retry handles POST /v1/recordings/:id/retry
func (h *RecordingHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	rec, err := h.service.Retry(c.Request.Context(), id)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(toRecordingDTO(rec)))
}

func toRecordingDTO(r recording.Recording) httpdto.RecordingDTO {
	return httpdto.RecordingDTO{
		ID:               r.ID.String(),
		MeetingID:        r.MeetingID.String(),
		OriginalFilename: r.OriginalFilename,
		MimeType:         r.MimeType,
		Format:           r.Format,
		DurationSeconds:  r.DurationSeconds,
		TotalBytes:       r.TotalBytes,
		Status:           string(r.Status),
		ErrorType:        r.ErrorType,
		ErrorMessage:     r.ErrorMessage,
		RetryCount:       r.RetryCount,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
}
