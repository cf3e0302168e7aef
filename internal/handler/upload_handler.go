package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/seanyjeong/max-meeting-sub000/internal/services"
	"github.com/seanyjeong/max-meeting-sub000/internal/transport/httpdto"
	maxmeet_errors "github.com/seanyjeong/max-meeting-sub000/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Init handles POST /v1/meetings/:meeting_id/recordings
func (h *UploadHandler) Init(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("meeting_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid meeting id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.InitUpload(c.Request.Context(), services.InitUploadInput{
		MeetingID:        meetingID,
		OriginalFilename: req.OriginalFilename,
		MimeType:         req.MimeType,
		TotalBytes:       req.TotalBytes,
		Checksum:         req.Checksum,
	})
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.InitUploadResponse{
		RecordingID:  res.RecordingID.String(),
		MaxChunkSize: res.MaxChunkSize,
	}))
}

// Chunk handles PATCH /v1/recordings/:id/chunks. The chunk offset rides
// in the Upload-Offset header, the chunk bytes in the raw body. The
// committed offset is echoed in Upload-Offset on every response,
// including the 409 that tells a client where to resume.
func (h *UploadHandler) Chunk(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	offset, err := strconv.ParseInt(c.GetHeader("Upload-Offset"), 10, 64)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("missing or invalid Upload-Offset header", "INVALID_REQUEST"))
		return
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("could not read chunk body", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.UploadChunk(c.Request.Context(), recordingID, offset, data)
	c.Header("Upload-Offset", fmt.Sprintf("%d", res.BytesReceived))
	if err != nil {
		if errors.Is(err, maxmeet_errors.ErrUploadConflict) {
			c.JSON(http.StatusConflict, httpdto.NewErrorResponse(
				fmt.Sprintf("offset mismatch, resume from %d", res.BytesReceived), "OFFSET_CONFLICT"))
			return
		}
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChunkResponse{
		BytesReceived: res.BytesReceived,
		TotalBytes:    res.TotalBytes,
		IsComplete:    res.IsComplete,
	}))
}

// Status handles GET /v1/recordings/:id/upload
func (h *UploadHandler) Status(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	res, err := h.service.Status(c.Request.Context(), recordingID)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}
	c.Header("Upload-Offset", fmt.Sprintf("%d", res.BytesReceived))
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ChunkResponse{
		BytesReceived: res.BytesReceived,
		TotalBytes:    res.TotalBytes,
		IsComplete:    res.IsComplete,
	}))
}
