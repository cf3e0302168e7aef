package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/internal/progress"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/transport/httpdto"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

// LastStatusSource replays the most recent event for late subscribers.
type LastStatusSource interface {
	LastStatus(ctx context.Context, recordingID uuid.UUID) (progress.Event, bool, error)
}

// ProgressHandler is the push gateway: SSE and WebSocket subscribers of
// one recording's progress stream. Events arrive via the in-process hub,
// which the redis bridge feeds; the stream closes itself after relaying
// a terminal event.
type ProgressHandler struct {
	hub        *progress.Hub
	lastStatus LastStatusSource
	recordings repository.RecordingRepository
	log        *logger.Logger
}

func NewProgressHandler(hub *progress.Hub, lastStatus LastStatusSource, recordings repository.RecordingRepository, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		hub:        hub,
		lastStatus: lastStatus,
		recordings: recordings,
		log:        log,
	}
}

// Stream handles GET /v1/recordings/:id/progress as server-sent events.
// Order on the wire: connected first, then the replayed last status if
// any, then live events until a terminal one.
func (h *ProgressHandler) Stream(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	if _, err := h.recordings.GetByID(c.Request.Context(), recordingID); err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("streaming unsupported", "INTERNAL_ERROR"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	sub := h.hub.Subscribe(recordingID)
	defer sub.Close()

	if !writeSSE(c, flusher, progress.Connected(recordingID)) {
		return
	}
	if last, found := h.replay(c.Request.Context(), recordingID); found {
		if !writeSSE(c, flusher, last) || last.Terminal() {
			return
		}
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			if !writeSSE(c, flusher, event) {
				return
			}
			if event.Terminal() {
				return
			}
		}
	}
}

// StreamWS handles GET /v1/recordings/:id/progress/ws with the same
// event sequence over a websocket.
func (h *ProgressHandler) StreamWS(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid recording id", "INVALID_REQUEST"))
		return
	}
	if _, err := h.recordings.GetByID(c.Request.Context(), recordingID); err != nil {
		status, code := statusFor(err)
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorf("websocket upgrade for recording %s: %v", recordingID, err)
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe(recordingID)
	defer sub.Close()

	// Reader goroutine to notice the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !writeWS(conn, progress.Connected(recordingID)) {
		return
	}
	if last, found := h.replay(c.Request.Context(), recordingID); found {
		if !writeWS(conn, last) || last.Terminal() {
			return
		}
	}

	for {
		select {
		case <-gone:
			return
		case event, open := <-sub.C:
			if !open {
				return
			}
			if !writeWS(conn, event) {
				return
			}
			if event.Terminal() {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
		}
	}
}

func (h *ProgressHandler) replay(ctx context.Context, recordingID uuid.UUID) (progress.Event, bool) {
	if h.lastStatus == nil {
		return progress.Event{}, false
	}
	event, found, err := h.lastStatus.LastStatus(ctx, recordingID)
	if err != nil {
		h.log.Warnf("replay last status for %s: %v", recordingID, err)
		return progress.Event{}, false
	}
	return event, found
}

func writeSSE(c *gin.Context, flusher http.Flusher, event progress.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := c.Writer.Write(payload); err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func writeWS(conn *websocket.Conn, event progress.Event) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event) == nil
}
