package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-ai/server/internal/assistant/stream"
	logx "github.com/atelier-ai/server/pkg/logger"
	"github.com/atelier-ai/server/pkg/metrics"
)

// sseWriter frames turn events as `data: <json>` lines over a long-lived
// response. It is driven by exactly one turn's goroutine, so no locking.
type sseWriter struct {
	w        gin.ResponseWriter
	terminal bool
}

func newSSEWriter(c *gin.Context) *sseWriter {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	return &sseWriter{w: c.Writer}
}

func (s *sseWriter) send(payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.w.Flush()
	return nil
}

func (s *sseWriter) Chunk(text string) error {
	if s.terminal {
		return nil
	}
	if err := s.send(chunkEvent{Type: "chunk", Text: text}); err != nil {
		return err
	}
	metrics.ChunkEventsTotal.Inc()
	return nil
}

func (s *sseWriter) Done(message string, shouldGenerateImage bool) error {
	if s.terminal {
		return nil
	}
	s.terminal = true
	return s.send(doneEvent{Type: "done", Message: message, ShouldGenerateImage: shouldGenerateImage})
}

func (s *sseWriter) Error(reason string) error {
	if s.terminal {
		return nil
	}
	s.terminal = true
	return s.send(errorEvent{Type: "error", Error: reason})
}

var _ stream.EventWriter = (*sseWriter)(nil)

// handleChat runs one turn, streaming progress events to the caller.
func (s *Server) handleChat(c *gin.Context) {
	conversationID := c.Param("id")

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	w := newSSEWriter(c)
	if err := s.chat.HandleTurn(c.Request.Context(), conversationID, req.Message, w); err != nil {
		logx.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("request_id", c.GetString("request_id")).
			Msg("turn failed")
	}
}
