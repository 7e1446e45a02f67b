package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-ai/server/internal/assistant"
	"github.com/atelier-ai/server/internal/core"
	errx "github.com/atelier-ai/server/internal/core/error"
	logx "github.com/atelier-ai/server/pkg/logger"
)

// abortWithError converts an error into a JSON response, using the safe
// status and message of an errx.Error when the chain carries one.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := errx.SystemErrorMessage
	var xe *errx.Error
	if errors.As(err, &xe) {
		if xe.Status != 0 {
			status = xe.Status
		}
		if xe.Message != "" {
			msg = xe.Message
		}
	}
	logx.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(status, errorResponse{Error: msg})
}

type Config struct {
	Addr         string
	AllowOrigins []string
	Environment  core.Environment
}

// Server is the HTTP front of the assistant: the streaming chat endpoint plus
// transcript, usage, health and metrics routes.
type Server struct {
	cfg  Config
	chat *assistant.ChatService
	rdb  redis.Cmdable
	http *http.Server
}

func New(cfg Config, chat *assistant.ChatService, rdb redis.Cmdable) *Server {
	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, chat: chat, rdb: rdb}

	r := gin.New()
	r.Use(RequestID(), Metrics(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", requestIDHeader},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/conversations/:id/messages", s.handleChat)
	v1.GET("/conversations/:id/turns", s.handleTranscript)
	v1.GET("/conversations/:id/usage", s.handleUsage)
	v1.DELETE("/conversations/:id", s.handleClear)

	s.http = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully. In-flight
// streams get a drain window before the listener is torn down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.rdb.Ping(c.Request.Context()).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "redis unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTranscript(c *gin.Context) {
	conversationID := c.Param("id")
	turns, err := s.chat.Transcript(c.Request.Context(), conversationID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, transcriptResponse{ConversationID: conversationID, Turns: turns})
}

func (s *Server) handleUsage(c *gin.Context) {
	conversationID := c.Param("id")
	totals, cost, err := s.chat.UsageReport(c.Request.Context(), conversationID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, usageResponse{
		ConversationID: conversationID,
		UsageTotals:    totals,
		CostUSD:        cost,
	})
}

func (s *Server) handleClear(c *gin.Context) {
	if err := s.chat.Clear(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
