package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	negotiatorx "github.com/tanpawarit/chative-procurement/agent/agents/negotiator"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// Conversations is the run-one-turn surface the handlers drive.
type Conversations interface {
	StartConversation(ctx context.Context, organizationID, vendorID, topic string) (contractx.Conversation, error)
	PostUserMessage(ctx context.Context, conversationID, content string) (contractx.Message, error)
	RespondTurn(ctx context.Context, conversationID string) (negotiatorx.TurnResult, error)
}

type Missions interface {
	Run(ctx context.Context, req contractx.MissionRequest) (contractx.MissionResult, error)
}

type Server struct {
	conversations Conversations
	missions      Missions
	cfg           Config
}

func NewServer(conversations Conversations, missions Missions, cfg Config) (*Server, error) {
	if conversations == nil {
		return nil, fmt.Errorf("%w: conversation service is required", contractx.ErrConfiguration)
	}
	if missions == nil {
		return nil, fmt.Errorf("%w: mission coordinator is required", contractx.ErrConfiguration)
	}
	return &Server{conversations: conversations, missions: missions, cfg: cfg}, nil
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1")
	v1.POST("/conversations", s.startConversation)
	v1.POST("/conversations/:id/messages", s.postMessage)
	v1.POST("/conversations/:id/respond", s.respond)
	v1.POST("/missions", s.runMission)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.cfg.Address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

type startConversationRequest struct {
	OrganizationID string `json:"organization_id"`
	VendorID       string `json:"vendor_id"`
	Topic          string `json:"topic"`
}

func (s *Server) startConversation(c *gin.Context) {
	var req startConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", contractx.ErrValidation, err))
		return
	}
	conv, err := s.conversations.StartConversation(c.Request.Context(), req.OrganizationID, req.VendorID, req.Topic)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "conversation": conv})
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", contractx.ErrValidation, err))
		return
	}
	msg, err := s.conversations.PostUserMessage(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "message": msg})
}

// respond optionally posts a user message, then runs one turn.
func (s *Server) respond(c *gin.Context) {
	id := c.Param("id")
	var req messageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, fmt.Errorf("%w: %v", contractx.ErrValidation, err))
			return
		}
	}
	if strings.TrimSpace(req.Content) != "" {
		if _, err := s.conversations.PostUserMessage(c.Request.Context(), id, req.Content); err != nil {
			writeError(c, err)
			return
		}
	}

	res, err := s.conversations.RespondTurn(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "content": res.Reply, "message": res.Message, "outcome": res.Outcome})
}

func (s *Server) runMission(c *gin.Context) {
	var req contractx.MissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", contractx.ErrValidation, err))
		return
	}
	res, err := s.missions.Run(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "offers": res.Offers, "recommended_vendor": res.RecommendedVendor})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, contractx.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contractx.ErrMissingContext):
		return http.StatusUnprocessableEntity
	case errors.Is(err, contractx.ErrModelInvoke):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": err.Error()})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
