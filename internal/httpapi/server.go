// Package httpapi exposes the agent's HTTP surface: the log relay
// write endpoint, session log retrieval, and the call session controls.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nexusagent/internal/domain"
	"nexusagent/internal/ports"
	"nexusagent/internal/usecase"
)

// Handlers contains the HTTP handlers for the agent server.
type Handlers struct {
	controller *usecase.Controller
	logs       ports.LogStore
	logger     *slog.Logger
}

func NewHandlers(controller *usecase.Controller, logs ports.LogStore, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{controller: controller, logs: logs, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (h *Handlers) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/logs", h.writeLog)
		api.GET("/logs/:sessionId", h.queryLogs)

		api.POST("/calls", h.startCall)
		api.POST("/calls/:id/start", h.retryCall)
		api.DELETE("/calls/:id", h.disconnect)
		api.GET("/calls/:id", h.callStatus)
	}
	return r
}

type writeLogRequest struct {
	SessionID string         `json:"sessionId" binding:"required"`
	UserID    string         `json:"userId"`
	Type      domain.LogKind `json:"type" binding:"required"`
	Data      map[string]any `json:"data"`
}

// writeLog is the fire-and-forget relay endpoint. A store failure is
// diagnostic-only; clients never see it.
func (h *Handlers) writeLog(c *gin.Context) {
	var req writeLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log payload"})
		return
	}
	if !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown log type"})
		return
	}

	rec := domain.LogRecord{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Kind:      req.Type,
		Data:      req.Data,
	}
	if err := h.logs.Append(c.Request.Context(), rec); err != nil {
		h.logger.Warn("failed to append relayed log", "sessionId", req.SessionID, "error", err)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handlers) queryLogs(c *gin.Context) {
	sessionID := c.Param("sessionId")
	records, err := h.logs.Query(c.Request.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to query session logs", "sessionId", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session logs"})
		return
	}
	if records == nil {
		records = []domain.LogRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "logs": records})
}

type startCallRequest struct {
	Mode        domain.SessionMode `json:"mode" binding:"required"`
	UserName    string             `json:"userName"`
	UserID      string             `json:"userId" binding:"required"`
	InterviewID string             `json:"interviewId"`
	FeedbackID  string             `json:"feedbackId"`
	Questions   []string           `json:"questions"`
}

func (h *Handlers) startCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode != domain.ModeGenerate && req.Mode != domain.ModeInterview {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be generate or interview"})
		return
	}

	status, err := h.controller.StartCall(c.Request.Context(), usecase.StartParams{
		Mode:        req.Mode,
		UserName:    req.UserName,
		UserID:      req.UserID,
		InterviewID: req.InterviewID,
		FeedbackID:  req.FeedbackID,
		Questions:   req.Questions,
	})
	if err != nil {
		// The session exists and may be retried; report it with the error.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": status})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": status})
}

func (h *Handlers) retryCall(c *gin.Context) {
	status, err := h.controller.RetryCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err, status)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": status})
}

func (h *Handlers) disconnect(c *gin.Context) {
	status, err := h.controller.Disconnect(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondSessionError(c, err, status)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": status})
}

func (h *Handlers) callStatus(c *gin.Context) {
	sessionID := c.Param("id")
	status, err := h.controller.Status(sessionID)
	if err != nil {
		h.respondSessionError(c, err, status)
		return
	}
	resp := gin.H{"session": status}
	if result, _ := h.controller.Result(sessionID); result != nil {
		resp["result"] = result
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) respondSessionError(c *gin.Context, err error, status domain.SessionStatus) {
	switch {
	case errors.Is(err, usecase.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrCallNotActive),
		errors.Is(err, usecase.ErrCallInProgress),
		errors.Is(err, usecase.ErrCallFinished):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": status})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": status})
	}
}
