// Package handler exposes the outreach run API over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for outreach runs.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new outreach handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the run routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Launch)
	rg.GET("/:id", h.GetRun)
	rg.GET("/:id/anomalies", h.ListAnomalies)
	rg.GET("/:id/leads", h.ListLeads)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/pause", h.Pause)
	rg.POST("/:id/resume", h.Resume)
}

// RegisterMapRoutes registers the conversation map utility routes.
func (h *Handler) RegisterMapRoutes(rg *gin.RouterGroup) {
	rg.POST("/seed", h.SeedMap)
}

func (h *Handler) Launch(c *gin.Context) {
	var req transport.LaunchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	run, err := h.svc.LaunchRun(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *Handler) GetRun(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	run, err := h.svc.GetRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, run)
}

func (h *Handler) ListAnomalies(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	anomalies, err := h.svc.ListAnomalies(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"anomalies": anomalies})
}

func (h *Handler) ListLeads(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	leads, err := h.svc.ListLeads(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"leads": leads})
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	run, err := h.svc.CancelRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, run)
}

func (h *Handler) Pause(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	run, err := h.svc.PauseRun(c.Request.Context(), id, body.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, run)
}

func (h *Handler) Resume(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	run, err := h.svc.ResumeRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, run)
}

func (h *Handler) SeedMap(c *gin.Context) {
	var req transport.SeedMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if err := h.svc.SeedConversationMap(c.Request.Context(), req.CampaignID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "seeded"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
