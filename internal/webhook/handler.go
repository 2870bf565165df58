// Package webhook provides the inbound reply webhook bounded context.
// Messaging providers POST delivered replies here; ingestion is idempotent
// by provider message id, so redeliveries are safe.
package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"outreach_backend/internal/outreach/service"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Handler handles inbound reply webhook requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
	log *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(svc *service.Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, log: log}
}

// HandleInboundReply ingests one provider-delivered reply.
func (h *Handler) HandleInboundReply(c *gin.Context) {
	var req transport.IngestReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.svc.IngestInboundReply(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	if result.Duplicate {
		// Acknowledge redeliveries so the provider stops retrying.
		httpkit.OK(c, gin.H{"status": "duplicate"})
		return
	}
	httpkit.OK(c, result)
}
