package webhook

import (
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the webhook module. It shares the outreach service so
// webhook and IMAP ingestion follow the same path.
func NewModule(svc *service.Service, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(svc, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the reply webhook. The /webhooks group carries the
// API-key guard; providers get their own stricter rate limit upstream of it.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/replies", m.handler.HandleInboundReply)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
