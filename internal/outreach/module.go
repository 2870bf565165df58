// Package outreach provides the outreach run orchestration domain module.
package outreach

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/conversation"
	"outreach_backend/internal/events"
	"outreach_backend/internal/gateway/completion"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/outreach/handler"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Module represents the outreach run domain module.
type Module struct {
	handler    *handler.Handler
	service    *service.Service
	repository *repository.Repository
	flow       *conversation.Flow
}

// NewModule creates the outreach module with all dependencies wired.
// The completer may be a disabled client; composition and classification
// degrade per their own rules.
func NewModule(pool *pgxpool.Pool, bus events.Bus, completer completion.Completer, val *validator.Validator, log *logger.Logger, fallbackMarketplaceToken string) *Module {
	repo := repository.New(pool)
	composer := conversation.NewComposer(completer, log)
	classifier := conversation.NewClassifier(completer, log)
	flow := conversation.NewFlow(repo, composer, classifier, bus, log)
	svc := service.New(repo, flow, bus, log, fallbackMarketplaceToken)
	h := handler.New(svc, val)

	return &Module{
		handler:    h,
		service:    svc,
		repository: repo,
		flow:       flow,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "outreach"
}

// Service returns the service layer for external use (webhook module, tests).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the shared persistence layer to the scheduler binary.
func (m *Module) Repository() *repository.Repository {
	return m.repository
}

// Flow exposes the conversation engine to the scheduler binary.
func (m *Module) Flow() *conversation.Flow {
	return m.flow
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/runs"))
	m.handler.RegisterMapRoutes(ctx.V1.Group("/conversation-maps"))
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
