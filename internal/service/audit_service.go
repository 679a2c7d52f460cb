package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/internal/observability"
)

// AuditService records authentication and authorization outcomes.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventTokenRejected, a.handleSecurityEvent)
	a.dispatcher.Subscribe(events.EventAccessDenied, a.handleSecurityEvent)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthEvent(string(event.Type))
	a.logger.Info("LoginSucceeded", eventFields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthEvent(string(event.Type))
	a.logger.Warn("LoginFailed", eventFields(event)...)
	return nil
}

func (a *AuditService) handleSecurityEvent(_ context.Context, event events.Event) error {
	a.metrics.RecordAuthEvent(string(event.Type))
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("request_id", event.RequestID),
		zap.String("subject", event.Actor.Subject),
		zap.String("client_ip", event.Actor.ClientIP),
		zap.Any("payload", event.Payload),
	}
}
