package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/pkg/util"
)

const (
	authenticationRequiredMessage = "full authentication is required to access this resource"
	accessDeniedMessage           = "access denied"
)

// Authorize enforces table against the security context populated by AuthMiddleware.
// It must be registered after AuthMiddleware.Handle.
func Authorize(table *PolicyTable, logger *zap.Logger, dispatcher events.Dispatcher) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = events.Discard{}
	}

	return func(c *fiber.Ctx) error {
		sc := SecurityContextFromCtx(c)
		decision := table.Evaluate(c.Method(), c.Path(), sc)
		if decision == Allow {
			return c.Next()
		}

		logger.Info("access denied",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("subject", sc.Subject),
			zap.Stringer("decision", decision),
			zap.String("request_id", requestID(c)),
		)
		event := events.NewEvent(events.EventAccessDenied, requestID(c),
			events.Actor{Subject: sc.Subject, ClientIP: c.IP()},
			events.AccessDeniedPayload{Method: c.Method(), Path: c.Path(), Decision: decision.String()},
		)
		if err := dispatcher.Publish(c.UserContext(), event); err != nil {
			logger.Warn("publish auth event", zap.String("type", string(event.Type)), zap.Error(err))
		}

		if decision == DenyForbidden {
			return util.NewForbidden(accessDeniedMessage)
		}
		return util.NewUnauthorized(authenticationRequiredMessage)
	}
}
