package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/domain"
	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/pkg/util"
)

const bearerPrefix = "Bearer "

// AuthMiddleware validates bearer tokens and populates the request security context.
type AuthMiddleware struct {
	codec     *TokenCodec
	logger    *zap.Logger
	events    events.Dispatcher
	loginPath string
}

// NewAuthMiddleware constructs middleware. Requests to loginPath are not inspected.
func NewAuthMiddleware(codec *TokenCodec, logger *zap.Logger, dispatcher events.Dispatcher, loginPath string) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = events.Discard{}
	}
	return &AuthMiddleware{codec: codec, logger: logger, events: dispatcher, loginPath: loginPath}
}

// Handle passes requests without a bearer token through unauthenticated and rejects
// requests whose token does not verify.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.loginPath != "" && c.Path() == m.loginPath {
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return c.Next()
	}

	token, err := m.codec.Decode(strings.TrimPrefix(authHeader, bearerPrefix))
	if err != nil {
		kind := TokenErrorKind(err)
		m.logger.Warn("token rejected",
			zap.String("kind", kind),
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		m.publish(c, events.NewEvent(events.EventTokenRejected, requestID(c),
			events.Actor{ClientIP: c.IP()},
			events.TokenRejectedPayload{Kind: kind, Path: c.Path()},
		))
		return util.NewInvalidToken(err)
	}

	sc := &domain.SecurityContext{Subject: token.Subject, Roles: token.Roles}
	c.SetUserContext(domain.WithSecurityContext(c.UserContext(), sc))
	return c.Next()
}

func (m *AuthMiddleware) publish(c *fiber.Ctx, event events.Event) {
	if err := m.events.Publish(c.UserContext(), event); err != nil {
		m.logger.Warn("publish auth event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// SecurityContextFromCtx returns the caller of the current request from its user
// context. Unauthenticated requests get an empty context, never nil.
func SecurityContextFromCtx(c *fiber.Ctx) *domain.SecurityContext {
	if sc, ok := domain.SecurityContextFrom(c.UserContext()); ok {
		return sc
	}
	return &domain.SecurityContext{}
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
