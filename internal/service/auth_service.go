package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/users-backend/internal/auth"
	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/pkg/util"
)

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// LoginRequestInfo carries request metadata recorded with audit events.
type LoginRequestInfo struct {
	ClientIP  string
	RequestID string
}

// AuthService runs the login flow: verify credentials once, then mint a token.
type AuthService struct {
	credentials auth.CredentialAuthenticator
	codec       *auth.TokenCodec
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(credentials auth.CredentialAuthenticator, codec *auth.TokenCodec, dispatcher events.Dispatcher, logger *zap.Logger) *AuthService {
	if dispatcher == nil {
		dispatcher = events.Discard{}
	}
	return &AuthService{
		credentials: credentials,
		codec:       codec,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// Login authenticates username/password. Every credential failure, including an
// unreachable store, is reported to the caller as the same bad-credentials error.
func (s *AuthService) Login(ctx context.Context, username, password string, info LoginRequestInfo) (*LoginResult, error) {
	actor := events.Actor{Subject: username, ClientIP: info.ClientIP}

	identity, err := s.credentials.Authenticate(ctx, username, password)
	if err != nil {
		reason := "bad_credentials"
		if !errors.Is(err, auth.ErrBadCredentials) {
			reason = "credential_store_error"
			s.logger.Error("credential lookup failed", zap.String("request_id", info.RequestID), zap.Error(err))
		}
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, info.RequestID, actor,
			events.LoginFailedPayload{Username: username, Reason: reason}))
		return nil, util.NewBadCredentials(err)
	}

	token, expiresAt, err := s.codec.Encode(identity.Subject, identity.Roles, s.now())
	if err != nil {
		return nil, util.NewInternalError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, info.RequestID, actor,
		events.LoginSucceededPayload{Username: identity.Subject, ExpiresAt: expiresAt}))
	return &LoginResult{Token: token, Username: identity.Subject, ExpiresAt: expiresAt}, nil
}

// BadCredentials builds the failure returned for a login body that cannot be read.
func (s *AuthService) BadCredentials(ctx context.Context, cause error, info LoginRequestInfo) error {
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, info.RequestID,
		events.Actor{ClientIP: info.ClientIP}, events.LoginFailedPayload{Reason: "malformed_request"}))
	return util.NewBadCredentials(cause)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
