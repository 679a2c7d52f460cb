package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/users-backend/internal/api/dto"
	"github.com/spec-kit/users-backend/internal/service"
	"github.com/spec-kit/users-backend/pkg/util"
)

const loginSuccessSuffix = " Autenticación exitosa"

// LoginHandler exchanges credentials for an access token.
type LoginHandler struct {
	auth *service.AuthService
}

// NewLoginHandler constructs handler.
func NewLoginHandler(authService *service.AuthService) *LoginHandler {
	return &LoginHandler{auth: authService}
}

// Login handles POST on the configured login path. Failures set the status before
// returning so the login throttle counts them.
func (h *LoginHandler) Login(c *fiber.Ctx) error {
	info := service.LoginRequestInfo{
		ClientIP:  c.IP(),
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	}

	var req dto.LoginRequest
	if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
		c.Status(http.StatusUnauthorized)
		return h.auth.BadCredentials(c.UserContext(), err, info)
	}
	if req.Username == "" || req.Password == "" {
		c.Status(http.StatusUnauthorized)
		return h.auth.BadCredentials(c.UserContext(), errors.New("missing username or password"), info)
	}

	result, err := h.auth.Login(c.UserContext(), req.Username, req.Password, info)
	if err != nil {
		c.Status(util.ToDomainError(err).HTTPStatus)
		return err
	}

	c.Set(fiber.HeaderAuthorization, "Bearer "+result.Token)
	return c.JSON(dto.LoginResponse{
		Token:    result.Token,
		Username: result.Username,
		Message:  result.Username + loginSuccessSuffix,
	})
}
