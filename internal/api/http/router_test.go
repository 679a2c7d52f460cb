package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/users-backend/internal/api/http/handlers"
	"github.com/spec-kit/users-backend/internal/auth"
	"github.com/spec-kit/users-backend/internal/config"
	"github.com/spec-kit/users-backend/internal/events"
	"github.com/spec-kit/users-backend/internal/observability"
	"github.com/spec-kit/users-backend/internal/persistence"
	"github.com/spec-kit/users-backend/internal/repository"
	"github.com/spec-kit/users-backend/internal/service"
	"github.com/spec-kit/users-backend/pkg/util"
)

const testSecret = "k7Qw9zR2mX4vB8nL1pT6yH3sD5fG0jAe"

type testServer struct {
	app   *fiber.App
	codec *auth.TokenCodec
}

func newTestServer(t *testing.T, throttle ThrottleConfig) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger, metrics).RegisterHandlers()

	key, err := auth.NewSigningKey(testSecret)
	require.NoError(t, err)
	codec := auth.NewTokenCodec(key, time.Hour)

	repo := repository.NewMemoryUserRepository()
	users := service.NewUserService(repo, bcrypt.MinCost, logger)
	ctx := context.Background()
	require.NoError(t, users.EnsureAdmin(ctx, "admin", "admin-pass"))
	_, err = users.Create(ctx, service.UserInput{Name: "Plain", Username: "plainuser", Password: "user-pass"})
	require.NoError(t, err)

	authn, err := auth.NewPasswordAuthenticator(repo, bcrypt.MinCost)
	require.NoError(t, err)
	authService := service.NewAuthService(authn, codec, dispatcher, logger)

	app := NewApp(ServerConfig{
		AppName:        "users-backend-test",
		RequestTimeout: 5 * time.Second,
		CORS:           config.CORSConfig{AllowedOrigins: []string{"http://localhost:4200"}},
		Logger:         logger,
		Metrics:        metrics,
		Routes: RouteConfig{
			Health:         handlers.NewHealthHandler("users-backend", "test", map[string]handlers.Pinger{"postgres": nil}),
			Login:          handlers.NewLoginHandler(authService),
			Users:          handlers.NewUsersHandler(users),
			Metrics:        handlers.NewMetricsHandler(metrics),
			AuthMiddleware: auth.NewAuthMiddleware(codec, logger, dispatcher, "/login"),
			Policy:         auth.DefaultPolicyTable(),
			Events:         dispatcher,
			Logger:         logger,
			LoginPath:      "/login",
			LoginThrottle:  throttle,
		},
	})
	return &testServer{app: app, codec: codec}
}

type response struct {
	status int
	header func(string) string
	body   map[string]any
	raw    string
}

func (s *testServer) do(t *testing.T, method, path, token, body string, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, header: resp.Header.Get, raw: string(raw), body: map[string]any{}}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := s.do(t, fiber.MethodPost, "/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	return resp.body["token"].(string)
}

const newUserBody = `{"name":"Nuevo","lastname":"Usuario","email":"nuevo@example.com","username":"nuevo","password":"secreto1"}`

func TestLoginSuccess(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})

	resp := srv.do(t, fiber.MethodPost, "/login", "", `{"username":"admin","password":"admin-pass"}`)
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)

	token, _ := resp.body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "Bearer "+token, resp.header(fiber.HeaderAuthorization))
	assert.Equal(t, "admin", resp.body["username"])
	assert.Equal(t, "admin Autenticación exitosa", resp.body["message"])

	decoded, err := srv.codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, decoded.ExpiresAt.Sub(decoded.IssuedAt))
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})

	cases := map[string]string{
		"wrong password": `{"username":"admin","password":"nope"}`,
		"unknown user":   `{"username":"ghost","password":"admin-pass"}`,
		"malformed body": `{"username":`,
		"missing fields": `{}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := srv.do(t, fiber.MethodPost, "/login", "", body)
			assert.Equal(t, fiber.StatusUnauthorized, resp.status)
			assert.Equal(t, "bad_credentials", resp.body["error"])
			assert.Equal(t, util.BadCredentialsMessage, resp.body["message"])
			assert.Empty(t, resp.header(fiber.HeaderAuthorization))
		})
	}
}

func TestEndToEndAuthorization(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})
	adminToken := srv.login(t, "admin", "admin-pass")
	userToken := srv.login(t, "plainuser", "user-pass")

	resp := srv.do(t, fiber.MethodPost, "/api/users", adminToken, newUserBody)
	assert.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	assert.Equal(t, "nuevo", resp.body["username"])
	assert.Equal(t, false, resp.body["admin"])
	assert.NotContains(t, resp.raw, "secreto1")

	resp = srv.do(t, fiber.MethodPost, "/api/users", userToken, newUserBody)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodPost, "/api/users", "", newUserBody)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "unauthorized", resp.body["error"])

	otherUserBody := `{"name":"Otro","email":"otro@example.com","username":"otrouser","password":"secreto1","admin":true}`
	for _, path := range []string{"/API/users", "/api/Users", "/Api/Users/"} {
		resp = srv.do(t, fiber.MethodPost, path, userToken, otherUserBody)
		assert.Equal(t, fiber.StatusNotFound, resp.status, "path %s: %s", path, resp.raw)
	}
	resp = srv.do(t, fiber.MethodGet, "/METRICS", userToken, "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	resp = srv.do(t, fiber.MethodGet, "/api/users", "", "")
	assert.NotContains(t, resp.raw, "otrouser")

	tampered := adminToken[:len(adminToken)-1] + flipLast(adminToken)
	resp = srv.do(t, fiber.MethodPost, "/api/users", tampered, newUserBody)
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	assert.Equal(t, "invalid_token", resp.body["error"])
	assert.Equal(t, "El token no es valido", resp.body["message"])
}

func flipLast(token string) string {
	if strings.HasSuffix(token, "A") {
		return "B"
	}
	return "A"
}

func TestPublicRoutesNeedNoToken(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})

	resp := srv.do(t, fiber.MethodGet, "/api/users", "", "")
	assert.Equal(t, fiber.StatusOK, resp.status, resp.raw)

	resp = srv.do(t, fiber.MethodGet, "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, resp.status)
	assert.Equal(t, map[string]any{"postgres": "disabled"}, resp.body["dependencies"])

	resp = srv.do(t, fiber.MethodGet, "/api/users/does-not-exist", "", "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
	assert.Equal(t, "not_found", resp.body["error"])
}

func TestUnmatchedRouteRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})

	resp := srv.do(t, fiber.MethodGet, "/api/invoices", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/api/invoices", srv.login(t, "plainuser", "user-pass"), "")
	assert.Equal(t, fiber.StatusNotFound, resp.status)
}

func TestMetricsAreAdminOnly(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})
	adminToken := srv.login(t, "admin", "admin-pass")

	resp := srv.do(t, fiber.MethodGet, "/metrics", srv.login(t, "plainuser", "user-pass"), "")
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = srv.do(t, fiber.MethodGet, "/metrics", adminToken, "")
	require.Equal(t, fiber.StatusOK, resp.status)
	authEvents, ok := resp.body["auth_events"].(map[string]any)
	require.True(t, ok, resp.raw)
	assert.Equal(t, float64(2), authEvents[string(events.EventLoginSucceeded)])
	assert.Equal(t, float64(1), authEvents[string(events.EventAccessDenied)])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, ThrottleConfig{})

	resp := srv.do(t, fiber.MethodOptions, "/api/users", "", "",
		fiber.HeaderOrigin, "http://localhost:4200",
		fiber.HeaderAccessControlRequestMethod, fiber.MethodPost,
		fiber.HeaderAccessControlRequestHeaders, "Authorization, Content-Type",
	)
	assert.Equal(t, fiber.StatusNoContent, resp.status)
	assert.Equal(t, "http://localhost:4200", resp.header(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.header(fiber.HeaderAccessControlAllowMethods), fiber.MethodDelete)
	assert.Empty(t, resp.header(fiber.HeaderAccessControlAllowCredentials))

	resp = srv.do(t, fiber.MethodOptions, "/api/users", "", "",
		fiber.HeaderOrigin, "https://evil.example.com",
		fiber.HeaderAccessControlRequestMethod, fiber.MethodPost,
	)
	assert.Empty(t, resp.header(fiber.HeaderAccessControlAllowOrigin))
}

func TestLoginThrottleWithRedisStorage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	srv := newTestServer(t, ThrottleConfig{
		MaxFailures: 2,
		Window:      time.Minute,
		Storage:     persistence.NewRedisStorage(client, "throttle:"),
	})

	bad := `{"username":"admin","password":"wrong"}`
	for i := 0; i < 2; i++ {
		resp := srv.do(t, fiber.MethodPost, "/login", "", bad)
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	}
	resp := srv.do(t, fiber.MethodPost, "/login", "", bad)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.status)
	assert.Equal(t, "too_many_requests", resp.body["error"])
	assert.NotEmpty(t, mr.Keys(), "throttle state lives in redis")
}
