package router_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-teacher-panel/internal/config"
	"github.com/noah-isme/gema-teacher-panel/internal/handler"
	"github.com/noah-isme/gema-teacher-panel/internal/middleware"
	"github.com/noah-isme/gema-teacher-panel/internal/router"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

type capabilityStub struct {
	refreshed int
}

func (s *capabilityStub) Resolve(context.Context, ...schema.Field) schema.Capabilities {
	return schema.Capabilities{}
}

func (s *capabilityStub) Snapshot(context.Context) schema.Snapshot {
	return schema.Snapshot{}
}

func (s *capabilityStub) Refresh(context.Context) (schema.Snapshot, error) {
	s.refreshed++
	return schema.Snapshot{}, nil
}

// headerIdentity stands in for the JWT middleware.
func headerIdentity(c *fiber.Ctx) error {
	if raw := c.Get("X-User"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(middleware.LocalUserID, uint(id))
		c.Locals(middleware.LocalUserRole, c.Get("X-Role"))
	}
	return c.Next()
}

func newApp(caps *capabilityStub, health map[string]handler.Pinger) *fiber.App {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "panel", AppEnv: "test"}, router.Dependencies{
		CapabilityHandler: handler.NewCapabilityHandler(caps, zerolog.Nop()),
		JWTMiddleware:     headerIdentity,
		RateLimit:         middleware.MutationRateLimit("router-test", 1, time.Minute),
		Health:            health,
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestTeacherRoutesRequireIdentityAndRole(t *testing.T) {
	app := newApp(&capabilityStub{}, nil)

	resp := do(t, app, http.MethodGet, "/api/v1/teacher/capabilities", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/teacher/capabilities", map[string]string{"X-User": "7", "X-Role": "student"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/teacher/capabilities", map[string]string{"X-User": "7", "X-Role": "teacher"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "panel", resp.Header.Get("X-Application"))
}

func TestTeacherMutationsAreRateLimited(t *testing.T) {
	caps := &capabilityStub{}
	app := newApp(caps, nil)
	teacher := map[string]string{"X-User": "7", "X-Role": "admin"}

	require.Equal(t, fiber.StatusOK, do(t, app, http.MethodPost, "/api/v1/teacher/capabilities/refresh", teacher).StatusCode)
	require.Equal(t, fiber.StatusTooManyRequests, do(t, app, http.MethodPost, "/api/v1/teacher/capabilities/refresh", teacher).StatusCode)
	require.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/api/v1/teacher/capabilities", teacher).StatusCode)
	require.Equal(t, 1, caps.refreshed)
}

func TestHealthIsPublic(t *testing.T) {
	app := newApp(&capabilityStub{}, map[string]handler.Pinger{
		"database": func(context.Context) error { return nil },
	})
	require.Equal(t, fiber.StatusOK, do(t, app, http.MethodGet, "/api/v1/health", nil).StatusCode)

	app = newApp(&capabilityStub{}, map[string]handler.Pinger{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	require.Equal(t, fiber.StatusServiceUnavailable, do(t, app, http.MethodGet, "/api/v1/health", nil).StatusCode)
}
