package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collab-room-api/internal/handler"
	"github.com/noah-isme/collab-room-api/internal/models"
	"github.com/noah-isme/collab-room-api/internal/service"
)

func TestJanitorEndpointRequiresAdmin(t *testing.T) {
	ta := setupApp(t)

	resp := postJSON(t, ta.app, http.MethodPost, "/admin/janitor/run", "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "AuthenticationError", decodeError(t, resp).Type)

	userToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "role": "member"})
	signed, err := userToken.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/janitor/run", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err = ta.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/admin/janitor/run", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = ta.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestJanitorEndpointRunsSweep(t *testing.T) {
	ta := setupApp(t)

	_, _, err := ta.rooms.EnsureRoom(context.Background(), "idle", models.SystemActor())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/janitor/run", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	resp, err := ta.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                `json:"success"`
		Data    service.SweepReport `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.True(t, body.Data.UserSweepRan)
	require.Zero(t, body.Data.RoomsDeactivated, "fresh rooms are not idle")
}

func TestHealthReportsDependencies(t *testing.T) {
	ta := setupApp(t)

	resp := postJSON(t, ta.app, http.MethodGet, "/health", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "Test", body.Data.Service)
	require.Equal(t, handler.StatusUp, body.Data.Dependencies["database"])
	require.Equal(t, handler.StatusDisabled, body.Data.Dependencies["redis"])
	require.Equal(t, handler.StatusDisabled, body.Data.Dependencies["nats"])
	require.Zero(t, body.Data.Connections)

	resp = postJSON(t, ta.app, http.MethodGet, "/metrics", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthDegradesWithoutDatabase(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(testConfig(), handler.HealthDeps{}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, handler.StatusDown, body.Data.Dependencies["database"])
}
