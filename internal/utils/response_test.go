package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collab-room-api/internal/utils"
)

func TestSendSuccessWithStatusDefaultsMessage(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "", map[string]string{"hello": "world"})
	})

	resp := performRequest(t, app, http.MethodPost, "/")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Success bool              `json:"success"`
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	decode(t, resp, &payload)

	require.True(t, payload.Success)
	require.Equal(t, "success", payload.Message)
	require.Equal(t, "world", payload.Data["hello"])
}

func TestSendErrorWritesEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/rooms/:roomId", func(c *fiber.Ctx) error {
		validation := []map[string]string{{"field": "roomName", "message": "is required"}}
		return utils.SendError(c, fiber.StatusBadRequest, "ValidationError", "invalid payload", "req-1", validation)
	})

	resp := performRequest(t, app, http.MethodGet, "/rooms/r1")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload struct {
		Error struct {
			Message    string              `json:"message"`
			Type       string              `json:"type"`
			Timestamp  string              `json:"timestamp"`
			RequestID  string              `json:"requestId"`
			Path       string              `json:"path"`
			Method     string              `json:"method"`
			Validation []map[string]string `json:"validation"`
		} `json:"error"`
	}
	decode(t, resp, &payload)

	require.Equal(t, "invalid payload", payload.Error.Message)
	require.Equal(t, "ValidationError", payload.Error.Type)
	require.NotEmpty(t, payload.Error.Timestamp)
	require.Equal(t, "req-1", payload.Error.RequestID)
	require.Equal(t, "/rooms/r1", payload.Error.Path)
	require.Equal(t, http.MethodGet, payload.Error.Method)
	require.Len(t, payload.Error.Validation, 1)
	require.Equal(t, "roomName", payload.Error.Validation[0]["field"])
}

func performRequest(t *testing.T, app *fiber.App, method, path string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
