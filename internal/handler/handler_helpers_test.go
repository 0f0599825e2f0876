package handler_test

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/collab-room-api/internal/config"
	"github.com/noah-isme/collab-room-api/internal/database"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/handler"
	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/realtime"
	"github.com/noah-isme/collab-room-api/internal/repository"
	"github.com/noah-isme/collab-room-api/internal/router"
	"github.com/noah-isme/collab-room-api/internal/service"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

const testJWTSecret = "secret"

type testApp struct {
	app      *fiber.App
	rooms    service.RoomService
	identity service.IdentityService
	engine   *realtime.Engine
}

func setupApp(t *testing.T) testApp {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := zerolog.Nop()
	validate := dto.NewValidator()
	opts := repository.Options{
		Retry:  repository.RetryPolicy{Backoff: []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}},
		Logger: logger,
	}

	rooms := service.NewRoomService(repository.NewRoomStore(db, opts), validate, logger)
	identity := service.NewIdentityService(repository.NewUserStore(db, opts), validate, logger)
	janitor := service.NewLifecycleJanitor(rooms, identity, service.JanitorConfig{}, logger)
	engine := realtime.NewEngine(rooms, identity, realtime.NewBus(logger), validate, realtime.Config{AutoCreateRooms: true}, logger)

	cfg := testConfig()
	app := fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(logger, false)})
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler:   handler.NewRoomHandler(rooms, logger),
		UserHandler:   handler.NewUserHandler(identity, logger),
		SocketHandler: handler.NewSocketHandler(engine, handler.SocketConfig{}, logger),
		AdminHandler:  handler.NewAdminHandler(janitor, logger),
		Health:        handler.HealthDeps{DB: db, Sessions: engine.SessionCount},
		Sessions:      identity,
	})

	return testApp{app: app, rooms: rooms, identity: identity, engine: engine}
}

func testConfig() config.Config {
	return config.Config{AppName: "Test", AppEnv: config.EnvTest, JWTSecret: testJWTSecret}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target), string(data))
}

func decodeError(t *testing.T, resp *http.Response) utils.ErrorBody {
	t.Helper()
	var envelope utils.ErrorEnvelope
	decodeResponse(t, resp, &envelope)
	return envelope.Error
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops-1",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return listener.Addr().String(), shutdown
}
