package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/config"
	"github.com/noah-isme/collab-room-api/internal/utils"
)

const healthProbeTimeout = 2 * time.Second

// Dependency status values.
const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusDisabled = "disabled"
)

// HealthDeps are the backends reported by the health endpoint. Nil members are reported as
// disabled.
type HealthDeps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	NATS     *nats.Conn
	Sessions func() int
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies"`
	Connections  int               `json:"connections"`
}

// HealthCheck returns a handler that reports application health information. A failed store
// probe turns the response into 503.
func HealthCheck(cfg config.Config, deps HealthDeps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(requestContext(c), healthProbeTimeout)
		defer cancel()

		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Dependencies: map[string]string{
				"database": probeDatabase(ctx, deps.DB),
				"redis":    probeRedis(ctx, deps.Redis),
				"nats":     probeNATS(deps.NATS),
			},
		}
		if deps.Sessions != nil {
			payload.Connections = deps.Sessions()
		}

		if payload.Dependencies["database"] != StatusUp {
			payload.Status = "degraded"
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}

func probeDatabase(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return StatusDown
	}
	sqlDB, err := db.DB()
	if err != nil {
		return StatusDown
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return StatusDown
	}
	return StatusUp
}

func probeRedis(ctx context.Context, client *redis.Client) string {
	if client == nil {
		return StatusDisabled
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return StatusDown
	}
	return StatusUp
}

func probeNATS(conn *nats.Conn) string {
	if conn == nil {
		return StatusDisabled
	}
	if !conn.IsConnected() {
		return StatusDown
	}
	return StatusUp
}
