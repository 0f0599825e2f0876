package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/config"
	"github.com/noah-isme/collab-room-api/internal/database"
	"github.com/noah-isme/collab-room-api/internal/dto"
	"github.com/noah-isme/collab-room-api/internal/handler"
	"github.com/noah-isme/collab-room-api/internal/middleware"
	"github.com/noah-isme/collab-room-api/internal/realtime"
	"github.com/noah-isme/collab-room-api/internal/repository"
	"github.com/noah-isme/collab-room-api/internal/router"
	"github.com/noah-isme/collab-room-api/internal/service"
)

const drainTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := repository.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	validate := dto.NewValidator()
	storeOpts := repository.Options{Logger: logger}

	identity := service.NewIdentityService(repository.NewUserStore(db, storeOpts), validate, logger)
	rooms := service.NewRoomService(repository.NewRoomStore(db, storeOpts), validate, logger)

	bus := realtime.NewBus(logger)
	relay := realtime.NewRelay(redisClient, natsConn, cfg.EventChannel, logger)
	if relay.Enabled() {
		<-relay.Start(ctx, func(roomID string, env realtime.Envelope, exclude string) {
			bus.DeliverLocal(roomID, env, exclude)
		})
		bus.AttachRelay(relay)
		logger.Info().Str("node_id", relay.NodeID()).Msg("cross-node relay enabled")
	}

	engine := realtime.NewEngine(rooms, identity, bus, validate, realtime.Config{
		AutoCreateRooms: cfg.RoomAutoCreate,
		Development:     cfg.IsDevelopment(),
	}, logger)

	janitor := service.NewLifecycleJanitor(rooms, identity, service.JanitorConfig{
		RoomInterval: cfg.RoomCleanupInterval,
		UserInterval: cfg.UserCleanupInterval,
	}, logger)
	janitor.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    2 << 20,
		ErrorHandler: handler.ErrorHandler(logger, cfg.IsDevelopment()),
	})

	middleware.Register(app, middleware.Config{
		Logger:          &logger,
		AllowOrigins:    cfg.AllowedOrigins(),
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AccessLog:       cfg.IsDevelopment(),
	})
	router.Register(app, cfg, router.Dependencies{
		RoomHandler: handler.NewRoomHandler(rooms, logger),
		UserHandler: handler.NewUserHandler(identity, logger),
		SocketHandler: handler.NewSocketHandler(engine, handler.SocketConfig{
			PingInterval: cfg.SocketPingInterval,
			PingTimeout:  cfg.SocketPingTimeout,
		}, logger),
		AdminHandler: handler.NewAdminHandler(janitor, logger),
		Health: handler.HealthDeps{
			DB:       db,
			Redis:    redisClient,
			NATS:     natsConn,
			Sessions: engine.SessionCount,
		},
		Sessions: identity,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(logger, app, func(shutdownCtx context.Context) {
		janitor.Stop()
		bus.Drain(shutdownCtx)
	})

	cancel()
	if err := database.Close(db); err != nil {
		logger.Warn().Err(err).Msg("failed to close database")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()
}

func waitForShutdown(logger zerolog.Logger, app *fiber.App, drain func(ctx context.Context)) {
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-signalCtx.Done()
	logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	drain(ctx)

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
