package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	DatabaseDriver      string
	FrontendURL         string
	CORSOrigins         []string
	RateLimitWindow     time.Duration
	RateLimitMax        int
	SocketPingTimeout   time.Duration
	SocketPingInterval  time.Duration
	RoomCleanupInterval time.Duration
	UserCleanupInterval time.Duration
	LogLevel            string
	RedisURL            string
	NATSURL             string
	EventChannel        string
	JWTSecret           string
	RoomAutoCreate      bool
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsDevelopment reports whether internal error details may be exposed.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// AllowedOrigins merges FRONTEND_URL and CORS_ORIGINS into a fiber cors origin list.
func (c Config) AllowedOrigins() string {
	seen := make(map[string]struct{})
	origins := make([]string, 0, len(c.CORSOrigins)+1)
	for _, origin := range append([]string{c.FrontendURL}, c.CORSOrigins...) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return strings.Join(origins, ",")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "Collab Room API")
	v.SetDefault("NODE_ENV", EnvDevelopment)
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("RATE_LIMIT_WINDOW_MS", 900000)
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	v.SetDefault("SOCKET_PING_TIMEOUT", 60000)
	v.SetDefault("SOCKET_PING_INTERVAL", 25000)
	v.SetDefault("ROOM_CLEANUP_INTERVAL", 300000)
	v.SetDefault("USER_CLEANUP_INTERVAL", 300000)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EVENT_CHANNEL", "collab")
	v.SetDefault("ROOM_AUTO_CREATE", true)

	cfg := Config{
		AppName:             v.GetString("APP_NAME"),
		AppEnv:              strings.ToLower(strings.TrimSpace(v.GetString("NODE_ENV"))),
		AppPort:             v.GetString("PORT"),
		DatabaseURL:         strings.TrimSpace(v.GetString("DATABASE_URL")),
		DatabaseDriver:      strings.ToLower(strings.TrimSpace(v.GetString("DATABASE_DRIVER"))),
		FrontendURL:         v.GetString("FRONTEND_URL"),
		CORSOrigins:         splitList(v.GetString("CORS_ORIGINS")),
		RateLimitWindow:     millis(v.GetInt("RATE_LIMIT_WINDOW_MS")),
		RateLimitMax:        v.GetInt("RATE_LIMIT_MAX_REQUESTS"),
		SocketPingTimeout:   millis(v.GetInt("SOCKET_PING_TIMEOUT")),
		SocketPingInterval:  millis(v.GetInt("SOCKET_PING_INTERVAL")),
		RoomCleanupInterval: millis(v.GetInt("ROOM_CLEANUP_INTERVAL")),
		UserCleanupInterval: millis(v.GetInt("USER_CLEANUP_INTERVAL")),
		LogLevel:            strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		RedisURL:            strings.TrimSpace(v.GetString("REDIS_URL")),
		NATSURL:             strings.TrimSpace(v.GetString("NATS_URL")),
		EventChannel:        v.GetString("EVENT_CHANNEL"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		RoomAutoCreate:      v.GetBool("ROOM_AUTO_CREATE"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and enumerations.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be provided")
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q: expected postgres or sqlite", c.DatabaseDriver)
	}
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("invalid NODE_ENV %q: expected development, production or test", c.AppEnv)
	}
	switch c.LogLevel {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q: expected error, warn, info or debug", c.LogLevel)
	}
	for name, value := range map[string]time.Duration{
		"RATE_LIMIT_WINDOW_MS":  c.RateLimitWindow,
		"SOCKET_PING_TIMEOUT":   c.SocketPingTimeout,
		"SOCKET_PING_INTERVAL":  c.SocketPingInterval,
		"ROOM_CLEANUP_INTERVAL": c.RoomCleanupInterval,
		"USER_CLEANUP_INTERVAL": c.UserCleanupInterval,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	if c.SocketPingInterval >= c.SocketPingTimeout {
		return fmt.Errorf("SOCKET_PING_INTERVAL must be shorter than SOCKET_PING_TIMEOUT")
	}
	return nil
}

func millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func splitList(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
