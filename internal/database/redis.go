package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPingTimeout = 5 * time.Second
	redisClientName  = "collab-room-relay"
)

// ConnectRedis opens the client used by the cross-node event relay. The address may be a
// redis:// or rediss:// URL or a bare host:port.
func ConnectRedis(ctx context.Context, address string) (*redis.Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}
	if !strings.Contains(address, "://") {
		address = "redis://" + address
	}

	options, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if options.ClientName == "" {
		options.ClientName = redisClientName
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", options.Addr, err)
	}
	return client, nil
}
