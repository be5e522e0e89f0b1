package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisConnectTimeout = 10 * time.Second

// Redis roles. Each role gets its own connection pool.
const (
	RoleTokens     = "tokens"
	RoleRoomEvents = "room-events"
)

// Redis holds one client per role.
type Redis struct {
	// Tokens backs the refresh-token store.
	Tokens     *redis.Client
	// RoomEvents publishes room events and holds the hub's channel subscriptions.
	RoomEvents *redis.Client
}

// ConnectRedis parses redisURL and opens a pinged client for every role.
func ConnectRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	tokens, err := connectRole(ctx, opt, RoleTokens)
	if err != nil {
		return nil, err
	}
	events, err := connectRole(ctx, opt, RoleRoomEvents)
	if err != nil {
		tokens.Close()
		return nil, err
	}

	return &Redis{Tokens: tokens, RoomEvents: events}, nil
}

// roleOptions copies base and tags the connection with the role so it shows
// up in CLIENT LIST.
func roleOptions(base *redis.Options, role string) *redis.Options {
	opt := *base
	opt.ClientName = "studybuddy-" + role
	return &opt
}

func connectRole(ctx context.Context, base *redis.Options, role string) (*redis.Client, error) {
	client := redis.NewClient(roleOptions(base, role))
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis (%s): %w", role, err)
	}
	return client, nil
}

func (r *Redis) Close() error {
	return errors.Join(r.Tokens.Close(), r.RoomEvents.Close())
}
