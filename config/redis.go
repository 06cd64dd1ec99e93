package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// OpenRedis returns a connected client, or nil when no address is configured.
func OpenRedis(r Redis) (*redis.Client, error) {
	if r.Address == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     r.Address,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", r.Address, err)
	}
	return client, nil
}
