// Package redis provides Redis-backed store implementations for deployments
// that keep the hot per-pool state in memory-speed storage. Only ciphertext
// handles and plaintext policy values are stored, mirroring the Postgres
// schema.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps redis.Client for dependency injection.
type Client struct {
	*redis.Client
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.Client.Close()
}
