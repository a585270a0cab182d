package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/church-class-api/pkg/config"
)

const (
	connectTimeout = 5 * time.Second
	ioTimeout      = time.Second
)

// Client is the Redis connection backing class summary and level list caching.
type Client struct {
	*redis.Client
	addr string
}

// Addr returns the host:port the client dials.
func (c *Client) Addr() string { return c.addr }

// PingContext lets the client serve as a readiness check.
func (c *Client) PingContext(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// NewRedis dials Redis and fails when the server does not answer a ping
// within connectTimeout. Cache reads and writes are short, so socket
// timeouts are kept tight to let callers fall back to the database.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  connectTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Client{Client: rdb, addr: addr}, nil
}
