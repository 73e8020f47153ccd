// Package redis backs the optional shared-state features with go-redis/v9.
// One Client is opened per process and shared by the ledger store, the
// cross-replica tick lock, the announcement signal bus and the control API
// rate limiter.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client. Zero values
// fall back to the go-redis defaults.
type ClientConfig struct {
	// Addr is the host:port of the server.
	Addr     string
	Password string
	// DB selects the logical database, so several watchers can share one
	// server without key clashes.
	DB int
	// PoolSize caps open connections. The tick loop needs few: one per
	// ledger save plus the lock and bus traffic.
	PoolSize   int
	MaxRetries int
	// TLSEnabled turns on TLS 1.2+ for managed Redis offerings.
	TLSEnabled bool
}

// Client wraps a go-redis Client and owns its connection pool. The stores in
// this package borrow the pool through Underlying and never close it.
type Client struct {
	rdb *redis.Client
}

// New opens a connection pool and pings the server once, so a wrong address
// or password fails at startup instead of on the first ledger save. The pool
// is closed again when the ping fails.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	c := &Client{rdb: redis.NewClient(opts)}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool. Stores created from this client fail
// after Close.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client for the ledger store, lock
// manager, signal bus and rate limiter in this package.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
