package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configure the Redis mirror.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	// Channel, when set, receives the artifact name after every update.
	Channel string
}

// RedisMirror stores each artifact body under <prefix><name>.
type RedisMirror struct {
	client *redis.Client
	opts   RedisOptions
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(ctx context.Context, opts RedisOptions) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisMirror{client: client, opts: opts}, nil
}

// Name implements Mirror.
func (m *RedisMirror) Name() string { return "redis" }

// Key returns the Redis key holding artifact name.
func (m *RedisMirror) Key(name string) string { return m.opts.KeyPrefix + name }

// Put implements Mirror.
func (m *RedisMirror) Put(ctx context.Context, name, _ string, body []byte) error {
	key := m.Key(name)
	if err := m.client.Set(ctx, key, body, m.opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	if m.opts.Channel != "" {
		if err := m.client.Publish(ctx, m.opts.Channel, name).Err(); err != nil {
			return fmt.Errorf("redis publish %s: %w", m.opts.Channel, err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error { return m.client.Close() }

var _ Mirror = (*RedisMirror)(nil)
