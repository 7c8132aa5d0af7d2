package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash key used when RedisConfig.Key is empty
const DefaultRedisKey = "hrms:session"

// RedisConfig holds the Redis session backend options.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	Addr string
	// Password for Redis authentication (optional).
	Password string //nolint:gosec // config field, loaded from env
	// DB is the database number (0-15).
	DB int
	// Key is the hash holding the three tokens.
	Key string
	// TTL bounds the session lifetime; every write refreshes it. Zero keeps the key forever.
	TTL time.Duration
}

// Validate checks the configuration before dialing
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("tokenstore: redis addr is required")
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("tokenstore: invalid redis database number: %d (must be 0-15)", c.DB)
	}
	if c.TTL < 0 {
		return fmt.Errorf("tokenstore: redis ttl cannot be negative")
	}
	return nil
}

// Redis keeps tokens in a Redis hash so several processes can share one session.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	owned  bool
}

// NewRedis dials Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg *RedisConfig) (*Redis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tokenstore: ping redis %s: %w", cfg.Addr, err)
	}

	store := NewRedisWithClient(client, cfg.Key, cfg.TTL)
	store.owned = true
	return store, nil
}

// NewRedisWithClient wraps an existing client. Close leaves the client open.
func NewRedisWithClient(client *redis.Client, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// AccessToken returns the stored access token
func (r *Redis) AccessToken(ctx context.Context) (string, error) {
	return r.field(ctx, AccessTokenName)
}

// RefreshToken returns the stored refresh token
func (r *Redis) RefreshToken(ctx context.Context) (string, error) {
	return r.field(ctx, RefreshTokenName)
}

// OrgToken returns the stored organization token
func (r *Redis) OrgToken(ctx context.Context) (string, error) {
	return r.field(ctx, OrgTokenName)
}

// SetTokens writes the access/refresh pair in one transaction
func (r *Redis) SetTokens(ctx context.Context, access, refresh string) error {
	return r.write(ctx, map[string]any{
		AccessTokenName:  access,
		RefreshTokenName: refresh,
	})
}

// SetOrgToken writes the organization token
func (r *Redis) SetOrgToken(ctx context.Context, token string) error {
	return r.write(ctx, map[string]any{OrgTokenName: token})
}

// ClearTokens deletes the session hash
func (r *Redis) ClearTokens(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("tokenstore: clear %s: %w", r.key, err)
	}
	return nil
}

// Close releases the connection pool when the store dialed it
func (r *Redis) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) field(ctx context.Context, name string) (string, error) {
	value, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tokenstore: read %s: %w", name, err)
	}
	return value, nil
}

func (r *Redis) write(ctx context.Context, fields map[string]any) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, fields)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tokenstore: write %s: %w", r.key, err)
	}
	return nil
}
