package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/mall-admin/internal/domain/session"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix prefixes every session key written to Redis
const DefaultRedisKeyPrefix = "mall-admin:session:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisPersister stores the session in Redis so that operators sharing a
// jump host can keep one login across machines.
type RedisPersister struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ session.Persister = (*RedisPersister)(nil)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisPersisterWithClient creates a persister on an existing client.
// ttl 0 keeps the session until logout.
func NewRedisPersisterWithClient(client *redis.Client, storageKey string, ttl time.Duration) *RedisPersister {
	if storageKey == "" {
		storageKey = session.StorageKey
	}
	return &RedisPersister{
		client: client,
		key:    DefaultRedisKeyPrefix + storageKey,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding the session
func (p *RedisPersister) Key() string {
	return p.key
}

// Load implements session.Persister
func (p *RedisPersister) Load(ctx context.Context) (session.Session, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

// Save implements session.Persister
func (p *RedisPersister) Save(ctx context.Context, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := p.client.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Remove implements session.Persister
func (p *RedisPersister) Remove(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
