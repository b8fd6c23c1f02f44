package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultInvalidationChannel is the Pub/Sub channel shared by consoles
const DefaultInvalidationChannel = "mall-admin:cache:invalidate"

// InvalidationMessage is the payload published for one scope invalidation
type InvalidationMessage struct {
	Origin    string   `json:"origin"`
	Scope     []string `json:"scope"`
	Timestamp int64    `json:"timestamp"`
}

// RedisInvalidationBus carries scope invalidations between console
// processes over Redis Pub/Sub. Messages published by this bus are ignored
// when they come back.
type RedisInvalidationBus struct {
	client    *redis.Client
	channel   string
	origin    string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

var _ Broadcaster = (*RedisInvalidationBus)(nil)

// BusOption configures a RedisInvalidationBus
type BusOption func(*RedisInvalidationBus)

// WithBusChannel sets the Pub/Sub channel name
func WithBusChannel(channel string) BusOption {
	return func(b *RedisInvalidationBus) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithBusLogger sets the logger
func WithBusLogger(logger *zap.Logger) BusOption {
	return func(b *RedisInvalidationBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewRedisInvalidationBusWithClient creates a bus on an existing client.
// The caller keeps ownership of the client.
func NewRedisInvalidationBusWithClient(client *redis.Client, opts ...BusOption) *RedisInvalidationBus {
	b := &RedisInvalidationBus{
		client:  client,
		channel: DefaultInvalidationChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Origin returns the id stamped on messages from this bus
func (b *RedisInvalidationBus) Origin() string {
	return b.origin
}

// Publish implements Broadcaster
func (b *RedisInvalidationBus) Publish(ctx context.Context, scope []string) error {
	msg := InvalidationMessage{
		Origin:    b.origin,
		Scope:     scope,
		Timestamp: time.Now().UnixNano(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation message: %w", err)
	}

	b.logger.Debug("Published cache invalidation",
		zap.Strings("scope", scope),
		zap.String("channel", b.channel))
	return nil
}

// Subscribe applies invalidations published by other processes until ctx
// ends or Close is called. It blocks, so run it in a goroutine. ready, when
// not nil, is closed once the subscription is confirmed.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context, apply func(scope []string), ready chan<- struct{}) error {
	b.mu.Lock()
	if b.isRunning {
		b.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	b.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	b.cancelFn = cancel
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.isRunning = false
		b.mu.Unlock()
		b.markDone()
	}()

	pubsub := b.client.Subscribe(subCtx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	b.logger.Info("Subscribed to cache invalidation channel",
		zap.String("channel", b.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			b.logger.Info("Cache invalidation subscription stopped")
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warn("Cache invalidation channel closed")
				return nil
			}

			var inv InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				b.logger.Error("Failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if inv.Origin == b.origin {
				continue
			}

			b.logger.Debug("Received cache invalidation",
				zap.Strings("scope", inv.Scope),
				zap.String("origin", inv.Origin))
			b.apply(apply, inv.Scope)
		}
	}
}

func (b *RedisInvalidationBus) apply(apply func([]string), scope []string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic applying cache invalidation", zap.Any("panic", r))
		}
	}()
	apply(scope)
}

func (b *RedisInvalidationBus) markDone() {
	b.doneOnce.Do(func() {
		close(b.doneCh)
	})
}

// Close stops the subscription. The client is left open.
func (b *RedisInvalidationBus) Close() error {
	b.mu.Lock()
	cancelFn := b.cancelFn
	b.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-b.doneCh:
		case <-time.After(defaultCloseTimeout):
			b.logger.Warn("Timeout waiting for subscription to stop")
		}
	}
	return nil
}
