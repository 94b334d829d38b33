package limits

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used for invalidation events.
const DefaultRedisChannel = "notekit:limits:invalidate"

// RedisInvalidator carries invalidation events over Redis pub/sub so every
// instance refreshes its sessions for the user.
type RedisInvalidator struct {
	client     redis.UniversalClient
	channel    string
	bufferSize int
	logger     *slog.Logger
}

// RedisOption configures a RedisInvalidator.
type RedisOption func(*RedisInvalidator)

// WithRedisChannel overrides the pub/sub channel name.
func WithRedisChannel(channel string) RedisOption {
	return func(r *RedisInvalidator) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithRedisLogger sets the logger for malformed events.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(r *RedisInvalidator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedisInvalidator creates an invalidator on top of client.
// Panics if client is nil.
func NewRedisInvalidator(client redis.UniversalClient, opts ...RedisOption) *RedisInvalidator {
	if client == nil {
		panic("limits: redis client is required")
	}

	r := &RedisInvalidator{
		client:     client,
		channel:    DefaultRedisChannel,
		bufferSize: 64,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisInvalidator) Publish(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Publish(ctx, r.channel, userID.String()).Err(); err != nil {
		return errors.Join(ErrFailedToPublish, err)
	}
	return nil
}

func (r *RedisInvalidator) Subscribe(ctx context.Context) (<-chan uuid.UUID, error) {
	ps := r.client.Subscribe(ctx, r.channel)

	// Wait for the subscription confirmation so events published right
	// after Subscribe returns are not lost.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Join(ErrFailedToSubscribe, err)
	}

	out := make(chan uuid.UUID, r.bufferSize)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				userID, err := uuid.Parse(msg.Payload)
				if err != nil {
					r.logger.WarnContext(ctx, "ignoring malformed invalidation event",
						slog.String("payload", msg.Payload),
						slog.Any("error", errors.Join(ErrInvalidEvent, err)),
					)
					continue
				}
				select {
				case out <- userID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
