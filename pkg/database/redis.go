package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go-concord/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Redis struct {
	Client *redis.Client
	tracer trace.Tracer
}

// releaseScript deletes a lock key only when it still holds the caller's token
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

func NewRedis(ctx context.Context) (*Redis, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opt.Addr)

	return NewRedisFromClient(client), nil
}

// NewRedisFromClient wraps an existing client, attaching a tracer when telemetry is enabled
func NewRedisFromClient(client *redis.Client) *Redis {
	r := &Redis{Client: client}
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		r.tracer = otel.Tracer("redis-client")
	}
	return r
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// traced runs fn inside a span when tracing is enabled
func (r *Redis) traced(ctx context.Context, name, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if r.tracer == nil {
		return fn(ctx)
	}

	attrs = append(attrs, attribute.String("redis.operation", operation))
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
	}
	return err
}

// Publish sends a message to a pub/sub channel
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.traced(ctx, "redis.publish", "PUBLISH", func(ctx context.Context) error {
		return r.Client.Publish(ctx, channel, payload).Err()
	}, attribute.String("redis.channel", channel), attribute.Int("redis.data_size", len(payload)))
}

// AcquireLock tries once to take key with the given token; false means someone else holds it
func (r *Redis) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := r.traced(ctx, "redis.lock.acquire", "SET_NX", func(ctx context.Context) error {
		ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
		acquired = ok
		return err
	}, attribute.String("redis.key", key))
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return acquired, nil
}

// ReleaseLock deletes key if it is still owned by token
func (r *Redis) ReleaseLock(ctx context.Context, key, token string) error {
	err := r.traced(ctx, "redis.lock.release", "EVAL", func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.Client, []string{key}, token).Err()
	}, attribute.String("redis.key", key))
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
