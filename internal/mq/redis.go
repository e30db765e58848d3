// AngelaMos | 2026
// redis.go

package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix      = "queue:"
	defaultBlockTimeout = 5 * time.Second
	minRetryDelay       = 500 * time.Millisecond
	maxRetryDelay       = 30 * time.Second
)

// RedisBackend is a list-backed queue: LPUSH to publish, BRPOP to consume.
type RedisBackend struct {
	client       *redis.Client
	blockTimeout time.Duration
	retryDelay   time.Duration
}

func NewRedisBackend(client *redis.Client, blockTimeout time.Duration) *RedisBackend {
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}
	return &RedisBackend{
		client:       client,
		blockTimeout: blockTimeout,
		retryDelay:   minRetryDelay,
	}
}

func (r *RedisBackend) Publish(
	ctx context.Context,
	channel string,
	data []byte,
	attrs map[string]string,
) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", ErrChannelRequired
	}

	msg := Message{
		ID:         uuid.NewString(),
		Data:       data,
		Attributes: attrs,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, redisKeyPrefix+channel, payload).Err(); err != nil {
		return "", fmt.Errorf("redis lpush: %w", err)
	}

	return msg.ID, nil
}

// Subscribe blocks until ctx is done. Malformed entries, handler errors and
// broker errors do not stop the loop; broker errors back off before retrying.
func (r *RedisBackend) Subscribe(
	ctx context.Context,
	channel string,
	handler Handler,
) error {
	if strings.TrimSpace(channel) == "" {
		return ErrChannelRequired
	}

	key := redisKeyPrefix + channel
	delay := r.retryDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := r.client.BRPop(ctx, r.blockTimeout, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.WarnContext(ctx, "queue receive failed, retrying",
				"channel", channel,
				"error", err,
				"retry_in", delay,
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
			delay = min(delay*2, maxRetryDelay)
			continue
		}
		delay = r.retryDelay

		// result is [key, value]
		if len(result) != 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
			continue
		}

		_ = handler(ctx, msg) //nolint:errcheck // at-most-once delivery
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisBackend) Close() error {
	return nil
}
