// AngelaMos | 2026
// mq.go

package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/lms-backend/internal/config"
)

var ErrChannelRequired = errors.New("queue channel is required")

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string            `json:"id"`
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Handler processes a message. Delivery is at most once on every backend:
// a returned error is logged by the caller and the message is discarded.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(
		ctx context.Context,
		channel string,
		data []byte,
		attrs map[string]string,
	) (string, error)
}

type Backend interface {
	Publisher
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the backend selected by cfg.Backend. The Redis backend reuses
// the shared client and does not close it.
func New(cfg config.QueueConfig, rdb *redis.Client) (Backend, error) {
	switch cfg.Backend {
	case config.QueueBackendRedis:
		return NewRedisBackend(rdb, cfg.BlockTimeout), nil
	case config.QueueBackendRabbitMQ:
		return NewRabbitMQBackend(cfg)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}
