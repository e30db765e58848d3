// AngelaMos | 2026
// emitter.go

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/mq"
)

const (
	OutcomeQueued    = "queued"
	OutcomeDropped   = "dropped"
	OutcomePublished = "published"
	OutcomeFailed    = "failed"

	defaultBufferSize     = 256
	defaultPublishTimeout = 5 * time.Second
)

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lms_notifications_total",
		Help: "Notification events by type and dispatch outcome.",
	},
	[]string{"type", "outcome"},
)

// QueueEmitter buffers events and publishes them to a queue from a single
// background goroutine. Each event is published at most once.
type QueueEmitter struct {
	publisher mq.Publisher
	channel   string
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

func NewQueueEmitter(
	publisher mq.Publisher,
	cfg config.QueueConfig,
	logger *slog.Logger,
) *QueueEmitter {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	e := &QueueEmitter{
		publisher: publisher,
		channel:   cfg.Name,
		timeout:   timeout,
		logger:    logger,
		events:    make(chan Event, size),
		done:      make(chan struct{}),
	}

	go e.run()

	return e
}

// Emit never blocks. A full buffer or a closed emitter drops the event.
func (e *QueueEmitter) Emit(ctx context.Context, ev Event) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.drop(ctx, ev, "emitter closed")
		return
	}

	select {
	case e.events <- ev:
		notificationsTotal.WithLabelValues(string(ev.Type), OutcomeQueued).Inc()
	default:
		e.drop(ctx, ev, "buffer full")
	}
}

// Close stops accepting events and waits for buffered ones to be published
// or for ctx to end.
func (e *QueueEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain notifications: %w", ctx.Err())
	}
}

func (e *QueueEmitter) run() {
	defer close(e.done)

	for ev := range e.events {
		e.publish(ev)
	}
}

func (e *QueueEmitter) publish(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	data, err := json.Marshal(ev)
	if err != nil {
		e.fail(ev, fmt.Errorf("marshal event: %w", err))
		return
	}

	_, err = e.publisher.Publish(ctx, e.channel, data, map[string]string{
		"type": string(ev.Type),
	})
	if err != nil {
		e.fail(ev, err)
		return
	}

	notificationsTotal.WithLabelValues(string(ev.Type), OutcomePublished).Inc()
}

func (e *QueueEmitter) fail(ev Event, err error) {
	notificationsTotal.WithLabelValues(string(ev.Type), OutcomeFailed).Inc()
	e.logger.Error("notification publish failed",
		"type", ev.Type,
		"recipient", ev.Recipient,
		"error", err,
	)
}

func (e *QueueEmitter) drop(ctx context.Context, ev Event, reason string) {
	notificationsTotal.WithLabelValues(string(ev.Type), OutcomeDropped).Inc()
	e.logger.WarnContext(ctx, "notification dropped",
		"type", ev.Type,
		"recipient", ev.Recipient,
		"reason", reason,
	)
}
