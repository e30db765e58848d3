// AngelaMos | 2026
// worker.go

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/templates/lms-backend/internal/mq"
	"github.com/carterperez-dev/templates/lms-backend/internal/notify"
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lms_mail_deliveries_total",
		Help: "Emails handled by the mail worker, by notification type and outcome.",
	},
	[]string{"type", "outcome"},
)

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Worker consumes notification events from the queue and delivers them as
// email. Failed messages are logged and dropped.
type Worker struct {
	subscriber Subscriber
	channel    string
	renderer   *Renderer
	sender     Sender
	logger     *slog.Logger
}

func NewWorker(
	subscriber Subscriber,
	channel string,
	renderer *Renderer,
	sender Sender,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		subscriber: subscriber,
		channel:    channel,
		renderer:   renderer,
		sender:     sender,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("mail worker started", "channel", w.channel)

	err := w.subscriber.Subscribe(ctx, w.channel, w.handle)
	if errors.Is(err, context.Canceled) {
		w.logger.Info("mail worker stopped")
		return nil
	}
	return err
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var ev notify.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		deliveriesTotal.WithLabelValues("unknown", "malformed").Inc()
		w.logger.ErrorContext(ctx, "malformed notification",
			"message_id", msg.ID,
			"error", err,
		)
		return fmt.Errorf("decode notification: %w", err)
	}

	rendered, err := w.renderer.Render(ev)
	if err != nil {
		deliveriesTotal.WithLabelValues(string(ev.Type), "render_failed").Inc()
		w.logger.ErrorContext(ctx, "render email failed",
			"message_id", msg.ID,
			"type", ev.Type,
			"error", err,
		)
		return err
	}

	if err := w.sender.Send(ctx, rendered); err != nil {
		deliveriesTotal.WithLabelValues(string(ev.Type), "send_failed").Inc()
		w.logger.ErrorContext(ctx, "send email failed",
			"message_id", msg.ID,
			"type", ev.Type,
			"to", rendered.To,
			"error", err,
		)
		return err
	}

	deliveriesTotal.WithLabelValues(string(ev.Type), "sent").Inc()
	w.logger.InfoContext(ctx, "email sent",
		"message_id", msg.ID,
		"type", ev.Type,
		"to", rendered.To,
	)
	return nil
}
