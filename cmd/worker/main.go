// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/carterperez-dev/templates/lms-backend/internal/config"
	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/mail"
	"github.com/carterperez-dev/templates/lms-backend/internal/middleware"
	"github.com/carterperez-dev/templates/lms-backend/internal/mq"
)

const metricsAddr = ":9091"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := core.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := redis.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}()

	queue, err := mq.New(cfg.Queue, redis.Client)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Error("queue close error", "error", err)
		}
	}()

	renderer, err := mail.NewRenderer(cfg.Mail.FromName)
	if err != nil {
		return err
	}

	sender, err := mail.NewSender(cfg.Mail, logger)
	if err != nil {
		return err
	}
	if cfg.Mail.SMTPHost == "" {
		logger.Warn("no smtp host configured, emails will only be logged")
	}

	if cfg.Metrics.Enabled {
		metricsSrv := &http.Server{
			Addr:              metricsAddr,
			Handler:           middleware.MetricsHandler(prometheus.DefaultGatherer),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx) //nolint:errcheck // best-effort on exit
		}()
	}

	worker := mail.NewWorker(queue, cfg.Queue.Name, renderer, sender, logger)
	return worker.Run(ctx)
}
