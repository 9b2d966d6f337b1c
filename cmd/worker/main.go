package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/config"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/queue"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/webhook"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

// The worker relays review events from the message queue to the configured webhooks.
func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if len(cfg.Webhooks.URLs) == 0 {
		logger.Fatal("No webhook URLs configured; nothing to relay")
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	hooks := webhook.NewService(webhook.Options{
		URLs:        cfg.Webhooks.URLs,
		Secret:      cfg.Webhooks.Secret,
		Timeout:     cfg.Webhooks.Timeout,
		RetryDelays: cfg.Webhooks.RetryDelays,
		Logger:      logger,
	})
	defer hooks.Close()

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("Shutting down worker...")
		cancel()
	}()

	logger.WithField("urls", len(cfg.Webhooks.URLs)).Info("Relaying review events to webhooks")
	if err := relay(ctx, q, hooks, logger); err != nil {
		logger.ErrorWithErr("Event relay stopped", err)
	}
	logger.Info("Worker stopped")
}

// EventSource yields review events until ctx is done
type EventSource interface {
	ConsumeEvents(ctx context.Context, handler func(models.SubmissionEvent) error) error
}

// Notifier receives relayed events
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event models.SubmissionEvent) error
}

func relay(ctx context.Context, src EventSource, dst Notifier, logger *logging.Logger) error {
	return src.ConsumeEvents(ctx, func(evt models.SubmissionEvent) error {
		log := logger.WithSubmissionID(evt.SubmissionID).WithField("event", evt.Event)
		if err := dst.Notify(ctx, evt); err != nil {
			metrics.RecordNotification(dst.Name(), "failed")
			log.WarnWithErr("Relay failed", err)
			return err
		}
		metrics.RecordNotification(dst.Name(), "relayed")
		log.Debug("Event relayed")
		return nil
	})
}
