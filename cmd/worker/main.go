// Command worker consumes extraction request events from Kafka, resolves
// them and publishes the results. Events that keep failing are moved to the
// dead-letter topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/deadline-agent/internal/app"
	"github.com/turtacn/deadline-agent/internal/config"
	"github.com/turtacn/deadline-agent/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/deadline-agent/internal/interfaces/http"
	"github.com/turtacn/deadline-agent/internal/interfaces/http/handlers"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: search ./configs, /etc/deadline-agent)")
	healthAddr := flag.String("health-addr", "", "health and metrics listen address (overrides config)")
	flag.Parse()

	opts := []config.Option{}
	if *configPath != "" {
		opts = append(opts, config.WithConfigPath(*configPath))
	}
	if *healthAddr != "" {
		opts = append(opts, config.WithOverrides(map[string]interface{}{"worker.health_addr": *healthAddr}))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil {
		logger.Error("worker failed", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, configPath string, logger logging.Logger) error {
	if !cfg.Messaging.Enabled {
		return errors.New(errors.ErrCodeValidation, "messaging.enabled must be true to run the worker")
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if configPath != "" {
		watchLogLevel(configPath, logger)
	}

	if cfg.Worker.EnsureTopics {
		if err := ensureTopics(ctx, cfg.Messaging, logger); err != nil {
			return err
		}
	}

	consumer, err := kafka.NewConsumer(cfg.Messaging.ConsumerConfig(), logger,
		kafka.WithDeadLetterPublisher(a.Producer),
		kafka.WithConsumerMetrics(a.Metrics))
	if err != nil {
		return err
	}
	defer consumer.Close()

	handler := kafka.NewExtractRequestHandler(a.Service, cfg.Messaging.HandlerTimeout, logger)
	if err := consumer.Subscribe(cfg.Messaging.Topics.Requested, handler); err != nil {
		return err
	}

	healthSrv := httpserver.NewServer(httpserver.ServerConfig{Addr: cfg.Worker.HealthAddr},
		httpserver.NewRouter(httpserver.RouterConfig{
			HealthHandler:    handlers.NewHealthHandler(config.Version, healthCheckers(a)...),
			MetricsCollector: a.Collector,
			MetricsPath:      cfg.Metrics.Path,
			Logger:           logger,
		}), logger)
	healthErr := make(chan error, 1)
	go func() {
		logger.Info("health server listening", logging.String("addr", cfg.Worker.HealthAddr))
		healthErr <- healthSrv.Start()
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.Info("deadline agent worker started",
		logging.String("version", config.Version),
		logging.String("topic", cfg.Messaging.Topics.Requested),
		logging.String("group", cfg.Messaging.GroupID))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-healthErr:
		if runErr != nil {
			logger.Error("health server stopped unexpectedly", logging.Err(runErr))
		}
	}

	if err := consumer.Close(); err != nil {
		logger.Error("consumer close error", logging.Err(err))
	}
	stats := consumer.Stats()
	logger.Info("consumer stopped",
		logging.Int64("processed", stats.MessagesProcessed),
		logging.Int64("failed", stats.MessagesFailed),
		logging.Int64("dead_lettered", stats.MessagesDeadLettered))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}
	logger.Info("worker stopped")
	return runErr
}

func ensureTopics(ctx context.Context, cfg kafka.Config, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(cfg.Brokers, cfg.Security, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Topics, cfg.ReplicationFactor))
}

func healthCheckers(a *app.App) []handlers.HealthChecker {
	checkers := a.HealthCheckers()
	out := make([]handlers.HealthChecker, 0, len(checkers))
	for _, c := range checkers {
		out = append(out, c)
	}
	return out
}

func watchLogLevel(path string, logger logging.Logger) {
	err := config.Watch(path, func(cfg *config.Config) {
		if logging.SetLevel(logger, cfg.Logging.Level) {
			logger.Info("log level updated", logging.String("level", cfg.Logging.Level))
		}
	}, func(err error) {
		logger.Warn("ignoring invalid configuration change", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
