// Command apiserver serves the deadline agent over REST and, when enabled,
// gRPC.
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
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/deadline-agent/internal/interfaces/grpc"
	httpserver "github.com/turtacn/deadline-agent/internal/interfaces/http"
	"github.com/turtacn/deadline-agent/internal/interfaces/http/handlers"
	"github.com/turtacn/deadline-agent/internal/interfaces/http/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: search ./configs, /etc/deadline-agent)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *httpPort, *grpcPort)
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
		logger.Error("api server failed", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string, httpPort, grpcPort int) (*config.Config, error) {
	overrides := map[string]interface{}{}
	if httpPort > 0 {
		overrides["server.http.port"] = httpPort
	}
	if grpcPort > 0 {
		overrides["server.grpc.port"] = grpcPort
	}
	opts := []config.Option{config.WithOverrides(overrides)}
	if path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	return config.Load(opts...)
}

func run(ctx context.Context, cfg *config.Config, configPath string, logger logging.Logger) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if configPath != "" {
		watchLogLevel(configPath, logger)
	}

	httpCfg := cfg.Server.HTTP
	routerCfg := httpserver.RouterConfig{
		ExtractionHandler: handlers.NewExtractionHandler(a.Service, logger,
			handlers.WithMaxBodyBytes(httpCfg.MaxBodyBytes),
			handlers.WithDefaultAssumptions(cfg.Business)),
		CalendarHandler: handlers.NewCalendarHandler(a.Engine.Calendar(), logger),
		HealthHandler:   handlers.NewHealthHandler(config.Version, healthCheckers(a)...),
		LoggingConfig:   middleware.DefaultLoggingConfig(),
		Logger:          logger,
		HTTPMetrics:     a.Metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsCollector = a.Collector
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if httpCfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond, rl.BurstSize = httpCfg.RateLimitRPS, httpCfg.RateLimitBurst
		routerCfg.RateLimiter = middleware.NewClientRateLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.IdleTTL)
		routerCfg.RateLimitConfig = rl
	}

	httpSrv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:            httpCfg.Addr(),
		ReadTimeout:     httpCfg.ReadTimeout,
		WriteTimeout:    httpCfg.WriteTimeout,
		IdleTimeout:     httpCfg.IdleTimeout,
		ShutdownTimeout: httpCfg.ShutdownTimeout,
	}, httpserver.NewRouter(routerCfg), logger)

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.Server.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(a.Metrics),
			grpcserver.WithGracefulTimeout(httpCfg.ShutdownTimeout))
		if err != nil {
			return err
		}
		grpcSrv.RegisterService(&grpcserver.ExtractionServiceDesc, grpcserver.NewExtractionService(a.Service))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", logging.String("addr", httpCfg.Addr()))
		errCh <- httpSrv.Start()
	}()
	if grpcSrv != nil {
		go func() {
			logger.Info("gRPC server listening", logging.String("addr", grpcSrv.Addr()))
			errCh <- grpcSrv.Start()
		}()
	}

	logger.Info("deadline agent api server started",
		logging.String("version", config.Version),
		logging.String("commit", config.GitCommit),
		logging.Bool("grpc", grpcSrv != nil))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("server stopped unexpectedly", logging.Err(serveErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Error("gRPC server shutdown error", logging.Err(err))
		}
	}
	logger.Info("api server stopped")
	return serveErr
}

func healthCheckers(a *app.App) []handlers.HealthChecker {
	checkers := a.HealthCheckers()
	out := make([]handlers.HealthChecker, 0, len(checkers))
	for _, c := range checkers {
		out = append(out, c)
	}
	return out
}

// watchLogLevel applies log level changes from the config file at runtime.
// Other settings need a restart.
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
