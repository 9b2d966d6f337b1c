package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/cache"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/catalog"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/config"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/creators"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/middleware"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/queue"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/ratings"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/review"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/storage"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/submissions"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/subtitles"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/tracing"
	"github.com/therealutkarshpriyadarshi/subcatalog/internal/webhook"
)

// API holds the stores and services behind the HTTP handlers
type API struct {
	cfg         *config.Config
	catalog     *catalog.Store
	submissions *submissions.Store
	subtitles   *subtitles.Store
	ratings     *ratings.Store
	creators    *creators.Store
	review      *review.Service
	cooldown    middleware.Cooldown
	limiter     *middleware.RateLimiter
	cache       *cache.Cache
	webhooks    *webhook.Service
	logger      *logging.Logger
}

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

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT secret is empty; admin routes will reject every token")
	}
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api, closers, err := newAPI(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize API: %v", err)
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.WarnWithErr("Failed to close dependency", err)
			}
		}
	}()

	go api.limiter.Cleanup(ctx)
	if l, ok := api.cooldown.(*middleware.RateLimiter); ok {
		go l.Cleanup(ctx)
	}

	// Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.ErrorWithErr("Metrics server failed", err)
			}
		}()
	}

	gin.SetMode(cfg.Server.Mode)
	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WarnWithErr("Metrics server forced to shutdown", err)
		}
	}

	logger.Info("Server stopped")
}

// newAPI wires the stores and the optional Redis, MinIO, AMQP, webhook and
// tracing backends. The returned closers run in order on shutdown.
func newAPI(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*API, []io.Closer, error) {
	var closers []io.Closer

	tracerCloser, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, tracerCloser)

	data := cfg.Data
	api := &API{
		cfg:         cfg,
		catalog:     catalog.New(data.CatalogPath, data.LockDir, logger),
		submissions: submissions.New(data.SubmissionsPath, data.LockDir),
		subtitles:   subtitles.NewStore(data.SubtitlesRoot, data.StagingRoot),
		ratings:     ratings.New(data.RatingsPath, data.LockDir),
		creators:    creators.New(data.CreatorMappingsPath, data.LockDir),
		limiter:     middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst),
		logger:      logger,
	}

	fetcher := subtitles.NewFetcher(nil)
	fetcher.SetFileRoot(data.MirrorRoot)
	api.subtitles.SetFetcher(fetcher)

	opts := review.Options{
		Catalog:     api.catalog,
		Submissions: api.submissions,
		Subtitles:   api.subtitles,
		Creators:    api.creators,
		DiffTTL:     cfg.Redis.DiffTTL,
		Logger:      logger,
	}

	// Redis backs the diff cache and the shared correction cooldown
	api.cooldown = middleware.NewCooldownLimiter(cfg.Auth.CorrectionCooldown)
	if cfg.Redis.Enabled {
		c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WarnWithErr("Redis unavailable, using in-process cooldown and no diff cache", err)
		} else {
			api.cache = c
			api.cooldown = middleware.NewWindowCooldown(c, cfg.Auth.CorrectionCooldown)
			opts.DiffCache = c
			closers = append(closers, c)
		}
	}

	if cfg.Storage.Enabled {
		stor, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, closers, fmt.Errorf("failed to initialize storage: %w", err)
		}
		api.subtitles.SetStagedSource(stor)
	}

	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue)
		if err != nil {
			logger.WarnWithErr("Queue unavailable, review events will not be published", err)
		} else {
			opts.Notifiers = append(opts.Notifiers, q)
			closers = append(closers, q)
		}
	}

	if len(cfg.Webhooks.URLs) > 0 {
		api.webhooks = webhook.NewService(webhook.Options{
			URLs:        cfg.Webhooks.URLs,
			Secret:      cfg.Webhooks.Secret,
			Timeout:     cfg.Webhooks.Timeout,
			RetryDelays: cfg.Webhooks.RetryDelays,
			Logger:      logger,
		})
		opts.Notifiers = append(opts.Notifiers, api.webhooks)
		closers = append(closers, closerFunc(func() error {
			api.webhooks.Close()
			return nil
		}))
	}

	api.review = review.NewService(opts)
	return api, closers, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// healthCheck reports whether the service and its optional cache are reachable
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if api.cache != nil {
		if err := api.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "cache_unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}
