package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/rpattn/enghistory/internal/api"
	"github.com/rpattn/enghistory/internal/cache"
	"github.com/rpattn/enghistory/internal/config"
	"github.com/rpattn/enghistory/internal/db"
	"github.com/rpattn/enghistory/internal/logger"
	"github.com/rpattn/enghistory/internal/metrics"
	"github.com/rpattn/enghistory/internal/middleware"
	"github.com/rpattn/enghistory/internal/repository"
	"github.com/rpattn/enghistory/internal/service"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := os.Getenv("ENGHISTORY_CONFIG_PATH")
	if configPath == "" {
		configPath = "."
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	if used := config.UsedFile(configPath); used != "" {
		zapLogger.Info("loaded config file", zap.String("path", used))
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, zapLogger); err != nil {
		zapLogger.Fatal("failed to run migrations", zap.Error(err))
	}

	entityRepo := repository.NewEntityRepository(conn.Pool, zapLogger)
	m := metrics.New()

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithIgnoredFields(cfg.History.IgnoredFields),
	}
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			zapLogger.Warn("history cache unreachable, continuing without it", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		} else {
			opts = append(opts, service.WithCache(cache.NewRedisCache(client, cfg.Cache.TTL)))
			zapLogger.Info("history cache enabled", zap.String("addr", cfg.Cache.Addr), zap.Duration("ttl", cfg.Cache.TTL))
		}
	}
	historyService := service.NewHistoryService(entityRepo, zapLogger, opts...)

	mux := http.NewServeMux()
	api.NewHandler(historyService, zapLogger).Routes(mux)
	mux.Handle("GET /metrics", m.Handler())

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(middleware.LoggingMiddleware(zapLogger)(
		middleware.OrganizationScopeMiddleware(
			middleware.VersionLoaderMiddleware(entityRepo)(mux),
		),
	))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("starting history server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("server exited")
}
