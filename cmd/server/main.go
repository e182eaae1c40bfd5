package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/gig-scout/internal/adapter/api"
	"github.com/V4T54L/gig-scout/internal/adapter/cache"
	"github.com/V4T54L/gig-scout/internal/adapter/imagery"
	"github.com/V4T54L/gig-scout/internal/adapter/metrics"
	"github.com/V4T54L/gig-scout/internal/adapter/provider"
	"github.com/V4T54L/gig-scout/internal/adapter/render"
	"github.com/V4T54L/gig-scout/internal/domain"
	"github.com/V4T54L/gig-scout/internal/pkg/config"
	"github.com/V4T54L/gig-scout/internal/pkg/logger"
	"github.com/V4T54L/gig-scout/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewPipelineMetrics()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Response Cache ---
	store, cleanup, err := buildCacheStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize cache backend", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// --- Rendered-page Fallback and Image Finder ---
	var renderer domain.Renderer
	if cfg.RenderEnabled {
		renderer = render.NewChromiumRenderer(cfg.RenderTimeout, logger.With("component", "renderer"))
	}
	finder := imagery.NewFinder(renderer, logger.With("component", "imagery"))

	// --- Providers ---
	providerConfigs, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		logger.Error("failed to load providers", "file", cfg.ProvidersFile, "error", err)
		os.Exit(1)
	}
	deps := provider.Deps{
		Cache:           store,
		Logger:          logger,
		TicketmasterKey: cfg.TicketmasterKey,
		ImageFinder:     finder,
		HTTPTimeout:     cfg.HTTPTimeout,
		RatePerSecond:   cfg.RatePerSecond,
		APITTL:          cfg.APITTL,
		ScrapeTTL:       cfg.ScrapeTTL,
		FeedTTL:         cfg.FeedTTL,
	}
	handles := make([]usecase.ProviderHandle, 0, len(providerConfigs))
	for _, pc := range providerConfigs {
		p, err := provider.NewFromConfig(pc, deps)
		if err != nil {
			logger.Error("failed to build provider", "provider", pc.ID, "error", err)
			os.Exit(1)
		}
		handles = append(handles, usecase.ProviderHandle{Config: pc, Provider: p})
		logger.Info("registered provider", "provider", pc.ID, "type", pc.Type)
	}

	// --- Use Cases ---
	cutoff, err := usecase.ParseWeekdayCutoff(cfg.WeekdayCutoff)
	if err != nil {
		logger.Error("invalid weekday cutoff", "value", cfg.WeekdayCutoff, "error", err)
		os.Exit(1)
	}
	hydrator := usecase.NewHydrateImagesUseCase(finder, cfg.ImageQuota, logger.With("component", "hydration"))
	aggregateUseCase := usecase.NewAggregateEventsUseCase(handles, hydrator, cutoff, cfg.FetchTimeout, logger.With("component", "aggregator"))
	previewUseCase := usecase.NewPreviewProviderUseCase(handles, cfg.FetchTimeout, logger.With("component", "preview"))

	// --- Admin and Metrics Server ---
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(),
	}
	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- API Server ---
	apiServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      api.NewRouter(logger, aggregateUseCase, previewUseCase, m),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if renderer != nil {
		if err := renderer.Shutdown(shutdownCtx); err != nil {
			logger.Error("renderer shutdown failed", "error", err)
		}
	}

	logger.Info("servers shut down gracefully")
}

// buildCacheStore wires the configured durable backend behind the in-memory
// fast tier. The returned cleanup closes backend connections.
func buildCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.CacheStore, func(), error) {
	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, cache starts cold", "error", err)
		}
		store := cache.NewRedisStore(client, logger.With("component", "cache"), cache.DefaultRetention)
		return cache.NewTiered(store, logger.With("component", "cache")), func() { client.Close() }, nil

	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewPostgresStore(db, logger.With("component", "cache"))
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return cache.NewTiered(store, logger.With("component", "cache")), func() { db.Close() }, nil

	default:
		// "memory": no durable layer, suitable for tests and single-node dev.
		return cache.NewTiered(nil, logger.With("component", "cache")), func() {}, nil
	}
}
