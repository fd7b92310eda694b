package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SonianW/MetaPrompter/internal/api"
	"github.com/SonianW/MetaPrompter/internal/api/handlers"
	"github.com/SonianW/MetaPrompter/internal/cache"
	"github.com/SonianW/MetaPrompter/internal/catalog"
	"github.com/SonianW/MetaPrompter/internal/config"
	"github.com/SonianW/MetaPrompter/internal/database"
	"github.com/SonianW/MetaPrompter/internal/llm"
	"github.com/SonianW/MetaPrompter/internal/prompt"
	"github.com/SonianW/MetaPrompter/internal/stats"
	"github.com/SonianW/MetaPrompter/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	// Storage: Postgres when DATABASE_URL is set, in-memory otherwise.
	var st store.Store
	if cfg.Database.URL == "" {
		slog.Warn("DATABASE_URL not set, prompts are kept in memory")
		st = store.NewMemory()
	} else {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("database unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		applied, err := database.RunMigrations(ctx, db, database.Source(cfg.Database.MigrationsPath))
		if err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations complete", "applied", applied)

		st = store.NewPostgres(db)
		checks["database"] = db
	}

	// Public listing cache: Redis when REDIS_ADDR is set.
	var c cache.Cache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		rdb := cache.NewRedisClient(cfg.Redis)
		defer rdb.Close()

		rc := cache.NewRedis(rdb, "metaprompter:")
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, falling back to in-memory cache", "error", err)
		} else {
			c = rc
			checks["redis"] = rc
		}
	}

	provider := llm.NewProvider(llm.ConfigFrom(cfg.LLM), llm.NewChatModel)
	lifecycle := prompt.NewLifecycle(prompt.NewRegistry(), provider)
	agg := stats.NewAggregator(st, stats.WithLocation(loc))
	svc := catalog.NewService(st, lifecycle, agg, catalog.WithCache(c, cfg.Stats.PublicCacheTTL))

	router := api.NewRouter(cfg, svc, checks)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "provider", cfg.LLM.Provider, "model", cfg.LLM.DefaultModel)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
