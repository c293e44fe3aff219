// Package main is the entrypoint for the IntegrityOS API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/integrityos/internal/api"
	"github.com/kiranshivaraju/integrityos/internal/api/handler"
	mw "github.com/kiranshivaraju/integrityos/internal/api/middleware"
	"github.com/kiranshivaraju/integrityos/internal/api/response"
	"github.com/kiranshivaraju/integrityos/internal/cache"
	"github.com/kiranshivaraju/integrityos/internal/classifier"
	"github.com/kiranshivaraju/integrityos/internal/config"
	"github.com/kiranshivaraju/integrityos/internal/dashboard"
	"github.com/kiranshivaraju/integrityos/internal/ingest"
	"github.com/kiranshivaraju/integrityos/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "model_store", cfg.Model.Store, "kafka", cfg.Kafka.Enabled())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and classifier
	pgStore := store.NewPostgresStore(pool)

	clf := classifier.New(artifactStore(cfg.Model, pgStore),
		classifier.WithLocker(redisCache, cache.ModelWriterLockKey(), cfg.Model.LockTTL))
	if err := clf.Load(ctx); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if info := clf.Info(); info.Loaded {
		slog.Info("model loaded", "model_id", info.ModelID, "source", info.Source, "accuracy", info.Accuracy)
	} else {
		slog.Info("no stored model, bootstrapping on first prediction")
	}

	dash := dashboard.NewService(pgStore, cfg.Analytics)

	// 6. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMinute),

		HealthHandler: healthHandler(pgStore, redisCache),

		ListAssets:           handler.NewListAssetsHandler(pgStore),
		CreateAsset:          handler.NewCreateAssetHandler(pgStore),
		GetAsset:             handler.NewGetAssetHandler(pgStore),
		UpdateAsset:          handler.NewUpdateAssetHandler(pgStore),
		DeleteAsset:          handler.NewDeleteAssetHandler(pgStore),
		ListAssetInspections: handler.NewListAssetInspectionsHandler(pgStore),
		ListInspections:      handler.NewListInspectionsHandler(pgStore),
		CreateInspection:     handler.NewCreateInspectionHandler(pgStore),
		GetInspection:        handler.NewGetInspectionHandler(pgStore),
		DashboardOverview:    handler.NewOverviewHandler(dash),
		DefectsByMethod:      handler.NewDefectsByMethodHandler(dash),
		DefectsByYear:        handler.NewDefectsByYearHandler(dash),
		QualityStats:         handler.NewQualityStatsHandler(dash),
		PredictHandler:       handler.NewPredictHandler(clf),
		PredictBatchHandler:  handler.NewPredictBatchHandler(clf),
		TrainHandler:         handler.NewTrainHandler(clf, pgStore),
		BootstrapHandler:     handler.NewBootstrapHandler(clf),
		ModelInfoHandler:     handler.NewModelInfoHandler(clf),
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute, // training runs inline
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Start inspection event consumer
	if cfg.Kafka.Enabled() {
		consumer := ingest.NewConsumer(cfg.Kafka, pgStore)
		defer consumer.Close()
		go func() {
			slog.Info("inspection consumer started", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
			if err := consumer.Run(ctx); err != nil {
				errCh <- fmt.Errorf("inspection consumer: %w", err)
			}
		}()
	}

	// Wait for shutdown signal or a background failure
	var runErr error
	select {
	case runErr = <-errCh:
		slog.Error("background task failed, shutting down", "error", runErr)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	slog.Info("server stopped gracefully")
	return nil
}

// artifactStore picks where model artifacts are persisted.
func artifactStore(cfg config.ModelConfig, pg *store.PostgresStore) classifier.ArtifactStore {
	if cfg.Store == config.ModelStoreFile {
		return store.NewFileArtifactStore(cfg.Dir)
	}
	return pg
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, response.CodeDegraded,
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
